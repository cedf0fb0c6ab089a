package audio

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
)

// ErrUnsupportedFormat is returned for assets no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format is a supported container format.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatM4A  Format = "m4a"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg" // Vorbis or Opus, told apart by the first packet
)

var extFormats = map[string]Format{
	".mp3":  FormatMP3,
	".m4a":  FormatM4A,
	".mp4":  FormatM4A,
	".flac": FormatFLAC,
	".ogg":  FormatOGG,
	".oga":  FormatOGG,
	".opus": FormatOGG,
}

var mimeFormats = map[string]Format{
	"audio/mpeg":         FormatMP3,
	"audio/mp3":          FormatMP3,
	"audio/mp4":          FormatM4A,
	"audio/x-m4a":        FormatM4A,
	"video/mp4":          FormatM4A,
	"audio/flac":         FormatFLAC,
	"audio/x-flac":       FormatFLAC,
	"application/x-flac": FormatFLAC,
	"audio/ogg":          FormatOGG,
	"audio/opus":         FormatOGG,
	"audio/vorbis":       FormatOGG,
	"application/ogg":    FormatOGG,
}

// IsSupportedFile returns true if a local file has a decodable extension.
func IsSupportedFile(p string) bool {
	_, ok := extFormats[strings.ToLower(path.Ext(p))]
	return ok
}

// DetectFormat guesses the format from the source extension, falling back
// to the response content type.
func DetectFormat(src, contentType string) (Format, error) {
	p := src
	if u, err := url.Parse(src); err == nil && u.Path != "" {
		p = u.Path
	}
	if f, ok := extFormats[strings.ToLower(path.Ext(p))]; ok {
		return f, nil
	}
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			if f, ok := mimeFormats[mt]; ok {
				return f, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
}

// decode opens a streamer for the given format.
func decode(rc io.ReadSeekCloser, f Format) (beep.StreamSeekCloser, beep.Format, error) {
	switch f {
	case FormatMP3:
		return decodeMP3(rc)
	case FormatM4A:
		return decodeM4A(rc)
	case FormatFLAC:
		// Some taggers prepend an ID3v2 tag the FLAC decoder does not handle
		if err := skipID3v2(rc); err != nil {
			return nil, beep.Format{}, err
		}
		return flac.Decode(rc)
	case FormatOGG:
		return decodeOgg(rc)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// skipID3v2 skips an ID3v2 tag at the start of r, if any.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	if n < 10 || string(header[0:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// Syncsafe size: 7 bits per byte
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
