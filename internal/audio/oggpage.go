package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var (
	errInvalidOggMagic   = errors.New("ogg: invalid capture pattern")
	errInvalidOggVersion = errors.New("ogg: unsupported version")
	errNoGranule         = errors.New("ogg: no page with a granule position")
)

const (
	oggHeaderSize   = 27
	oggFlagContinue = 0x01
	oggTailScan     = 64 << 10
)

var oggCapture = []byte("OggS")

// oggPageHeader is the fixed part of an Ogg page plus its segment table.
type oggPageHeader struct {
	Flags      byte
	GranulePos int64 // -1 when no packet ends on the page
	Serial     uint32
	Sequence   uint32
	Segments   []uint8
}

func (h *oggPageHeader) bodySize() int64 {
	var n int64
	for _, s := range h.Segments {
		n += int64(s)
	}
	return n
}

// parseOggPageHeader reads a page header. The CRC is not verified.
func parseOggPageHeader(r io.Reader) (*oggPageHeader, error) {
	var buf [oggHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	if !bytes.Equal(buf[0:4], oggCapture) {
		return nil, errInvalidOggMagic
	}
	if buf[4] != 0 {
		return nil, errInvalidOggVersion
	}

	hdr := &oggPageHeader{
		Flags:      buf[5],
		GranulePos: int64(binary.LittleEndian.Uint64(buf[6:14])), //nolint:gosec // -1 is meaningful
		Serial:     binary.LittleEndian.Uint32(buf[14:18]),
		Sequence:   binary.LittleEndian.Uint32(buf[18:22]),
	}
	if n := buf[26]; n > 0 {
		hdr.Segments = make([]uint8, n)
		if _, err := io.ReadFull(r, hdr.Segments); err != nil {
			return nil, err
		}
	}
	return hdr, nil
}

// readOggPageBody splits a page body into the packets that end on it and
// the trailing fragment of a packet continued on the next page.
func readOggPageBody(r io.Reader, hdr *oggPageHeader) (packets [][]byte, partial []byte, err error) {
	body := make([]byte, hdr.bodySize())
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}
	var start, end int
	for _, seg := range hdr.Segments {
		end += int(seg)
		if seg < 255 {
			packets = append(packets, body[start:end])
			start = end
		}
	}
	if start < end {
		partial = body[start:end]
	}
	return packets, partial, nil
}

type oggPage struct {
	GranulePos int64
	Packets    [][]byte
}

// oggReader reads the pages of the first logical stream of an Ogg file and
// reassembles packets spanning pages.
type oggReader struct {
	r         io.ReadSeeker
	serial    uint32
	hasSerial bool
	pending   []byte
	dataStart int64
}

func newOggReader(r io.ReadSeeker) *oggReader {
	return &oggReader{r: r}
}

// ReadPage returns the next page of the stream with its complete packets.
func (o *oggReader) ReadPage() (*oggPage, error) {
	for {
		hdr, err := parseOggPageHeader(o.r)
		if err != nil {
			return nil, err
		}
		if !o.hasSerial {
			o.serial, o.hasSerial = hdr.Serial, true
		}
		if hdr.Serial != o.serial {
			if _, err := o.r.Seek(hdr.bodySize(), io.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}

		packets, partial, err := readOggPageBody(o.r, hdr)
		if err != nil {
			return nil, err
		}
		if hdr.Flags&oggFlagContinue != 0 {
			switch {
			case o.pending == nil:
				// Head of the packet was before the seek point
				if len(packets) > 0 {
					packets = packets[1:]
				} else {
					partial = nil
				}
			case len(packets) > 0:
				packets[0] = append(o.pending, packets[0]...)
			default:
				partial = append(o.pending, partial...)
			}
		}
		o.pending = partial
		return &oggPage{GranulePos: hdr.GranulePos, Packets: packets}, nil
	}
}

// markDataStart records the current offset as the first audio page.
func (o *oggReader) markDataStart() error {
	pos, err := o.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	o.dataStart = pos
	o.pending = nil
	return nil
}

// LastGranule scans the tail of the file backwards for the last page of the
// stream that carries a granule position.
func (o *oggReader) LastGranule() (int64, error) {
	size, err := o.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	for chunk := int64(oggTailScan); ; chunk *= 2 {
		start := max(o.dataStart, size-chunk)
		buf := make([]byte, size-start)
		if _, err := o.r.Seek(start, io.SeekStart); err != nil {
			return 0, err
		}
		if _, err := io.ReadFull(o.r, buf); err != nil {
			return 0, err
		}
		for i := bytes.LastIndex(buf, oggCapture); i >= 0; i = bytes.LastIndex(buf[:i], oggCapture) {
			if i+18 > len(buf) || buf[i+4] != 0 {
				continue
			}
			if binary.LittleEndian.Uint32(buf[i+14:i+18]) != o.serial {
				continue
			}
			if g := int64(binary.LittleEndian.Uint64(buf[i+6 : i+14])); g >= 0 { //nolint:gosec // -1 is meaningful
				return g, nil
			}
		}
		if start == o.dataStart {
			return 0, errNoGranule
		}
	}
}

// SeekToGranule positions the reader on the page following the last page
// whose granule is at most target, and returns that granule. Decoding from
// there yields samples starting at the returned granule.
func (o *oggReader) SeekToGranule(target int64) (int64, error) {
	if _, err := o.r.Seek(o.dataStart, io.SeekStart); err != nil {
		return 0, err
	}
	start, granule := o.dataStart, int64(0)
	for {
		hdr, err := parseOggPageHeader(o.r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		next, err := o.r.Seek(hdr.bodySize(), io.SeekCurrent)
		if err != nil {
			return 0, err
		}
		if hdr.Serial != o.serial || hdr.GranulePos < 0 {
			continue
		}
		if hdr.GranulePos > target {
			break
		}
		start, granule = next, hdr.GranulePos
	}
	o.pending = nil
	if _, err := o.r.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}
	return granule, nil
}
