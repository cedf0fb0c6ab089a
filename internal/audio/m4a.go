package audio

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/alac"
	"github.com/llehouerou/go-faad2"
	"github.com/llehouerou/go-m4a"
)

// m4aStream decodes an M4A container holding AAC (store previews) or ALAC
// (local lossless files).
type m4aStream struct {
	container *m4a.Reader
	closer    io.Closer
	codec     m4a.CodecType
	err       error
	index     int
	total     int
	bits      int
	channels  int

	aac  *faad2.Decoder
	alac *alac.Alac

	// decoded frames not yet streamed
	pending [][2]float64
	offset  int
}

func decodeM4A(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	container, err := m4a.Open(rc)
	if err != nil {
		return nil, beep.Format{}, err
	}

	codec := container.Codec()
	sampleRate := container.SampleRate()
	channels := container.Channels()

	precision := 2
	if codec == m4a.CodecALAC && container.SampleSize() == 24 {
		precision = 3
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   precision,
	}

	d := &m4aStream{
		container: container,
		closer:    rc,
		codec:     codec,
		total:     int(container.Duration().Seconds() * float64(sampleRate)),
		bits:      int(container.SampleSize()),
		channels:  int(channels),
	}

	switch codec {
	case m4a.CodecAAC:
		dec, err := faad2.NewDecoder(context.Background())
		if err != nil {
			return nil, beep.Format{}, err
		}
		if err := dec.Init(context.Background(), container.CodecConfig()); err != nil {
			dec.Close(context.Background())
			return nil, beep.Format{}, err
		}
		d.aac = dec
	case m4a.CodecALAC:
		dec, err := alac.NewWithConfig(alac.Config{
			SampleRate:  int(sampleRate),
			SampleSize:  int(container.SampleSize()),
			NumChannels: int(channels),
			FrameSize:   4096,
		})
		if err != nil {
			return nil, beep.Format{}, err
		}
		d.alac = dec
	case m4a.CodecUnknown:
		return nil, beep.Format{}, errors.New("m4a: unsupported codec")
	}

	return d, format, nil
}

func (d *m4aStream) Stream(samples [][2]float64) (n int, ok bool) {
	if d.err != nil {
		return 0, false
	}

	for n < len(samples) {
		if d.offset < len(d.pending) {
			c := copy(samples[n:], d.pending[d.offset:])
			d.offset += c
			n += c
			continue
		}

		if d.index >= d.container.SampleCount() {
			return n, n > 0
		}

		data, err := d.container.ReadSample(d.index)
		if err != nil {
			d.err = err
			return n, n > 0
		}
		d.index++

		switch d.codec {
		case m4a.CodecAAC:
			pcm, err := d.aac.Decode(context.Background(), data)
			if err != nil {
				d.err = err
				return n, n > 0
			}
			d.pending = pcm16ToFrames(pcm, d.channels)
		case m4a.CodecALAC:
			d.pending = alacToFrames(d.alac.Decode(data), d.bits, d.channels)
		case m4a.CodecUnknown:
			d.err = errors.New("m4a: unsupported codec")
			return n, n > 0
		}
		d.offset = 0
	}
	return n, true
}

// pcm16ToFrames converts interleaved int16 PCM to stereo frames.
// Mono is duplicated to both channels.
func pcm16ToFrames(pcm []int16, channels int) [][2]float64 {
	if channels == 2 {
		frames := make([][2]float64, len(pcm)/2)
		for i := range frames {
			frames[i][0] = float64(pcm[i*2]) / 32768.0
			frames[i][1] = float64(pcm[i*2+1]) / 32768.0
		}
		return frames
	}
	frames := make([][2]float64, len(pcm))
	for i, s := range pcm {
		v := float64(s) / 32768.0
		frames[i] = [2]float64{v, v}
	}
	return frames
}

// alacToFrames converts little-endian ALAC output (16 or 24 bit) to stereo
// frames.
func alacToFrames(data []byte, bits, channels int) [][2]float64 {
	width := 2
	scale := 32768.0
	if bits == 24 {
		width = 3
		scale = 8388608.0
	}
	stride := width * channels
	if stride == 0 {
		return nil
	}

	frames := make([][2]float64, len(data)/stride)
	for i := range frames {
		off := i * stride
		left := readSample(data[off:], width)
		right := left
		if channels == 2 {
			right = readSample(data[off+width:], width)
		}
		frames[i][0] = float64(left) / scale
		frames[i][1] = float64(right) / scale
	}
	return frames
}

func readSample(b []byte, width int) int32 {
	if width == 3 {
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return v
	}
	return int32(int16(uint16(b[0]) | uint16(b[1])<<8)) //nolint:gosec // audio samples
}

func (d *m4aStream) Err() error { return d.err }

func (d *m4aStream) Len() int { return d.total }

func (d *m4aStream) Position() int {
	pos := d.container.SampleTime(d.index)
	return int(pos.Seconds() * float64(d.container.SampleRate()))
}

func (d *m4aStream) Seek(p int) error {
	p = max(0, min(p, d.total))
	pos := time.Duration(float64(p) / float64(d.container.SampleRate()) * float64(time.Second))
	d.index = d.container.SeekToTime(pos)
	d.pending = nil
	d.offset = 0
	d.err = nil
	return nil
}

func (d *m4aStream) Close() error {
	if d.aac != nil {
		d.aac.Close(context.Background())
	}
	return d.closer.Close()
}
