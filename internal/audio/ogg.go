package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/jfreymuth/vorbis"
	"github.com/jj11hh/opus"
)

var (
	errUnknownOggCodec     = errors.New("ogg: unknown codec (not Opus or Vorbis)")
	errNoOggPackets        = errors.New("ogg: no packets in first page")
	errInvalidVorbisHeader = errors.New("vorbis: invalid identification header")
	errVorbisNotReady      = errors.New("vorbis: decoder not initialized (headers incomplete)")
	errInvalidOpusHead     = errors.New("opus: invalid OpusHead")
	errUnsupportedOpus     = errors.New("opus: unsupported version")
)

const (
	opusSampleRate = 48000
	// 80ms of decoder convergence before an Opus seek target
	opusPreroll = 3840
	// largest Vorbis block per channel; Opus frames are at most 5760
	oggMaxFrames = 8192
)

// oggCodec is the codec carried by an Ogg stream.
type oggCodec interface {
	SampleRate() int
	Channels() int
	// PreSkip is the number of leading frames that are not part of the
	// audio. Granule positions include them.
	PreSkip() int64
	Preroll() int64
	// AddHeader feeds the next header packet. Returns true once the codec
	// is ready to decode audio packets.
	AddHeader(packet []byte) (bool, error)
	// Decode writes interleaved samples to pcm and returns frames decoded.
	Decode(packet []byte, pcm []float32) (int, error)
	Reset()
}

// detectOggCodec inspects the identification packet of the stream.
func detectOggCodec(first []byte) (oggCodec, error) {
	switch {
	case bytes.HasPrefix(first, []byte("OpusHead")):
		return newOpusCodec(first)
	case len(first) >= 7 && first[0] == 0x01 && string(first[1:7]) == "vorbis":
		return newVorbisCodec(first)
	default:
		return nil, errUnknownOggCodec
	}
}

type opusCodec struct {
	decoder  *opus.Decoder
	channels int
	preSkip  int64
}

func newOpusCodec(head []byte) (*opusCodec, error) {
	if len(head) < 19 {
		return nil, errInvalidOpusHead
	}
	if head[8] != 1 {
		return nil, errUnsupportedOpus
	}
	channels := int(head[9])
	if channels < 1 || channels > 2 {
		return nil, errInvalidOpusHead
	}
	decoder, err := opus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &opusCodec{
		decoder:  decoder,
		channels: channels,
		preSkip:  int64(binary.LittleEndian.Uint16(head[10:12])),
	}, nil
}

// SampleRate is always 48kHz; the header rate is informational.
func (c *opusCodec) SampleRate() int { return opusSampleRate }
func (c *opusCodec) Channels() int   { return c.channels }
func (c *opusCodec) PreSkip() int64  { return c.preSkip }
func (c *opusCodec) Preroll() int64  { return opusPreroll }

// AddHeader consumes OpusTags.
func (c *opusCodec) AddHeader([]byte) (bool, error) { return true, nil }

func (c *opusCodec) Decode(packet []byte, pcm []float32) (int, error) {
	return c.decoder.DecodeFloat32(packet, pcm)
}

// Reset is a no-op: the preroll lets the decoder converge after a seek.
func (c *opusCodec) Reset() {}

type vorbisCodec struct {
	decoder    *vorbis.Decoder
	channels   int
	sampleRate int
	headers    [][]byte
}

func newVorbisCodec(ident []byte) (*vorbisCodec, error) {
	// [7:11] version, [11] channels, [12:16] sample rate
	if len(ident) < 16 || binary.LittleEndian.Uint32(ident[7:11]) != 0 {
		return nil, errInvalidVorbisHeader
	}
	channels := int(ident[11])
	if channels == 0 {
		return nil, errInvalidVorbisHeader
	}
	return &vorbisCodec{
		channels:   channels,
		sampleRate: int(binary.LittleEndian.Uint32(ident[12:16])),
		headers:    [][]byte{ident},
	}, nil
}

func (c *vorbisCodec) SampleRate() int { return c.sampleRate }
func (c *vorbisCodec) Channels() int   { return c.channels }
func (c *vorbisCodec) PreSkip() int64  { return 0 }
func (c *vorbisCodec) Preroll() int64  { return 0 }

// AddHeader collects the comment and setup headers, then initializes the
// decoder from all three.
func (c *vorbisCodec) AddHeader(packet []byte) (bool, error) {
	if c.decoder != nil {
		return true, nil
	}
	c.headers = append(c.headers, packet)
	if len(c.headers) < 3 {
		return false, nil
	}
	decoder := &vorbis.Decoder{}
	for _, h := range c.headers {
		if err := decoder.ReadHeader(h); err != nil {
			return false, err
		}
	}
	c.decoder = decoder
	c.headers = nil
	return true, nil
}

func (c *vorbisCodec) Decode(packet []byte, pcm []float32) (int, error) {
	if c.decoder == nil {
		return 0, errVorbisNotReady
	}
	samples, err := c.decoder.Decode(packet)
	if err != nil {
		return 0, err
	}
	return copy(pcm, samples) / c.channels, nil
}

func (c *vorbisCodec) Reset() {
	if c.decoder != nil {
		c.decoder.Clear()
	}
}

// oggStream decodes an Ogg Vorbis or Ogg Opus stream.
type oggStream struct {
	pages  *oggReader
	codec  oggCodec
	closer io.Closer
	err    error

	packets [][]byte
	pcm     []float32
	frames  int // decoded frames in pcm
	cursor  int // next frame in pcm

	// stream position of the next frame, negative within the pre-skip
	pos   int64
	total int64
}

func decodeOgg(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	pages := newOggReader(rc)
	first, err := pages.ReadPage()
	if err != nil {
		return nil, beep.Format{}, err
	}
	if len(first.Packets) == 0 {
		return nil, beep.Format{}, errNoOggPackets
	}
	codec, err := detectOggCodec(first.Packets[0])
	if err != nil {
		return nil, beep.Format{}, err
	}

	// Headers end on a page boundary
	queue := first.Packets[1:]
	for ready := false; !ready; {
		for len(queue) == 0 {
			page, err := pages.ReadPage()
			if err != nil {
				return nil, beep.Format{}, err
			}
			queue = page.Packets
		}
		if ready, err = codec.AddHeader(queue[0]); err != nil {
			return nil, beep.Format{}, err
		}
		queue = queue[1:]
	}

	if err := pages.markDataStart(); err != nil {
		return nil, beep.Format{}, err
	}
	last, err := pages.LastGranule()
	if err != nil {
		return nil, beep.Format{}, err
	}
	if _, err := pages.SeekToGranule(-1); err != nil {
		return nil, beep.Format{}, err
	}

	d := &oggStream{
		pages:   pages,
		codec:   codec,
		closer:  rc,
		packets: queue,
		pcm:     make([]float32, oggMaxFrames*codec.Channels()),
		pos:     -codec.PreSkip(),
		total:   max(0, last-codec.PreSkip()),
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(codec.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	}
	return d, format, nil
}

// fill decodes packets until frames are buffered. Returns false at the end
// of the stream or on a read error.
func (d *oggStream) fill() bool {
	for d.cursor >= d.frames {
		if len(d.packets) == 0 {
			page, err := d.pages.ReadPage()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					d.err = err
				}
				return false
			}
			d.packets = page.Packets
			continue
		}
		packet := d.packets[0]
		d.packets = d.packets[1:]
		n, err := d.codec.Decode(packet, d.pcm)
		if err != nil {
			continue // damaged packet
		}
		d.frames, d.cursor = n, 0
	}
	return true
}

func (d *oggStream) Stream(samples [][2]float64) (n int, ok bool) {
	if d.err != nil {
		return 0, false
	}
	channels := d.codec.Channels()
	for n < len(samples) && d.pos < d.total {
		if !d.fill() {
			break
		}
		i := d.cursor * channels
		d.cursor++
		d.pos++
		if d.pos <= 0 {
			continue
		}
		left := float64(d.pcm[i])
		right := left
		if channels > 1 {
			right = float64(d.pcm[i+1])
		}
		samples[n] = [2]float64{left, right}
		n++
	}
	return n, n > 0
}

func (d *oggStream) Err() error { return d.err }

func (d *oggStream) Len() int { return int(d.total) }

func (d *oggStream) Position() int { return int(max(0, d.pos)) }

// Seek lands on the page before p (minus the codec preroll) and decodes up
// to p. Vorbis drops the first packet after a reset, so the landing can be
// late by half a block.
func (d *oggStream) Seek(p int) error {
	target := max(0, min(int64(p), d.total))
	granule, err := d.pages.SeekToGranule(target + d.codec.PreSkip() - d.codec.Preroll())
	if err != nil {
		return err
	}
	d.codec.Reset()
	d.packets = nil
	d.frames, d.cursor = 0, 0
	d.err = nil
	d.pos = granule - d.codec.PreSkip()

	for d.pos < target && d.fill() {
		skip := min(int64(d.frames-d.cursor), target-d.pos)
		d.cursor += int(skip)
		d.pos += skip
	}
	return d.err
}

func (d *oggStream) Close() error {
	return d.closer.Close()
}
