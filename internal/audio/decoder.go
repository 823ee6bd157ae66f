// ABOUTME: Multi-codec chunk decoder
// ABOUTME: Supports PCM, MP3, Opus, WAV, and Vorbis formats
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"gopkg.in/hraban/opus.v2"
)

// DecodeError wraps a codec-level decode failure.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder decodes raw chunk bytes into a playable segment.
type Decoder interface {
	Decode(data []byte) (*Segment, error)
	Close() error
}

// NewDecoder creates a decoder for the specified format.
func NewDecoder(format Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return &PCMDecoder{format: format}, nil
	case "mp3":
		return &MP3Decoder{format: format}, nil
	case "opus":
		return NewOpusDecoder(format)
	case "wav":
		return &WAVDecoder{format: format}, nil
	case "vorbis":
		return &VorbisDecoder{format: format}, nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}

// PCMDecoder decodes raw little-endian PCM (16-bit or 24-bit).
type PCMDecoder struct {
	format Format
}

func (d *PCMDecoder) Decode(data []byte) (*Segment, error) {
	if d.format.BitDepth == 24 {
		numSamples := len(data) / 3
		samples := make([]int16, numSamples)
		for i := 0; i < numSamples; i++ {
			// Keep the two most significant bytes
			v := int32(data[i*3]) | int32(data[i*3+1])<<8 | int32(int8(data[i*3+2]))<<16
			samples[i] = int16(v >> 8)
		}
		return d.segment(samples), nil
	}

	numSamples := len(data) / 2
	samples := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return d.segment(samples), nil
}

func (d *PCMDecoder) segment(samples []int16) *Segment {
	return &Segment{Format: d.format, Samples: samples}
}

func (d *PCMDecoder) Close() error {
	return nil
}

// MP3Decoder decodes one MP3-encoded chunk at a time.
type MP3Decoder struct {
	format Format
}

func (d *MP3Decoder) Decode(data []byte) (*Segment, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Codec: "mp3", Err: err}
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, &DecodeError{Codec: "mp3", Err: err}
	}

	// go-mp3 always outputs 16-bit stereo at the source sample rate
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	format := d.format
	format.SampleRate = dec.SampleRate()
	format.Channels = 2
	format.BitDepth = 16

	return &Segment{Format: format, Samples: samples}, nil
}

func (d *MP3Decoder) Close() error {
	return nil
}

// OpusDecoder decodes Opus packets.
type OpusDecoder struct {
	decoder *opus.Decoder
	format  Format
}

func NewOpusDecoder(format Format) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
	}, nil
}

func (d *OpusDecoder) Decode(data []byte) (*Segment, error) {
	pcmSize := 5760 * d.format.Channels // Max frame size
	pcm := make([]int16, pcmSize)

	n, err := d.decoder.Decode(data, pcm)
	if err != nil {
		return nil, &DecodeError{Codec: "opus", Err: err}
	}

	return &Segment{
		Format:  d.format,
		Samples: pcm[:n*d.format.Channels],
	}, nil
}

func (d *OpusDecoder) Close() error {
	return nil
}

// WAVDecoder decodes WAV-wrapped PCM chunks.
type WAVDecoder struct {
	format Format
}

func (d *WAVDecoder) Decode(data []byte) (*Segment, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, &DecodeError{Codec: "wav", Err: fmt.Errorf("not a valid WAV file")}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &DecodeError{Codec: "wav", Err: err}
	}

	shift := uint(0)
	if buf.SourceBitDepth > 16 {
		shift = uint(buf.SourceBitDepth - 16)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v >> shift)
	}

	format := d.format
	format.SampleRate = buf.Format.SampleRate
	format.Channels = buf.Format.NumChannels
	format.BitDepth = 16

	return &Segment{Format: format, Samples: samples}, nil
}

func (d *WAVDecoder) Close() error {
	return nil
}

// VorbisDecoder decodes Ogg Vorbis chunks.
type VorbisDecoder struct {
	format Format
}

func (d *VorbisDecoder) Decode(data []byte) (*Segment, error) {
	floats, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Codec: "vorbis", Err: err}
	}

	samples := make([]int16, len(floats))
	for i, f := range floats {
		v := f * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		samples[i] = int16(v)
	}

	out := d.format
	out.SampleRate = format.SampleRate
	out.Channels = format.Channels
	out.BitDepth = 16

	return &Segment{Format: out, Samples: samples}, nil
}

func (d *VorbisDecoder) Close() error {
	return nil
}
