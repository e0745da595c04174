package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// Decode reads a WAV or MP3 file, chosen by extension, and converts it to
// the target format.
func Decode(name string, r io.Reader, target Format) (*Clip, error) {
	var (
		pcm    []byte
		format Format
		err    error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		pcm, format, err = DecodeWAV(r)
	case ".mp3":
		pcm, format, err = DecodeMP3(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return NewClip(name, Convert(pcm, format, target), target), nil
}

// DecodeWAV parses a RIFF/WAVE stream holding 16-bit integer PCM.
func DecodeWAV(r io.Reader) ([]byte, Format, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Format{}, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var (
		format  Format
		haveFmt bool
	)
	chunks := data[12:]
	for len(chunks) >= 8 {
		id := string(chunks[0:4])
		size := int(binary.LittleEndian.Uint32(chunks[4:8]))
		body := chunks[8:]
		if size > len(body) {
			size = len(body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedFormat)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE, which Audacity writes for plain PCM too.
			if (audioFormat != 1 && audioFormat != 0xFFFE) || bits != 16 {
				return nil, Format{}, fmt.Errorf("%w: format tag %d with %d bits", ErrUnsupportedFormat, audioFormat, bits)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
			}
			if err := format.Validate(); err != nil {
				return nil, Format{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedFormat)
			}
			pcm := make([]byte, size-size%(format.Channels*bytesPerSample))
			copy(pcm, body)
			return pcm, format, nil
		}

		// Chunks are word aligned
		size += size & 1
		if size > len(body) {
			break
		}
		chunks = body[size:]
	}
	return nil, Format{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) ([]byte, Format, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, Format{}, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return nil, Format{}, err
	}
	return buf.Bytes(), Format{SampleRate: dec.SampleRate(), Channels: 2}, nil
}

// Convert remixes and resamples s16le PCM from one format to another.
// Resampling is linear, which is plenty for announcer voice clips.
func Convert(pcm []byte, from, to Format) []byte {
	if from == to {
		return pcm
	}

	frames := len(pcm) / (from.Channels * bytesPerSample)
	mono := make([][2]float64, frames)
	for i := 0; i < frames; i++ {
		base := i * from.Channels * bytesPerSample
		l := float64(int16(binary.LittleEndian.Uint16(pcm[base:])))
		r := l
		if from.Channels == 2 {
			r = float64(int16(binary.LittleEndian.Uint16(pcm[base+bytesPerSample:])))
		}
		mono[i] = [2]float64{l, r}
	}

	outFrames := frames
	if from.SampleRate != to.SampleRate && frames > 0 {
		outFrames = int(int64(frames) * int64(to.SampleRate) / int64(from.SampleRate))
	}

	out := make([]byte, outFrames*to.Channels*bytesPerSample)
	step := float64(from.SampleRate) / float64(to.SampleRate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)
		a := mono[min(j, frames-1)]
		b := mono[min(j+1, frames-1)]
		l := a[0] + (b[0]-a[0])*frac
		r := a[1] + (b[1]-a[1])*frac

		base := i * to.Channels * bytesPerSample
		if to.Channels == 1 {
			binary.LittleEndian.PutUint16(out[base:], uint16(int16((l+r)/2)))
		} else {
			binary.LittleEndian.PutUint16(out[base:], uint16(int16(l)))
			binary.LittleEndian.PutUint16(out[base+bytesPerSample:], uint16(int16(r)))
		}
	}
	return out
}
