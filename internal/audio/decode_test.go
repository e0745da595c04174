package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"
)

// wavFile builds a minimal 16-bit PCM WAV file.
func wavFile(format Format, samples []int16) []byte {
	var data bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&data, binary.LittleEndian, s)
	}

	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+data.Len()))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))
	_ = binary.Write(&b, binary.LittleEndian, uint16(format.Channels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(format.SampleRate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(format.SampleRate*format.Channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(format.Channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(data.Len()))
	b.Write(data.Bytes())
	return b.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	format := Format{SampleRate: 8000, Channels: 2}
	pcm, got, err := DecodeWAV(bytes.NewReader(wavFile(format, []int16{1, -1, 2, -2})))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if got != format {
		t.Errorf("format mismatch: got %+v, want %+v", got, format)
	}
	if len(pcm) != 8 {
		t.Errorf("expected 8 bytes of PCM, got %d", len(pcm))
	}
}

func TestDecodeWAVRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "not riff", data: []byte("hello world, not a wave file")},
		{name: "no data chunk", data: wavFile(Format{SampleRate: 8000, Channels: 1}, nil)[:36]},
		{name: "too many channels", data: wavFile(Format{SampleRate: 8000, Channels: 3}, []int16{0, 0, 0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeWAV(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestDecodeByExtension(t *testing.T) {
	target := Format{SampleRate: 16000, Channels: 1}
	src := wavFile(Format{SampleRate: 8000, Channels: 1}, make([]int16, 8000))

	clip, err := Decode("voice/Goal.WAV", bytes.NewReader(src), target)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if clip.Format != target {
		t.Errorf("clip not converted: %+v", clip.Format)
	}
	if clip.Duration != time.Second {
		t.Errorf("expected 1s clip, got %v", clip.Duration)
	}

	_, err = Decode("notes.txt", strings.NewReader("x"), target)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for .txt, got %v", err)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name      string
		from, to  Format
		in        []int16
		wantBytes int
		first     int16
	}{
		{
			name:      "identity",
			from:      Format{SampleRate: 44100, Channels: 1},
			to:        Format{SampleRate: 44100, Channels: 1},
			in:        []int16{7, 8},
			wantBytes: 4,
			first:     7,
		},
		{
			name:      "stereo to mono averages",
			from:      Format{SampleRate: 44100, Channels: 2},
			to:        Format{SampleRate: 44100, Channels: 1},
			in:        []int16{100, 300, 10, 20},
			wantBytes: 4,
			first:     200,
		},
		{
			name:      "mono to stereo duplicates",
			from:      Format{SampleRate: 44100, Channels: 1},
			to:        Format{SampleRate: 44100, Channels: 2},
			in:        []int16{-50},
			wantBytes: 4,
			first:     -50,
		},
		{
			name:      "upsample doubles frames",
			from:      Format{SampleRate: 22050, Channels: 1},
			to:        Format{SampleRate: 44100, Channels: 1},
			in:        []int16{0, 100, 200, 300},
			wantBytes: 16,
			first:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in bytes.Buffer
			for _, s := range tt.in {
				_ = binary.Write(&in, binary.LittleEndian, s)
			}
			out := Convert(in.Bytes(), tt.from, tt.to)
			if len(out) != tt.wantBytes {
				t.Fatalf("expected %d bytes, got %d", tt.wantBytes, len(out))
			}
			if got := int16(binary.LittleEndian.Uint16(out)); got != tt.first {
				t.Errorf("first sample: got %d, want %d", got, tt.first)
			}
		})
	}
}

func TestPlayerConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    PlayerConfig
		expectErr bool
	}{
		{name: "default", config: DefaultPlayerConfig()},
		{name: "stereo 48000Hz", config: PlayerConfig{SampleRate: 48000, Channels: 2, BufferSize: 8192, Volume: 0.5}},
		{name: "invalid sample rate", config: PlayerConfig{SampleRate: 0, Channels: 1, BufferSize: 4096, Volume: 1}, expectErr: true},
		{name: "invalid channels", config: PlayerConfig{SampleRate: 44100, Channels: 3, BufferSize: 4096, Volume: 1}, expectErr: true},
		{name: "invalid buffer size", config: PlayerConfig{SampleRate: 44100, Channels: 1, BufferSize: 0, Volume: 1}, expectErr: true},
		{name: "volume too loud", config: PlayerConfig{SampleRate: 44100, Channels: 1, BufferSize: 4096, Volume: 1.5}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config)
			if (err != nil) != tt.expectErr {
				t.Errorf("validateConfig() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}
