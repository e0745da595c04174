package audio

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedFormat is returned for clips the decoder cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrClosed is returned when playing on a closed output.
	ErrClosed = errors.New("audio output is closed")
)

// bytesPerSample is fixed: every clip is signed 16-bit little endian.
const bytesPerSample = 2

// Format describes an interleaved s16le PCM layout.
type Format struct {
	SampleRate int
	Channels   int
}

// Validate checks that the format can be played.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", f.Channels)
	}
	return nil
}

// Duration returns how long n bytes of PCM last in this format.
func (f Format) Duration(n int) time.Duration {
	frames := n / (f.Channels * bytesPerSample)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Clip is a decoded sound ready for playback. Clips are immutable and may
// be played concurrently.
type Clip struct {
	Name     string
	PCM      []byte
	Format   Format
	Duration time.Duration
}

// NewClip wraps PCM data already in the given format.
func NewClip(name string, pcm []byte, format Format) *Clip {
	return &Clip{
		Name:     name,
		PCM:      pcm,
		Format:   format,
		Duration: format.Duration(len(pcm)),
	}
}

// Playback is a handle to one clip being played.
type Playback interface {
	// IsPlaying reports whether the clip is still audible.
	IsPlaying() bool

	// Stop interrupts playback. Stopping a finished playback is a no-op.
	Stop()

	// Wait blocks until the clip finished or was stopped.
	Wait()
}

// Output is an audio device able to play clips.
type Output interface {
	// Play starts the clip and returns immediately.
	Play(clip *Clip) (Playback, error)

	// Format returns the PCM layout clips must be converted to.
	Format() Format

	// Close releases the device.
	Close() error
}

// PlayerState represents the current state of a playback handle.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
