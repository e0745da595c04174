package audio

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// pollInterval is how often a playback checks whether oto drained it.
const pollInterval = 5 * time.Millisecond

// OtoOutput implements Output for cross-platform audio playback using oto.
// Every Play creates its own oto player, so the whistle and a queued line
// can overlap the way a PA mixer would.
type OtoOutput struct {
	// OTO context - initialized once and reused
	context *oto.Context

	format Format
	volume atomic.Uint64 // float64 bits

	mu     sync.Mutex
	closed bool
	active map[*otoPlayback]struct{}
}

// PlayerConfig contains configuration for an audio output.
type PlayerConfig struct {
	SampleRate int     // Output sample rate in Hz
	Channels   int     // 1 = mono, 2 = stereo
	BufferSize int     // Device buffer size in bytes
	Volume     float64 // 0.0 to 1.0
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BufferSize: 4096,
		Volume:     1.0,
	}
}

func (c PlayerConfig) format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// validateConfig validates the player configuration.
func validateConfig(config PlayerConfig) error {
	if err := config.format().Validate(); err != nil {
		return err
	}

	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}

	if config.Volume < 0.0 || config.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", config.Volume)
	}

	return nil
}

// NewOtoOutput opens the default audio device through oto.
func NewOtoOutput(config PlayerConfig) (*OtoOutput, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*bytesPerSample),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	// Wait for context to be ready
	<-readyChan

	out := &OtoOutput{
		context: ctx,
		format:  config.format(),
		active:  make(map[*otoPlayback]struct{}),
	}
	out.volume.Store(math.Float64bits(config.Volume))

	return out, nil
}

// Format returns the device format.
func (o *OtoOutput) Format() Format {
	return o.format
}

// SetVolume sets the volume applied to playbacks started afterwards.
func (o *OtoOutput) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	o.volume.Store(math.Float64bits(volume))
	return nil
}

// Play starts playback of a clip.
func (o *OtoOutput) Play(clip *Clip) (Playback, error) {
	if len(clip.PCM) == 0 {
		return nil, errors.New("audio data is empty")
	}
	if clip.Format != o.format {
		return nil, fmt.Errorf("%w: clip %s is %+v, device is %+v", ErrUnsupportedFormat, clip.Name, clip.Format, o.format)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}

	// The reader shares the clip's backing array; clips are immutable.
	player := o.context.NewPlayer(bytes.NewReader(clip.PCM))
	if player == nil {
		return nil, errors.New("failed to create oto player")
	}
	player.SetVolume(math.Float64frombits(o.volume.Load()))

	pb := &otoPlayback{
		player: player,
		done:   make(chan struct{}),
		owner:  o,
	}
	pb.state.Store(int32(StatePlaying))
	o.active[pb] = struct{}{}

	player.Play()
	go pb.monitor()

	return pb, nil
}

// Close stops all playbacks and releases the device.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	active := make([]*otoPlayback, 0, len(o.active))
	for pb := range o.active {
		active = append(active, pb)
	}
	o.mu.Unlock()

	for _, pb := range active {
		pb.Stop()
	}

	// Note: oto.Context doesn't have a Close method in v3
	// The context will be garbage collected when no longer referenced
	o.mu.Lock()
	o.context = nil
	o.mu.Unlock()

	return nil
}

func (o *OtoOutput) release(pb *otoPlayback) {
	o.mu.Lock()
	delete(o.active, pb)
	o.mu.Unlock()
}

// otoPlayback tracks one oto player until it drains or is stopped.
type otoPlayback struct {
	player *oto.Player
	owner  *OtoOutput
	state  atomic.Int32
	done   chan struct{}
	once   sync.Once
}

// monitor polls oto until the player has drained its reader.
func (p *otoPlayback) monitor() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if !p.player.IsPlaying() {
				p.finish()
				return
			}
		}
	}
}

func (p *otoPlayback) finish() {
	p.once.Do(func() {
		p.state.Store(int32(StateStopped))
		p.player.Pause()
		_ = p.player.Close()
		p.owner.release(p)
		close(p.done)
	})
}

func (p *otoPlayback) IsPlaying() bool {
	return PlayerState(p.state.Load()) == StatePlaying
}

func (p *otoPlayback) Stop() {
	p.finish()
}

func (p *otoPlayback) Wait() {
	<-p.done
}
