package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// PortAudioOutput plays clips through PortAudio. Each playback opens its
// own default output stream.
type PortAudioOutput struct {
	config PlayerConfig

	mu     sync.Mutex
	closed bool
	active map[*portAudioPlayback]struct{}
}

// framesPerBuffer is the PortAudio write granularity.
const framesPerBuffer = 1024

// NewPortAudioOutput initializes PortAudio.
func NewPortAudioOutput(config PlayerConfig) (*PortAudioOutput, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudioOutput{
		config: config,
		active: make(map[*portAudioPlayback]struct{}),
	}, nil
}

// Format returns the device format.
func (p *PortAudioOutput) Format() Format {
	return p.config.format()
}

// Play opens a stream and writes the clip to it in the background.
func (p *PortAudioOutput) Play(clip *Clip) (Playback, error) {
	if clip.Format != p.Format() {
		return nil, fmt.Errorf("%w: clip %s is %+v, device is %+v", ErrUnsupportedFormat, clip.Name, clip.Format, p.Format())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	buf := make([]int16, framesPerBuffer*p.config.Channels)
	stream, err := portaudio.OpenDefaultStream(
		0,
		p.config.Channels,
		float64(p.config.SampleRate),
		framesPerBuffer,
		buf,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}

	pb := &portAudioPlayback{
		owner:  p,
		stream: stream,
		buf:    buf,
		pcm:    clip.PCM,
		volume: p.config.Volume,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	pb.state.Store(int32(StatePlaying))
	p.active[pb] = struct{}{}

	go pb.run()

	return pb, nil
}

// Close stops all playbacks and terminates PortAudio.
func (p *PortAudioOutput) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	active := make([]*portAudioPlayback, 0, len(p.active))
	for pb := range p.active {
		active = append(active, pb)
	}
	p.mu.Unlock()

	for _, pb := range active {
		pb.Stop()
		pb.Wait()
	}
	return portaudio.Terminate()
}

func (p *PortAudioOutput) release(pb *portAudioPlayback) {
	p.mu.Lock()
	delete(p.active, pb)
	p.mu.Unlock()
}

type portAudioPlayback struct {
	owner  *PortAudioOutput
	stream *portaudio.Stream
	buf    []int16
	pcm    []byte
	volume float64

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func (pb *portAudioPlayback) run() {
	defer func() {
		pb.state.Store(int32(StateStopped))
		if err := pb.stream.Stop(); err != nil {
			log.Debug("portaudio stream stop", "error", err)
		}
		_ = pb.stream.Close()
		pb.owner.release(pb)
		close(pb.done)
	}()

	samples := len(pb.pcm) / bytesPerSample
	for offset := 0; offset < samples; offset += len(pb.buf) {
		select {
		case <-pb.stopCh:
			return
		default:
		}

		// Copy samples to buffer, zero-filling the tail
		for i := range pb.buf {
			var s int16
			if idx := offset + i; idx < samples {
				s = int16(binary.LittleEndian.Uint16(pb.pcm[idx*bytesPerSample:]))
				s = int16(float64(s) * pb.volume)
			}
			pb.buf[i] = s
		}

		if err := pb.stream.Write(); err != nil {
			log.Debug("portaudio write", "error", err)
			return
		}
	}
}

func (pb *portAudioPlayback) IsPlaying() bool {
	return PlayerState(pb.state.Load()) == StatePlaying
}

func (pb *portAudioPlayback) Stop() {
	pb.stopOnce.Do(func() {
		pb.state.Store(int32(StateStopped))
		close(pb.stopCh)
	})
}

func (pb *portAudioPlayback) Wait() {
	<-pb.done
}
