package announcer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/cue"
	"github.com/robocup-ssl/audioref/internal/guard"
	"github.com/robocup-ssl/audioref/internal/metrics"
	"github.com/robocup-ssl/audioref/internal/soundpack"
	"github.com/robocup-ssl/audioref/internal/transport"
)

// Startup stages reported by StartupError.
const (
	StageBind      = "bind"
	StageSoundPack = "sound pack"
	StageAudio     = "audio device"
	StageCapture   = "capture"
)

// StartupError is a fatal failure while opening the announcer.
type StartupError struct {
	Stage string
	Cause error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *StartupError) Unwrap() error {
	return e.Cause
}

// Backends accepted in Options.Backend.
const (
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
)

// Options is everything needed to open a live or replayed announcer.
type Options struct {
	RefereeAddress string
	VisionAddress  string
	Interface      string

	// Replay, when set, reads both feeds from this capture instead of the
	// network.
	Replay      string
	ReplaySpeed float64

	// Record, when set, captures both feeds to this file.
	Record string

	Pack      string
	WatchPack bool

	MaxQueueLen       int
	PlacementDistance float64

	Backend string
	Player  audio.PlayerConfig

	MetricsListen string
}

// Validate rejects option values that cannot work.
func (o Options) Validate() error {
	var errs []error
	if o.MaxQueueLen < 0 {
		errs = append(errs, fmt.Errorf("max_queue_len must not be negative, got %d", o.MaxQueueLen))
	}
	if o.PlacementDistance < 0 {
		errs = append(errs, fmt.Errorf("placement_distance must not be negative, got %g", o.PlacementDistance))
	}
	if o.Backend != BackendOto && o.Backend != BackendPortAudio {
		errs = append(errs, fmt.Errorf("unknown audio backend %q", o.Backend))
	}
	if o.Player.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", o.Player.SampleRate))
	}
	if o.Pack == "" {
		errs = append(errs, errors.New("no sound pack configured"))
	}
	return errors.Join(errs...)
}

// Session is an opened announcer together with the resources it owns.
type Session struct {
	*Announcer

	closers []io.Closer
}

// Close releases the audio device and finishes the capture file, if any.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Open binds the feeds, loads the sound pack and opens the audio device.
// Invalid options are returned as is, every later failure as a
// *StartupError after releasing what was already opened.
func Open(opts Options) (_ *Session, err error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Session{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	referee, vision, err := s.openFeeds(opts)
	if err != nil {
		return nil, err
	}

	out, err := openOutput(opts)
	if err != nil {
		return nil, &StartupError{Stage: StageAudio, Cause: err}
	}
	s.closers = append(s.closers, out)

	pack, err := soundpack.Load(opts.Pack, out.Format())
	if err != nil {
		return nil, &StartupError{Stage: StageSoundPack, Cause: err}
	}
	live := soundpack.NewLive(pack)

	cfg := Config{
		MaxQueueLen:       opts.MaxQueueLen,
		PlacementDistance: opts.PlacementDistance,
		Rand:              rand.New(rand.NewSource(time.Now().UnixNano())),
		Metrics:           metrics.New(),
	}
	if opts.WatchPack {
		cfg.Background = append(cfg.Background, func(ctx context.Context) error {
			return soundpack.Watch(ctx, opts.Pack, out.Format(), live)
		})
	}
	if opts.MetricsListen != "" {
		cfg.Background = append(cfg.Background, func(ctx context.Context) error {
			return cfg.Metrics.Serve(ctx, opts.MetricsListen)
		})
	}

	s.Announcer = New(referee, vision, cue.Library(live), out, cfg)
	return s, nil
}

// openFeeds returns the referee and vision sources, from the network or
// from a capture, optionally recorded.
func (s *Session) openFeeds(opts Options) (referee, vision transport.Source, err error) {
	if opts.Replay != "" {
		records, err := transport.ReadCapture(opts.Replay)
		if err != nil {
			return nil, nil, &StartupError{Stage: StageCapture, Cause: err}
		}
		replay := transport.NewReplay(records, opts.ReplaySpeed)
		log.Info("Replaying capture",
			"path", opts.Replay,
			"packets", humanize.Comma(int64(len(records))),
			"length", replay.Duration().Round(time.Second),
			"speed", opts.ReplaySpeed)
		referee = replay.Feed(string(guard.FeedReferee))
		vision = replay.Feed(string(guard.FeedVision))
	} else {
		ref, err := transport.ListenMulticast(opts.RefereeAddress, opts.Interface)
		if err != nil {
			return nil, nil, &StartupError{Stage: StageBind, Cause: err}
		}
		s.closers = append(s.closers, ref)

		vis, err := transport.ListenMulticast(opts.VisionAddress, opts.Interface)
		if err != nil {
			return nil, nil, &StartupError{Stage: StageBind, Cause: err}
		}
		s.closers = append(s.closers, vis)
		referee, vision = ref, vis
	}

	if opts.Record != "" {
		w, err := transport.CreateCapture(opts.Record)
		if err != nil {
			return nil, nil, &StartupError{Stage: StageCapture, Cause: err}
		}
		s.closers = append(s.closers, w)
		referee = transport.Tee(referee, string(guard.FeedReferee), w)
		vision = transport.Tee(vision, string(guard.FeedVision), w)
	}
	return referee, vision, nil
}

func openOutput(opts Options) (audio.Output, error) {
	if opts.Backend == BackendPortAudio {
		out, err := audio.NewPortAudioOutput(opts.Player)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	out, err := audio.NewOtoOutput(opts.Player)
	if err != nil {
		return nil, err
	}
	return out, nil
}
