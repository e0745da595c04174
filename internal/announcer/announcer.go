package announcer

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/cue"
	"github.com/robocup-ssl/audioref/internal/guard"
	"github.com/robocup-ssl/audioref/internal/metrics"
	"github.com/robocup-ssl/audioref/internal/playback"
	"github.com/robocup-ssl/audioref/internal/sslproto"
	"github.com/robocup-ssl/audioref/internal/tracker"
	"github.com/robocup-ssl/audioref/internal/transport"
)

// errEndOfCapture stops all activities once a replayed referee feed ran
// out and everything queued was heard.
var errEndOfCapture = errors.New("end of capture")

// idlePoll is how often the end of a replay checks for pending audio.
const idlePoll = 50 * time.Millisecond

// Config tunes an announcer.
type Config struct {
	MaxQueueLen       int
	PlacementDistance float64

	// Rand picks among cue alternatives. Nil seeds from the clock.
	Rand *rand.Rand

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Background activities run next to the listeners, e.g. the sound
	// pack watcher or the metrics server.
	Background []func(ctx context.Context) error
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		MaxQueueLen:       3,
		PlacementDistance: 200,
	}
}

// Announcer listens to the referee and vision feeds and plays the cue for
// every transition it detects.
type Announcer struct {
	referee transport.Source
	vision  transport.Source

	match     *tracker.MatchContext
	resolver  *cue.Resolver
	scheduler *playback.Scheduler
	metrics   *metrics.Metrics

	refereeGuard *guard.Registry
	visionGuard  *guard.Registry

	background []func(ctx context.Context) error

	// Written only by the referee listener.
	tracker *tracker.Tracker

	decodeLog map[guard.Feed]*rate.Sometimes
	closeOnce sync.Once
}

// New wires an announcer from already opened collaborators.
func New(referee, vision transport.Source, lib cue.Library, out audio.Output, cfg Config) *Announcer {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	a := &Announcer{
		referee:      referee,
		vision:       vision,
		match:        tracker.NewMatchContext(),
		resolver:     cue.NewResolver(lib, rnd, cfg.PlacementDistance),
		scheduler:    playback.New(out, cfg.MaxQueueLen),
		metrics:      cfg.Metrics,
		refereeGuard: guard.NewRegistry(guard.FeedReferee),
		visionGuard:  guard.NewRegistry(guard.FeedVision),
		background:   cfg.Background,
		decodeLog: map[guard.Feed]*rate.Sometimes{
			guard.FeedReferee: {First: 3, Interval: 10 * time.Second},
			guard.FeedVision:  {First: 3, Interval: 10 * time.Second},
		},
	}
	if a.metrics != nil {
		a.metrics.ObserveScheduler(a.scheduler)
	}
	return a
}

// Scheduler returns the playback scheduler.
func (a *Announcer) Scheduler() *playback.Scheduler {
	return a.scheduler
}

// Match returns the shared match context.
func (a *Announcer) Match() *tracker.MatchContext {
	return a.match
}

// Run blocks processing both feeds until ctx is done or a replayed
// capture ended. The referee feed seeds the tracker with its first valid
// snapshot.
func (a *Announcer) Run(ctx context.Context) error {
	log.Info("Announcer running")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(ctx)
	})
	g.Go(func() error {
		return a.listen(ctx, guard.FeedReferee, a.referee, a.handleReferee)
	})
	g.Go(func() error {
		return a.listen(ctx, guard.FeedVision, a.vision, a.handleVision)
	})
	for _, fn := range a.background {
		g.Go(func() error { return fn(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		a.close()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, errEndOfCapture) {
		err = nil
	}
	log.Info("Announcer stopped", "error", err)
	return err
}

func (a *Announcer) close() {
	a.closeOnce.Do(func() {
		_ = a.scheduler.Close()
		_ = a.referee.Close()
		_ = a.vision.Close()
	})
}

// listen feeds every packet of src to handle. Receive errors are skipped;
// the next packet is the recovery.
func (a *Announcer) listen(ctx context.Context, feed guard.Feed, src transport.Source, handle func(transport.Packet)) error {
	for {
		pkt, err := src.Receive(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				return a.feedEnded(ctx, feed)
			case errors.Is(err, transport.ErrClosed):
				return nil
			}
			a.decodeLog[feed].Do(func() {
				log.Debug("Receive failed", "feed", feed, "error", err)
			})
			continue
		}

		if a.metrics != nil {
			a.metrics.IncPackets(string(feed))
		}
		handle(pkt)
	}
}

// feedEnded handles the end of a replayed feed. The vision feed simply
// stops; the end of the referee feed ends the run once playback drained.
func (a *Announcer) feedEnded(ctx context.Context, feed guard.Feed) error {
	log.Info("Feed ended", "feed", feed)
	if feed != guard.FeedReferee {
		return nil
	}

	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for !a.scheduler.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return errEndOfCapture
}

func (a *Announcer) decodeFailed(feed guard.Feed, pkt transport.Packet, err error) {
	if a.metrics != nil {
		a.metrics.IncDecodeErrors(string(feed))
	}
	a.decodeLog[feed].Do(func() {
		log.Debug("Dropping undecodable packet", "feed", feed, "sender", pkt.Sender, "size", len(pkt.Payload), "error", err)
	})
}

func (a *Announcer) handleReferee(pkt transport.Packet) {
	ref, err := sslproto.DecodeReferee(pkt.Payload)
	if err != nil {
		a.decodeFailed(guard.FeedReferee, pkt, err)
		return
	}

	verdict := a.refereeGuard.CheckReferee(pkt.Sender)
	if verdict.Duplicate {
		a.duplicate(guard.FeedReferee, pkt.Sender)
	}
	if !verdict.Apply {
		return
	}

	if a.tracker == nil {
		a.tracker = tracker.New(ref, a.match)
		log.Info("Following game controller",
			"sender", pkt.Sender,
			"source", ref.SourceIdentifier,
			"yellow", ref.Yellow.Name,
			"blue", ref.Blue.Name,
			"stage", ref.Stage,
			"command", ref.Command)
		return
	}

	for _, req := range a.tracker.Observe(ref) {
		a.dispatch(req)
	}
}

func (a *Announcer) handleVision(pkt transport.Packet) {
	vis, err := sslproto.DecodeVision(pkt.Payload)
	if err != nil {
		a.decodeFailed(guard.FeedVision, pkt, err)
		return
	}

	verdict := a.visionGuard.CheckVision(vis, pkt.Sender)
	if verdict.Duplicate {
		a.duplicate(guard.FeedVision, pkt.Sender)
	}
	if !verdict.Apply {
		return
	}

	before := a.match.Field()
	if a.match.ObserveGeometry(vis) {
		if a.metrics != nil {
			a.metrics.IncGeometryUpdates()
		}
		if after := a.match.Field(); after != before {
			log.Info("Field size changed", "half_length", after.HalfLength, "half_width", after.HalfWidth)
		}
	}
}

func (a *Announcer) duplicate(feed guard.Feed, sender string) {
	log.Warn("Second source on feed", "feed", feed, "sender", sender)
	if a.metrics != nil {
		a.metrics.IncDuplicateSources(string(feed))
	}
	a.dispatch(cue.Request{
		Kind:  cue.KindDuplicateSource,
		Name:  string(feed),
		Teams: a.match.Teams(),
	})
}

// dispatch resolves a request and hands its cues to the scheduler. Missing
// cues are not an error.
func (a *Announcer) dispatch(req cue.Request) {
	if a.metrics != nil {
		a.metrics.IncTransitions(req.Kind.String())
	}

	cues, err := a.resolver.Resolve(req, a.match.Field())
	if err != nil {
		misses := 1
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			misses = len(joined.Unwrap())
		}
		if a.metrics != nil {
			a.metrics.AddResolverMisses(misses)
		}
		log.Debug("No cue", "kind", req.Kind, "name", req.Name, "error", err)
	}

	for _, c := range cues {
		log.Info("Cue",
			"key", strings.Join(c.Path, "/"),
			"clips", strings.Join(c.Line.Names(), " "),
			"immediate", c.Immediate)

		if c.Immediate {
			err = a.scheduler.PlayImmediate(c.Line)
		} else {
			err = a.scheduler.Enqueue(c.Line)
		}
		if err != nil && !errors.Is(err, playback.ErrClosed) {
			log.Warn("Failed to schedule cue", "key", strings.Join(c.Path, "/"), "error", err)
		}
	}
}
