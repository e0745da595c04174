package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/cue"
)

// ErrClosed is returned when operations are attempted on a closed scheduler.
var ErrClosed = errors.New("scheduler is closed")

// Scheduler plays cue lines one at a time from a bounded queue, next to an
// immediate slot for cues that must be heard at once.
// Enqueue and PlayImmediate never block on playback.
type Scheduler struct {
	out    audio.Output
	maxLen int

	// Synchronization
	mu       sync.Mutex
	notEmpty *sync.Cond

	// Pending lines, oldest first
	queue []cue.Line

	// Immediate slot and the queued clip currently audible
	immediate audio.Playback
	current   audio.Playback

	// State
	closed  bool
	running bool
	busy    bool
	stats   Stats
}

// Stats tracks scheduler counters.
type Stats struct {
	TotalEnqueued  int64
	TotalDropped   int64
	TotalPlayed    int64
	TotalImmediate int64
	TotalFailed    int64
	CurrentSize    int
	PeakSize       int
	LastEnqueue    time.Time
	LastPlayed     time.Time
}

// New creates a scheduler playing on out with room for maxLen pending
// lines. With maxLen 0 only immediate cues are ever heard.
func New(out audio.Output, maxLen int) *Scheduler {
	if maxLen < 0 {
		maxLen = 0
	}
	s := &Scheduler{
		out:    out,
		maxLen: maxLen,
		queue:  make([]cue.Line, 0, maxLen+1),
	}
	s.notEmpty = sync.NewCond(&s.mu)
	return s
}

// Enqueue appends a line. When the queue overflows the oldest pending lines
// are dropped; the line just added survives unless maxLen is 0.
func (s *Scheduler) Enqueue(line cue.Line) error {
	if len(line) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.queue = append(s.queue, line)
	s.stats.TotalEnqueued++
	s.stats.LastEnqueue = time.Now()
	if dropped := s.trimLocked(); dropped > 0 {
		log.Debug("Dropped stale cues", "count", dropped, "max_queue_len", s.maxLen)
	}

	if len(s.queue) > s.stats.PeakSize {
		s.stats.PeakSize = len(s.queue)
	}
	s.stats.CurrentSize = len(s.queue)

	s.notEmpty.Signal()
	return nil
}

// trimLocked drops from the front until the queue fits. Callers hold mu.
func (s *Scheduler) trimLocked() int {
	over := len(s.queue) - s.maxLen
	if over <= 0 {
		return 0
	}
	for i := 0; i < over; i++ {
		s.queue[i] = nil
	}
	s.queue = append(s.queue[:0], s.queue[over:]...)
	s.stats.TotalDropped += int64(over)
	s.stats.CurrentSize = len(s.queue)
	return over
}

// PlayImmediate stops whatever occupies the immediate slot and starts the
// first clip of line in its place. It returns without waiting for playback.
func (s *Scheduler) PlayImmediate(line cue.Line) error {
	if len(line) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.immediate != nil && s.immediate.IsPlaying() {
		s.immediate.Stop()
	}
	s.immediate = nil

	pb, err := s.out.Play(line[0])
	if err != nil {
		s.stats.TotalFailed++
		return err
	}
	s.immediate = pb
	s.stats.TotalImmediate++
	return nil
}

// Run is the single consumer. It blocks until ctx is done or the scheduler
// is closed, playing queued lines clip by clip. A queued line never starts
// while an immediate cue is audible, but one already playing is not cut.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler is already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.notEmpty.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	for {
		s.waitImmediate()

		line, err := s.next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}

		// A whistle may have started while the queue was empty.
		s.waitImmediate()

		s.play(ctx, line)
	}
}

// waitImmediate blocks while the immediate slot is audible.
func (s *Scheduler) waitImmediate() {
	s.mu.Lock()
	pb := s.immediate
	s.mu.Unlock()

	if pb != nil && pb.IsPlaying() {
		pb.Wait()
	}
}

// next blocks for the oldest pending line.
func (s *Scheduler) next(ctx context.Context) (cue.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && !s.closed && ctx.Err() == nil {
		s.notEmpty.Wait()
	}
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.trimLocked()
	line := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.stats.CurrentSize = len(s.queue)
	s.busy = true
	return line, nil
}

// play plays each clip of line to completion, in order.
func (s *Scheduler) play(ctx context.Context, line cue.Line) {
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	for _, clip := range line {
		if ctx.Err() != nil || s.isClosed() {
			return
		}

		pb, err := s.out.Play(clip)
		if err != nil {
			log.Warn("Failed to play clip", "clip", clip.Name, "error", err)
			s.mu.Lock()
			s.stats.TotalFailed++
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			pb.Stop()
			return
		}
		s.current = pb
		s.mu.Unlock()

		pb.Wait()

		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.stats.TotalPlayed++
	s.stats.LastPlayed = time.Now()
	s.mu.Unlock()
}

func (s *Scheduler) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len returns the number of pending lines.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Idle reports whether nothing is pending, playing or audible.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 || s.busy {
		return false
	}
	return s.immediate == nil || !s.immediate.IsPlaying()
}

// Pending returns the pending lines, oldest first.
func (s *Scheduler) Pending() []cue.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cue.Line(nil), s.queue...)
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.CurrentSize = len(s.queue)
	return stats
}

// Close stops all playback, discards pending lines and makes Run return.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.queue = nil

	if s.immediate != nil {
		s.immediate.Stop()
	}
	if s.current != nil {
		s.current.Stop()
	}

	// Wake up the consumer
	s.notEmpty.Broadcast()
	return nil
}
