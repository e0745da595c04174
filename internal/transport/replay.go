package transport

import (
	"context"
	"io"
	"sync"
	"time"
)

// Replay plays back captured records, one Source per feed, keeping the
// original spacing between packets scaled by a speed factor. All feeds share
// one clock that starts with the first Receive on any of them.
type Replay struct {
	records []Record
	speed   float64

	once  sync.Once
	start time.Time
	first time.Time
}

// NewReplay creates a replay. A speed of 2 plays twice as fast; zero or
// less plays without delays.
func NewReplay(records []Record, speed float64) *Replay {
	r := &Replay{records: records, speed: speed}
	if len(records) > 0 {
		r.first = records[0].At
	}
	return r
}

// Duration returns the span of the capture at the original speed.
func (r *Replay) Duration() time.Duration {
	if len(r.records) == 0 {
		return 0
	}
	return r.records[len(r.records)-1].At.Sub(r.first)
}

// Feed returns a source yielding the records of feed in capture order.
// Receive returns io.EOF once they are exhausted.
func (r *Replay) Feed(feed string) Source {
	var recs []Record
	for _, rec := range r.records {
		if rec.Feed == feed {
			recs = append(recs, rec)
		}
	}
	return &replaySource{replay: r, records: recs, done: make(chan struct{})}
}

// due returns when a record recorded at t must be delivered.
func (r *Replay) due(t time.Time) time.Time {
	r.once.Do(func() { r.start = time.Now() })
	if r.speed <= 0 {
		return r.start
	}
	offset := time.Duration(float64(t.Sub(r.first)) / r.speed)
	return r.start.Add(offset)
}

type replaySource struct {
	replay  *Replay
	records []Record
	next    int

	closer sync.Once
	done   chan struct{}
}

func (s *replaySource) Receive(ctx context.Context) (Packet, error) {
	select {
	case <-s.done:
		return Packet{}, ErrClosed
	default:
	}

	for s.next < len(s.records) {
		rec := s.records[s.next]
		s.next++
		if len(rec.Payload) == 0 {
			continue
		}

		if wait := time.Until(s.replay.due(rec.At)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return Packet{}, ctx.Err()
			case <-s.done:
				timer.Stop()
				return Packet{}, ErrClosed
			}
		}

		pkt := rec.Packet
		pkt.At = time.Now()
		return pkt, nil
	}
	return Packet{}, io.EOF
}

func (s *replaySource) Close() error {
	s.closer.Do(func() { close(s.done) })
	return nil
}
