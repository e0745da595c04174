// Package guard detects a second sender claiming to be the authoritative
// source of a feed.
package guard

import (
	"strconv"
	"sync"

	"github.com/robocup-ssl/audioref/internal/sslproto"
)

// Feed names a multicast feed. The names double as sound-pack keys below
// duplicate_source.
type Feed string

const (
	FeedReferee Feed = "referee"
	FeedVision  Feed = "vision"
)

// RefereeKey is the only key of the referee feed: a single game controller
// is expected per field.
const RefereeKey = "referee"

// Registry remembers the last sender seen for each stream key of a feed.
type Registry struct {
	feed Feed

	mu      sync.Mutex
	senders map[string]string
}

func NewRegistry(feed Feed) *Registry {
	return &Registry{
		feed:    feed,
		senders: make(map[string]string),
	}
}

// Feed returns the feed this registry guards.
func (r *Registry) Feed() Feed {
	return r.feed
}

// Observe records sender for key and reports whether a different sender had
// been recorded before. The new sender is always kept.
func (r *Registry) Observe(key, sender string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, seen := r.senders[key]
	r.senders[key] = sender
	return seen && prev != sender
}

// Sender returns the last sender recorded for key.
func (r *Registry) Sender(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.senders[key]
	return s, ok
}

// Verdict is what a feed listener should do with a packet.
type Verdict struct {
	// Duplicate is set when the packet came from a new sender for a known
	// stream; a warning cue is due.
	Duplicate bool
	// Apply is false when the packet's content must be ignored this cycle.
	Apply bool
}

// CheckReferee applies the referee policy: a sender change is treated as
// noise, so the snapshot's transitions are skipped while the new sender
// becomes authoritative.
func (r *Registry) CheckReferee(sender string) Verdict {
	dup := r.Observe(RefereeKey, sender)
	return Verdict{Duplicate: dup, Apply: !dup}
}

// CheckVision applies the vision policy: every camera id in the packet is
// checked, and geometry is accepted even when a duplicate shows up.
func (r *Registry) CheckVision(v *sslproto.Vision, sender string) Verdict {
	dup := false
	for _, id := range v.CameraIDs {
		if r.Observe(strconv.FormatUint(uint64(id), 10), sender) {
			dup = true
		}
	}
	return Verdict{Duplicate: dup, Apply: true}
}
