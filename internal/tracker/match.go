package tracker

import (
	"sync"

	"github.com/robocup-ssl/audioref/internal/cue"
	"github.com/robocup-ssl/audioref/internal/sslproto"
)

// MatchContext holds what the resolver needs to know about the match: the
// team names from the referee feed and the field size from the vision feed.
// Each half is written by exactly one listener.
type MatchContext struct {
	mu    sync.RWMutex
	teams cue.Teams
	field cue.Field
}

// NewMatchContext returns a context with the default field size.
func NewMatchContext() *MatchContext {
	return &MatchContext{field: cue.DefaultField}
}

func (m *MatchContext) Teams() cue.Teams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.teams
}

func (m *MatchContext) Field() cue.Field {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.field
}

func (m *MatchContext) setTeams(ref *sslproto.Referee) cue.Teams {
	teams := cue.Teams{Yellow: ref.Yellow.Name, Blue: ref.Blue.Name}
	m.mu.Lock()
	m.teams = teams
	m.mu.Unlock()
	return teams
}

// SetFieldSize stores the half dimensions of a full-size field. Sizes that
// are not positive are ignored and reported as false.
func (m *MatchContext) SetFieldSize(size sslproto.FieldSize) bool {
	if size.Length <= 0 || size.Width <= 0 {
		return false
	}
	m.mu.Lock()
	m.field = cue.Field{HalfLength: size.Length / 2, HalfWidth: size.Width / 2}
	m.mu.Unlock()
	return true
}

// ObserveGeometry applies the field size carried by a vision packet.
func (m *MatchContext) ObserveGeometry(v *sslproto.Vision) bool {
	if v == nil || v.Field == nil {
		return false
	}
	return m.SetFieldSize(*v.Field)
}
