package cue

import (
	"errors"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/sslproto"
)

// ErrNotFound indicates the sound pack has no cue for a key, or a cue
// references a clip that does not exist. It is never fatal.
var ErrNotFound = errors.New("no cue configured")

// Template placeholders bound to a team clip at resolution time.
const (
	TokenTeam   = "T"
	TokenYellow = "Y"
	TokenBlue   = "B"
)

// Library is the loaded sound pack as seen by the resolver.
type Library interface {
	// Templates returns the alternatives configured at a key path of the
	// cue tree. Leaves may be a single string or a list.
	Templates(path ...string) ([]string, error)

	// Clip returns a decoded clip by its pack-relative name.
	Clip(name string) (*audio.Clip, error)
}

// Line is an ordered sequence of clips played back-to-back in response to
// one event. A Line must not be modified once built.
type Line []*audio.Clip

// Names returns the clip names, mostly for logging.
func (l Line) Names() []string {
	names := make([]string, len(l))
	for i, c := range l {
		names[i] = c.Name
	}
	return names
}

// Teams holds both team names as reported by the referee.
type Teams struct {
	Yellow string
	Blue   string
}

// Name returns the reported name of a side, empty for unknown.
func (t Teams) Name(side sslproto.Team) string {
	switch side {
	case sslproto.TeamYellow:
		return t.Yellow
	case sslproto.TeamBlue:
		return t.Blue
	default:
		return ""
	}
}

// Distinct reports whether team-specific profiles may be used.
func (t Teams) Distinct() bool {
	return t.Yellow != t.Blue
}

// Field holds the current half-field dimensions in millimetres.
type Field struct {
	HalfLength float64
	HalfWidth  float64
}

// DefaultField is the division A field, used until geometry arrives.
var DefaultField = Field{HalfLength: 4500, HalfWidth: 3000}

// Kind classifies a cue request.
type Kind int

const (
	KindCommand Kind = iota
	KindStage
	KindGameEvent
	KindYellowCard
	KindRedCard
	KindNextCommand
	KindDuplicateSource
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindStage:
		return "stage"
	case KindGameEvent:
		return "game_event"
	case KindYellowCard:
		return "yellow_card"
	case KindRedCard:
		return "red_card"
	case KindNextCommand:
		return "next_command"
	case KindDuplicateSource:
		return "duplicate_source"
	default:
		return "unknown"
	}
}

// Request asks for the cues belonging to one detected transition.
type Request struct {
	Kind Kind
	// Name is the lower-case value name, e.g. "normal_start" or the feed
	// name for duplicate sources.
	Name string
	// Side is the team bound to the T placeholder.
	Side  sslproto.Team
	Teams Teams
	// Position is the designated position for next-command requests. Nil
	// is classified as the origin.
	Position *sslproto.Point
}

// Cue is a resolved line together with how it must be played.
type Cue struct {
	Path      []string
	Line      Line
	Immediate bool
}
