package cue

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/sslproto"
)

// Placement is the kind of restart implied by a designated position.
type Placement int

const (
	FreeKick Placement = iota
	ThrowIn
	CornerKick
)

func (p Placement) String() string {
	switch p {
	case ThrowIn:
		return "throw_in"
	case CornerKick:
		return "corner_kick"
	default:
		return "free_kick"
	}
}

// Classify maps a designated position to a restart type. Both boundary
// checks use exact float equality against half-size minus distance; a
// position that is off by any rounding falls through to FreeKick. The goal
// line is only consulted once the touch line matched.
func Classify(pos sslproto.Point, field Field, distance float64) Placement {
	atTouchLine := math.Abs(float64(pos.Y)) == field.HalfWidth-distance
	if !atTouchLine {
		return FreeKick
	}
	atGoalLine := math.Abs(float64(pos.X)) == field.HalfLength-distance
	if atGoalLine {
		return CornerKick
	}
	return ThrowIn
}

// Resolver turns cue requests into clip lines using a sound pack.
type Resolver struct {
	lib      Library
	distance float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewResolver creates a resolver. rnd picks among alternatives; tests pass
// a seeded source.
func NewResolver(lib Library, rnd *rand.Rand, placementDistance float64) *Resolver {
	return &Resolver{
		lib:      lib,
		rnd:      rnd,
		distance: placementDistance,
	}
}

// Resolve builds every cue a request maps to, in play order. Keys without
// a configured cue are skipped; the returned error joins those misses and
// callers treat it as diagnostic only.
func (r *Resolver) Resolve(req Request, field Field) ([]Cue, error) {
	var (
		cues   []Cue
		misses []error
	)
	add := func(immediate bool, path ...string) {
		line, err := r.ResolvePath(path, req.Teams, req.Side)
		if err != nil {
			misses = append(misses, err)
			return
		}
		cues = append(cues, Cue{Path: path, Line: line, Immediate: immediate})
	}

	switch req.Kind {
	case KindCommand:
		add(true, "whistle", req.Name)
		add(false, "commands", req.Name)
	case KindStage:
		add(false, "stages", req.Name)
	case KindNextCommand:
		add(false, "next_commands", req.Name)
		// Without a designated position the field centre is classified.
		var pos sslproto.Point
		if req.Position != nil {
			pos = *req.Position
		}
		add(false, req.Name, Classify(pos, field, r.distance).String())
	case KindGameEvent:
		add(false, "game_events", req.Name)
	case KindYellowCard:
		add(false, "yellow_card")
	case KindRedCard:
		add(false, "red_card")
	case KindDuplicateSource:
		add(false, "duplicate_source", req.Name)
	default:
		return nil, fmt.Errorf("unknown request kind %d", req.Kind)
	}

	return cues, errors.Join(misses...)
}

// ResolvePath picks one template at path and substitutes its tokens.
func (r *Resolver) ResolvePath(path []string, teams Teams, side sslproto.Team) (Line, error) {
	templates, err := r.lib.Templates(path...)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(path, "/"))
	}

	tokens := strings.Fields(r.choose(templates))
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: %s has an empty template", ErrNotFound, strings.Join(path, "/"))
	}

	line := make(Line, 0, len(tokens))
	for _, tok := range tokens {
		var (
			clip *audio.Clip
			err  error
		)
		switch tok {
		case TokenTeam:
			clip, err = r.teamClip(teams, side)
		case TokenYellow:
			clip, err = r.teamClip(teams, sslproto.TeamYellow)
		case TokenBlue:
			clip, err = r.teamClip(teams, sslproto.TeamBlue)
		default:
			clip, err = r.lib.Clip(tok)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strings.Join(path, "/"), err)
		}
		line = append(line, clip)
	}
	return line, nil
}

// teamClip picks a clip announcing a team. A configured profile for the
// team's name wins over the side bucket, but only while the two names can
// be told apart.
func (r *Resolver) teamClip(teams Teams, side sslproto.Team) (*audio.Clip, error) {
	if teams.Distinct() {
		if name := teams.Name(side); name != "" {
			if names, err := r.lib.Templates("teams", name); err == nil && len(names) > 0 {
				return r.lib.Clip(r.choose(names))
			}
		}
	}

	names, err := r.lib.Templates("teams", side.String())
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: teams/%s", ErrNotFound, side)
	}
	return r.lib.Clip(r.choose(names))
}

func (r *Resolver) choose(options []string) string {
	if len(options) == 1 {
		return options[0]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return options[r.rnd.Intn(len(options))]
}
