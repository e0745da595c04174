package tracker

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/robocup-ssl/audioref/internal/cue"
	"github.com/robocup-ssl/audioref/internal/sslproto"
)

// Cards is a team's card tally.
type Cards struct {
	Yellow uint32
	Red    uint32
}

// State is the last known value of every tracked field.
type State struct {
	Stage          sslproto.Stage
	Command        sslproto.Command
	NextCommand    sslproto.Command
	HasNextCommand bool
	// Cards is indexed by sslproto.Team; the unknown entry stays zero.
	Cards [3]Cards
	// LastEventTimestamp is the creation time of the newest game event
	// handled so far.
	LastEventTimestamp uint64
}

// Tracker diffs successive referee snapshots and turns every detected
// transition into a cue request. A field is only updated together with the
// request it caused.
type Tracker struct {
	match *MatchContext

	mu    sync.Mutex
	state State
}

// New seeds a tracker from the first snapshot received. Nothing is emitted
// for the seed, so a restart mid-match does not replay old transitions.
func New(seed *sslproto.Referee, match *MatchContext) *Tracker {
	if match == nil {
		match = NewMatchContext()
	}
	t := &Tracker{match: match}
	match.setTeams(seed)

	t.state = State{
		Stage:          seed.Stage,
		Command:        seed.Command,
		NextCommand:    seed.NextCommand,
		HasNextCommand: seed.HasNextCommand,
	}
	for _, side := range []sslproto.Team{sslproto.TeamYellow, sslproto.TeamBlue} {
		info := seed.Team(side)
		t.state.Cards[side] = Cards{Yellow: info.YellowCards, Red: info.RedCards}
	}
	for _, ev := range seed.GameEvents {
		if ev.CreatedTimestamp > t.state.LastEventTimestamp {
			t.state.LastEventTimestamp = ev.CreatedTimestamp
		}
	}

	log.Debug("Tracker seeded",
		"stage", t.state.Stage,
		"command", t.state.Command,
		"last_event", t.state.LastEventTimestamp)
	return t
}

// Match returns the context shared with the geometry listener.
func (t *Tracker) Match() *MatchContext {
	return t.match
}

// State returns a copy of the tracked values.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Observe diffs a snapshot against the tracked state. Checks run in a fixed
// order: command, stage, game events, cards, next command.
func (t *Tracker) Observe(ref *sslproto.Referee) []cue.Request {
	teams := t.match.setTeams(ref)

	t.mu.Lock()
	defer t.mu.Unlock()

	var reqs []cue.Request
	emit := func(req cue.Request) {
		req.Teams = teams
		reqs = append(reqs, req)
	}

	if ref.Command != t.state.Command {
		t.state.Command = ref.Command
		emit(cue.Request{
			Kind: cue.KindCommand,
			Name: ref.Command.String(),
			Side: commandSide(ref.Command),
		})
	}

	if ref.Stage != t.state.Stage {
		t.state.Stage = ref.Stage
		emit(cue.Request{Kind: cue.KindStage, Name: ref.Stage.String()})
	}

	// Events arrive in append order, not time order. The running maximum
	// keeps stale and repeated events out.
	for _, ev := range ref.GameEvents {
		if ev.CreatedTimestamp <= t.state.LastEventTimestamp {
			continue
		}
		t.state.LastEventTimestamp = ev.CreatedTimestamp

		side := sslproto.TeamUnknown
		if ev.HasTeam {
			side = ev.ByTeam
		}
		emit(cue.Request{Kind: cue.KindGameEvent, Name: ev.Type.String(), Side: side})
	}

	for _, side := range []sslproto.Team{sslproto.TeamYellow, sslproto.TeamBlue} {
		info := ref.Team(side)
		tracked := &t.state.Cards[side]

		for n := tracked.Yellow; n < info.YellowCards; n++ {
			emit(cue.Request{Kind: cue.KindYellowCard, Side: side})
		}
		for n := tracked.Red; n < info.RedCards; n++ {
			emit(cue.Request{Kind: cue.KindRedCard, Side: side})
		}
		// Counts only go down when the controller was reset; follow it
		// silently.
		*tracked = Cards{Yellow: info.YellowCards, Red: info.RedCards}
	}

	// An absent next command reads as halt, so clearing it announces halt
	// and a presence toggle with an unchanged value is no change.
	t.state.HasNextCommand = ref.HasNextCommand
	if ref.NextCommand != t.state.NextCommand {
		t.state.NextCommand = ref.NextCommand
		req := cue.Request{
			Kind: cue.KindNextCommand,
			Name: ref.NextCommand.String(),
			Side: commandSide(ref.NextCommand),
		}
		if ref.DesignatedPosition != nil {
			pos := *ref.DesignatedPosition
			req.Position = &pos
		}
		emit(req)
	}

	return reqs
}

// ObserveGeometry applies the field size from a vision packet, if any. It
// never touches tracked state.
func (t *Tracker) ObserveGeometry(v *sslproto.Vision) bool {
	return t.match.ObserveGeometry(v)
}

// commandSide returns the team a command is addressed to.
func commandSide(c sslproto.Command) sslproto.Team {
	switch c {
	case sslproto.CommandPrepareKickoffY, sslproto.CommandPreparePenaltyY,
		sslproto.CommandDirectFreeYellow, sslproto.CommandIndirectFreeYellow,
		sslproto.CommandTimeoutYellow, sslproto.CommandGoalYellow,
		sslproto.CommandBallPlacementY:
		return sslproto.TeamYellow
	case sslproto.CommandPrepareKickoffB, sslproto.CommandPreparePenaltyB,
		sslproto.CommandDirectFreeBlue, sslproto.CommandIndirectFreeBlue,
		sslproto.CommandTimeoutBlue, sslproto.CommandGoalBlue,
		sslproto.CommandBallPlacementB:
		return sslproto.TeamBlue
	default:
		return sslproto.TeamUnknown
	}
}
