package tracker

import (
	"testing"

	"github.com/robocup-ssl/audioref/internal/cue"
	"github.com/robocup-ssl/audioref/internal/sslproto"
)

func snapshot() *sslproto.Referee {
	return &sslproto.Referee{
		Stage:   sslproto.Stage(1),
		Command: sslproto.CommandStop,
		Yellow:  sslproto.TeamInfo{Name: "ER-Force"},
		Blue:    sslproto.TeamInfo{Name: "TIGERs Mannheim"},
	}
}

func kinds(reqs []cue.Request) []cue.Kind {
	out := make([]cue.Kind, len(reqs))
	for i, r := range reqs {
		out[i] = r.Kind
	}
	return out
}

func count(reqs []cue.Request, kind cue.Kind) int {
	n := 0
	for _, r := range reqs {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func TestSeedEmitsNothing(t *testing.T) {
	seed := snapshot()
	seed.Stage = sslproto.Stage(4)
	seed.Command = sslproto.CommandDirectFreeBlue
	seed.Yellow.YellowCards = 2
	seed.Blue.RedCards = 1
	seed.GameEvents = []sslproto.GameEvent{
		{Type: 24, CreatedTimestamp: 900, ByTeam: sslproto.TeamBlue, HasTeam: true},
		{Type: 8, CreatedTimestamp: 1200, ByTeam: sslproto.TeamYellow, HasTeam: true},
	}

	tr := New(seed, nil)

	// Restart mid-match: the seed itself is history.
	if reqs := tr.Observe(seed); len(reqs) != 0 {
		t.Fatalf("expected no requests for the seed snapshot, got %v", kinds(reqs))
	}

	st := tr.State()
	if st.LastEventTimestamp != 1200 {
		t.Errorf("seed last event timestamp: got %d, want 1200", st.LastEventTimestamp)
	}
	if st.Cards[sslproto.TeamYellow].Yellow != 2 || st.Cards[sslproto.TeamBlue].Red != 1 {
		t.Errorf("seed cards not tracked: %+v", st.Cards)
	}
}

func TestCommandTransitions(t *testing.T) {
	commands := []sslproto.Command{
		sslproto.CommandStop, // seed
		sslproto.CommandStop,
		sslproto.CommandForceStart,
		sslproto.CommandForceStart,
		sslproto.CommandForceStart,
		sslproto.CommandStop,
		sslproto.CommandHalt,
		sslproto.CommandHalt,
		sslproto.CommandStop,
	}

	tr := New(snapshot(), nil)
	got := 0
	for _, c := range commands[1:] {
		ref := snapshot()
		ref.Command = c
		got += count(tr.Observe(ref), cue.KindCommand)
	}

	want := 0
	for i := 1; i < len(commands); i++ {
		if commands[i] != commands[i-1] {
			want++
		}
	}
	if got != want {
		t.Errorf("command requests: got %d, want %d", got, want)
	}
}

func TestObserveOrder(t *testing.T) {
	tr := New(snapshot(), nil)

	ref := snapshot()
	ref.Command = sslproto.CommandDirectFreeYellow
	ref.Stage = sslproto.Stage(2)
	ref.GameEvents = []sslproto.GameEvent{{Type: 6, CreatedTimestamp: 10, ByTeam: sslproto.TeamBlue, HasTeam: true}}
	ref.Yellow.RedCards = 1
	ref.Blue.YellowCards = 1
	ref.NextCommand = sslproto.CommandNormalStart
	ref.HasNextCommand = true

	got := kinds(tr.Observe(ref))
	want := []cue.Kind{
		cue.KindCommand,
		cue.KindStage,
		cue.KindGameEvent,
		cue.KindRedCard,
		cue.KindYellowCard,
		cue.KindNextCommand,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, got, want)
		}
	}
}

func TestRequestDetails(t *testing.T) {
	tr := New(snapshot(), nil)

	ref := snapshot()
	ref.Command = sslproto.CommandGoalBlue
	ref.Blue.YellowCards = 1
	reqs := tr.Observe(ref)

	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %v", kinds(reqs))
	}
	cmd := reqs[0]
	if cmd.Name != "goal_blue" || cmd.Side != sslproto.TeamBlue {
		t.Errorf("unexpected command request: %+v", cmd)
	}
	if cmd.Teams.Blue != "TIGERs Mannheim" || cmd.Teams.Yellow != "ER-Force" {
		t.Errorf("team names not attached: %+v", cmd.Teams)
	}
	if card := reqs[1]; card.Side != sslproto.TeamBlue {
		t.Errorf("card attributed to %s, want blue", card.Side)
	}
}

func TestCardJump(t *testing.T) {
	tr := New(snapshot(), nil)

	ref := snapshot()
	ref.Yellow.YellowCards = 3
	reqs := tr.Observe(ref)

	if n := count(reqs, cue.KindYellowCard); n != 3 {
		t.Errorf("yellow card requests: got %d, want 3", n)
	}
	for _, r := range reqs {
		if r.Side != sslproto.TeamYellow {
			t.Errorf("card attributed to %s", r.Side)
		}
	}
	if got := tr.State().Cards[sslproto.TeamYellow].Yellow; got != 3 {
		t.Errorf("tracked yellow cards: got %d, want 3", got)
	}

	// Same count again is not a new card.
	if reqs := tr.Observe(ref); len(reqs) != 0 {
		t.Errorf("expected no requests, got %v", kinds(reqs))
	}

	// A controller reset lowers the count without announcing anything, and
	// the next card is counted from there.
	ref.Yellow.YellowCards = 0
	if reqs := tr.Observe(ref); len(reqs) != 0 {
		t.Errorf("expected no requests on decrease, got %v", kinds(reqs))
	}
	ref.Yellow.YellowCards = 1
	if n := count(tr.Observe(ref), cue.KindYellowCard); n != 1 {
		t.Errorf("expected 1 card after reset, got %d", n)
	}
}

func TestGameEventDedup(t *testing.T) {
	tests := []struct {
		name       string
		seed       []uint64
		timestamps []uint64
		wantEvents int
		wantLast   uint64
	}{
		{name: "in order", timestamps: []uint64{100, 50, 150}, wantEvents: 2, wantLast: 150},
		{name: "out of order", timestamps: []uint64{150, 50, 100}, wantEvents: 1, wantLast: 150},
		{name: "older than seed", seed: []uint64{120}, timestamps: []uint64{100, 110, 130}, wantEvents: 1, wantLast: 130},
		{name: "repeat of seed", seed: []uint64{120}, timestamps: []uint64{120}, wantEvents: 0, wantLast: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := snapshot()
			for _, ts := range tt.seed {
				seed.GameEvents = append(seed.GameEvents, sslproto.GameEvent{Type: 8, CreatedTimestamp: ts})
			}
			tr := New(seed, nil)

			ref := snapshot()
			for _, ts := range tt.timestamps {
				ref.GameEvents = append(ref.GameEvents, sslproto.GameEvent{Type: 8, CreatedTimestamp: ts})
			}

			if n := count(tr.Observe(ref), cue.KindGameEvent); n != tt.wantEvents {
				t.Errorf("game event requests: got %d, want %d", n, tt.wantEvents)
			}
			if got := tr.State().LastEventTimestamp; got != tt.wantLast {
				t.Errorf("last handled: got %d, want %d", got, tt.wantLast)
			}

			// The list is re-sent in every snapshot.
			if n := count(tr.Observe(ref), cue.KindGameEvent); n != 0 {
				t.Errorf("re-sent events emitted %d requests", n)
			}
		})
	}
}

func TestGameEventTeam(t *testing.T) {
	tr := New(snapshot(), nil)

	ref := snapshot()
	ref.GameEvents = []sslproto.GameEvent{
		{Type: 24, CreatedTimestamp: 1, ByTeam: sslproto.TeamYellow, HasTeam: true},
		{Type: 2, CreatedTimestamp: 2},
	}
	reqs := tr.Observe(ref)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %v", kinds(reqs))
	}
	if reqs[0].Name != "bot_pushed_bot" || reqs[0].Side != sslproto.TeamYellow {
		t.Errorf("unexpected first event: %+v", reqs[0])
	}
	if reqs[1].Name != "no_progress_in_game" || reqs[1].Side != sslproto.TeamUnknown {
		t.Errorf("unexpected second event: %+v", reqs[1])
	}
}

func TestIdempotence(t *testing.T) {
	tr := New(snapshot(), nil)

	ref := snapshot()
	ref.Command = sslproto.CommandBallPlacementB
	ref.Stage = sslproto.Stage(3)
	ref.NextCommand = sslproto.CommandDirectFreeBlue
	ref.HasNextCommand = true
	ref.DesignatedPosition = &sslproto.Point{X: 4300, Y: 2800}
	ref.Blue.RedCards = 2
	ref.GameEvents = []sslproto.GameEvent{{Type: 7, CreatedTimestamp: 77}}

	if reqs := tr.Observe(ref); len(reqs) == 0 {
		t.Fatal("expected requests for the first change")
	}
	if reqs := tr.Observe(ref); len(reqs) != 0 {
		t.Errorf("identical snapshot produced %v", kinds(reqs))
	}
}

func TestNextCommand(t *testing.T) {
	tr := New(snapshot(), nil)

	ref := snapshot()
	ref.NextCommand = sslproto.CommandDirectFreeBlue
	ref.HasNextCommand = true
	ref.DesignatedPosition = &sslproto.Point{X: -4300, Y: 2800}

	reqs := tr.Observe(ref)
	if len(reqs) != 1 || reqs[0].Kind != cue.KindNextCommand {
		t.Fatalf("expected one next command request, got %v", kinds(reqs))
	}
	req := reqs[0]
	if req.Name != "direct_free_blue" || req.Side != sslproto.TeamBlue {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.Position == nil || *req.Position != *ref.DesignatedPosition {
		t.Errorf("designated position not carried: %v", req.Position)
	}

	// Clearing the next command falls back to halt.
	ref.HasNextCommand = false
	ref.NextCommand = 0
	ref.DesignatedPosition = nil
	reqs = tr.Observe(ref)
	if len(reqs) != 1 || reqs[0].Kind != cue.KindNextCommand || reqs[0].Name != "halt" {
		t.Fatalf("expected a halt next command when cleared, got %+v", reqs)
	}
	if reqs[0].Position != nil {
		t.Errorf("cleared next command carried position %v", reqs[0].Position)
	}
	if tr.State().HasNextCommand {
		t.Error("cleared next command still tracked")
	}
}

func TestNextCommandPresenceOnly(t *testing.T) {
	tests := []struct {
		name    string
		present bool
		next    sslproto.Command
		want    int
	}{
		{name: "absent stays absent", present: false, next: sslproto.CommandHalt, want: 0},
		{name: "explicit halt", present: true, next: sslproto.CommandHalt, want: 0},
		{name: "explicit stop", present: true, next: sslproto.CommandStop, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(snapshot(), nil)
			ref := snapshot()
			ref.HasNextCommand = tt.present
			ref.NextCommand = tt.next
			if reqs := tr.Observe(ref); len(reqs) != tt.want {
				t.Errorf("got %d requests, want %d: %+v", len(reqs), tt.want, reqs)
			}
		})
	}
}

func TestObserveGeometry(t *testing.T) {
	match := NewMatchContext()
	tr := New(snapshot(), match)

	if f := match.Field(); f != cue.DefaultField {
		t.Fatalf("expected default field before geometry, got %+v", f)
	}

	tests := []struct {
		name    string
		vision  *sslproto.Vision
		applied bool
		want    cue.Field
	}{
		{name: "no geometry", vision: &sslproto.Vision{CameraIDs: []uint32{0}}, want: cue.DefaultField},
		{name: "zero size", vision: &sslproto.Vision{Field: &sslproto.FieldSize{}}, want: cue.DefaultField},
		{
			name:    "division a",
			vision:  &sslproto.Vision{Field: &sslproto.FieldSize{Length: 12000, Width: 9000}},
			applied: true,
			want:    cue.Field{HalfLength: 6000, HalfWidth: 4500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tr.State()
			if got := tr.ObserveGeometry(tt.vision); got != tt.applied {
				t.Errorf("applied: got %v, want %v", got, tt.applied)
			}
			if f := match.Field(); f != tt.want {
				t.Errorf("field: got %+v, want %+v", f, tt.want)
			}
			if tr.State() != before {
				t.Error("geometry changed tracked state")
			}
		})
	}
}
