package sslproto

// Team identifies a side of the field.
type Team int32

const (
	TeamUnknown Team = iota
	TeamYellow
	TeamBlue
)

// String returns the lower-case side name used as a sound-pack bucket.
func (t Team) String() string {
	switch t {
	case TeamYellow:
		return "yellow"
	case TeamBlue:
		return "blue"
	default:
		return "unknown"
	}
}

// Stage is the match stage reported by the game controller.
type Stage int32

var stageNames = map[Stage]string{
	0:  "normal_first_half_pre",
	1:  "normal_first_half",
	2:  "normal_half_time",
	3:  "normal_second_half_pre",
	4:  "normal_second_half",
	5:  "extra_time_break",
	6:  "extra_first_half_pre",
	7:  "extra_first_half",
	8:  "extra_half_time",
	9:  "extra_second_half_pre",
	10: "extra_second_half",
	11: "penalty_shootout_break",
	12: "penalty_shootout",
	13: "post_game",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown_stage"
}

// Command is a referee command.
type Command int32

const (
	CommandHalt               Command = 0
	CommandStop               Command = 1
	CommandNormalStart        Command = 2
	CommandForceStart         Command = 3
	CommandPrepareKickoffY    Command = 4
	CommandPrepareKickoffB    Command = 5
	CommandPreparePenaltyY    Command = 6
	CommandPreparePenaltyB    Command = 7
	CommandDirectFreeYellow   Command = 8
	CommandDirectFreeBlue     Command = 9
	CommandIndirectFreeYellow Command = 10
	CommandIndirectFreeBlue   Command = 11
	CommandTimeoutYellow      Command = 12
	CommandTimeoutBlue        Command = 13
	CommandGoalYellow         Command = 14
	CommandGoalBlue           Command = 15
	CommandBallPlacementY     Command = 16
	CommandBallPlacementB     Command = 17
)

var commandNames = map[Command]string{
	CommandHalt:               "halt",
	CommandStop:               "stop",
	CommandNormalStart:        "normal_start",
	CommandForceStart:         "force_start",
	CommandPrepareKickoffY:    "prepare_kickoff_yellow",
	CommandPrepareKickoffB:    "prepare_kickoff_blue",
	CommandPreparePenaltyY:    "prepare_penalty_yellow",
	CommandPreparePenaltyB:    "prepare_penalty_blue",
	CommandDirectFreeYellow:   "direct_free_yellow",
	CommandDirectFreeBlue:     "direct_free_blue",
	CommandIndirectFreeYellow: "indirect_free_yellow",
	CommandIndirectFreeBlue:   "indirect_free_blue",
	CommandTimeoutYellow:      "timeout_yellow",
	CommandTimeoutBlue:        "timeout_blue",
	CommandGoalYellow:         "goal_yellow",
	CommandGoalBlue:           "goal_blue",
	CommandBallPlacementY:     "ball_placement_yellow",
	CommandBallPlacementB:     "ball_placement_blue",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown_command"
}

// GameEventType mirrors the game controller's event type enum. The numeric
// value doubles as the field number of the event's payload message.
type GameEventType int32

var gameEventNames = map[GameEventType]string{
	0:  "unknown_game_event_type",
	2:  "no_progress_in_game",
	3:  "placement_failed",
	5:  "placement_succeeded",
	6:  "ball_left_field_touch_line",
	7:  "ball_left_field_goal_line",
	8:  "goal",
	11: "aimless_kick",
	13: "keeper_held_ball",
	14: "attacker_double_touched_ball",
	15: "attacker_touched_ball_in_defense_area",
	17: "bot_dribbled_ball_too_far",
	18: "bot_kicked_ball_too_fast",
	19: "attacker_too_close_to_defense_area",
	20: "bot_interfered_placement",
	21: "bot_crash_drawn",
	22: "bot_crash_unique",
	24: "bot_pushed_bot",
	26: "bot_held_ball_deliberately",
	27: "bot_tipped_over",
	28: "bot_too_fast_in_stop",
	29: "defender_too_close_to_kick_point",
	31: "defender_in_defense_area",
	32: "multiple_cards",
	34: "multiple_fouls",
	35: "unsporting_behavior_minor",
	36: "unsporting_behavior_major",
	37: "bot_substitution",
	38: "too_many_robots",
	39: "possible_goal",
	41: "boundary_crossing",
	42: "invalid_goal",
	43: "penalty_kick_failed",
	44: "challenge_flag",
	45: "emergency_stop",
	46: "challenge_flag_handled",
	47: "bot_dropped_parts",
	48: "excessive_bot_substitution",
}

func (t GameEventType) String() string {
	if n, ok := gameEventNames[t]; ok {
		return n
	}
	return "unknown_game_event_type"
}

// teamless lists event types whose payload has no by_team attribution.
var teamless = map[GameEventType]bool{
	0: true,
	2: true,
}

// Point is a position on the field in millimetres.
type Point struct {
	X float32
	Y float32
}

// TeamInfo is the per-team part of a referee snapshot.
type TeamInfo struct {
	Name        string
	Score       uint32
	RedCards    uint32
	YellowCards uint32
	Goalkeeper  uint32
}

// GameEvent is a single game event embedded in a referee snapshot.
type GameEvent struct {
	Type             GameEventType
	CreatedTimestamp uint64
	// ByTeam is only meaningful when HasTeam is set.
	ByTeam  Team
	HasTeam bool
}

// Referee is one decoded referee-state snapshot.
type Referee struct {
	SourceIdentifier   string
	PacketTimestamp    uint64
	Stage              Stage
	Command            Command
	CommandCounter     uint32
	Yellow             TeamInfo
	Blue               TeamInfo
	DesignatedPosition *Point
	NextCommand        Command
	HasNextCommand     bool
	GameEvents         []GameEvent
}

// Team returns the info block for the given side. Unknown yields nil.
func (r *Referee) Team(t Team) *TeamInfo {
	switch t {
	case TeamYellow:
		return &r.Yellow
	case TeamBlue:
		return &r.Blue
	default:
		return nil
	}
}

// FieldSize holds the playing-area dimensions from a geometry packet.
type FieldSize struct {
	Length float64
	Width  float64
}

// Vision is the part of a vision wrapper packet the announcer cares about.
type Vision struct {
	// CameraIDs lists every camera id seen in the packet, detection first.
	CameraIDs []uint32
	// Field is nil when the packet carries no geometry.
	Field *FieldSize
}

