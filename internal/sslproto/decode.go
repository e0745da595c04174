package sslproto

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed packet")

// Field numbers of the game controller referee message.
const (
	refPacketTimestamp    protowire.Number = 1
	refStage              protowire.Number = 2
	refCommand            protowire.Number = 4
	refCommandCounter     protowire.Number = 5
	refYellow             protowire.Number = 7
	refBlue               protowire.Number = 8
	refDesignatedPosition protowire.Number = 9
	refNextCommand        protowire.Number = 12
	refGameEvents         protowire.Number = 16
	refSourceIdentifier   protowire.Number = 18

	teamName        protowire.Number = 1
	teamScore       protowire.Number = 2
	teamRedCards    protowire.Number = 3
	teamYellowCards protowire.Number = 5
	teamGoalkeeper  protowire.Number = 8

	pointX protowire.Number = 1
	pointY protowire.Number = 2

	eventType             protowire.Number = 40
	eventCreatedTimestamp protowire.Number = 49
	eventByTeam           protowire.Number = 1

	wrapperDetection protowire.Number = 1
	wrapperGeometry  protowire.Number = 2
	detectionCamera  protowire.Number = 4
	geometryField    protowire.Number = 1
	geometryCalib    protowire.Number = 2
	fieldLength      protowire.Number = 1
	fieldWidth       protowire.Number = 2
	calibCameraID    protowire.Number = 1
)

// visitFunc handles one field. v holds the raw varint/fixed value for
// scalar wire types and b the payload for length-delimited ones.
type visitFunc func(num protowire.Number, typ protowire.Type, v uint64, b []byte) error

// walk iterates over the top-level fields of a message.
func walk(msg []byte, fn visitFunc) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		msg = msg[n:]

		var (
			v uint64
			b []byte
		)
		switch typ {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(msg)
		case protowire.Fixed32Type:
			var f uint32
			f, n = protowire.ConsumeFixed32(msg)
			v = uint64(f)
		case protowire.Fixed64Type:
			v, n = protowire.ConsumeFixed64(msg)
		case protowire.BytesType:
			b, n = protowire.ConsumeBytes(msg)
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			msg = msg[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		msg = msg[n:]

		if err := fn(num, typ, v, b); err != nil {
			return err
		}
	}
	return nil
}

func expect(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformed, num, got, want)
	}
	return nil
}

// DecodeReferee parses a game controller referee packet.
func DecodeReferee(payload []byte) (*Referee, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	ref := &Referee{}
	var seenStage, seenCommand bool
	err := walk(payload, func(num protowire.Number, typ protowire.Type, v uint64, b []byte) error {
		switch num {
		case refPacketTimestamp:
			ref.PacketTimestamp = v
		case refStage:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
			ref.Stage = Stage(int32(v))
			seenStage = true
		case refCommand:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
			ref.Command = Command(int32(v))
			seenCommand = true
		case refCommandCounter:
			ref.CommandCounter = uint32(v)
		case refYellow, refBlue:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			info, err := decodeTeamInfo(b)
			if err != nil {
				return fmt.Errorf("team info: %w", err)
			}
			if num == refYellow {
				ref.Yellow = info
			} else {
				ref.Blue = info
			}
		case refDesignatedPosition:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			p, err := decodePoint(b)
			if err != nil {
				return fmt.Errorf("designated position: %w", err)
			}
			ref.DesignatedPosition = &p
		case refNextCommand:
			if err := expect(num, typ, protowire.VarintType); err != nil {
				return err
			}
			ref.NextCommand = Command(int32(v))
			ref.HasNextCommand = true
		case refGameEvents:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			ev, err := decodeGameEvent(b)
			if err != nil {
				return fmt.Errorf("game event: %w", err)
			}
			ref.GameEvents = append(ref.GameEvents, ev)
		case refSourceIdentifier:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			ref.SourceIdentifier = string(b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !seenStage || !seenCommand {
		return nil, fmt.Errorf("%w: missing stage or command", ErrMalformed)
	}
	return ref, nil
}

func decodeTeamInfo(b []byte) (TeamInfo, error) {
	var info TeamInfo
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, p []byte) error {
		switch num {
		case teamName:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			info.Name = string(p)
		case teamScore:
			info.Score = uint32(v)
		case teamRedCards:
			info.RedCards = uint32(v)
		case teamYellowCards:
			info.YellowCards = uint32(v)
		case teamGoalkeeper:
			info.Goalkeeper = uint32(v)
		}
		return nil
	})
	return info, err
}

func decodePoint(b []byte) (Point, error) {
	var p Point
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
		if num != pointX && num != pointY {
			return nil
		}
		if err := expect(num, typ, protowire.Fixed32Type); err != nil {
			return err
		}
		f := math.Float32frombits(uint32(v))
		if num == pointX {
			p.X = f
		} else {
			p.Y = f
		}
		return nil
	})
	return p, err
}

func decodeGameEvent(b []byte) (GameEvent, error) {
	var (
		ev      GameEvent
		payload = map[protowire.Number][]byte{}
	)
	err := walk(b, func(num protowire.Number, typ protowire.Type, v uint64, p []byte) error {
		switch num {
		case eventType:
			ev.Type = GameEventType(int32(v))
		case eventCreatedTimestamp:
			ev.CreatedTimestamp = v
		default:
			if typ == protowire.BytesType {
				payload[num] = p
			}
		}
		return nil
	})
	if err != nil {
		return ev, err
	}

	// The event payload lives in a oneof whose field number equals the type.
	body, ok := payload[protowire.Number(ev.Type)]
	if !ok || teamless[ev.Type] {
		return ev, nil
	}
	err = walk(body, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
		if num == eventByTeam && typ == protowire.VarintType {
			ev.ByTeam = Team(int32(v))
			ev.HasTeam = true
		}
		return nil
	})
	return ev, err
}

// DecodeVision parses a vision wrapper packet, keeping only camera ids and
// field size.
func DecodeVision(payload []byte) (*Vision, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	vis := &Vision{}
	err := walk(payload, func(num protowire.Number, typ protowire.Type, _ uint64, b []byte) error {
		switch num {
		case wrapperDetection:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			return walk(b, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
				if num == detectionCamera && typ == protowire.VarintType {
					vis.CameraIDs = append(vis.CameraIDs, uint32(v))
				}
				return nil
			})
		case wrapperGeometry:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			return decodeGeometry(b, vis)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vis, nil
}

func decodeGeometry(b []byte, vis *Vision) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, _ uint64, p []byte) error {
		switch num {
		case geometryField:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			size := FieldSize{}
			err := walk(p, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
				if typ != protowire.VarintType {
					return nil
				}
				switch num {
				case fieldLength:
					size.Length = float64(int32(v))
				case fieldWidth:
					size.Width = float64(int32(v))
				}
				return nil
			})
			if err != nil {
				return err
			}
			vis.Field = &size
		case geometryCalib:
			if err := expect(num, typ, protowire.BytesType); err != nil {
				return err
			}
			return walk(p, func(num protowire.Number, typ protowire.Type, v uint64, _ []byte) error {
				if num == calibCameraID && typ == protowire.VarintType {
					vis.CameraIDs = append(vis.CameraIDs, uint32(v))
				}
				return nil
			})
		}
		return nil
	})
}
