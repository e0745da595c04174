package sslproto

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// MarshalReferee encodes a referee snapshot in the game controller wire
// format. It covers the same subset of fields DecodeReferee reads and is
// used by tests and capture tooling.
func MarshalReferee(ref *Referee) []byte {
	var b []byte
	b = appendVarint(b, refPacketTimestamp, ref.PacketTimestamp)
	b = appendVarint(b, refStage, uint64(ref.Stage))
	b = appendVarint(b, refCommand, uint64(ref.Command))
	b = appendVarint(b, refCommandCounter, uint64(ref.CommandCounter))
	b = appendMessage(b, refYellow, marshalTeamInfo(&ref.Yellow))
	b = appendMessage(b, refBlue, marshalTeamInfo(&ref.Blue))
	if p := ref.DesignatedPosition; p != nil {
		var pb []byte
		pb = protowire.AppendTag(pb, pointX, protowire.Fixed32Type)
		pb = protowire.AppendFixed32(pb, math.Float32bits(p.X))
		pb = protowire.AppendTag(pb, pointY, protowire.Fixed32Type)
		pb = protowire.AppendFixed32(pb, math.Float32bits(p.Y))
		b = appendMessage(b, refDesignatedPosition, pb)
	}
	if ref.HasNextCommand {
		b = appendVarint(b, refNextCommand, uint64(ref.NextCommand))
	}
	for i := range ref.GameEvents {
		b = appendMessage(b, refGameEvents, marshalGameEvent(&ref.GameEvents[i]))
	}
	if ref.SourceIdentifier != "" {
		b = protowire.AppendTag(b, refSourceIdentifier, protowire.BytesType)
		b = protowire.AppendString(b, ref.SourceIdentifier)
	}
	return b
}

func marshalTeamInfo(t *TeamInfo) []byte {
	var b []byte
	b = protowire.AppendTag(b, teamName, protowire.BytesType)
	b = protowire.AppendString(b, t.Name)
	b = appendVarint(b, teamScore, uint64(t.Score))
	b = appendVarint(b, teamRedCards, uint64(t.RedCards))
	b = appendVarint(b, teamYellowCards, uint64(t.YellowCards))
	b = appendVarint(b, teamGoalkeeper, uint64(t.Goalkeeper))
	return b
}

func marshalGameEvent(ev *GameEvent) []byte {
	var body []byte
	if ev.HasTeam {
		body = appendVarint(body, eventByTeam, uint64(ev.ByTeam))
	}
	var b []byte
	b = appendVarint(b, eventType, uint64(ev.Type))
	b = appendVarint(b, eventCreatedTimestamp, ev.CreatedTimestamp)
	if ev.Type != 0 {
		b = appendMessage(b, protowire.Number(ev.Type), body)
	}
	return b
}

// MarshalVision encodes a vision wrapper packet. A single camera id is
// written as a detection frame; geometry carries the remaining ids as
// calibration entries.
func MarshalVision(v *Vision) []byte {
	var b []byte
	ids := v.CameraIDs
	if v.Field == nil && len(ids) > 0 {
		det := appendVarint(nil, detectionCamera, uint64(ids[0]))
		b = appendMessage(b, wrapperDetection, det)
		ids = ids[1:]
	}
	if v.Field != nil {
		var geo, field []byte
		field = appendVarint(field, fieldLength, uint64(uint32(int32(v.Field.Length))))
		field = appendVarint(field, fieldWidth, uint64(uint32(int32(v.Field.Width))))
		geo = appendMessage(geo, geometryField, field)
		for _, id := range ids {
			geo = appendMessage(geo, geometryCalib, appendVarint(nil, calibCameraID, uint64(id)))
		}
		b = appendMessage(b, wrapperGeometry, geo)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
