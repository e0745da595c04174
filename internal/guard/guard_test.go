package guard

import (
	"testing"

	"github.com/robocup-ssl/audioref/internal/sslproto"
)

func TestRegistryObserve(t *testing.T) {
	r := NewRegistry(FeedReferee)

	steps := []struct {
		key, sender string
		want        bool
	}{
		{"a", "10.0.0.1:10003", false},
		{"a", "10.0.0.1:10003", false},
		{"b", "10.0.0.2:10003", false},
		{"a", "10.0.0.2:10003", true},
		{"a", "10.0.0.2:10003", false},
		{"a", "10.0.0.1:10003", true},
	}

	for i, s := range steps {
		if got := r.Observe(s.key, s.sender); got != s.want {
			t.Errorf("step %d: Observe(%q, %q) = %v, want %v", i, s.key, s.sender, got, s.want)
		}
	}

	if s, _ := r.Sender("a"); s != "10.0.0.1:10003" {
		t.Errorf("latest sender not recorded, got %q", s)
	}
}

func TestCheckReferee(t *testing.T) {
	r := NewRegistry(FeedReferee)

	if v := r.CheckReferee("gc-1"); v.Duplicate || !v.Apply {
		t.Errorf("first packet: %+v", v)
	}
	if v := r.CheckReferee("gc-2"); !v.Duplicate || v.Apply {
		t.Errorf("second controller must warn and skip: %+v", v)
	}
	// The new sender is authoritative from now on.
	if v := r.CheckReferee("gc-2"); v.Duplicate || !v.Apply {
		t.Errorf("packet after switch: %+v", v)
	}
}

func TestCheckVision(t *testing.T) {
	r := NewRegistry(FeedVision)
	geometry := &sslproto.Vision{
		CameraIDs: []uint32{0, 1},
		Field:     &sslproto.FieldSize{Length: 9000, Width: 6000},
	}

	if v := r.CheckVision(geometry, "vision-1"); v.Duplicate || !v.Apply {
		t.Errorf("first packet: %+v", v)
	}
	if v := r.CheckVision(&sslproto.Vision{CameraIDs: []uint32{2}}, "vision-2"); v.Duplicate {
		t.Errorf("different camera from another host is not a duplicate: %+v", v)
	}
	if v := r.CheckVision(geometry, "vision-2"); !v.Duplicate || !v.Apply {
		t.Errorf("duplicate camera must warn and still apply: %+v", v)
	}
}
