package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestPipe(t *testing.T) {
	p := NewPipe(4)
	p.Send(Packet{Payload: nil, Sender: "ignored"})
	p.Send(Packet{Payload: []byte{1}, Sender: "10.0.0.1:10003"})

	pkt, err := p.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if pkt.Sender != "10.0.0.1:10003" || pkt.At.IsZero() {
		t.Errorf("unexpected packet: %+v", pkt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	_ = p.Close()
	if _, err := p.Receive(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.cap")
	w, err := CreateCapture(path)
	if err != nil {
		t.Fatalf("CreateCapture failed: %v", err)
	}

	gc := NewPipe(4)
	vision := NewPipe(4)
	sources := map[string]Source{
		"referee": Tee(gc, "referee", w),
		"vision":  Tee(vision, "vision", w),
	}

	base := time.Unix(1700000000, 0)
	gc.Send(Packet{Payload: []byte("ref-1"), Sender: "gc", At: base})
	vision.Send(Packet{Payload: []byte("geo-1"), Sender: "cam", At: base.Add(10 * time.Millisecond)})
	gc.Send(Packet{Payload: []byte("ref-2"), Sender: "gc", At: base.Add(20 * time.Millisecond)})

	for _, feed := range []string{"referee", "vision", "referee"} {
		if _, err := sources[feed].Receive(context.Background()); err != nil {
			t.Fatalf("Receive %s failed: %v", feed, err)
		}
	}
	if n := w.Records(); n != 3 {
		t.Errorf("expected 3 records written, got %d", n)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := ReadCapture(path)
	if err != nil {
		t.Fatalf("ReadCapture failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := []struct{ feed, payload string }{
		{"referee", "ref-1"},
		{"vision", "geo-1"},
		{"referee", "ref-2"},
	}
	for i, exp := range want {
		if records[i].Feed != exp.feed || string(records[i].Payload) != exp.payload {
			t.Errorf("record %d: got %s/%s, want %s/%s", i, records[i].Feed, records[i].Payload, exp.feed, exp.payload)
		}
	}
	if !records[2].At.Equal(base.Add(20 * time.Millisecond)) {
		t.Errorf("timestamp not preserved: %v", records[2].At)
	}
}

func TestReadCaptureTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, _ := zstd.NewWriter(f)
	// Feed name claims 10 bytes, only 3 follow.
	_, _ = enc.Write([]byte{10, 'r', 'e', 'f'})
	_ = enc.Close()
	_ = f.Close()

	if _, err := ReadCapture(path); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReplay(t *testing.T) {
	base := time.Unix(1700000000, 0)
	records := []Record{
		{Feed: "referee", Packet: Packet{Payload: []byte("a"), Sender: "gc", At: base}},
		{Feed: "vision", Packet: Packet{Payload: []byte("v"), Sender: "cam", At: base.Add(time.Second)}},
		{Feed: "referee", Packet: Packet{Payload: nil, At: base.Add(2 * time.Second)}},
		{Feed: "referee", Packet: Packet{Payload: []byte("b"), Sender: "gc", At: base.Add(4 * time.Second)}},
	}

	t.Run("unpaced", func(t *testing.T) {
		r := NewReplay(records, 0)
		if d := r.Duration(); d != 4*time.Second {
			t.Errorf("duration: got %v, want 4s", d)
		}

		src := r.Feed("referee")
		var got []string
		for {
			pkt, err := src.Receive(context.Background())
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("Receive failed: %v", err)
			}
			got = append(got, string(pkt.Payload))
		}
		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("unexpected payloads %v", got)
		}
	})

	t.Run("paced", func(t *testing.T) {
		// 4s of capture at 40x takes about 100ms.
		r := NewReplay(records, 40)
		src := r.Feed("referee")

		start := time.Now()
		for i := 0; i < 2; i++ {
			if _, err := src.Receive(context.Background()); err != nil {
				t.Fatalf("Receive failed: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("replay ran too fast: %v", elapsed)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		r := NewReplay(records, 0.001)
		src := r.Feed("vision")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := src.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}

		_ = src.Close()
		if _, err := src.Receive(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestListenMulticastRejects(t *testing.T) {
	tests := []struct {
		name, address, ifname string
	}{
		{name: "unicast", address: "127.0.0.1:10003"},
		{name: "garbage", address: "not an address"},
		{name: "unknown interface", address: "224.5.23.1:10003", ifname: "no-such-if0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if m, err := ListenMulticast(tt.address, tt.ifname); err == nil {
				m.Close() //nolint:errcheck
				t.Error("expected an error")
			}
		})
	}
}
