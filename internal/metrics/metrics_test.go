package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/cue"
	"github.com/robocup-ssl/audioref/internal/playback"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics(t *testing.T) {
	m := New()
	m.IncPackets("referee")
	m.IncPackets("referee")
	m.IncDecodeErrors("vision")
	m.IncTransitions("command")
	m.IncDuplicateSources("referee")
	m.AddResolverMisses(3)
	m.IncGeometryUpdates()

	s := playback.New(audio.NewManualMockOutput(audio.MockCallbacks{}), 1)
	m.ObserveScheduler(s)
	_ = s.Enqueue(cue.Line{&audio.Clip{Name: "a"}})
	_ = s.Enqueue(cue.Line{&audio.Clip{Name: "b"}})

	body := scrape(t, m)
	for _, want := range []string{
		`audioref_packets_total{feed="referee"} 2`,
		`audioref_decode_errors_total{feed="vision"} 1`,
		`audioref_transitions_total{kind="command"} 1`,
		`audioref_duplicate_sources_total{feed="referee"} 1`,
		`audioref_resolver_misses_total 3`,
		`audioref_geometry_updates_total 1`,
		`audioref_queue_length 1`,
		`audioref_cues_enqueued_total 2`,
		`audioref_cues_dropped_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape is missing %q", want)
		}
	}
}

func TestRouterNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	New().Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
