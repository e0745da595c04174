package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// MockOutput implements Output for testing purposes.
// It simulates playback without producing sound. In manual mode playbacks
// only finish when the test calls Finish, otherwise after the clip's
// duration scaled by the delay factor.
type MockOutput struct {
	format Format
	manual bool

	mu          sync.Mutex
	delayFactor float64
	closed      bool
	started     []*MockPlayback

	// Test callbacks
	callbacks MockCallbacks

	// Metrics for testing
	playCount atomic.Int64
	stopCount atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay func(clip *Clip)
	OnStop func(clip *Clip)
}

// DefaultMockOutput creates a mock output whose playbacks end on their own.
func DefaultMockOutput() *MockOutput {
	return &MockOutput{
		format:      Format{SampleRate: 44100, Channels: 1},
		delayFactor: 1.0,
	}
}

// NewManualMockOutput creates a mock output whose playbacks run until the
// test finishes or stops them.
func NewManualMockOutput(callbacks MockCallbacks) *MockOutput {
	mo := DefaultMockOutput()
	mo.manual = true
	mo.callbacks = callbacks
	return mo
}

// SetDelayFactor scales simulated clip durations. 0.5 plays twice as fast.
func (mo *MockOutput) SetDelayFactor(factor float64) {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	mo.delayFactor = factor
}

// Format returns the simulated device format.
func (mo *MockOutput) Format() Format {
	return mo.format
}

// Play records the clip and starts a simulated playback.
func (mo *MockOutput) Play(clip *Clip) (Playback, error) {
	mo.mu.Lock()
	if mo.closed {
		mo.mu.Unlock()
		return nil, ErrClosed
	}
	pb := &MockPlayback{
		Clip:  clip,
		owner: mo,
		done:  make(chan struct{}),
	}
	pb.state.Store(int32(StatePlaying))
	mo.started = append(mo.started, pb)
	manual := mo.manual
	delay := time.Duration(float64(clip.Duration) * mo.delayFactor)
	mo.mu.Unlock()

	mo.playCount.Add(1)
	if mo.callbacks.OnPlay != nil {
		mo.callbacks.OnPlay(clip)
	}

	if !manual {
		time.AfterFunc(delay, pb.Finish)
	}
	return pb, nil
}

// Close marks the output closed and stops everything still playing.
func (mo *MockOutput) Close() error {
	mo.mu.Lock()
	mo.closed = true
	started := append([]*MockPlayback(nil), mo.started...)
	mo.mu.Unlock()

	for _, pb := range started {
		pb.Stop()
	}
	return nil
}

// Started returns every playback in start order.
func (mo *MockOutput) Started() []*MockPlayback {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	return append([]*MockPlayback(nil), mo.started...)
}

// Played returns the clip names in start order.
func (mo *MockOutput) Played() []string {
	started := mo.Started()
	names := make([]string, len(started))
	for i, pb := range started {
		names[i] = pb.Clip.Name
	}
	return names
}

// Playing returns the playbacks that have neither finished nor stopped.
func (mo *MockOutput) Playing() []*MockPlayback {
	var playing []*MockPlayback
	for _, pb := range mo.Started() {
		if pb.IsPlaying() {
			playing = append(playing, pb)
		}
	}
	return playing
}

// WaitForPlays blocks until at least n clips were started or the timeout
// expires. It returns whether n was reached.
func (mo *MockOutput) WaitForPlays(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if int(mo.playCount.Load()) >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return int(mo.playCount.Load()) >= n
}

// GetMetrics returns playback metrics for testing.
func (mo *MockOutput) GetMetrics() MockPlayerMetrics {
	return MockPlayerMetrics{
		PlayCount: mo.playCount.Load(),
		StopCount: mo.stopCount.Load(),
	}
}

// MockPlayerMetrics contains playback metrics for testing.
type MockPlayerMetrics struct {
	PlayCount int64
	StopCount int64
}

// MockPlayback is a simulated playback handle.
type MockPlayback struct {
	Clip *Clip

	owner   *MockOutput
	state   atomic.Int32
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// Finish ends the playback as if the clip ran out.
func (pb *MockPlayback) Finish() {
	pb.once.Do(func() {
		pb.state.Store(int32(StateStopped))
		close(pb.done)
	})
}

// Stopped reports whether the playback was interrupted rather than finished.
func (pb *MockPlayback) Stopped() bool {
	return pb.stopped.Load()
}

func (pb *MockPlayback) IsPlaying() bool {
	return PlayerState(pb.state.Load()) == StatePlaying
}

func (pb *MockPlayback) Stop() {
	if !pb.IsPlaying() {
		return
	}
	pb.stopped.Store(true)
	pb.owner.stopCount.Add(1)
	if pb.owner.callbacks.OnStop != nil {
		pb.owner.callbacks.OnStop(pb.Clip)
	}
	pb.Finish()
}

func (pb *MockPlayback) Wait() {
	<-pb.done
}

// Ensure the implementations satisfy Output.
var (
	_ Output = (*MockOutput)(nil)
	_ Output = (*OtoOutput)(nil)
	_ Output = (*PortAudioOutput)(nil)
)
