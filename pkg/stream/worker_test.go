package stream

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edgecam/camrelay/internal/config"
	"github.com/edgecam/camrelay/pkg/protocol"
)

// fakeFrame is a no-op frame for worker tests.
type fakeFrame struct{}

func (f *fakeFrame) Close() {}

// fakeSource scripts a frame source without OpenCV.
type fakeSource struct {
	openErr   error
	frames    int           // frames to serve before misses; < 0 means unlimited
	readDelay time.Duration // per-read delay, spaces frames apart in time
	readErrAt int           // fail the Nth read; 0 means never

	mu     sync.Mutex
	opens  int
	closes int
	reads  int
}

func (s *fakeSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return s.openErr
}

func (s *fakeSource) Read() (Frame, error) {
	if s.readDelay > 0 {
		time.Sleep(s.readDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.readErrAt > 0 && s.reads >= s.readErrAt {
		return nil, errors.New("connection reset by peer")
	}
	if s.frames >= 0 && s.reads > s.frames {
		return nil, nil
	}
	return &fakeFrame{}, nil
}

func (s *fakeSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
}

func (s *fakeSource) stats() (opens, closes, reads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes, s.reads
}

// fakeProcessor encodes every frame as a fixed payload, optionally failing
// on a schedule.
type fakeProcessor struct {
	mu     sync.Mutex
	calls  int
	failAt func(call int) bool
}

func (p *fakeProcessor) Process(Frame) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failAt != nil && p.failAt(p.calls) {
		return nil, errors.New("encoder rejected frame")
	}
	return []byte{0xFF, 0xD8}, nil
}

// fakeSink records emitted events with their arrival times.
type fakeSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

type sinkEvent struct {
	msg *protocol.Message
	at  time.Time
}

func (s *fakeSink) Emit(msg *protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{msg: msg, at: time.Now()})
}

func (s *fakeSink) all() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent(nil), s.events...)
}

func (s *fakeSink) byType(t protocol.MessageType) []sinkEvent {
	var out []sinkEvent
	for _, ev := range s.all() {
		if ev.msg.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func waitDone(t *testing.T, w *Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop in time")
	}
}

func testParams() config.Stream {
	p := config.DefaultStream()
	p.FPSTarget = 1e6 // effectively unlimited
	p.Stride = 1
	return p
}

func TestWorkerOpenFailure(t *testing.T) {
	src := &fakeSource{openErr: errors.New("no route to host")}
	sink := &fakeSink{}

	w := NewWorker("sid-1", 1, src, &fakeProcessor{}, sink, testParams())
	w.Start()
	waitDone(t, w)

	if got := sink.byType(protocol.TypeStreamError); len(got) != 1 {
		t.Fatalf("stream_error events = %d, want 1", len(got))
	}
	if got := sink.byType(protocol.TypeStreamStopped); len(got) != 1 {
		t.Fatalf("stream_stopped events = %d, want 1", len(got))
	}
	if got := sink.byType(protocol.TypeFrame); len(got) != 0 {
		t.Errorf("frame events = %d, want 0", len(got))
	}
	if _, closes, _ := src.stats(); closes == 0 {
		t.Error("source was not released")
	}
}

func TestWorkerStride(t *testing.T) {
	src := &fakeSource{frames: 9, readDelay: time.Millisecond}
	sink := &fakeSink{}
	params := testParams()
	params.Stride = 3

	w := NewWorker("sid-1", 1, src, &fakeProcessor{}, sink, params)
	w.Start()

	// Source serves 9 frames then misses; only every 3rd is processed.
	waitFrames(t, sink, 3)
	w.Stop()
	waitDone(t, w)

	if got := len(sink.byType(protocol.TypeFrame)); got != 3 {
		t.Errorf("frame events = %d, want 3 (frames 3, 6, 9)", got)
	}
	if got := len(sink.byType(protocol.TypeStreamError)); got != 0 {
		t.Errorf("stream_error events = %d, want 0", got)
	}
}

// waitFrames blocks until at least n frame events arrived.
func waitFrames(t *testing.T, sink *fakeSink, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.byType(protocol.TypeFrame)) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frame events", n)
}

func TestWorkerRateLimit(t *testing.T) {
	src := &fakeSource{frames: -1, readDelay: time.Millisecond}
	sink := &fakeSink{}
	params := testParams()
	params.FPSTarget = 20 // 50ms minimum spacing

	w := NewWorker("sid-1", 1, src, &fakeProcessor{}, sink, params)
	w.Start()
	waitFrames(t, sink, 3)
	w.Stop()
	waitDone(t, w)

	frames := sink.byType(protocol.TypeFrame)
	period := 50 * time.Millisecond
	tolerance := 10 * time.Millisecond
	for i := 1; i < len(frames); i++ {
		if gap := frames[i].at.Sub(frames[i-1].at); gap < period-tolerance {
			t.Errorf("frames %d and %d emitted %v apart, want >= %v", i-1, i, gap, period)
		}
	}

	if _, _, reads := src.stats(); reads <= len(frames) {
		t.Errorf("reads = %d, frames = %d; rate limiting should drop frames", reads, len(frames))
	}
}

func TestWorkerStopEmitsStoppedExactlyOnce(t *testing.T) {
	src := &fakeSource{frames: -1, readDelay: time.Millisecond}
	sink := &fakeSink{}

	w := NewWorker("sid-1", 4, src, &fakeProcessor{}, sink, testParams())
	w.Start()
	waitFrames(t, sink, 1)
	w.Stop()
	w.Stop() // second stop must be harmless
	waitDone(t, w)

	stopped := sink.byType(protocol.TypeStreamStopped)
	if len(stopped) != 1 {
		t.Fatalf("stream_stopped events = %d, want exactly 1", len(stopped))
	}

	var data protocol.StreamStoppedData
	if err := stopped[0].msg.ParseData(&data); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if data.CamID != 4 {
		t.Errorf("stream_stopped cam_id = %d, want 4", data.CamID)
	}

	// stream_stopped is the final event of the worker's lifetime.
	events := sink.all()
	if events[len(events)-1].msg.Type != protocol.TypeStreamStopped {
		t.Error("stream_stopped must be the last event emitted")
	}
}

func TestWorkerStartIdempotent(t *testing.T) {
	src := &fakeSource{frames: -1, readDelay: time.Millisecond}
	sink := &fakeSink{}

	w := NewWorker("sid-1", 1, src, &fakeProcessor{}, sink, testParams())
	w.Start()
	w.Start()
	waitFrames(t, sink, 1)
	w.Stop()
	waitDone(t, w)

	if opens, _, _ := src.stats(); opens != 1 {
		t.Errorf("source opened %d times, want 1 (second Start must be a no-op)", opens)
	}
}

func TestWorkerReadErrorEndsLoop(t *testing.T) {
	src := &fakeSource{frames: -1, readDelay: time.Millisecond, readErrAt: 5}
	sink := &fakeSink{}

	w := NewWorker("sid-1", 2, src, &fakeProcessor{}, sink, testParams())
	w.Start()
	waitDone(t, w)

	errs := sink.byType(protocol.TypeStreamError)
	if len(errs) != 1 {
		t.Fatalf("stream_error events = %d, want 1", len(errs))
	}
	var data protocol.StreamErrorData
	if err := errs[0].msg.ParseData(&data); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if data.Message == "" {
		t.Error("stream_error should carry a descriptive message")
	}
	if got := len(sink.byType(protocol.TypeStreamStopped)); got != 1 {
		t.Errorf("stream_stopped events = %d, want 1", got)
	}
	if _, closes, _ := src.stats(); closes == 0 {
		t.Error("source was not released after read failure")
	}
}

func TestWorkerEncodeFailureIsSkipped(t *testing.T) {
	src := &fakeSource{frames: 6, readDelay: time.Millisecond}
	sink := &fakeSink{}
	proc := &fakeProcessor{failAt: func(call int) bool { return call%2 == 0 }}

	w := NewWorker("sid-1", 1, src, proc, sink, testParams())
	w.Start()
	waitFrames(t, sink, 3)
	w.Stop()
	waitDone(t, w)

	if got := len(sink.byType(protocol.TypeStreamError)); got != 0 {
		t.Errorf("stream_error events = %d, want 0 (encode failures are silent)", got)
	}
	if got := len(sink.byType(protocol.TypeFrame)); got != 3 {
		t.Errorf("frame events = %d, want 3 of 6 (every other encode fails)", got)
	}
}

func TestWorkerFramePayload(t *testing.T) {
	src := &fakeSource{frames: 1, readDelay: time.Millisecond}
	sink := &fakeSink{}

	w := NewWorker("sid-1", 9, src, &fakeProcessor{}, sink, testParams())
	w.Start()
	waitFrames(t, sink, 1)
	w.Stop()
	waitDone(t, w)

	frames := sink.byType(protocol.TypeFrame)
	var data protocol.FrameData
	if err := frames[0].msg.ParseData(&data); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if data.CamID != 9 {
		t.Errorf("frame cam_id = %d, want 9", data.CamID)
	}
	if data.Image == "" {
		t.Error("frame image payload is empty")
	}
}

func TestWorkerStopBeforeAnyFrame(t *testing.T) {
	src := &fakeSource{frames: 0, readDelay: time.Millisecond} // only misses
	sink := &fakeSink{}

	w := NewWorker("sid-1", 1, src, &fakeProcessor{}, sink, testParams())
	w.Start()
	time.Sleep(30 * time.Millisecond)
	w.Stop()
	waitDone(t, w)

	if got := len(sink.byType(protocol.TypeFrame)); got != 0 {
		t.Errorf("frame events = %d, want 0", got)
	}
	if got := len(sink.byType(protocol.TypeStreamStopped)); got != 1 {
		t.Errorf("stream_stopped events = %d, want 1", got)
	}
}

func ExampleWorker() {
	// A worker relays one camera to one session until stopped.
	src := &fakeSource{frames: 3}
	sink := &fakeSink{}
	params := config.DefaultStream()
	params.FPSTarget = 1000

	w := NewWorker("session", 1, src, &fakeProcessor{}, sink, params)
	w.Start()
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	<-w.Done()

	fmt.Println(len(sink.byType(protocol.TypeStreamStopped)), "stream_stopped event")
	// Output: 1 stream_stopped event
}
