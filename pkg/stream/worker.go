package stream

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/edgecam/camrelay/internal/config"
	"github.com/edgecam/camrelay/internal/log"
	"github.com/edgecam/camrelay/pkg/protocol"
)

// EventSink receives a worker's outbound events. Implementations must not
// block for longer than a single transport send.
type EventSink interface {
	Emit(msg *protocol.Message)
}

// readBackoff bounds CPU spin on a stalled source.
const readBackoff = 10 * time.Millisecond

// Worker owns one capture-to-delivery pipeline for one viewer session.
// It runs the capture loop on its own goroutine and stops cooperatively:
// Stop only flips a signal, observed at the next iteration boundary.
//
// A Worker is single use. Once stopped it is discarded; a new start
// request creates a new instance.
type Worker struct {
	sid   string
	camID int

	src    Source
	proc   Processor
	sink   EventSink
	params config.Stream

	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWorker creates a worker for one session/camera pair.
func NewWorker(sid string, camID int, src Source, proc Processor, sink EventSink, params config.Stream) *Worker {
	return &Worker{
		sid:    sid,
		camID:  camID,
		src:    src,
		proc:   proc,
		sink:   sink,
		params: params,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// CamID returns the camera this worker streams.
func (w *Worker) CamID() int {
	return w.camID
}

// Start launches the capture loop. It is idempotent while a prior run is
// alive: a second call is a no-op, never a duplicate loop.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	go w.run()
}

// Stop requests cooperative shutdown and returns immediately. Worst-case
// stop latency is one loop iteration, dominated by the blocking read; no
// extra read deadline is imposed on the capture handle, so a dead network
// peer can hold that read for as long as the capture backend allows.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Done is closed once the capture loop has fully exited and the source
// has been released.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// run executes the capture loop. Every exit path releases the source and
// then emits exactly one stream_stopped event.
func (w *Worker) run() {
	defer close(w.done)
	defer w.emitStopped()
	defer w.src.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Error("stream worker panicked", "sid", w.sid, "cam_id", w.camID, "panic", r)
			w.emitError(fmt.Sprintf("rtsp_error: %v", r))
		}
	}()

	if err := w.src.Open(); err != nil {
		log.Warn("video source open failed", "sid", w.sid, "cam_id", w.camID, "err", err)
		w.emitError(fmt.Sprintf("open_error: %v", err))
		return
	}

	log.Info("stream started", "sid", w.sid, "cam_id", w.camID,
		"fps_target", w.params.FPSTarget, "stride", w.params.Stride)

	stride := uint64(w.params.Stride)
	if stride < 1 {
		stride = 1
	}
	period := time.Duration(float64(time.Second) / math.Max(1, w.params.FPSTarget))

	var (
		lastEmit time.Time
		frameIdx uint64
	)
	for !w.stopped() {
		frame, err := w.src.Read()
		if err != nil {
			log.Warn("video source read failed", "sid", w.sid, "cam_id", w.camID, "err", err)
			w.emitError(fmt.Sprintf("rtsp_error: %v", err))
			return
		}
		if frame == nil {
			// Transient miss, retry shortly.
			time.Sleep(readBackoff)
			continue
		}

		frameIdx++
		if frameIdx%stride != 0 {
			frame.Close()
			continue
		}

		now := time.Now()
		if now.Sub(lastEmit) < period {
			// Stale frames are worthless for a live view, drop rather
			// than queue.
			frame.Close()
			continue
		}
		lastEmit = now

		data, err := w.proc.Process(frame)
		frame.Close()
		if err != nil {
			// Per-frame encode failures are recovered silently.
			log.Debug("frame encode failed", "sid", w.sid, "cam_id", w.camID, "err", err)
			continue
		}

		msg, err := protocol.NewFrameMessage(w.camID, data)
		if err != nil {
			continue
		}
		w.sink.Emit(msg)
	}

	log.Info("stream stopping", "sid", w.sid, "cam_id", w.camID, "frames_read", frameIdx)
}

func (w *Worker) emitError(message string) {
	if msg, err := protocol.NewStreamErrorMessage(message); err == nil {
		w.sink.Emit(msg)
	}
}

func (w *Worker) emitStopped() {
	if msg, err := protocol.NewStreamStoppedMessage(w.camID); err == nil {
		w.sink.Emit(msg)
	}
}
