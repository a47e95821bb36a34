package stream

import (
	"sync"

	"github.com/edgecam/camrelay/internal/config"
	"github.com/edgecam/camrelay/pkg/camera"
	"github.com/edgecam/camrelay/pkg/protocol"
)

// ParamsFunc loads the streaming parameters for a worker start.
type ParamsFunc func() config.Stream

// Registry maps live session ids to their stream workers. It enforces at
// most one worker per session: starting a new stream first stops and
// replaces any prior worker, and removal always accompanies a stop.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*Worker

	cams   *camera.Registry
	params ParamsFunc

	// Seams for tests; production uses the gocv capture and pipeline.
	newSource    func(url string) Source
	newProcessor func(config.Stream) Processor
}

// NewRegistry creates a session registry over the given camera registry.
// Parameters are loaded fresh on every worker start.
func NewRegistry(cams *camera.Registry, params ParamsFunc) *Registry {
	return &Registry{
		workers:   make(map[string]*Worker),
		cams:      cams,
		params:    params,
		newSource: func(url string) Source { return NewCapture(url) },
		newProcessor: func(p config.Stream) Processor {
			return Pipeline{MaxWidth: p.MaxWidth, Quality: p.JPEGQuality}
		},
	}
}

// Start begins streaming camID to the session, replacing any worker the
// session already has. A disabled camera emits stream_stopped and starts
// nothing; that is a normal outcome, not an error. Lookup failures are
// returned to the caller and no worker is created.
func (r *Registry) Start(sid string, camID int, sink EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Swap semantics: never run two workers for one session.
	if old, ok := r.workers[sid]; ok {
		delete(r.workers, sid)
		old.Stop()
	}

	cam, err := r.cams.Get(camID)
	if err != nil {
		return err
	}
	url, enabled, err := cam.SourceURL()
	if err != nil {
		return err
	}
	if !enabled {
		if msg, err := protocol.NewStreamStoppedMessage(camID); err == nil {
			sink.Emit(msg)
		}
		return nil
	}

	params := r.params()
	w := NewWorker(sid, camID, r.newSource(url), r.newProcessor(params), sink, params)
	r.workers[sid] = w
	w.Start()
	return nil
}

// Stop removes and stops the session's worker if one exists. Stopping a
// session with no active worker is a silent no-op. Reports the stopped
// worker's camera id so the caller can acknowledge the stop.
func (r *Registry) Stop(sid string) (camID int, stopped bool) {
	r.mu.Lock()
	w, ok := r.workers[sid]
	delete(r.workers, sid)
	r.mu.Unlock()

	if !ok {
		return 0, false
	}
	w.Stop()
	return w.CamID(), true
}

// StopAll stops every registered worker. Used at shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	workers := make([]*Worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.workers = make(map[string]*Worker)
	r.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
}

// Active returns the number of sessions with a registered worker.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}
