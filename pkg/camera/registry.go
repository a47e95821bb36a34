package camera

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
)

// Registry manages the set of configured cameras.
// It is safe for concurrent use by the transport's request handlers.
type Registry struct {
	mu      sync.RWMutex
	cameras map[int]Camera
	path    string
}

// NewRegistry creates an empty registry persisted at path.
func NewRegistry(path string) *Registry {
	return &Registry{
		cameras: make(map[int]Camera),
		path:    path,
	}
}

// Load reads the registry file. A missing file leaves the registry empty
// and is not an error; a malformed file is.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cameras file: %w", err)
	}

	// File shape: {"1": {"rtsp_url": "...", "stream_enabled": true}, ...}
	// stream_enabled defaults to true when absent.
	var raw map[string]struct {
		Name          string `json:"name"`
		RTSPURL       string `json:"rtsp_url"`
		StreamEnabled *bool  `json:"stream_enabled"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse cameras file: %w", err)
	}

	cameras := make(map[int]Camera, len(raw))
	for key, entry := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid camera id %q", key)
		}
		enabled := true
		if entry.StreamEnabled != nil {
			enabled = *entry.StreamEnabled
		}
		cameras[id] = Camera{
			ID:            id,
			Name:          entry.Name,
			RTSPURL:       entry.RTSPURL,
			StreamEnabled: enabled,
		}
	}

	r.mu.Lock()
	r.cameras = cameras
	r.mu.Unlock()
	return nil
}

// Save writes the registry back to its file.
func (r *Registry) Save() error {
	r.mu.RLock()
	raw := make(map[string]Camera, len(r.cameras))
	for id, cam := range r.cameras {
		raw[strconv.Itoa(id)] = cam
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cameras: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("write cameras file: %w", err)
	}
	return nil
}

// Get retrieves a camera by id.
func (r *Registry) Get(id int) (Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.cameras[id]
	if !ok {
		return Camera{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return cam, nil
}

// Put adds or replaces a camera.
func (r *Registry) Put(cam Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cameras[cam.ID] = cam
}

// Delete removes a camera by id.
func (r *Registry) Delete(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cameras, id)
}

// List returns all cameras ordered by id.
func (r *Registry) List() []Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cameras := make([]Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		cameras = append(cameras, cam)
	}
	sort.Slice(cameras, func(i, j int) bool { return cameras[i].ID < cameras[j].ID })
	return cameras
}
