// Package camera provides the camera registry: the mapping from camera id
// to its stream source and enablement, persisted as a JSON file.
package camera

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no camera exists for an id.
	ErrNotFound = errors.New("camera not found")

	// ErrEmptyURL is returned when a camera has no stream source configured.
	ErrEmptyURL = errors.New("rtsp url empty")
)

// Camera describes one configured video source.
// The URL may be an RTSP/network address, or a purely numeric string
// meaning a local capture-device index.
type Camera struct {
	ID            int    `json:"id"`
	Name          string `json:"name,omitempty"`
	RTSPURL       string `json:"rtsp_url"`
	StreamEnabled bool   `json:"stream_enabled"`
}

// SourceURL returns the camera's stream source and whether streaming is
// enabled for it. Fails with ErrEmptyURL when no source is configured.
func (c Camera) SourceURL() (string, bool, error) {
	url := strings.TrimSpace(c.RTSPURL)
	if url == "" {
		return "", false, ErrEmptyURL
	}
	return url, c.StreamEnabled, nil
}
