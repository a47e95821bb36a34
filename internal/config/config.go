// Package config provides configuration for the camrelay daemon.
package config

import (
	"encoding/json"
	"os"

	"github.com/edgecam/camrelay/internal/log"
)

// Default server configuration.
const (
	DefaultPort        = "5000"
	DefaultCamerasPath = "config/cameras.json"
	DefaultParamsPath  = "config/parameter_config.json"
)

// Stream holds the per-worker streaming parameters.
type Stream struct {
	// FPSTarget caps the emission rate in frames per second.
	FPSTarget float64 `json:"fps_target"`

	// MaxWidth bounds the emitted frame width in pixels.
	// Zero or negative disables resizing.
	MaxWidth int `json:"stream_max_width"`

	// JPEGQuality is the encoder quality on the 0-100 scale.
	JPEGQuality int `json:"jpeg_quality"`

	// Stride processes only every Nth captured frame.
	Stride int `json:"annotation_stride"`
}

// DefaultStream returns the streaming parameters with documented defaults.
func DefaultStream() Stream {
	return Stream{
		FPSTarget:   15,
		MaxWidth:    720,
		JPEGQuality: 60,
		Stride:      3,
	}
}

// LoadStream reads streaming parameters from a JSON file.
// Any missing or invalid value falls back to its default; a load
// failure never propagates, the caller always gets a usable record.
func LoadStream(path string) Stream {
	def := DefaultStream()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Debug("stream params not loaded, using defaults", "path", path, "err", err)
		return def
	}

	// Pointer fields so an absent key falls back to its default while an
	// explicit zero keeps its meaning (0 max width disables resizing).
	var loaded struct {
		FPSTarget   *float64 `json:"fps_target"`
		MaxWidth    *int     `json:"stream_max_width"`
		JPEGQuality *int     `json:"jpeg_quality"`
		Stride      *int     `json:"annotation_stride"`
	}
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warn("stream params malformed, using defaults", "path", path, "err", err)
		return def
	}

	s := def
	if loaded.FPSTarget != nil && *loaded.FPSTarget > 0 {
		s.FPSTarget = *loaded.FPSTarget
	}
	if loaded.MaxWidth != nil {
		s.MaxWidth = *loaded.MaxWidth
		if s.MaxWidth < 0 {
			s.MaxWidth = 0 // resizing disabled
		}
	}
	if loaded.JPEGQuality != nil && *loaded.JPEGQuality >= 0 && *loaded.JPEGQuality <= 100 {
		s.JPEGQuality = *loaded.JPEGQuality
	}
	if loaded.Stride != nil && *loaded.Stride >= 1 {
		s.Stride = *loaded.Stride
	}
	return s
}

// Port returns the listen port from the PORT env var or the default.
func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// CamerasPath returns the camera registry file path from CAMERAS_PATH or the default.
func CamerasPath() string {
	if p := os.Getenv("CAMERAS_PATH"); p != "" {
		return p
	}
	return DefaultCamerasPath
}

// ParamsPath returns the stream parameter file path from PARAMS_PATH or the default.
func ParamsPath() string {
	if p := os.Getenv("PARAMS_PATH"); p != "" {
		return p
	}
	return DefaultParamsPath
}
