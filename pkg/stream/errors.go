package stream

import "errors"

var (
	// ErrSourceUnavailable is returned when the capture handle cannot be established.
	ErrSourceUnavailable = errors.New("failed to open video source")

	// ErrSourceClosed is returned when reading from a source that is not open.
	ErrSourceClosed = errors.New("video source not open")
)
