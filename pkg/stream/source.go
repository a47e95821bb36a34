package stream

import (
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Frame is one decoded raw image from a video source. The iteration that
// produced a Frame owns its memory and must Close it when done.
type Frame interface {
	Close()
}

// Source yields raw video frames from a single camera. A Source is owned by
// exactly one worker and is only touched from that worker's goroutine.
type Source interface {
	// Open establishes the capture handle.
	Open() error

	// Read pulls the next available frame. A nil frame with a nil error is
	// a transient miss: live network sources routinely drop frames, so
	// callers retry rather than treat it as end of stream. A non-nil error
	// is fatal to the stream.
	Read() (Frame, error)

	// Close releases the handle. Idempotent and safe if never opened.
	Close()
}

// Capture reads frames from an RTSP/network URL or a local capture device
// using OpenCV. A purely numeric URL selects the local device at that index.
type Capture struct {
	url string
	cap *gocv.VideoCapture
}

// NewCapture creates a capture source for the given URL or device index.
func NewCapture(url string) *Capture {
	return &Capture{url: url}
}

// Open resolves the source and establishes the capture handle.
func (c *Capture) Open() error {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, numErr := strconv.Atoi(strings.TrimSpace(c.url)); numErr == nil {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(c.url)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return ErrSourceUnavailable
	}
	c.cap = vc
	return nil
}

// Read pulls the next frame from the capture handle.
func (c *Capture) Read() (Frame, error) {
	if c.cap == nil {
		return nil, ErrSourceClosed
	}
	mat := gocv.NewMat()
	if ok := c.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, nil
	}
	return &matFrame{mat: mat}, nil
}

// Close releases the capture handle.
func (c *Capture) Close() {
	if c.cap != nil {
		c.cap.Close()
		c.cap = nil
	}
}

// matFrame wraps an OpenCV Mat as a Frame.
type matFrame struct {
	mat gocv.Mat
}

func (f *matFrame) Close() {
	f.mat.Close()
}
