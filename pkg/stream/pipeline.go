package stream

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Processor turns a raw frame into a compressed image buffer.
type Processor interface {
	Process(Frame) ([]byte, error)
}

// Pipeline downscales frames to a maximum width and encodes them as JPEG.
// MaxWidth <= 0 disables resizing.
type Pipeline struct {
	MaxWidth int
	Quality  int
}

// Process resizes the frame if it is wider than MaxWidth, keeping the
// aspect ratio, then encodes it as JPEG at the configured quality.
// The caller keeps ownership of the input frame.
func (p Pipeline) Process(frame Frame) ([]byte, error) {
	mf, ok := frame.(*matFrame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}

	src := mf.mat
	enc := src
	if w := src.Cols(); p.MaxWidth > 0 && w > p.MaxWidth {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(src, &resized,
			image.Pt(p.MaxWidth, scaledHeight(w, src.Rows(), p.MaxWidth)),
			0, 0, gocv.InterpolationArea)
		enc = resized
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, enc,
		[]int{gocv.IMWriteJpegQuality, p.Quality})
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, so hand back a copy.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// scaledHeight returns the height after scaling width down to maxWidth,
// preserving the aspect ratio. Never returns less than 1.
func scaledHeight(width, height, maxWidth int) int {
	scale := float64(maxWidth) / float64(width)
	h := int(float64(height) * scale)
	if h < 1 {
		h = 1
	}
	return h
}
