package protocol

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
)

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(camID int, jpegData []byte) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		CamID: camID,
		Image: base64.StdEncoding.EncodeToString(jpegData),
	})
}

// NewStreamErrorMessage creates a stream_error message
func NewStreamErrorMessage(message string) (*Message, error) {
	return NewMessage(TypeStreamError, StreamErrorData{Message: message})
}

// NewStreamStoppedMessage creates a stream_stopped message
func NewStreamStoppedMessage(camID int) (*Message, error) {
	return NewMessage(TypeStreamStopped, StreamStoppedData{CamID: camID})
}

// NewStartStreamMessage creates a start_stream request for the given camera
func NewStartStreamMessage(camID int) (*Message, error) {
	return NewMessage(TypeStartStream, StartStreamData{
		CamID: json.RawMessage(strconv.Itoa(camID)),
	})
}

// NewStopStreamMessage creates a stop_stream request
func NewStopStreamMessage() (*Message, error) {
	return NewMessage(TypeStopStream, nil)
}
