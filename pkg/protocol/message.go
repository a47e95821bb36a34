// Package protocol defines the WebSocket message types exchanged between
// the camrelay daemon and its viewer clients.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Viewer → Server messages
	TypeStartStream MessageType = "start_stream" // Begin streaming a camera
	TypeStopStream  MessageType = "stop_stream"  // Stop the active stream

	// Server → Viewer messages
	TypeFrame         MessageType = "frame"          // Encoded video frame
	TypeStreamError   MessageType = "stream_error"   // Stream-terminating failure
	TypeStreamStopped MessageType = "stream_stopped" // Worker finished, normal or not
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Viewer → Server Message Types
// =============================================================================

// StartStreamData selects the camera to stream
type StartStreamData struct {
	CamID json.RawMessage `json:"cam_id"` // Tolerates both 1 and "1" on the wire
}

// CameraID returns the camera id as an integer.
// Accepts a JSON number or a quoted numeric string.
func (d StartStreamData) CameraID() (int, error) {
	raw := bytes.Trim(d.CamID, `"`)
	id, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid cam_id %q", string(d.CamID))
	}
	return id, nil
}

// =============================================================================
// Server → Viewer Message Types
// =============================================================================

// FrameData contains one encoded video frame
type FrameData struct {
	CamID int    `json:"cam_id"`
	Image string `json:"image"` // base64-encoded JPEG bytes
}

// StreamErrorData reports a stream-terminating failure
type StreamErrorData struct {
	Message string `json:"message"`
}

// StreamStoppedData marks the end of a worker's lifetime
type StreamStoppedData struct {
	CamID int `json:"cam_id"`
}
