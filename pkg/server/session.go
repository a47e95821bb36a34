package server

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/edgecam/camrelay/internal/log"
	"github.com/edgecam/camrelay/pkg/protocol"
	"github.com/edgecam/camrelay/pkg/stream"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound control messages
	maxMessageSize = 4 * 1024

	// sendBuffer is the outbound event queue per session. Frames are
	// dropped, not queued, once a viewer falls this far behind.
	sendBuffer = 64
)

// Session is one viewer websocket connection. It owns the session id that
// keys the stream registry, dispatches inbound start/stop requests, and is
// the EventSink its worker delivers events to.
type Session struct {
	id      string
	conn    *websocket.Conn
	streams *stream.Registry

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, streams *stream.Registry) *Session {
	return &Session{
		id:      uuid.NewString(),
		conn:    conn,
		streams: streams,
		send:    make(chan []byte, sendBuffer),
		closed:  make(chan struct{}),
	}
}

// Emit implements stream.EventSink. It never blocks the capture loop: when
// the viewer cannot keep up the event is dropped.
func (s *Session) Emit(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	case <-s.closed:
	default:
		log.Debug("dropping event for slow viewer", "sid", s.id, "type", msg.Type)
	}
}

// run services the connection until it closes. The read loop runs on the
// caller's goroutine; only the write pump touches the outbound side.
func (s *Session) run() {
	log.Info("viewer connected", "sid", s.id)
	go s.writePump()
	s.readLoop()
	s.closeOnce.Do(func() { close(s.closed) })
	log.Info("viewer disconnected", "sid", s.id)
}

// readLoop reads and dispatches inbound messages. On any read error the
// session's worker, if any, is stopped.
func (s *Session) readLoop() {
	defer func() {
		s.streams.Stop(s.id)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			break
		}
		s.dispatch(data)
	}
}

// dispatch handles one inbound control message.
func (s *Session) dispatch(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.emitError("invalid_message")
		return
	}

	switch msg.Type {
	case protocol.TypeStartStream:
		var req protocol.StartStreamData
		if err := msg.ParseData(&req); err != nil {
			s.emitError("invalid_cam_id")
			return
		}
		camID, err := req.CameraID()
		if err != nil {
			s.emitError("invalid_cam_id")
			return
		}
		if err := s.streams.Start(s.id, camID, s); err != nil {
			log.Warn("start_stream failed", "sid", s.id, "cam_id", camID, "err", err)
			s.emitError(err.Error())
		}

	case protocol.TypeStopStream:
		if camID, stopped := s.streams.Stop(s.id); stopped {
			if m, err := protocol.NewStreamStoppedMessage(camID); err == nil {
				s.Emit(m)
			}
		}

	default:
		log.Debug("ignoring message", "sid", s.id, "type", msg.Type)
	}
}

func (s *Session) emitError(message string) {
	if msg, err := protocol.NewStreamErrorMessage(message); err == nil {
		s.Emit(msg)
	}
}

// writePump writes outbound events to the websocket connection.
// Only this goroutine writes to the connection - no race conditions!
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.closed:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
