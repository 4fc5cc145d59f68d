package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrSessionClosed is returned when sending to a session that has disconnected
	ErrSessionClosed = errors.New("chat session closed")
	// ErrSendBufferFull is returned when a session is not draining its queue fast enough
	ErrSendBufferFull = errors.New("chat session send buffer full")
)

// Session is one live connection bound to a single room and a single user
type Session interface {
	ID() string
	UserID() int64
	// Send queues payload for delivery without blocking
	Send(payload []byte) error
}

// SocketConfig tunes the websocket sessions
type SocketConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultSocketConfig returns the settings used in production
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

type wsSession struct {
	id     string
	userID int64
	conn   *websocket.Conn
	cfg    SocketConfig

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newSession(conn *websocket.Conn, userID int64, cfg SocketConfig) *wsSession {
	return &wsSession{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
	}
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) UserID() int64 {
	return s.userID
}

func (s *wsSession) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// close stops the write pump once it has flushed what is already queued
func (s *wsSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// writePump owns every write to the socket
func (s *wsSession) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				zap.S().Debugw("chat session write failed", "sessionID", s.id, "error", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
