package devserver

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second
	// pongWait is how long a client may stay silent before it is presumed
	// gone. Pings go out at pingPeriod so a healthy client always answers
	// in time.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxAckSize bounds inbound frames; clients only ever send acks.
	maxAckSize = 512
	// sendBufferSize is the per-client outbound queue. A client that falls
	// this far behind is dropped rather than slowing the broadcast.
	sendBufferSize = 32
)

// session is one connected client. Frames flow out through a buffered
// channel drained by writePump; the read pump only consumes acks.
type session struct {
	id      uuid.UUID
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	lastAck atomic.Uint64
}

func newSession(conn *websocket.Conn) *session {
	return &session{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking. It reports false
// when the client's buffer is full.
func (s *session) enqueue(frame []byte) bool {
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// close releases the session. Safe to call more than once; the send channel
// is never closed so a concurrent broadcast cannot panic.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// writePump drains the send queue onto the connection and keeps the client
// alive with pings. It owns all writes to the connection.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-s.done:
			return

		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames until the connection drops. Acks advance
// the session's last acknowledged revision; everything else is ignored.
func (s *session) readPump(onClose func()) {
	defer onClose()
	defer s.close()

	s.conn.SetReadLimit(maxAckSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame ackFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != msgAck {
			continue
		}
		s.lastAck.Store(uint64(frame.Revision))
	}
}
