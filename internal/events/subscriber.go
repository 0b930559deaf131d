package events

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polyswarm/go-polyswarmd/pkg/messages"
)

const (
	// subscriberQueueSize bounds each subscriber's outbound queue. The
	// reference deployment used unbounded queues; bounding them lets the hub
	// shed slow consumers instead of buffering without limit.
	subscriberQueueSize = 256

	writeWait    = time.Second * 10
	maxFrameSize = 1 << 20
)

// Subscriber is one websocket client of a chain's event stream. It owns a
// bounded outbound queue fed by the hub and two pumps moving frames to and
// from the socket.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn

	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewSubscriber wraps an upgraded websocket connection.
func NewSubscriber(hub *Hub, conn *websocket.Conn) *Subscriber {
	return &Subscriber{
		hub:   hub,
		conn:  conn,
		queue: make(chan []byte, subscriberQueueSize),
		done:  make(chan struct{}),
	}
}

// Run services the connection until the client disconnects or the hub drops
// the subscriber. It blocks; the caller owns the HTTP handler goroutine.
func (s *Subscriber) Run(startTime string) {
	connected, err := jsonAPI.Marshal(messages.NewConnected(startTime))
	if err == nil {
		s.enqueue(connected)
	}

	go s.writePump()
	s.readPump()

	s.hub.Unregister(s)
	s.Close()
}

// enqueue appends a frame to the outbound queue without blocking. Reports
// false when the queue is full, which marks the subscriber for drop.
func (s *Subscriber) enqueue(frame []byte) bool {
	select {
	case s.queue <- frame:
		return true
	default:
		return false
	}
}

// Close terminates both pumps and the underlying socket. Safe to call more
// than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// closeNormal tells the client the gateway is going away before closing.
func (s *Subscriber) closeNormal() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.Close()
}

// closeSlow closes the socket with a distinguished code telling the client
// it was dropped for not keeping up.
func (s *Subscriber) closeSlow() {
	msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber queue overflow")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.Close()
}

func (s *Subscriber) writePump() {
	for {
		select {
		case frame := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// readPump consumes and discards client frames so that a client-initiated
// close (or any transport error) is observed promptly.
func (s *Subscriber) readPump() {
	s.conn.SetReadLimit(maxFrameSize)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
