package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Conn is one live websocket connection of a user.
type Conn struct {
	ID        string
	User      string
	CreatedAt time.Time

	ws      *websocket.Conn
	send    chan *Event
	done    chan struct{}
	limiter *rate.Limiter
	logger  *slog.Logger

	// mu guards closed and rooms. Room changes take mu before the router lock.
	mu     sync.Mutex
	closed bool
	rooms  map[string]struct{}
}

type ConnOptions struct {
	SendBuffer      int
	MaxMessageSize  int64
	EventsPerSecond float64
	EventBurst      int
}

var DefaultConnOptions = ConnOptions{
	SendBuffer:      256,
	MaxMessageSize:  64 * 1024,
	EventsPerSecond: 20,
	EventBurst:      40,
}

// NewConn creates a connection for user. ws may be nil for connections
// that are driven without a socket.
func NewConn(user string, ws *websocket.Conn, opts ConnOptions, logger *slog.Logger) *Conn {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultConnOptions.SendBuffer
	}
	id := uuid.New().String()
	c := &Conn{
		ID:        id,
		User:      user,
		CreatedAt: time.Now(),
		ws:        ws,
		send:      make(chan *Event, opts.SendBuffer),
		done:      make(chan struct{}),
		rooms:     make(map[string]struct{}),
		logger:    logger.With(slog.String("conn", id), slog.String("user", user)),
	}
	if opts.EventsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.EventsPerSecond), max(opts.EventBurst, 1))
	}
	return c
}

// Send queues e for the connection without blocking.
// It reports false when the connection is closed. A connection whose
// queue is full is closed, since it can no longer keep up.
func (c *Conn) Send(e *Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		droppedSends.Inc()
		return false
	}
	select {
	case c.send <- e:
		return true
	default:
		droppedSends.Inc()
		c.logger.Warn("send queue full, closing connection")
		c.closeLocked()
		return false
	}
}

// Close marks the connection closed. It is safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Conn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (c *Conn) InRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

func (c *Conn) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

func (c *Conn) sendError(err error, event string) {
	reply, encErr := NewEvent(ErrorEvent, ErrorPayload{Message: PublicMessage(err), Event: event})
	if encErr != nil {
		c.logger.Error(encErr.Error())
		return
	}
	c.Send(reply)
}

// readLoop decodes inbound events and hands them to dispatch one at a time,
// so the events of a connection are handled in the order they were sent.
func (c *Conn) readLoop(ctx context.Context, maxMessageSize int64, dispatch func(context.Context, *Conn, *Event)) {
	c.logger.Debug("read loop started")
	defer c.logger.Debug("read loop stopped")

	if maxMessageSize > 0 {
		c.ws.SetReadLimit(maxMessageSize)
	}
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		format, r, err := c.ws.NextReader()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.logger.Info(fmt.Sprintf("expected close: %v", err))
			case websocket.IsUnexpectedCloseError(err):
				c.logger.Error(fmt.Sprintf("unexpected close: %v", err))
			default:
				c.logger.Debug(fmt.Sprintf("NextReader: %v", err))
			}
			return
		}

		if format != websocket.TextMessage {
			c.logger.Warn(fmt.Sprintf("unexpected message format: %v", format))
			continue
		}

		var event Event
		if err := DecodeEvent(r, &event); err != nil {
			c.logger.Debug(err.Error())
			c.sendError(NewError(ErrInvalidInput, "malformed event"), "")
			continue
		}

		if !c.allow() {
			eventsHandled.WithLabelValues(event.Type, "rate_limited").Inc()
			c.sendError(ErrRateLimited, event.Type)
			continue
		}

		c.logger.Debug(event.String())
		dispatch(ctx, c, &event)
	}
}

func (c *Conn) writeLoop(ctx context.Context) {
	c.logger.Debug("write loop started")
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.logger.Debug("write loop stopped")
	}()

	for {
		select {
		case e := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Debug(fmt.Sprintf("NextWriter: %v", err))
				return
			}
			if err := EncodeEvent(w, e); err != nil {
				c.logger.Error(err.Error())
			}
			if err := w.Close(); err != nil {
				c.logger.Debug(fmt.Sprintf("closing writer: %v", err))
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ctx.Done():
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug(fmt.Sprintf("writing ping: %v", err))
				return
			}
		}
	}
}
