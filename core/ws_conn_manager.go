package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dispatcher handles the inbound events of a connection.
type Dispatcher interface {
	Dispatch(ctx context.Context, c *Conn, e *Event)
}

// ConnManager owns the live connections: it upgrades requests, keeps the
// registry and room subscriptions in step with connection lifecycles and
// runs the per-connection read and write loops.
type ConnManager struct {
	registry   *ConnRegistry
	rooms      *RoomRouter
	dispatcher Dispatcher
	locks      *KeyedMutex
	connWg     sync.WaitGroup
	context    context.Context
	logger     *slog.Logger

	onUserConnected    func(context.Context, string)
	onUserDisconnected func(context.Context, string)
	onConnectionOpened func(context.Context, *Conn)
	onConnectionClosed func(context.Context, *Conn, []string)

	upgrader    websocket.Upgrader
	connOptions ConnOptions
}

var defaultUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ManagerOption func(*ConnManager)

func WithCheckOrigin(f func(r *http.Request) bool) ManagerOption {
	return func(m *ConnManager) {
		m.upgrader.CheckOrigin = f
	}
}

func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *ConnManager) {
		m.logger = l
	}
}

func WithConnOptions(opts ConnOptions) ManagerOption {
	return func(m *ConnManager) {
		m.connOptions = opts
	}
}

func NewConnManager(ctx context.Context, registry *ConnRegistry, rooms *RoomRouter, locks *KeyedMutex, dispatcher Dispatcher, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		registry:           registry,
		rooms:              rooms,
		dispatcher:         dispatcher,
		locks:              locks,
		context:            ctx,
		logger:             slog.Default(),
		upgrader:           defaultUpgrader,
		connOptions:        DefaultConnOptions,
		onUserConnected:    func(context.Context, string) {},
		onUserDisconnected: func(context.Context, string) {},
		onConnectionOpened: func(context.Context, *Conn) {},
		onConnectionClosed: func(context.Context, *Conn, []string) {},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// OnUserConnected is called when a user opens its first connection.
func (m *ConnManager) OnUserConnected(f func(context.Context, string)) {
	m.onUserConnected = f
}

// OnUserDisconnected is called when the last connection of a user closes.
func (m *ConnManager) OnUserDisconnected(f func(context.Context, string)) {
	m.onUserDisconnected = f
}

// OnConnectionOpened is called for every new connection before its events are read.
func (m *ConnManager) OnConnectionOpened(f func(context.Context, *Conn)) {
	m.onConnectionOpened = f
}

// OnConnectionClosed is called for every closed connection with the rooms it was subscribed to.
func (m *ConnManager) OnConnectionClosed(f func(context.Context, *Conn, []string)) {
	m.onConnectionClosed = f
}

func (m *ConnManager) IsUserConnected(username string) bool {
	return m.registry.IsConnected(username)
}

// Connect upgrades the request and serves the connection of username until it closes.
// It returns once the connection is registered.
func (m *ConnManager) Connect(username string, w http.ResponseWriter, r *http.Request) error {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		return fmt.Errorf("Upgrade: %w", err)
	}

	c := NewConn(username, ws, m.connOptions, m.logger)
	c.logger.Info("connection opened")

	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		c.writeLoop(m.context)
	}()

	m.open(c)

	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		c.readLoop(m.context, m.connOptions.MaxMessageSize, m.dispatcher.Dispatch)
		m.disconnect(c)
	}()

	return nil
}

// callbackContext outlives the request and survives shutdown long enough to
// persist presence.
func (m *ConnManager) callbackContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(m.context), 5*time.Second)
}

func (m *ConnManager) open(c *Conn) {
	ctx, cancel := m.callbackContext()
	defer cancel()

	unlock := m.locks.Lock(userKey(c.User))
	defer unlock()

	first := m.registry.Register(c)
	if first {
		m.onUserConnected(ctx, c.User)
	}
	m.onConnectionOpened(ctx, c)
}

func (m *ConnManager) disconnect(c *Conn) {
	ctx, cancel := m.callbackContext()
	defer cancel()

	unlock := m.locks.Lock(userKey(c.User))
	defer unlock()

	rooms := m.rooms.Drop(c)
	last := m.registry.Unregister(c)
	c.logger.Info("connection closed")

	m.onConnectionClosed(ctx, c, rooms)
	if last {
		m.onUserDisconnected(ctx, c.User)
	}
}

// Close closes every connection and waits for their loops to finish.
func (m *ConnManager) Close(ctx context.Context) error {
	for _, c := range m.registry.All() {
		c.Close()
	}
	done := make(chan struct{})
	go func() {
		m.connWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
