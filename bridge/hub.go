package bridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/foreground"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNoAgent        = errors.New("bridge: no agent connected")
	ErrUnknownMessage = errors.New("bridge: unknown message type")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPongWait     = 60 * time.Second
	maxMessageSize      = 64 << 10
)

// Engine is the part of [goGuard.Engine] the hub drives.
type Engine interface {
	HandleScreenEvent(ctx context.Context, ev goGuard.ScreenEvent) error
	Resolve(ctx context.Context, ticket string, result goGuard.Result, reason string) error
}

var _ Engine = (*goGuard.Engine)(nil)

// Options tune a [Hub]. Zero values select defaults.
type Options struct {
	WriteTimeout time.Duration
	PongWait     time.Duration
	// CheckOrigin is passed to the websocket upgrader. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
	Logger      *zap.Logger
	Now         func() time.Time
}

type agent struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed chan struct{}
}

// Hub owns the agent connection.
type Hub struct {
	feed     *foreground.Feed
	upgrader websocket.Upgrader
	opts     Options
	log      *zap.Logger

	mu     sync.RWMutex
	engine Engine
	agent  *agent
}

var (
	_ goGuard.Presenter         = (*Hub)(nil)
	_ goGuard.Suspender         = (*Hub)(nil)
	_ goGuard.Resumer           = (*Hub)(nil)
	_ goGuard.ChallengeProvider = (*Hub)(nil)
)

// NewHub returns a hub that records transitions into feed.
func NewHub(feed *foreground.Feed, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		opts: opts,
		log:  opts.Logger.Named("bridge"),
	}
}

// Attach sets the engine that receives screen signals and outcomes. The engine is built
// with the hub as its presenter, so it is attached after construction.
func (h *Hub) Attach(e Engine) {
	h.mu.Lock()
	h.engine = e
	h.mu.Unlock()
}

// Connected reports whether an agent is attached.
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.agent != nil
}

// ServeHTTP upgrades the request and serves the agent until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	a := &agent{conn: conn, closed: make(chan struct{})}
	h.mu.Lock()
	prev := h.agent
	h.agent = a
	h.mu.Unlock()
	if prev != nil {
		h.log.Info("agent replaced", zap.String("remote", prev.conn.RemoteAddr().String()))
		_ = prev.conn.Close()
	}
	h.log.Info("agent connected", zap.String("remote", conn.RemoteAddr().String()))

	h.readLoop(r.Context(), a)

	h.mu.Lock()
	if h.agent == a {
		h.agent = nil
	}
	h.mu.Unlock()
	close(a.closed)
	_ = conn.Close()
	h.log.Info("agent disconnected", zap.String("remote", conn.RemoteAddr().String()))
}

func (h *Hub) readLoop(ctx context.Context, a *agent) {
	a.conn.SetReadLimit(maxMessageSize)
	_ = a.conn.SetReadDeadline(h.opts.Now().Add(h.opts.PongWait))
	a.conn.SetPongHandler(func(string) error {
		return a.conn.SetReadDeadline(h.opts.Now().Add(h.opts.PongWait))
	})

	for {
		var msg Message
		if err := a.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("agent read failed", zap.Error(err))
			}
			return
		}
		_ = a.conn.SetReadDeadline(h.opts.Now().Add(h.opts.PongWait))

		if err := h.dispatch(ctx, msg); err != nil {
			h.log.Warn("agent message rejected", zap.String("type", msg.Type), zap.Error(err))
			_ = a.write(h.opts.WriteTimeout, Message{Type: TypeError, Reason: err.Error()})
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, msg Message) error {
	switch msg.Type {
	case TypeForeground:
		at := msg.At
		if at.IsZero() {
			at = h.opts.Now()
		}
		return h.feed.Push(goGuard.ForegroundEvent{App: msg.App, At: at})
	case TypeScreenOff:
		return h.screen(ctx, goGuard.ScreenOff)
	case TypeUserPresent:
		return h.screen(ctx, goGuard.UserPresent)
	case TypeOutcome:
		result, err := goGuard.ParseResult(msg.Result)
		if err != nil {
			return err
		}
		e := h.currentEngine()
		if e == nil {
			return goGuard.ErrEngineStopped
		}
		return e.Resolve(ctx, msg.Ticket, result, msg.Reason)
	default:
		return ErrUnknownMessage
	}
}

func (h *Hub) screen(ctx context.Context, ev goGuard.ScreenEvent) error {
	e := h.currentEngine()
	if e == nil {
		return goGuard.ErrEngineStopped
	}
	return e.HandleScreenEvent(ctx, ev)
}

func (h *Hub) currentEngine() Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engine
}

// send writes msg to the connected agent.
func (h *Hub) send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	a := h.agent
	h.mu.RUnlock()
	if a == nil {
		return ErrNoAgent
	}
	timeout := h.opts.WriteTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	return a.write(timeout, msg)
}

func (a *agent) write(timeout time.Duration, msg Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.conn.SetWriteDeadline(time.Now().Add(timeout))
	return a.conn.WriteJSON(msg)
}

// Ping keeps the connection alive. Callers run it on an interval shorter than PongWait.
func (h *Hub) Ping() error {
	h.mu.RLock()
	a := h.agent
	h.mu.RUnlock()
	if a == nil {
		return ErrNoAgent
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout))
}

// KeepAlive pings the agent every interval until ctx ends.
func (h *Hub) KeepAlive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = h.opts.PongWait * 9 / 10
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := h.Ping(); err != nil && !errors.Is(err, ErrNoAgent) {
				h.log.Debug("agent ping failed", zap.Error(err))
			}
		}
	}
}

// Close disconnects the agent, if any.
func (h *Hub) Close() error {
	h.mu.Lock()
	a := h.agent
	h.agent = nil
	h.mu.Unlock()
	if a == nil {
		return nil
	}
	a.mu.Lock()
	_ = a.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
		time.Now().Add(time.Second))
	a.mu.Unlock()
	return a.conn.Close()
}

func (h *Hub) Present(ctx context.Context, ch goGuard.Challenge) error {
	return h.send(ctx, challengeMessage(TypePresent, ch))
}

func (h *Hub) Dismiss(ctx context.Context, app goGuard.AppID) error {
	return h.send(ctx, Message{Type: TypeDismiss, App: app})
}

func (h *Hub) Suspend(ctx context.Context) error {
	return h.send(ctx, Message{Type: TypeSuspend})
}

func (h *Hub) Resume(ctx context.Context, app goGuard.AppID) error {
	return h.send(ctx, Message{Type: TypeResume, App: app})
}

func (h *Hub) RequestChallenge(ctx context.Context, ch goGuard.Challenge) error {
	return h.send(ctx, challengeMessage(TypeChallenge, ch))
}
