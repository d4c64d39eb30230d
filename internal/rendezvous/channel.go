package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/signal"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	defaultDialTimeout    = 10 * time.Second
	defaultMaxAttempts    = 5
	reconnectBaseDelay    = time.Second
	reconnectMaxDelay     = 10 * time.Second
	defaultJoinRetryDelay = 2 * time.Second
)

// ErrSignalingUnavailable is reported when the connection attempt budget is
// exhausted. The session stays open; negotiation simply cannot proceed until
// a new Channel is connected.
var ErrSignalingUnavailable = errors.New("signaling unavailable")

// Options tunes the connection behavior of a Channel.
type Options struct {
	DialTimeout time.Duration
	MaxAttempts int

	// JoinRetryDelay is how long to wait before resending a rejected
	// join. A reconnect can race the server reaping our previous
	// connection, so a "room is full" rejection is retried until the
	// join is acknowledged.
	JoinRetryDelay time.Duration
}

func (o *Options) fill() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.JoinRetryDelay <= 0 {
		o.JoinRetryDelay = defaultJoinRetryDelay
	}
}

// Channel maintains a long-lived, reconnecting WebSocket connection to the
// rendezvous server and fans inbound envelopes out to typed subscribers.
// Delivery order is guaranteed only within one continuous connection.
type Channel struct {
	serverURL string
	opts      Options

	outgoing chan *signal.Envelope
	done     chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	room      string // room to (re)join after every connect
	joined    bool   // join already sent on the current connection
	joinAcked bool   // room_joined received for the current room
	closed    bool
	subs      map[string][]chan *signal.Envelope
	status    func(Status)
}

// NewChannel creates a channel for the given ws:// or wss:// URL. Connect
// must be called before anything is delivered.
func NewChannel(serverURL string, opts Options) *Channel {
	opts.fill()
	return &Channel{
		serverURL: serverURL,
		opts:      opts,
		outgoing:  make(chan *signal.Envelope, 32),
		done:      make(chan struct{}),
		subs:      make(map[string][]chan *signal.Envelope),
	}
}

// Connect dials the server, retrying up to the configured attempt count.
// On success a background goroutine keeps the connection alive, replaying
// the pending join after every reconnect. Exhaustion of the initial budget
// is returned; later outages are reported through the status callback.
func (c *Channel) Connect(ctx context.Context) error {
	if _, err := url.Parse(c.serverURL); err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	c.notify(StatusConnecting)
	conn, err := c.dialWithRetry(ctx)
	if err != nil {
		c.notify(StatusUnavailable)
		return err
	}

	c.attach(conn)
	c.notify(StatusConnected)
	go c.run(ctx, conn)
	return nil
}

// Join registers the room to join. Idempotent: calling it again with the
// same room does not resend, and calling it before Connect buffers the
// join until the connection is up.
func (c *Channel) Join(room string) {
	c.mu.Lock()
	if c.closed || (c.room == room && c.joined) {
		c.mu.Unlock()
		return
	}
	c.room = room
	c.joinAcked = false
	connected := c.conn != nil
	if connected {
		c.joined = true
	}
	c.mu.Unlock()

	if connected {
		c.Send(&signal.Envelope{Type: signal.TypeJoinRoom, Room: room})
	}
}

// Send queues an envelope for delivery. Fire and forget: envelopes queued
// while the connection is down ride over to the next connection, and a full
// queue drops the envelope rather than blocking the caller.
func (c *Channel) Send(env *signal.Envelope) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	select {
	case c.outgoing <- env:
	default:
		log.Warn().Str("module", "rendezvous").Str("type", env.Type).Msg("outgoing queue full, envelope dropped")
	}
}

// Close shuts the channel down. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
		conn.Close()
	}
	seen := make(map[chan *signal.Envelope]bool)
	for _, chans := range subs {
		for _, ch := range chans {
			if !seen[ch] {
				seen[ch] = true
				close(ch)
			}
		}
	}
	c.notify(StatusClosed)
}

func (c *Channel) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	delay := reconnectBaseDelay
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = c.opts.DialTimeout

		conn, _, err := dialer.DialContext(ctx, c.serverURL, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Warn().Str("module", "rendezvous").Int("attempt", attempt).Err(err).Msg("dial failed")
		if attempt == c.opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, ErrSignalingUnavailable
		case <-time.After(delay):
		}
		if delay *= 2; delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrSignalingUnavailable, lastErr)
}

// attach installs a fresh connection and replays the pending join, which
// must be idempotent on the server side because the prior connection may
// have delivered it already.
func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.joined = false
	c.joinAcked = false
	room := c.room
	if room != "" {
		c.joined = true
	}
	c.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if room != "" {
		c.Send(&signal.Envelope{Type: signal.TypeJoinRoom, Room: room})
	}
}

// run owns the connection lifecycle: it reads until the connection drops,
// then redials until the attempt budget runs out.
func (c *Channel) run(ctx context.Context, conn *websocket.Conn) {
	for {
		stop := make(chan struct{})
		go c.writePump(conn, stop)
		c.readLoop(conn)
		close(stop)
		conn.Close()

		c.mu.Lock()
		closed := c.closed
		c.conn = nil
		c.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}

		c.notify(StatusReconnecting)
		next, err := c.dialWithRetry(ctx)
		if err != nil {
			log.Error().Str("module", "rendezvous").Err(err).Msg("reconnect exhausted")
			c.notify(StatusUnavailable)
			return
		}
		c.attach(next)
		c.notify(StatusConnected)
		conn = next
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := signal.Parse(data)
		if err != nil {
			log.Warn().Str("module", "rendezvous").Err(err).Msg("bad envelope")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Channel) writePump(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-stop:
			return

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
