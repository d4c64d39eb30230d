package rendezvous

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/signal"
)

// Status describes the connection state of a Channel.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusReconnecting
	StatusUnavailable
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusUnavailable:
		return "unavailable"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// OnStatus registers a callback for connection state changes. Must be set
// before Connect.
func (c *Channel) OnStatus(fn func(Status)) {
	c.mu.Lock()
	c.status = fn
	c.mu.Unlock()
}

func (c *Channel) notify(s Status) {
	c.mu.Lock()
	fn := c.status
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Subscribe returns a channel receiving every inbound envelope whose type
// matches one of the given types. The channel is closed when the Channel
// closes. Slow subscribers lose envelopes rather than stalling the reader.
func (c *Channel) Subscribe(types ...string) <-chan *signal.Envelope {
	ch := make(chan *signal.Envelope, 32)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	for _, t := range types {
		c.subs[t] = append(c.subs[t], ch)
	}
	return ch
}

func (c *Channel) dispatch(env *signal.Envelope) {
	c.observeJoinOutcome(env)

	c.mu.Lock()
	chans := append([]chan *signal.Envelope(nil), c.subs[env.Type]...)
	c.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- env:
		default:
			log.Warn().Str("module", "rendezvous").Str("type", env.Type).Msg("subscriber backpressure, envelope dropped")
		}
	}
}

// observeJoinOutcome keeps join_room self-correcting. A reconnect shows up
// at the server as a brand-new connection; until the stale one is reaped
// the room looks full and the replayed join is rejected. The rejection is
// retried until the server acknowledges with room_joined.
func (c *Channel) observeJoinOutcome(env *signal.Envelope) {
	switch env.Type {
	case signal.TypeRoomJoined:
		c.mu.Lock()
		if env.Room == c.room {
			c.joinAcked = true
		}
		c.mu.Unlock()

	case signal.TypeError:
		c.mu.Lock()
		room := c.room
		retry := !c.closed && room != "" && c.joined && !c.joinAcked &&
			(env.Room == "" || env.Room == room)
		delay := c.opts.JoinRetryDelay
		c.mu.Unlock()
		if retry {
			log.Warn().Str("module", "rendezvous").Str("room", room).Msg("join rejected, retrying")
			time.AfterFunc(delay, c.retryJoin)
		}
	}
}

func (c *Channel) retryJoin() {
	c.mu.Lock()
	room := c.room
	ok := !c.closed && room != "" && !c.joinAcked && c.conn != nil
	c.mu.Unlock()
	if !ok {
		return
	}
	c.Send(&signal.Envelope{Type: signal.TypeJoinRoom, Room: room})
}
