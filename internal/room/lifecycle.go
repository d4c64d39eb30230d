package room

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/session"
	"github.com/peerview/peerview/internal/signal"
)

// ErrNotInterviewer guards the terminate capability: only the interviewer
// may end the room for both peers.
var ErrNotInterviewer = errors.New("only the interviewer can terminate the room")

// Channel is the slice of the rendezvous channel the lifecycle needs.
type Channel interface {
	Join(room string)
	Send(env *signal.Envelope)
	Subscribe(types ...string) <-chan *signal.Envelope
}

// Negotiator is the slice of the negotiation engine the lifecycle drives.
type Negotiator interface {
	HandleOffer(desc webrtc.SessionDescription) error
	HandleAnswer(desc webrtc.SessionDescription) error
	HandleRemoteCandidate(init webrtc.ICECandidateInit)
	HandleUserJoined()
	Close()
}

// Lifecycle layers room membership semantics on top of the rendezvous
// channel: it joins on start, routes signaling to the engine, and turns
// room_terminated into a terminal, unrecoverable teardown.
type Lifecycle struct {
	sess   *session.Session
	ch     Channel
	engine Negotiator

	mu           sync.Mutex
	onPeerJoined func()
	onPeerLeft   func()

	terminated    chan struct{}
	terminateOnce sync.Once
}

// NewLifecycle builds the lifecycle for one session.
func NewLifecycle(sess *session.Session, ch Channel, engine Negotiator) *Lifecycle {
	return &Lifecycle{
		sess:       sess,
		ch:         ch,
		engine:     engine,
		terminated: make(chan struct{}),
	}
}

// OnPeerJoined registers a callback for user_joined events.
func (l *Lifecycle) OnPeerJoined(fn func()) {
	l.mu.Lock()
	l.onPeerJoined = fn
	l.mu.Unlock()
}

// OnPeerLeft registers a callback for peer_left events.
func (l *Lifecycle) OnPeerLeft(fn func()) {
	l.mu.Lock()
	l.onPeerLeft = fn
	l.mu.Unlock()
}

// Terminated is closed once the room has been terminated. The only
// recovery is a brand-new session.
func (l *Lifecycle) Terminated() <-chan struct{} {
	return l.terminated
}

// Start joins the room and begins routing inbound events. It returns
// immediately; routing runs until the channel closes or the room is
// terminated.
func (l *Lifecycle) Start() {
	if l.sess.Enabled() && l.sess.Room != "" {
		l.ch.Join(l.sess.Room)
	}

	events := l.ch.Subscribe(
		signal.TypeOffer,
		signal.TypeAnswer,
		signal.TypeICECandidate,
		signal.TypeUserJoined,
		signal.TypePeerLeft,
		signal.TypeRoomTerminated,
	)
	go l.run(events)
}

// TerminateRoom ends the session for both peers. Interviewer only.
func (l *Lifecycle) TerminateRoom() error {
	if l.sess.Role != session.RoleInterviewer {
		return ErrNotInterviewer
	}
	l.ch.Send(&signal.Envelope{Type: signal.TypeTerminateRoom, Room: l.sess.Room})
	return nil
}

// End stops the session locally: the engine is closed, every local track
// released, and the session id rotated so a later start is a new session.
func (l *Lifecycle) End() {
	l.engine.Close()
	l.sess.Rotate()
}

func (l *Lifecycle) run(events <-chan *signal.Envelope) {
	for env := range events {
		if env.Room != "" && env.Room != l.sess.Room {
			continue
		}

		switch env.Type {
		case signal.TypeOffer:
			l.handleSDP(env, l.engine.HandleOffer)

		case signal.TypeAnswer:
			l.handleSDP(env, l.engine.HandleAnswer)

		case signal.TypeICECandidate:
			var p signal.CandidatePayload
			if err := env.DecodePayload(&p); err != nil {
				log.Warn().Str("module", "room").Err(err).Msg("bad candidate payload")
				continue
			}
			l.engine.HandleRemoteCandidate(p.ToPion())

		case signal.TypeUserJoined:
			l.notifyPeerJoined()
			l.engine.HandleUserJoined()

		case signal.TypePeerLeft:
			l.notifyPeerLeft()

		case signal.TypeRoomTerminated:
			l.terminate()
			return
		}
	}
}

// terminate is the terminal teardown path: no further signaling is sent
// or accepted for this session.
func (l *Lifecycle) terminate() {
	l.terminateOnce.Do(func() {
		log.Info().Str("module", "room").Str("room", l.sess.Room).Msg("room terminated")
		l.engine.Close()
		l.sess.Disable()
		close(l.terminated)
	})
}

func (l *Lifecycle) handleSDP(env *signal.Envelope, handle func(webrtc.SessionDescription) error) {
	var p signal.SDPPayload
	if err := env.DecodePayload(&p); err != nil {
		log.Warn().Str("module", "room").Err(err).Msg("bad sdp payload")
		return
	}
	desc, err := p.ToPion()
	if err != nil {
		log.Warn().Str("module", "room").Err(err).Msg("bad sdp payload")
		return
	}
	if err := handle(desc); err != nil {
		log.Warn().Str("module", "room").Str("type", env.Type).Err(err).Msg("signal discarded")
	}
}

func (l *Lifecycle) notifyPeerJoined() {
	l.mu.Lock()
	fn := l.onPeerJoined
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (l *Lifecycle) notifyPeerLeft() {
	l.mu.Lock()
	fn := l.onPeerLeft
	l.mu.Unlock()
	if fn != nil {
		fn()
	}
}
