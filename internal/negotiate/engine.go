package negotiate

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/rtc"
	"github.com/peerview/peerview/internal/session"
	"github.com/peerview/peerview/internal/signal"
)

// State is the lifecycle of one peer connection. Closed is terminal: a new
// Engine must be constructed to negotiate again.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateAnswering
	StateStable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sender is the outbound half of the rendezvous channel.
type Sender interface {
	Send(env *signal.Envelope)
}

// Engine drives one peer connection through offer/answer negotiation. It
// owns exactly one connection and one candidate buffer; the session record
// is shared with the room lifecycle.
type Engine struct {
	sess *session.Session
	conn rtc.Conn
	out  Sender

	buf candidateBuffer

	mu       sync.Mutex
	state    State
	attached map[string]bool
	local    *rtc.Stream
	remotes  map[string]*rtc.RemoteStream

	onState  func(State)
	onRemote func(*rtc.RemoteStream)
}

// NewEngine wires an engine to a peer connection and an outbound sender.
func NewEngine(sess *session.Session, conn rtc.Conn, out Sender) *Engine {
	e := &Engine{
		sess:     sess,
		conn:     conn,
		out:      out,
		state:    StateIdle,
		attached: make(map[string]bool),
		remotes:  make(map[string]*rtc.RemoteStream),
	}
	conn.OnICECandidate(e.handleLocalCandidate)
	conn.OnTrack(e.handleRemoteTrack)
	return e
}

// OnStateChange registers a callback invoked after every state transition.
func (e *Engine) OnStateChange(fn func(State)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

// OnRemoteStream registers the sink for assembled remote streams.
func (e *Engine) OnRemoteStream(fn func(*rtc.RemoteStream)) {
	e.mu.Lock()
	e.onRemote = fn
	e.mu.Unlock()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StartCall attaches the local stream and sends a fresh offer. Candidate
// role only. Attaching is idempotent per track identity, so calling this
// again with the same stream never duplicates senders.
func (e *Engine) StartCall(stream *rtc.Stream) error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return newError("start call", ErrSessionClosed)
	}
	if e.sess.Role != session.RoleCandidate {
		e.mu.Unlock()
		return wrapError("start call", ErrRoleViolation, "only the candidate originates offers")
	}
	e.local = stream
	var fresh []rtc.LocalTrack
	for _, t := range stream.Tracks {
		if !e.attached[t.ID()] {
			e.attached[t.ID()] = true
			fresh = append(fresh, t)
		}
	}
	e.mu.Unlock()

	for _, t := range fresh {
		if err := e.conn.AddTrack(t); err != nil {
			return newError("attach track", err)
		}
	}
	return e.sendOffer("start call")
}

// HandleOffer answers an inbound offer. Interviewer role only: the
// candidate never sends an answer.
func (e *Engine) HandleOffer(desc webrtc.SessionDescription) error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return newError("handle offer", ErrSessionClosed)
	}
	if e.sess.Role != session.RoleInterviewer {
		e.mu.Unlock()
		return wrapError("handle offer", ErrRoleViolation, "only the interviewer answers")
	}
	e.mu.Unlock()
	e.setState(StateAnswering)

	if err := e.conn.SetRemoteDescription(desc); err != nil {
		// Negotiation errors discard the description, not the session.
		log.Warn().Str("module", "negotiate").Err(err).Msg("offer discarded")
		return newError("set remote description", err)
	}
	e.buf.RemoteDescriptionSet(e.applyCandidate)

	answer, err := e.conn.CreateAnswer()
	if err != nil {
		return newError("create answer", err)
	}
	e.send(signal.TypeAnswer, signal.SDPFromPion(answer))
	e.setState(StateStable)
	return nil
}

// HandleAnswer applies the answer to our outstanding offer and drains any
// buffered candidates.
func (e *Engine) HandleAnswer(desc webrtc.SessionDescription) error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return newError("handle answer", ErrSessionClosed)
	}
	if e.sess.Role != session.RoleCandidate {
		e.mu.Unlock()
		return wrapError("handle answer", ErrRoleViolation, "only the candidate receives answers")
	}
	e.mu.Unlock()

	if err := e.conn.SetRemoteDescription(desc); err != nil {
		log.Warn().Str("module", "negotiate").Err(err).Msg("answer discarded")
		return newError("set remote description", err)
	}
	e.buf.RemoteDescriptionSet(e.applyCandidate)
	e.setState(StateStable)
	return nil
}

// HandleRemoteCandidate buffers or applies a candidate from the peer.
// Candidates arriving after teardown are dropped.
func (e *Engine) HandleRemoteCandidate(init webrtc.ICECandidateInit) {
	e.mu.Lock()
	closed := e.state == StateClosed
	e.mu.Unlock()
	if closed {
		return
	}
	e.buf.Offer(init, e.applyCandidate)
}

// HandleUserJoined re-offers when a peer (re)appears in the room. Only the
// candidate with an already-bound local stream reacts; the interviewer
// never self-initiates. This fires on every user_joined, even when the
// connection is already stable.
func (e *Engine) HandleUserJoined() {
	e.mu.Lock()
	renegotiate := e.state != StateClosed &&
		e.sess.Role == session.RoleCandidate &&
		e.local != nil
	e.mu.Unlock()
	if !renegotiate {
		return
	}

	log.Info().Str("module", "negotiate").Str("room", e.sess.Room).Msg("peer joined, renegotiating")
	if err := e.sendOffer("renegotiate"); err != nil {
		log.Warn().Str("module", "negotiate").Err(err).Msg("renegotiation failed")
	}
}

// Close releases every local track and closes the connection. Idempotent,
// and invoked on every exit path: explicit end, room termination, errors.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	e.state = StateClosed
	local := e.local
	fn := e.onState
	e.mu.Unlock()

	e.sess.Disable()
	e.buf.Clear()
	local.Stop()
	if err := e.conn.Close(); err != nil {
		log.Warn().Str("module", "negotiate").Err(err).Msg("close connection")
	}
	if fn != nil {
		fn(StateClosed)
	}
}

func (e *Engine) sendOffer(op string) error {
	e.setState(StateOffering)
	offer, err := e.conn.CreateOffer()
	if err != nil {
		return newError(op, err)
	}
	e.send(signal.TypeOffer, signal.SDPFromPion(offer))
	return nil
}

func (e *Engine) send(envType string, payload any) {
	if !e.sess.Enabled() {
		return
	}
	env, err := signal.New(envType, e.sess.Room, payload)
	if err != nil {
		log.Error().Str("module", "negotiate").Err(err).Msg("encode envelope")
		return
	}
	e.out.Send(env)
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	e.state = s
	fn := e.onState
	e.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (e *Engine) applyCandidate(init webrtc.ICECandidateInit) {
	if err := e.conn.AddICECandidate(init); err != nil {
		// Malformed candidates are discarded without ending the session.
		log.Warn().Str("module", "negotiate").Err(err).Msg("candidate discarded")
	}
}

func (e *Engine) handleLocalCandidate(init webrtc.ICECandidateInit) {
	e.mu.Lock()
	closed := e.state == StateClosed
	e.mu.Unlock()
	if closed || !e.sess.Enabled() {
		return
	}
	e.send(signal.TypeICECandidate, signal.CandidateFromPion(init))
}

func (e *Engine) handleRemoteTrack(track rtc.RemoteTrack) {
	id := track.StreamID()
	if id == "" {
		// Tracks can arrive without a stream; synthesize one.
		id = "remote-" + e.sess.ID()
	}

	e.mu.Lock()
	stream, ok := e.remotes[id]
	if !ok {
		stream = &rtc.RemoteStream{ID: id}
		e.remotes[id] = stream
	}
	replaced := false
	for i, t := range stream.Tracks {
		if t.ID() == track.ID() {
			stream.Tracks[i] = track
			replaced = true
			break
		}
	}
	if !replaced {
		stream.Tracks = append(stream.Tracks, track)
	}
	fn := e.onRemote
	e.mu.Unlock()

	if fn != nil {
		fn(stream)
	}
}
