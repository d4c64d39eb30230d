package room

import (
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerview/peerview/internal/session"
	"github.com/peerview/peerview/internal/signal"
)

type fakeChannel struct {
	mu     sync.Mutex
	joined []string
	sent   []*signal.Envelope
	events chan *signal.Envelope
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan *signal.Envelope, 16)}
}

func (c *fakeChannel) Join(room string) {
	c.mu.Lock()
	c.joined = append(c.joined, room)
	c.mu.Unlock()
}

func (c *fakeChannel) Send(env *signal.Envelope) {
	c.mu.Lock()
	c.sent = append(c.sent, env)
	c.mu.Unlock()
}

func (c *fakeChannel) Subscribe(...string) <-chan *signal.Envelope {
	return c.events
}

func (c *fakeChannel) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, env := range c.sent {
		out[i] = env.Type
	}
	return out
}

type recordingNegotiator struct {
	mu         sync.Mutex
	offers     []webrtc.SessionDescription
	answers    []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	joins      int
	closes     int
}

func (n *recordingNegotiator) HandleOffer(d webrtc.SessionDescription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offers = append(n.offers, d)
	return nil
}

func (n *recordingNegotiator) HandleAnswer(d webrtc.SessionDescription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.answers = append(n.answers, d)
	return nil
}

func (n *recordingNegotiator) HandleRemoteCandidate(init webrtc.ICECandidateInit) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.candidates = append(n.candidates, init)
}

func (n *recordingNegotiator) HandleUserJoined() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joins++
}

func (n *recordingNegotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closes++
}

func (n *recordingNegotiator) snapshot() (offers, answers, candidates, joins, closes int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.offers), len(n.answers), len(n.candidates), n.joins, n.closes
}

func push(t *testing.T, ch *fakeChannel, envType, room string, payload any) {
	t.Helper()
	env, err := signal.New(envType, room, payload)
	require.NoError(t, err)
	ch.events <- env
}

func TestStartJoinsRoom(t *testing.T) {
	ch := newFakeChannel()
	lc := NewLifecycle(session.New(session.RoleCandidate, "abc123"), ch, &recordingNegotiator{})

	lc.Start()
	assert.Equal(t, []string{"abc123"}, ch.joined)
}

func TestRoutesSignalingToEngine(t *testing.T) {
	ch := newFakeChannel()
	eng := &recordingNegotiator{}
	lc := NewLifecycle(session.New(session.RoleInterviewer, "abc123"), ch, eng)
	lc.Start()

	push(t, ch, signal.TypeOffer, "abc123", signal.SDPPayload{Type: "offer", SDP: "v=0"})
	push(t, ch, signal.TypeICECandidate, "abc123", signal.CandidatePayload{Candidate: "candidate-1"})
	push(t, ch, signal.TypeUserJoined, "abc123", nil)

	assert.Eventually(t, func() bool {
		offers, _, candidates, joins, _ := eng.snapshot()
		return offers == 1 && candidates == 1 && joins == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventsForOtherRoomsIgnored(t *testing.T) {
	ch := newFakeChannel()
	eng := &recordingNegotiator{}
	lc := NewLifecycle(session.New(session.RoleInterviewer, "abc123"), ch, eng)
	lc.Start()

	push(t, ch, signal.TypeOffer, "other", signal.SDPPayload{Type: "offer", SDP: "v=0"})
	push(t, ch, signal.TypeUserJoined, "abc123", nil)

	assert.Eventually(t, func() bool {
		_, _, _, joins, _ := eng.snapshot()
		return joins == 1
	}, 2*time.Second, 10*time.Millisecond)

	offers, _, _, _, _ := eng.snapshot()
	assert.Zero(t, offers)
}

func TestRoomTerminatedIsTerminal(t *testing.T) {
	ch := newFakeChannel()
	eng := &recordingNegotiator{}
	sess := session.New(session.RoleCandidate, "abc123")
	lc := NewLifecycle(sess, ch, eng)
	lc.Start()

	push(t, ch, signal.TypeRoomTerminated, "abc123", nil)

	select {
	case <-lc.Terminated():
	case <-time.After(2 * time.Second):
		t.Fatal("termination not observed")
	}

	_, _, _, _, closes := eng.snapshot()
	assert.Equal(t, 1, closes, "termination must close the engine")
	assert.False(t, sess.Enabled(), "no signaling may be sent after termination")

	// Events after termination are not routed.
	push(t, ch, signal.TypeUserJoined, "abc123", nil)
	time.Sleep(50 * time.Millisecond)
	_, _, _, joins, _ := eng.snapshot()
	assert.Zero(t, joins)
}

func TestTerminateRoomIsInterviewerOnly(t *testing.T) {
	ch := newFakeChannel()
	lc := NewLifecycle(session.New(session.RoleCandidate, "abc123"), ch, &recordingNegotiator{})
	assert.ErrorIs(t, lc.TerminateRoom(), ErrNotInterviewer)
	assert.Empty(t, ch.sentTypes())

	lc = NewLifecycle(session.New(session.RoleInterviewer, "abc123"), ch, &recordingNegotiator{})
	require.NoError(t, lc.TerminateRoom())
	assert.Equal(t, []string{signal.TypeTerminateRoom}, ch.sentTypes())
}

func TestEndRotatesSession(t *testing.T) {
	ch := newFakeChannel()
	eng := &recordingNegotiator{}
	sess := session.New(session.RoleCandidate, "abc123")
	lc := NewLifecycle(sess, ch, eng)

	before := sess.ID()
	lc.End()

	_, _, _, _, closes := eng.snapshot()
	assert.Equal(t, 1, closes)
	assert.NotEqual(t, before, sess.ID(), "explicit stop rotates the session id")
}
