package control

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDataChannel struct {
	mu        sync.Mutex
	sent      [][]byte
	onOpen    func()
	onMessage func([]byte)
}

func (d *fakeDataChannel) Label() string { return "control" }

func (d *fakeDataChannel) Send(data []byte) error {
	d.mu.Lock()
	d.sent = append(d.sent, data)
	d.mu.Unlock()
	return nil
}

func (d *fakeDataChannel) OnOpen(fn func()) { d.onOpen = fn }

func (d *fakeDataChannel) OnMessage(fn func([]byte)) { d.onMessage = fn }

func (d *fakeDataChannel) Close() error { return nil }

func (d *fakeDataChannel) sentMessages(t *testing.T) []*Message {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Message, len(d.sent))
	for i, data := range d.sent {
		msg, err := ParseMessage(data)
		require.NoError(t, err)
		out[i] = msg
	}
	return out
}

func TestHelloSentOnOpen(t *testing.T) {
	dc := &fakeDataChannel{}
	NewLink(dc, HelloPayload{SessionID: "sess-1", Role: "candidate", Version: "1.0.0"})

	dc.onOpen()

	msgs := dc.sentMessages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageTypeHello, msgs[0].Type)

	var hello HelloPayload
	require.NoError(t, msgs[0].DecodePayload(&hello))
	assert.Equal(t, "sess-1", hello.SessionID)
	assert.Equal(t, "candidate", hello.Role)
}

func TestSendBeforeOpenFails(t *testing.T) {
	dc := &fakeDataChannel{}
	link := NewLink(dc, HelloPayload{SessionID: "sess-1"})

	assert.ErrorIs(t, link.SendMute("audio", true), ErrChannelNotOpen)
	assert.Empty(t, dc.sentMessages(t))
}

func TestPeerMessagesDispatched(t *testing.T) {
	dc := &fakeDataChannel{}
	link := NewLink(dc, HelloPayload{SessionID: "sess-1"})

	var gotHello HelloPayload
	var gotMute MutePayload
	byes := 0
	link.OnHello(func(h HelloPayload) { gotHello = h })
	link.OnMute(func(m MutePayload) { gotMute = m })
	link.OnBye(func() { byes++ })

	hello, err := NewMessage(MessageTypeHello, HelloPayload{SessionID: "sess-2", Role: "interviewer"})
	require.NoError(t, err)
	data, err := hello.Encode()
	require.NoError(t, err)
	dc.onMessage(data)

	mute, err := NewMessage(MessageTypeMute, MutePayload{Kind: "audio", Muted: true})
	require.NoError(t, err)
	data, err = mute.Encode()
	require.NoError(t, err)
	dc.onMessage(data)

	bye, err := Message{Type: MessageTypeBye}.Encode()
	require.NoError(t, err)
	dc.onMessage(bye)

	assert.Equal(t, "sess-2", gotHello.SessionID)
	assert.Equal(t, "interviewer", gotHello.Role)
	assert.True(t, gotMute.Muted)
	assert.Equal(t, "audio", gotMute.Kind)
	assert.Equal(t, 1, byes)
}

func TestMalformedMessageIgnored(t *testing.T) {
	dc := &fakeDataChannel{}
	link := NewLink(dc, HelloPayload{SessionID: "sess-1"})

	byes := 0
	link.OnBye(func() { byes++ })
	dc.onMessage([]byte{0xc1, 0xff})

	assert.Zero(t, byes)
}

func TestByeSentOnce(t *testing.T) {
	dc := &fakeDataChannel{}
	link := NewLink(dc, HelloPayload{SessionID: "sess-1"})
	dc.onOpen()

	require.NoError(t, link.SendBye())
	require.NoError(t, link.SendBye())

	msgs := dc.sentMessages(t)
	byes := 0
	for _, msg := range msgs {
		if msg.Type == MessageTypeBye {
			byes++
		}
	}
	assert.Equal(t, 1, byes)
}
