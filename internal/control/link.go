package control

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/rtc"
)

// ErrChannelNotOpen is returned when sending before the channel opened.
var ErrChannelNotOpen = errors.New("control channel not open")

// Link wraps the control data channel for one peer connection. It sends a
// hello as soon as the channel opens and surfaces decoded peer messages
// through callbacks.
type Link struct {
	mu      sync.Mutex
	dc      rtc.DataChannel
	open    bool
	closed  bool
	hello   HelloPayload
	onHello func(HelloPayload)
	onBye   func()
	onMute  func(MutePayload)
}

// NewLink attaches to dc and announces hello once the channel opens.
func NewLink(dc rtc.DataChannel, hello HelloPayload) *Link {
	l := &Link{dc: dc, hello: hello}
	dc.OnOpen(l.handleOpen)
	dc.OnMessage(l.handleMessage)
	return l
}

// OnHello registers a callback for the peer's hello.
func (l *Link) OnHello(fn func(HelloPayload)) {
	l.mu.Lock()
	l.onHello = fn
	l.mu.Unlock()
}

// OnBye registers a callback for the peer's orderly departure.
func (l *Link) OnBye(fn func()) {
	l.mu.Lock()
	l.onBye = fn
	l.mu.Unlock()
}

// OnMute registers a callback for peer track mute announcements.
func (l *Link) OnMute(fn func(MutePayload)) {
	l.mu.Lock()
	l.onMute = fn
	l.mu.Unlock()
}

// SendMute announces the local mute state of a track kind.
func (l *Link) SendMute(kind string, muted bool) error {
	return l.sendTyped(MessageTypeMute, MutePayload{Kind: kind, Muted: muted})
}

// SendBye announces an orderly departure. Safe to call more than once;
// only the first send goes out.
func (l *Link) SendBye() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.send(Message{Type: MessageTypeBye})
}

func (l *Link) sendTyped(msgType string, payload any) error {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return l.send(msg)
}

func (l *Link) send(msg Message) error {
	l.mu.Lock()
	open := l.open
	l.mu.Unlock()
	if !open {
		return ErrChannelNotOpen
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return l.dc.Send(data)
}

func (l *Link) handleOpen() {
	l.mu.Lock()
	l.open = true
	hello := l.hello
	l.mu.Unlock()

	if err := l.sendTyped(MessageTypeHello, hello); err != nil {
		log.Warn().Str("module", "control").Err(err).Msg("hello send failed")
	}
}

func (l *Link) handleMessage(data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		log.Warn().Str("module", "control").Err(err).Msg("dropping malformed control message")
		return
	}

	l.mu.Lock()
	onHello, onBye, onMute := l.onHello, l.onBye, l.onMute
	l.mu.Unlock()

	switch msg.Type {
	case MessageTypeHello:
		var hello HelloPayload
		if err := msg.DecodePayload(&hello); err != nil {
			log.Warn().Str("module", "control").Err(err).Msg("dropping malformed hello")
			return
		}
		if onHello != nil {
			onHello(hello)
		}
	case MessageTypeBye:
		if onBye != nil {
			onBye()
		}
	case MessageTypeMute:
		var mute MutePayload
		if err := msg.DecodePayload(&mute); err != nil {
			log.Warn().Str("module", "control").Err(err).Msg("dropping malformed mute")
			return
		}
		if onMute != nil {
			onMute(mute)
		}
	default:
		log.Debug().Str("module", "control").Str("type", msg.Type).Msg("ignoring unknown control message")
	}
}
