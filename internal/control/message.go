// Package control defines the messages exchanged over the "control" data
// channel that runs alongside the media tracks. Peers introduce themselves
// after the channel opens and announce an orderly departure before hanging
// up, so the far side can tell a deliberate exit from a transport failure.
package control

import "github.com/vmihailenco/msgpack/v5"

const (
	MessageTypeHello = "hello"
	MessageTypeBye   = "bye"
	MessageTypeMute  = "mute"
)

// Message represents all control channel messages
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload is sent by each peer once the channel opens
type HelloPayload struct {
	SessionID string `msgpack:"sessionId"`
	Role      string `msgpack:"role"`
	Version   string `msgpack:"version"`
}

// MutePayload announces a local track being enabled or disabled
type MutePayload struct {
	Kind  string `msgpack:"kind"`
	Muted bool   `msgpack:"muted"`
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewMessage creates a new Message with the given type and payload
func NewMessage(t string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:    t,
		Payload: b,
	}, nil
}

// Encode marshals the full message for sending over the data channel
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// ParseMessage decodes a raw data channel frame into a Message
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
