package signal

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Envelope is the wire format for every message exchanged with the
// rendezvous server. Payload stays raw until a handler that knows the
// type decodes it.
type Envelope struct {
	Type    string          `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope type constants.
const (
	TypeJoinRoom       = "join_room"
	TypeOffer          = "offer"
	TypeAnswer         = "answer"
	TypeICECandidate   = "ice_candidate"
	TypeUserJoined     = "user_joined"
	TypePeerLeft       = "peer_left"
	TypeRoomJoined     = "room_joined"
	TypeRoomTerminated = "room_terminated"
	TypeTerminateRoom  = "terminate_room"
	TypeAIResults      = "ai_results"
	TypeVocalResults   = "vocal_results"
	TypeError          = "error"
)

// SDPPayload carries an offer or answer session description.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func SDPFromPion(desc webrtc.SessionDescription) SDPPayload {
	return SDPPayload{Type: desc.Type.String(), SDP: desc.SDP}
}

func (p SDPPayload) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch p.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", p.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: p.SDP}, nil
}

// CandidatePayload mirrors the browser-shaped ICE candidate init dictionary.
type CandidatePayload struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func CandidateFromPion(init webrtc.ICECandidateInit) CandidatePayload {
	return CandidatePayload{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (p CandidatePayload) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        p.Candidate,
		SDPMid:           p.SDPMid,
		SDPMLineIndex:    p.SDPMLineIndex,
		UsernameFragment: p.UsernameFragment,
	}
}

// ErrorPayload carries error text from the server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// New builds an envelope around a JSON-encodable payload. A nil payload
// produces an envelope with only type and room set.
func New(envType, room string, payload any) (*Envelope, error) {
	env := &Envelope{Type: envType, Room: room}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", envType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Parse decodes and validates a raw envelope. Unknown types are accepted
// so the protocol can grow; a missing type is not.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// DecodePayload decodes the raw payload into v.
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Type)
	}
	return json.Unmarshal(e.Payload, v)
}
