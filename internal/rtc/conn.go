package rtc

import (
	"github.com/pion/webrtc/v4"
)

// Conn abstracts the underlying peer connection object so the negotiation
// engine can run against a mock in tests. The contract mirrors the browser
// RTCPeerConnection surface the engine needs and nothing more.
type Conn interface {
	// CreateOffer generates an offer and installs it as the local
	// description. Trickle ICE: it returns immediately, candidates arrive
	// through OnICECandidate.
	CreateOffer() (webrtc.SessionDescription, error)

	// CreateAnswer generates an answer to the current remote description
	// and installs it as the local description.
	CreateAnswer() (webrtc.SessionDescription, error)

	SetRemoteDescription(webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(webrtc.ICECandidateInit) error

	// AddTrack attaches a local track. Callers are responsible for not
	// attaching the same track identity twice.
	AddTrack(LocalTrack) error

	CreateDataChannel(label string) (DataChannel, error)
	OnDataChannel(func(DataChannel))

	OnICECandidate(func(webrtc.ICECandidateInit))
	OnTrack(func(RemoteTrack))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))

	Close() error
}

// LocalTrack couples a sendable media track with the release obligation
// for whatever capture resource feeds it.
type LocalTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Track() webrtc.TrackLocal

	// Stop releases the capture resource. Idempotent.
	Stop()
}

// RemoteTrack is the read side of a track delivered by the remote peer.
// *webrtc.TrackRemote satisfies it directly.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
}

// DataChannel is the minimal surface of a WebRTC data channel used by the
// control protocol.
type DataChannel interface {
	Label() string
	Send([]byte) error
	OnOpen(func())
	OnMessage(func([]byte))
	Close() error
}

// Stream groups local tracks the way a browser MediaStream does.
type Stream struct {
	ID     string
	Tracks []LocalTrack
}

// Stop releases every track in the stream.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	for _, t := range s.Tracks {
		t.Stop()
	}
}

// RemoteStream collects remote tracks sharing a stream id. The engine
// synthesizes one when a track arrives without an associated stream.
type RemoteStream struct {
	ID     string
	Tracks []RemoteTrack
}
