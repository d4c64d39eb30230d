package rtc

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 100 * time.Millisecond
)

// opusSilence is a single opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// syntheticTrack feeds a static-sample track from a ticker pump. It stands
// in for real capture hardware: Stop halts the pump, which is the release
// the engine must guarantee on every exit path.
type syntheticTrack struct {
	track    *webrtc.TrackLocalStaticSample
	interval time.Duration
	payload  []byte

	stopOnce sync.Once
	stop     chan struct{}
}

func (t *syntheticTrack) ID() string { return t.track.ID() }

func (t *syntheticTrack) Kind() webrtc.RTPCodecType { return t.track.Kind() }

func (t *syntheticTrack) Track() webrtc.TrackLocal { return t.track }

func (t *syntheticTrack) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *syntheticTrack) pump() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			err := t.track.WriteSample(media.Sample{Data: t.payload, Duration: t.interval})
			if err != nil {
				log.Debug().Str("module", "rtc").Str("track_id", t.ID()).Err(err).Msg("write sample")
			}
		}
	}
}

func newSyntheticTrack(capability webrtc.RTPCodecCapability, id, streamID string, interval time.Duration, payload []byte) (*syntheticTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(capability, id, streamID)
	if err != nil {
		return nil, err
	}
	t := &syntheticTrack{
		track:    track,
		interval: interval,
		payload:  payload,
		stop:     make(chan struct{}),
	}
	go t.pump()
	return t, nil
}

// NewSyntheticStream builds a local audio+video stream fed by blank
// samples. Real capture lives outside this system; negotiation only needs
// tracks that exist and can be released.
func NewSyntheticStream(streamID string) (*Stream, error) {
	audio, err := newSyntheticTrack(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", streamID, audioFrameInterval, opusSilence,
	)
	if err != nil {
		return nil, err
	}

	video, err := newSyntheticTrack(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", streamID, videoFrameInterval, make([]byte, 64),
	)
	if err != nil {
		audio.Stop()
		return nil, err
	}

	return &Stream{
		ID:     streamID,
		Tracks: []LocalTrack{audio, video},
	}, nil
}
