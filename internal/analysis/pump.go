package analysis

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/signal"
	"github.com/peerview/peerview/internal/telemetry"
)

const (
	defaultFrameInterval = 1 * time.Second
	defaultAudioInterval = 2 * time.Second
)

// caller is the slice of Client the pump exercises.
type caller interface {
	Analyze(ctx context.Context, sessionID, roomID, image string) (*FrameResult, error)
	AnalyzeAudio(ctx context.Context, sessionID, roomID, audio string) (*AudioResult, error)
}

// Sender publishes envelopes into the room.
type Sender interface {
	Send(env *signal.Envelope)
}

// Source supplies the media samples the pump submits for analysis, as
// base64 strings.
type Source interface {
	Frame() string
	Audio() string
}

// StaticSource feeds fixed placeholder samples. Stands in until real
// frame capture lands; the analysis service only needs well-formed
// base64 to exercise the path.
type StaticSource struct{}

// opus silence frame, the same padding the synthetic audio track sends.
var silentOpus = []byte{0xf8, 0xff, 0xfe}

func (StaticSource) Frame() string {
	return base64.StdEncoding.EncodeToString([]byte("peerview-frame"))
}

func (StaticSource) Audio() string {
	return base64.StdEncoding.EncodeToString(silentOpus)
}

// Pump periodically submits media samples to the analysis service and
// publishes the results into the room as telemetry envelopes.
type Pump struct {
	client caller
	out    Sender
	source Source
	room   string
	sess   string

	FrameInterval time.Duration
	AudioInterval time.Duration
}

// NewPump wires a pump for one session in one room.
func NewPump(client *Client, out Sender, source Source, room, sessionID string) *Pump {
	return &Pump{
		client:        client,
		out:           out,
		source:        source,
		room:          room,
		sess:          sessionID,
		FrameInterval: defaultFrameInterval,
		AudioInterval: defaultAudioInterval,
	}
}

// Run submits frames and audio on their intervals until ctx is done.
// Individual request failures are logged and skipped.
func (p *Pump) Run(ctx context.Context) {
	frames := time.NewTicker(p.FrameInterval)
	defer frames.Stop()
	audio := time.NewTicker(p.AudioInterval)
	defer audio.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-frames.C:
			p.postFrame(ctx)
		case <-audio.C:
			p.postAudio(ctx)
		}
	}
}

func (p *Pump) postFrame(ctx context.Context) {
	result, err := p.client.Analyze(ctx, p.sess, p.room, p.source.Frame())
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Str("module", "analysis").Err(err).Msg("frame analysis failed")
		}
		return
	}

	payload := telemetry.AIResults{
		Detected:        result.Detected,
		GazeScore:       result.GazeScore,
		StabilityScore:  result.StabilityScore,
		ConfidenceScore: result.ConfidenceScore,
		DominantEmotion: result.DominantEmotion,
		Emotions:        result.Emotions,
	}
	env, err := signal.New(signal.TypeAIResults, p.room, payload)
	if err != nil {
		log.Warn().Str("module", "analysis").Err(err).Msg("encode ai_results")
		return
	}
	p.out.Send(env)
}

func (p *Pump) postAudio(ctx context.Context) {
	result, err := p.client.AnalyzeAudio(ctx, p.sess, p.room, p.source.Audio())
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Str("module", "analysis").Err(err).Msg("audio analysis failed")
		}
		return
	}
	if !result.Success {
		return
	}

	payload := telemetry.VocalResults{
		VocalStatus: result.VocalStatus,
		Fluency:     result.Fluency,
		IsSpeaking:  result.IsSpeaking,
	}
	env, err := signal.New(signal.TypeVocalResults, p.room, payload)
	if err != nil {
		log.Warn().Str("module", "analysis").Err(err).Msg("encode vocal_results")
		return
	}
	p.out.Send(env)
}
