package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerview/peerview/internal/signal"
	"github.com/peerview/peerview/internal/telemetry"
)

type fakeCaller struct {
	mu         sync.Mutex
	frames     int
	audios     int
	frameErr   error
	audioOK    bool
	lastImage  string
	lastAudio  string
	lastRoomID string
}

func (f *fakeCaller) Analyze(_ context.Context, _, roomID, image string) (*FrameResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames++
	f.lastImage = image
	f.lastRoomID = roomID
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return &FrameResult{Detected: true, DominantEmotion: "neutral", ConfidenceScore: 0.5}, nil
}

func (f *fakeCaller) AnalyzeAudio(_ context.Context, _, _, audio string) (*AudioResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audios++
	f.lastAudio = audio
	return &AudioResult{Success: f.audioOK, Fluency: 0.8, IsSpeaking: true, VocalStatus: "fluent"}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*signal.Envelope
}

func (f *fakeSender) Send(env *signal.Envelope) {
	f.mu.Lock()
	f.sent = append(f.sent, env)
	f.mu.Unlock()
}

func (f *fakeSender) byType(envType string) []*signal.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*signal.Envelope
	for _, env := range f.sent {
		if env.Type == envType {
			out = append(out, env)
		}
	}
	return out
}

func newTestPump(client caller, out Sender) *Pump {
	return &Pump{
		client:        client,
		out:           out,
		source:        StaticSource{},
		room:          "abc123",
		sess:          "sess-1",
		FrameInterval: 5 * time.Millisecond,
		AudioInterval: 5 * time.Millisecond,
	}
}

func TestPumpPublishesResults(t *testing.T) {
	client := &fakeCaller{audioOK: true}
	out := &fakeSender{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestPump(client, out).Run(ctx)

	assert.Eventually(t, func() bool {
		return len(out.byType(signal.TypeAIResults)) > 0 &&
			len(out.byType(signal.TypeVocalResults)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	env := out.byType(signal.TypeAIResults)[0]
	assert.Equal(t, "abc123", env.Room)
	var ai telemetry.AIResults
	require.NoError(t, env.DecodePayload(&ai))
	assert.True(t, ai.Detected)
	assert.Equal(t, "neutral", ai.DominantEmotion)

	env = out.byType(signal.TypeVocalResults)[0]
	var vocal telemetry.VocalResults
	require.NoError(t, env.DecodePayload(&vocal))
	assert.Equal(t, "fluent", vocal.VocalStatus)
	assert.True(t, vocal.IsSpeaking)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, "abc123", client.lastRoomID)
	assert.Equal(t, StaticSource{}.Frame(), client.lastImage)
	assert.Equal(t, StaticSource{}.Audio(), client.lastAudio)
}

func TestPumpSkipsFailedAnalyses(t *testing.T) {
	client := &fakeCaller{frameErr: errors.New("service down"), audioOK: false}
	out := &fakeSender{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestPump(client, out).Run(ctx)

	// Both paths keep being exercised even though nothing is publishable.
	assert.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.frames >= 2 && client.audios >= 2
	}, 2*time.Second, 5*time.Millisecond)

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Empty(t, out.sent)
}

func TestPumpStopsOnContextCancel(t *testing.T) {
	client := &fakeCaller{audioOK: true}
	out := &fakeSender{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestPump(client, out).Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop")
	}
}
