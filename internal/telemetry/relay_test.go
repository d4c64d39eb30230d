package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerview/peerview/internal/signal"
)

func mustEnvelope(t *testing.T, envType, room string, payload any) *signal.Envelope {
	t.Helper()
	env, err := signal.New(envType, room, payload)
	require.NoError(t, err)
	return env
}

func runRelay(t *testing.T, relay *Relay, envs ...*signal.Envelope) {
	t.Helper()
	events := make(chan *signal.Envelope, len(envs))
	for _, env := range envs {
		events <- env
	}
	close(events)
	relay.Run(events)
}

func TestLastWriteWinsPerKind(t *testing.T) {
	relay := NewRelay("abc123")

	runRelay(t, relay,
		mustEnvelope(t, signal.TypeAIResults, "abc123", AIResults{Detected: true, DominantEmotion: "neutral"}),
		mustEnvelope(t, signal.TypeVocalResults, "abc123", VocalResults{VocalStatus: "quiet"}),
		mustEnvelope(t, signal.TypeAIResults, "abc123", AIResults{Detected: true, DominantEmotion: "happy"}),
	)

	ai, ok := relay.Latest(signal.TypeAIResults)
	require.True(t, ok)
	assert.Equal(t, "happy", ai.AI.DominantEmotion, "newer snapshot replaces the older")

	vocal, ok := relay.Latest(signal.TypeVocalResults)
	require.True(t, ok)
	assert.Equal(t, "quiet", vocal.Vocal.VocalStatus, "kinds do not clobber each other")
}

func TestOtherRoomsAreDropped(t *testing.T) {
	relay := NewRelay("abc123")

	runRelay(t, relay,
		mustEnvelope(t, signal.TypeAIResults, "other", AIResults{DominantEmotion: "angry"}),
	)

	_, ok := relay.Latest(signal.TypeAIResults)
	assert.False(t, ok)
}

func TestOnUpdateFiresPerSnapshot(t *testing.T) {
	relay := NewRelay("abc123")

	var kinds []string
	relay.OnUpdate(func(s Snapshot) { kinds = append(kinds, s.Kind) })

	runRelay(t, relay,
		mustEnvelope(t, signal.TypeAIResults, "abc123", AIResults{}),
		mustEnvelope(t, signal.TypeVocalResults, "abc123", VocalResults{}),
	)

	assert.Equal(t, []string{signal.TypeAIResults, signal.TypeVocalResults}, kinds)
}

func TestMalformedPayloadIsIgnored(t *testing.T) {
	relay := NewRelay("abc123")

	runRelay(t, relay, &signal.Envelope{Type: signal.TypeAIResults, Room: "abc123", Payload: []byte(`{bad`)})

	_, ok := relay.Latest(signal.TypeAIResults)
	assert.False(t, ok)
}
