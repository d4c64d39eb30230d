package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/peerview/peerview/internal/telemetry"
)

func TestTryUpdateNeverBlocks(t *testing.T) {
	model := NewCallModel("abc123")

	// Nothing drains the queue here, as after the dashboard exits.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(model.updateChan)+10; i++ {
			model.TryUpdate(CallUpdate{Type: UpdateStatus, Message: "late"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("TryUpdate blocked on a full queue")
	}
}

func TestHandleUpdateTransitions(t *testing.T) {
	model := NewCallModel("abc123")

	assert.False(t, model.handleUpdate(CallUpdate{Type: UpdatePeerJoined}))
	assert.Equal(t, StateLive, model.state)

	snap := &telemetry.Snapshot{Kind: telemetry.KindAI, AI: &telemetry.AIResults{Detected: true}}
	assert.False(t, model.handleUpdate(CallUpdate{Type: UpdateTelemetry, Snapshot: snap}))
	assert.Same(t, snap, model.ai)

	assert.False(t, model.handleUpdate(CallUpdate{Type: UpdatePeerLeft}))
	assert.Equal(t, StateWaitingForPeer, model.state)

	assert.True(t, model.handleUpdate(CallUpdate{Type: UpdateTerminated}))
	assert.Equal(t, StateTerminated, model.state)
}
