package negotiate

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestBufferQueuesBeforeRemoteDescription(t *testing.T) {
	var buf candidateBuffer
	var applied []string
	apply := func(c webrtc.ICECandidateInit) { applied = append(applied, c.Candidate) }

	buf.Offer(candidateInit(1), apply)
	buf.Offer(candidateInit(2), apply)
	assert.Empty(t, applied)
	assert.Equal(t, 2, buf.Len())

	buf.RemoteDescriptionSet(apply)
	assert.Equal(t, []string{"candidate-1", "candidate-2"}, applied)
	assert.Equal(t, 0, buf.Len())

	// Drained entries are gone; a second drain replays nothing.
	buf.RemoteDescriptionSet(apply)
	assert.Equal(t, []string{"candidate-1", "candidate-2"}, applied)
}

func TestBufferAppliesImmediatelyAfterRemoteDescription(t *testing.T) {
	var buf candidateBuffer
	var applied []string
	apply := func(c webrtc.ICECandidateInit) { applied = append(applied, c.Candidate) }

	buf.RemoteDescriptionSet(apply)
	buf.Offer(candidateInit(1), apply)
	assert.Equal(t, []string{"candidate-1"}, applied)
	assert.Equal(t, 0, buf.Len())
}

func TestBufferClearDropsPending(t *testing.T) {
	var buf candidateBuffer
	var applied []string
	apply := func(c webrtc.ICECandidateInit) { applied = append(applied, c.Candidate) }

	buf.Offer(candidateInit(1), apply)
	buf.Clear()

	buf.RemoteDescriptionSet(apply)
	assert.Empty(t, applied)
}
