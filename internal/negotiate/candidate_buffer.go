package negotiate

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// candidateBuffer makes ICE candidate arrival order-independent of the SDP
// exchange: candidates that show up before a remote description exists are
// queued and drained strictly in arrival order once it does. Drained
// entries are discarded, never replayed.
type candidateBuffer struct {
	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// Offer applies the candidate immediately when the remote description is
// already known, otherwise appends it to the queue.
func (b *candidateBuffer) Offer(cand webrtc.ICECandidateInit, apply func(webrtc.ICECandidateInit)) {
	b.mu.Lock()
	if !b.remoteSet {
		b.pending = append(b.pending, cand)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	apply(cand)
}

// RemoteDescriptionSet marks the remote description as present and drains
// the queue in FIFO order.
func (b *candidateBuffer) RemoteDescriptionSet(apply func(webrtc.ICECandidateInit)) {
	b.mu.Lock()
	b.remoteSet = true
	drained := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, cand := range drained {
		apply(cand)
	}
}

// Clear drops any queued candidates and resets the buffer for a fresh
// negotiation attempt.
func (b *candidateBuffer) Clear() {
	b.mu.Lock()
	b.remoteSet = false
	b.pending = nil
	b.mu.Unlock()
}

// Len reports the number of queued candidates.
func (b *candidateBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
