package telemetry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/signal"
)

// Snapshot kinds, matching the envelope types that carry them.
const (
	KindAI    = signal.TypeAIResults
	KindVocal = signal.TypeVocalResults
)

// AIResults is the face-analysis payload produced by the analysis service.
type AIResults struct {
	Detected        bool               `json:"detected"`
	GazeScore       float64            `json:"gaze_score"`
	StabilityScore  float64            `json:"stability_score"`
	ConfidenceScore float64            `json:"confidence_score"`
	DominantEmotion string             `json:"dominant_emotion"`
	Emotions        map[string]float64 `json:"emotions,omitempty"`
}

// VocalResults is the voice-analysis payload.
type VocalResults struct {
	VocalStatus string  `json:"vocal_status"`
	Fluency     float64 `json:"fluency"`
	IsSpeaking  bool    `json:"is_speaking"`
}

// Snapshot is the most recent telemetry of one kind. Events are snapshots,
// not an append-only log: a newer one simply replaces the older.
type Snapshot struct {
	Kind       string
	Room       string
	ReceivedAt time.Time

	AI    *AIResults
	Vocal *VocalResults
}

// Relay delivers analysis results for one room to whoever is viewing it.
// It never participates in the SDP/ICE state machine and never writes to
// the rendezvous channel.
type Relay struct {
	room string

	mu       sync.Mutex
	latest   map[string]Snapshot
	onUpdate func(Snapshot)
}

// NewRelay creates a relay scoped to the given room.
func NewRelay(room string) *Relay {
	return &Relay{
		room:   room,
		latest: make(map[string]Snapshot),
	}
}

// OnUpdate registers a callback invoked on every accepted snapshot.
func (r *Relay) OnUpdate(fn func(Snapshot)) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

// Run consumes telemetry envelopes until the channel closes. Envelopes for
// other rooms are dropped.
func (r *Relay) Run(events <-chan *signal.Envelope) {
	for env := range events {
		if env.Room != "" && env.Room != r.room {
			continue
		}
		snap, ok := r.decode(env)
		if !ok {
			continue
		}

		r.mu.Lock()
		r.latest[snap.Kind] = snap
		fn := r.onUpdate
		r.mu.Unlock()
		if fn != nil {
			fn(snap)
		}
	}
}

// Latest returns the most recent snapshot of the given kind.
func (r *Relay) Latest(kind string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.latest[kind]
	return snap, ok
}

func (r *Relay) decode(env *signal.Envelope) (Snapshot, bool) {
	snap := Snapshot{Kind: env.Type, Room: r.room, ReceivedAt: time.Now()}

	switch env.Type {
	case signal.TypeAIResults:
		var ai AIResults
		if err := env.DecodePayload(&ai); err != nil {
			log.Warn().Str("module", "telemetry").Err(err).Msg("bad ai_results payload")
			return Snapshot{}, false
		}
		snap.AI = &ai

	case signal.TypeVocalResults:
		var vocal VocalResults
		if err := env.DecodePayload(&vocal); err != nil {
			log.Warn().Str("module", "telemetry").Err(err).Msg("bad vocal_results payload")
			return Snapshot{}, false
		}
		snap.Vocal = &vocal

	default:
		return Snapshot{}, false
	}
	return snap, true
}
