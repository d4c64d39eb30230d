// Package hub implements the signaling server core: a single-goroutine
// event loop that owns all room state and relays envelopes between the
// peers of a room.
package hub

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/signal"
)

// roomCapacity bounds a room to one candidate and one interviewer.
const roomCapacity = 2

// Room represents a single interview room.
type Room struct {
	// Name is the client-chosen identifier for the room.
	Name string

	// Members holds the connected peers, at most roomCapacity.
	Members map[*Client]bool
}

func (r *Room) others(sender *Client) []*Client {
	out := make([]*Client, 0, len(r.Members))
	for member := range r.Members {
		if member != sender {
			out = append(out, member)
		}
	}
	return out
}

// inbound couples an envelope with the client that sent it.
type inbound struct {
	env    *signal.Envelope
	client *Client
}

// Hub is the central brain of the signaling server.
// It manages all active rooms and clients.
type Hub struct {
	// rooms maps room names to Room instances.
	Rooms map[string]*Room

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// broadcast carries inbound envelopes from client read pumps.
	broadcast chan inbound

	// inject carries telemetry posted over HTTP rather than a socket.
	inject chan *signal.Envelope
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan inbound),
		inject:     make(chan *signal.Envelope),
	}
}

// Inject fans an externally produced envelope out to every member of its
// room, as if a peer had sent it. Used by the HTTP telemetry ingest.
func (h *Hub) Inject(env *signal.Envelope) {
	h.inject <- env
}

// Run starts the hub's main processing loop.
// This is the single goroutine that safely manages all state.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			log.Debug().Str("module", "hub").Str("client", client.ID).Msg("client registered")

		case client := <-h.Unregister:
			h.handleUnregister(client)

		case msg := <-h.broadcast:
			h.handleEnvelope(msg.client, msg.env)

		case env := <-h.inject:
			h.fanOut(env, nil)
		}
	}
}

func (h *Hub) handleUnregister(client *Client) {
	log.Debug().Str("module", "hub").Str("client", client.ID).Msg("client unregistered")

	if client.RoomName != "" {
		if room, ok := h.Rooms[client.RoomName]; ok {
			delete(room.Members, client)
			if len(room.Members) == 0 {
				delete(h.Rooms, room.Name)
				log.Info().Str("module", "hub").Str("room", room.Name).Msg("room deleted")
			} else {
				log.Info().Str("module", "hub").Str("room", room.Name).Msg("peer left room")
				for _, other := range room.others(nil) {
					other.Send <- &signal.Envelope{Type: signal.TypePeerLeft, Room: room.Name}
				}
			}
		}
	}

	close(client.Send)
}

func (h *Hub) handleEnvelope(client *Client, env *signal.Envelope) {
	log.Debug().
		Str("module", "hub").
		Str("client", client.ID).
		Str("type", env.Type).
		Str("room", env.Room).
		Msg("envelope received")

	switch env.Type {
	case signal.TypeJoinRoom:
		h.handleJoin(client, env.Room)

	case signal.TypeOffer, signal.TypeAnswer, signal.TypeICECandidate:
		h.relay(client, env)

	case signal.TypeTerminateRoom:
		h.handleTerminate(client, env.Room)

	case signal.TypeAIResults, signal.TypeVocalResults:
		h.fanOut(env, client)

	default:
		log.Warn().Str("module", "hub").Str("type", env.Type).Msg("unknown envelope type")
	}
}

func (h *Hub) handleJoin(client *Client, roomName string) {
	if roomName == "" {
		client.sendError("", "room name required")
		return
	}

	// Re-joining the current room is a no-op ack: reconnecting clients
	// replay their join and must not generate a second user_joined.
	if client.RoomName == roomName {
		client.Send <- &signal.Envelope{Type: signal.TypeRoomJoined, Room: roomName}
		return
	}

	room, ok := h.Rooms[roomName]
	if !ok {
		room = &Room{Name: roomName, Members: make(map[*Client]bool)}
		h.Rooms[roomName] = room
		log.Info().Str("module", "hub").Str("room", roomName).Msg("room created")
	}

	if len(room.Members) >= roomCapacity {
		log.Warn().Str("module", "hub").Str("room", roomName).Msg("join rejected, room full")
		client.sendError(roomName, "room is full")
		return
	}

	room.Members[client] = true
	client.RoomName = roomName

	log.Info().Str("module", "hub").Str("room", roomName).Str("client", client.ID).Msg("client joined room")

	client.Send <- &signal.Envelope{Type: signal.TypeRoomJoined, Room: roomName}
	for _, other := range room.others(client) {
		other.Send <- &signal.Envelope{Type: signal.TypeUserJoined, Room: roomName}
	}
}

// relay forwards an offer, answer, or ICE candidate to the other peer.
func (h *Hub) relay(client *Client, env *signal.Envelope) {
	room, ok := h.memberRoom(client, env.Room)
	if !ok {
		return
	}

	others := room.others(client)
	if len(others) == 0 {
		log.Debug().Str("module", "hub").Str("room", room.Name).Msg("no peer to relay to")
		return
	}
	for _, other := range others {
		other.Send <- env
	}
}

func (h *Hub) handleTerminate(client *Client, roomName string) {
	room, ok := h.memberRoom(client, roomName)
	if !ok {
		return
	}

	log.Info().Str("module", "hub").Str("room", room.Name).Str("client", client.ID).Msg("room terminated")

	// Everyone gets the notice, the initiator included, so both sides run
	// the same teardown path.
	for member := range room.Members {
		member.Send <- &signal.Envelope{Type: signal.TypeRoomTerminated, Room: room.Name}
		member.RoomName = ""
	}
	delete(h.Rooms, room.Name)
}

// fanOut delivers env to every member of its room except sender.
// A nil sender delivers to everyone.
func (h *Hub) fanOut(env *signal.Envelope, sender *Client) {
	room, ok := h.Rooms[env.Room]
	if !ok {
		log.Debug().Str("module", "hub").Str("room", env.Room).Msg("dropping envelope for unknown room")
		return
	}
	for _, member := range room.others(sender) {
		member.Send <- env
	}
}

// memberRoom resolves the room a client may act on. The client must have
// joined the room it names.
func (h *Hub) memberRoom(client *Client, roomName string) (*Room, bool) {
	if client.RoomName == "" || client.RoomName != roomName {
		client.sendError(roomName, "you must join the room first")
		return nil, false
	}
	room, ok := h.Rooms[client.RoomName]
	if !ok {
		client.sendError(roomName, "room not found")
		return nil, false
	}
	if !room.Members[client] {
		client.sendError(roomName, "you must join the room first")
		return nil, false
	}
	return room, true
}

// sendError reports a rejected request. The room is echoed back so the
// client can attribute the rejection and retry where that makes sense.
func (c *Client) sendError(room, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	c.Send <- &signal.Envelope{Type: signal.TypeError, Room: room, Payload: payload}
}
