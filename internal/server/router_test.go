package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerview/peerview/internal/hub"
	"github.com/peerview/peerview/internal/signal"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := hub.NewHub()
	go h.Run()
	srv := httptest.NewServer(SetupRouter(h, true))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, envType, room string, payload any) {
	t.Helper()
	env, err := signal.New(envType, room, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *signal.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env signal.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return &env
}

func TestHealthz(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignalingOverWebsocket(t *testing.T) {
	srv := startServer(t)

	candidate := dial(t, srv)
	interviewer := dial(t, srv)

	sendEnvelope(t, candidate, signal.TypeJoinRoom, "abc123", nil)
	assert.Equal(t, signal.TypeRoomJoined, readEnvelope(t, candidate).Type)

	sendEnvelope(t, interviewer, signal.TypeJoinRoom, "abc123", nil)
	assert.Equal(t, signal.TypeRoomJoined, readEnvelope(t, interviewer).Type)
	assert.Equal(t, signal.TypeUserJoined, readEnvelope(t, candidate).Type)

	sendEnvelope(t, candidate, signal.TypeOffer, "abc123", signal.SDPPayload{Type: "offer", SDP: "v=0"})
	offer := readEnvelope(t, interviewer)
	require.Equal(t, signal.TypeOffer, offer.Type)

	var sdp signal.SDPPayload
	require.NoError(t, offer.DecodePayload(&sdp))
	assert.Equal(t, "v=0", sdp.SDP)
}

func TestTelemetryIngest(t *testing.T) {
	srv := startServer(t)

	viewer := dial(t, srv)
	sendEnvelope(t, viewer, signal.TypeJoinRoom, "abc123", nil)
	readEnvelope(t, viewer)

	body := `{"kind":"ai_results","payload":{"detected":true,"dominant_emotion":"calm"}}`
	resp, err := http.Post(srv.URL+"/rooms/abc123/telemetry", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	env := readEnvelope(t, viewer)
	assert.Equal(t, signal.TypeAIResults, env.Type)
	assert.Equal(t, "abc123", env.Room)
}

func TestTelemetryIngestRejectsUnknownKind(t *testing.T) {
	srv := startServer(t)

	body := `{"kind":"heartbeat","payload":{}}`
	resp, err := http.Post(srv.URL+"/rooms/abc123/telemetry", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTelemetryIngestRejectsMissingPayload(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Post(srv.URL+"/rooms/abc123/telemetry", "application/json", strings.NewReader(`{"kind":"ai_results"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
