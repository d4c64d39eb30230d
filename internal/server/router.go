// Package server wires the signaling hub into an HTTP surface: the
// websocket upgrade endpoint, a health check, and the telemetry ingest
// used by analysis workers that post results over plain HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peerview/peerview/internal/hub"
	"github.com/peerview/peerview/internal/signal"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The server is deployed behind a proxy that pins the origin, so the
	// upgrade itself accepts any.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SetupRouter builds the gin engine serving the signaling endpoints.
func SetupRouter(h *hub.Hub, release bool) *gin.Engine {
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/ws", serveWs(h))

	r.POST("/rooms/:room/telemetry", ingestTelemetry(h))

	return r
}

// serveWs upgrades the HTTP connection and hands it to the hub.
func serveWs(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Str("module", "server").Err(err).Msg("websocket upgrade failed")
			return
		}

		client := hub.NewClient(h, conn)
		h.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

type telemetryRequest struct {
	Kind    string         `json:"kind" binding:"required"`
	Payload map[string]any `json:"payload" binding:"required"`
}

// ingestTelemetry accepts analysis results over HTTP and fans them out to
// the room as if a peer had emitted them over the socket.
func ingestTelemetry(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		room := c.Param("room")

		var req telemetryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid kind/payload"})
			return
		}

		if req.Kind != signal.TypeAIResults && req.Kind != signal.TypeVocalResults {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown telemetry kind"})
			return
		}

		env, err := signal.New(req.Kind, room, req.Payload)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unencodable payload"})
			return
		}

		h.Inject(env)
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}
