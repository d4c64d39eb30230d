// Package analysis is the HTTP client for the emotion/vocal analysis
// service. Frames and audio chunks are posted as base64 payloads and the
// per-session state is closed out with a best-effort beacon.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 15 * time.Second

// FrameResult is the response of a single frame analysis.
type FrameResult struct {
	Detected        bool               `json:"detected"`
	DominantEmotion string             `json:"dominant_emotion,omitempty"`
	Emotions        map[string]float64 `json:"emotions,omitempty"`
	ConfidenceScore float64            `json:"confidence_score,omitempty"`
	GazeScore       float64            `json:"gaze_score,omitempty"`
	StabilityScore  float64            `json:"stability_score,omitempty"`
}

// AudioResult is the response of a single audio chunk analysis.
type AudioResult struct {
	Success     bool    `json:"success"`
	Fluency     float64 `json:"fluency"`
	IsSpeaking  bool    `json:"is_speaking"`
	VocalStatus string  `json:"vocal_status,omitempty"`
}

type frameRequest struct {
	Image     string `json:"image"`
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id,omitempty"`
}

type audioRequest struct {
	Audio     string `json:"audio"`
	SessionID string `json:"session_id"`
	RoomID    string `json:"room_id,omitempty"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

// Client talks to the analysis service.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for the analysis service at baseURL.
func NewClient(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Client{http: rc}
}

// Analyze posts a base64-encoded video frame for emotion analysis.
func (c *Client) Analyze(ctx context.Context, sessionID, roomID, image string) (*FrameResult, error) {
	var result FrameResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(frameRequest{Image: image, SessionID: sessionID, RoomID: roomID}).
		SetResult(&result).
		Post("/analyze")
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analyze: unexpected status %s", resp.Status())
	}
	return &result, nil
}

// AnalyzeAudio posts a base64-encoded audio chunk for vocal analysis.
func (c *Client) AnalyzeAudio(ctx context.Context, sessionID, roomID, audio string) (*AudioResult, error) {
	var result AudioResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(audioRequest{Audio: audio, SessionID: sessionID, RoomID: roomID}).
		SetResult(&result).
		Post("/analyze_audio")
	if err != nil {
		return nil, fmt.Errorf("analyze audio: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analyze audio: unexpected status %s", resp.Status())
	}
	return &result, nil
}

// EndSession tells the service to discard the per-session analysis state.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(endSessionRequest{SessionID: sessionID}).
		Post("/end_session")
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("end session: unexpected status %s", resp.Status())
	}
	return nil
}

// EndSessionBeacon fires EndSession with a short deadline. Used on
// teardown, where the process exits right after; the call must complete
// before returning or the service never hears about it.
func (c *Client) EndSessionBeacon(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.EndSession(ctx, sessionID); err != nil {
		log.Warn().Str("module", "analysis").Err(err).Msg("end session beacon failed")
	}
}
