package websocket

import "github.com/linguahub/quiz-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventReady   Event = "ready"
	EventAttempt Event = "attempt"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// ReadyResponse is sent once the subscription is live.
type ReadyResponse struct {
	Event  Event  `json:"event"`
	QuizID string `json:"quiz_id"`
}

// AttemptResponse carries one stored attempt.
type AttemptResponse struct {
	Event   Event              `json:"event"`
	Attempt model.AttemptEvent `json:"attempt"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
