package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/service"
	ws "github.com/linguahub/quiz-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keepAliveInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams submitted attempts of a quiz to its editors.
type MonitorHandler struct {
	quizService *service.QuizService
	events      *service.EventPublisher
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(quizService *service.QuizService, events *service.EventPublisher, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		quizService: quizService,
		events:      events,
		upgrader:    buildUpgrader(allowedOrigins),
		log:         log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorQuiz godoc
// WS /ws/v1/quizzes/:id/monitor
// Authorization is checked before the upgrade so failures are plain HTTP errors.
func (h *MonitorHandler) MonitorQuiz(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.quizService.AuthorizeMonitor(c.Request.Context(), a, quizID); err != nil {
		failWithError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("quiz_id", quizID.String()).
		Str("user_id", a.UserID.String()).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.events.Subscribe(ctx, quizID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		_ = ws.WriteError(conn, "subscription failed")
		return
	}

	if err := ws.WriteTyped(conn, ws.ReadyResponse{Event: ws.EventReady, QuizID: quizID.String()}); err != nil {
		return
	}
	wsLog.Info().Msg("Monitor attached")

	pings := make(chan struct{}, 1)
	go h.readLoop(ctx, cancel, conn, pings, wsLog)

	h.writeLoop(ctx, conn, pubsub.Channel(), pings, quizID, wsLog)
	wsLog.Info().Msg("Monitor detached")
}

// readLoop consumes client frames until the connection fails. It is the
// only reader; all writes happen in writeLoop.
func (h *MonitorHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, pings chan<- struct{}, wsLog zerolog.Logger) {
	defer cancel()
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ws.ReadWait))
	})

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		switch msg.Action {
		case ws.ActionPing:
			select {
			case pings <- struct{}{}:
			case <-ctx.Done():
				return
			default:
			}
		default:
			wsLog.Debug().Str("action", string(msg.Action)).Msg("Ignoring unknown action")
		}
	}
}

func (h *MonitorHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan *redis.Message, pings <-chan struct{}, quizID uuid.UUID, wsLog zerolog.Logger) {
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-events:
			if !ok {
				return
			}
			var ev model.AttemptEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping undecodable attempt event")
				continue
			}
			if ev.QuizID != quizID {
				continue
			}
			if err := ws.WriteTyped(conn, ws.AttemptResponse{Event: ws.EventAttempt, Attempt: ev}); err != nil {
				return
			}

		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}

		case <-keepAlive.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
