package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/linguahub/quiz-backend/internal/config"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventPublisher fans attempt events out over Redis Pub/Sub, one channel per quiz.
type EventPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(rdb *redis.Client, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		rdb: rdb,
		log: log.With().Str("component", "event_publisher").Logger(),
	}
}

// PublishAttempt broadcasts ev. Failures are logged and otherwise ignored.
func (p *EventPublisher) PublishAttempt(ctx context.Context, ev model.AttemptEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to encode attempt event")
		return
	}
	channel := config.CacheKey.QuizAttemptsChannel(ev.QuizID.String())
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Warn().Err(err).Str("channel", channel).Msg("Failed to publish attempt event")
	}
}

// Subscribe opens a subscription to a quiz's attempt events. The caller closes it.
func (p *EventPublisher) Subscribe(ctx context.Context, quizID uuid.UUID) *redis.PubSub {
	return p.rdb.Subscribe(ctx, config.CacheKey.QuizAttemptsChannel(quizID.String()))
}
