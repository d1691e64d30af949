package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/linguahub/quiz-backend/internal/config"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const loadTimeout = 5 * time.Second

var errStaleFill = errors.New("quiz definition changed during load")

// DefinitionLoader fetches a quiz definition from the backing store.
type DefinitionLoader interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
}

// QuizCache keeps quiz definitions (settings and questions, never attempts)
// in Redis as JSON and falls back to the loader on a miss. Concurrent misses
// for the same quiz share one load.
type QuizCache struct {
	client *redis.Client
	loader DefinitionLoader
	ttl    time.Duration
	sf     singleflight.Group
	log    zerolog.Logger
}

// NewQuizCache creates a new QuizCache.
func NewQuizCache(client *redis.Client, loader DefinitionLoader, ttl time.Duration, log zerolog.Logger) *QuizCache {
	return &QuizCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With().Str("component", "quiz_cache").Logger(),
	}
}

// GetDefinition returns the quiz definition, serving from Redis when possible.
// Each call returns its own copy.
func (c *QuizCache) GetDefinition(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	key := config.CacheKey.QuizDefinitionKey(id.String())

	if q, _ := c.cached(ctx, id, key); q != nil {
		return q, nil
	}

	raw, err, _ := c.sf.Do(id.String(), func() (any, error) {
		// Waiting callers share this load, so it outlives the request that started it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		// Another caller may have filled the entry while we waited.
		if _, raw := c.cached(loadCtx, id, key); raw != nil {
			return raw, nil
		}
		return c.fill(loadCtx, id, key)
	})
	if err != nil {
		return nil, err
	}
	return decodeQuiz(raw.([]byte))
}

// cached reads the entry for id. A miss or a Redis failure yields nils; an
// entry that does not decode is deleted.
func (c *QuizCache) cached(ctx context.Context, id uuid.UUID, key string) (*model.Quiz, []byte) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Cache read failed, falling back to store")
		}
		return nil, nil
	}
	q, err := decodeQuiz(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Discarding undecodable cache entry")
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Cache delete failed")
		}
		return nil, nil
	}
	return q, raw
}

// fill loads the definition from the store and caches it, unless the quiz was
// invalidated while the load was running.
func (c *QuizCache) fill(ctx context.Context, id uuid.UUID, key string) ([]byte, error) {
	versionKey := config.CacheKey.QuizVersionKey(id.String())

	// Must be read before loading.
	version, verErr := c.client.Get(ctx, versionKey).Result()
	if errors.Is(verErr, redis.Nil) {
		version, verErr = "", nil
	}

	q, err := c.loader.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Attempts = nil

	raw, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}

	if verErr != nil {
		c.log.Warn().Err(verErr).Str("quiz_id", id.String()).Msg("Cache version read failed, skipping cache write")
		return raw, nil
	}
	if err := c.storeIfCurrent(ctx, key, versionKey, version, raw); err != nil {
		c.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Cache write failed")
	}
	return raw, nil
}

// storeIfCurrent writes raw only while versionKey still holds version.
func (c *QuizCache) storeIfCurrent(ctx context.Context, key, versionKey, version string, raw []byte) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttlWithJitter())
			return nil
		})
		return err
	}, versionKey)

	if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
		c.log.Debug().Str("key", key).Msg("Quiz changed during load, not caching")
		return nil
	}
	return err
}

// Prewarm loads the given quizzes into Redis in one pipeline, skipping any
// that fail to load. It returns how many were written.
func (c *QuizCache) Prewarm(ctx context.Context, ids []uuid.UUID) (int, error) {
	pipe := c.client.Pipeline()
	warmed := 0
	for _, id := range ids {
		q, err := c.loader.GetDefinition(ctx, id)
		if err != nil {
			c.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Failed to warm quiz, skipping")
			continue
		}
		q.Attempts = nil
		raw, err := json.Marshal(q)
		if err != nil {
			return warmed, err
		}
		pipe.Set(ctx, config.CacheKey.QuizDefinitionKey(id.String()), raw, c.ttlWithJitter())
		warmed++
	}
	if warmed == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("prewarm pipeline: %w", err)
	}
	return warmed, nil
}

// Invalidate drops the cached definition so the next read reloads it. Loads
// already running when it is called will not write their result back.
func (c *QuizCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, config.CacheKey.QuizVersionKey(id.String()))
		pipe.Del(ctx, config.CacheKey.QuizDefinitionKey(id.String()))
		return nil
	})
	c.sf.Forget(id.String())
	return err
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

func decodeQuiz(raw []byte) (*model.Quiz, error) {
	q := &model.Quiz{}
	if err := json.Unmarshal(raw, q); err != nil {
		return nil, err
	}
	return q, nil
}
