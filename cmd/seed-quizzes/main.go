package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/linguahub/quiz-backend/internal/config"
	"github.com/linguahub/quiz-backend/internal/database"
	"github.com/linguahub/quiz-backend/internal/logger"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/repository"
	"github.com/linguahub/quiz-backend/internal/service"
)

func main() {
	path := flag.String("file", "seed/quizzes.yaml", "path to the quiz seed file")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("Failed to open seed file")
	}
	seed, err := parseSeed(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid seed file")
	}

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Resolve Owner ─────────────────────────────────────────────────
	owner, err := repository.NewUserRepository(pool).GetByEmail(ctx, seed.Owner)
	if err != nil {
		log.Fatal().Err(err).Str("owner", seed.Owner).Msg("Seed owner not found, create it with create-user first")
	}
	if owner.Role == model.RoleStudent {
		log.Fatal().Str("owner", seed.Owner).Msg("Seed owner must be an instructor or admin")
	}
	actor := service.Actor{
		UserID:      owner.ID,
		Role:        owner.Role,
		Permissions: model.PermissionsFor(owner.Role),
	}

	// Seeding writes straight to Postgres; a running server picks the
	// quizzes up on its next cache miss.
	quizService := service.NewQuizService(repository.NewQuizRepository(pool), nil, log)

	created := 0
	for i := range seed.Quizzes {
		sq := &seed.Quizzes[i]
		quiz, err := quizService.Create(ctx, actor, sq.request())
		if err != nil {
			log.Error().Err(err).Str("title", sq.Title).Msg("Failed to create quiz, skipping")
			continue
		}
		if sq.Publish {
			if _, err := quizService.Publish(ctx, actor, quiz.ID); err != nil {
				log.Error().Err(err).Str("quiz_id", quiz.ID.String()).Msg("Failed to publish quiz")
			}
		}
		created++
	}

	fmt.Printf("Seeded %d of %d quizzes for %s\n", created, len(seed.Quizzes), owner.Email)
}
