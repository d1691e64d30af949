package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/repository"
	"github.com/rs/zerolog"
)

// Attempt errors.
var (
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrQuizNotPublished   = errors.New("quiz is not published")
	ErrRetakeLimitReached = errors.New("retake limit reached")
	ErrTimeLimitExceeded  = errors.New("time limit exceeded")
	ErrNoAttempts         = errors.New("no attempts for this quiz")
	ErrInvalidSubmission  = errors.New("answers and startTime are required")
)

// QuizReader loads quiz definitions.
type QuizReader interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
}

// AttemptStore persists the attempt history of quizzes.
type AttemptStore interface {
	CountByUser(ctx context.Context, quizID, userID uuid.UUID) (int, error)
	ListByUser(ctx context.Context, quizID, userID uuid.UUID) ([]model.Attempt, error)
	ListAll(ctx context.Context, quizID uuid.UUID) ([]model.Attempt, error)
	Append(ctx context.Context, quizID uuid.UUID, a *model.Attempt) error
}

// AttemptNotifier is told about every stored attempt. Delivery is best effort.
type AttemptNotifier interface {
	PublishAttempt(ctx context.Context, ev model.AttemptEvent)
}

// AttemptService runs the attempt lifecycle: start, submit and results.
// No per-attempt state is held between start and submit; the client carries
// the issued startTime forward.
type AttemptService struct {
	quizzes  QuizReader
	attempts AttemptStore
	notifier AttemptNotifier
	log      zerolog.Logger

	now     func() time.Time
	shuffle func([]model.Question)
}

// NewAttemptService creates a new AttemptService. notifier may be nil.
func NewAttemptService(quizzes QuizReader, attempts AttemptStore, notifier AttemptNotifier, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		quizzes:  quizzes,
		attempts: attempts,
		notifier: notifier,
		log:      log.With().Str("component", "attempt_service").Logger(),
		now:      time.Now,
		shuffle: func(qs []model.Question) {
			rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		},
	}
}

// StartAttempt checks eligibility and returns the sanitized questions with a
// fresh startTime. Nothing is persisted.
func (s *AttemptService) StartAttempt(ctx context.Context, quizID, userID uuid.UUID) (*model.AttemptStart, error) {
	quiz, err := s.loadPublished(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRetake(ctx, quiz, userID); err != nil {
		return nil, err
	}

	questions := make([]model.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	if quiz.RandomizeQuestionOrder {
		s.shuffle(questions)
	}

	sanitized := make([]model.SanitizedQuestion, len(questions))
	for i := range questions {
		sanitized[i] = questions[i].Sanitize()
	}

	return &model.AttemptStart{
		QuizID:      quiz.ID,
		Title:       quiz.Title,
		Description: quiz.Description,
		TimeLimit:   quiz.TimeLimit,
		Questions:   sanitized,
		StartTime:   s.now().UTC(),
	}, nil
}

// SubmitAttempt grades answers, appends the attempt and returns the result.
// A submission over the time limit is rejected whole and nothing is stored.
func (s *AttemptService) SubmitAttempt(ctx context.Context, quizID, userID uuid.UUID, req *model.SubmitAttemptRequest) (*model.AttemptResult, error) {
	if req == nil || len(req.Answers) == 0 || req.StartTime == nil {
		return nil, ErrInvalidSubmission
	}

	quiz, err := s.loadPublished(ctx, quizID)
	if err != nil {
		return nil, err
	}

	// startTime is taken as sent; it is not matched to an issued value.
	now := s.now().UTC()
	timeTaken := int(math.Round(now.Sub(*req.StartTime).Minutes()))
	if quiz.TimeLimit > 0 && timeTaken > quiz.TimeLimit {
		return nil, ErrTimeLimitExceeded
	}
	if timeTaken < 0 {
		timeTaken = 0
	}

	if err := s.checkRetake(ctx, quiz, userID); err != nil {
		return nil, err
	}

	answers, score := gradeAnswers(quiz, req.Answers)
	attempt := &model.Attempt{
		ID:          uuid.New(),
		UserID:      userID,
		SubmittedAt: now,
		TimeTaken:   timeTaken,
		Answers:     answers,
		Score:       score,
		Passed:      score.Percentage >= quiz.PassingScore,
	}

	if err := s.attempts.Append(ctx, quiz.ID, attempt); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrQuizNotFound
		case errors.Is(err, repository.ErrQuizNotPublished):
			return nil, ErrQuizNotPublished
		}
		return nil, fmt.Errorf("store attempt: %w", err)
	}

	s.log.Info().
		Str("quiz_id", quiz.ID.String()).
		Str("user_id", userID.String()).
		Int("percentage", score.Percentage).
		Bool("passed", attempt.Passed).
		Msg("Attempt submitted")

	if s.notifier != nil {
		s.notifier.PublishAttempt(ctx, model.AttemptEvent{
			Event:       model.EventAttemptSubmitted,
			QuizID:      quiz.ID,
			UserID:      userID,
			AttemptID:   attempt.ID,
			Percentage:  score.Percentage,
			Passed:      attempt.Passed,
			SubmittedAt: now,
		})
	}

	return &model.AttemptResult{
		AttemptID:   attempt.ID,
		Score:       score,
		Passed:      attempt.Passed,
		TimeTaken:   timeTaken,
		Answers:     answers,
		ShowAnswers: quiz.ShowAnswersAfterSubmission,
		SubmittedAt: now,
	}, nil
}

// GetResults summarizes userID's attempts on the quiz, newest first. Results
// stay readable after the quiz is unpublished.
func (s *AttemptService) GetResults(ctx context.Context, quizID, userID uuid.UUID) (*model.ResultsSummary, error) {
	quiz, err := s.load(ctx, quizID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.attempts.ListByUser(ctx, quiz.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if len(attempts) == 0 {
		// Without history to show, a draft looks the same as a missing quiz.
		if !quiz.IsPublished() {
			return nil, ErrQuizNotFound
		}
		return nil, ErrNoAttempts
	}

	sortNewestFirst(attempts)

	best := 0
	for i := 1; i < len(attempts); i++ {
		if attempts[i].Score.Percentage > attempts[best].Score.Percentage {
			best = i
		}
	}

	return &model.ResultsSummary{
		TotalAttempts: len(attempts),
		LatestAttempt: &attempts[0],
		BestAttempt:   &attempts[best],
		CanRetake:     quiz.AllowRetake && (quiz.MaxRetakes == 0 || len(attempts) < quiz.MaxRetakes),
		Attempts:      attempts,
	}, nil
}

func (s *AttemptService) load(ctx context.Context, quizID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizzes.GetDefinition(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return quiz, nil
}

func (s *AttemptService) loadPublished(ctx context.Context, quizID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.load(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsPublished() {
		return nil, ErrQuizNotPublished
	}
	return quiz, nil
}

// checkRetake reads the prior-attempt count and applies the retake policy.
// The read and the later append are separate operations, so concurrent
// submissions can each pass against the same count.
func (s *AttemptService) checkRetake(ctx context.Context, quiz *model.Quiz, userID uuid.UUID) error {
	prior, err := s.attempts.CountByUser(ctx, quiz.ID, userID)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if !quiz.AllowRetake && prior > 0 {
		return ErrRetakeLimitReached
	}
	if quiz.MaxRetakes != 0 && prior >= quiz.MaxRetakes {
		return ErrRetakeLimitReached
	}
	return nil
}

func sortNewestFirst(attempts []model.Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].SubmittedAt.After(attempts[j].SubmittedAt)
	})
}
