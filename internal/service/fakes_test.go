package service

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/repository"
	"github.com/rs/zerolog"
)

// memStore is an in-memory quiz store with the same semantics as the
// Postgres repository: definitions come back without attempts, and Append
// only succeeds on published quizzes.
type memStore struct {
	mu      sync.Mutex
	quizzes map[uuid.UUID]*model.Quiz

	// countGate, when set, is entered by every CountByUser after it has read
	// its count, and released before returning.
	countGate *sync.WaitGroup
}

func newMemStore(quizzes ...*model.Quiz) *memStore {
	s := &memStore{quizzes: map[uuid.UUID]*model.Quiz{}}
	for _, q := range quizzes {
		s.quizzes[q.ID] = q
	}
	return s
}

func (s *memStore) GetDefinition(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	cp.Questions = slices.Clone(q.Questions)
	cp.Attempts = nil
	return &cp, nil
}

func (s *memStore) List(_ context.Context, filter model.QuizFilter, limit, offset int) ([]model.QuizSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.QuizSummary
	for _, q := range s.quizzes {
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		out = append(out, model.QuizSummary{ID: q.ID, Title: q.Title, Status: q.Status, QuestionCount: len(q.Questions)})
	}
	total := len(out)
	if offset >= total {
		return []model.QuizSummary{}, total, nil
	}
	return out[offset:min(total, offset+limit)], total, nil
}

func (s *memStore) Create(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	cp.Questions = slices.Clone(q.Questions)
	s.quizzes[q.ID] = &cp
	return nil
}

func (s *memStore) Update(_ context.Context, q *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.quizzes[q.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *q
	cp.Questions = slices.Clone(q.Questions)
	cp.Attempts = existing.Attempts
	s.quizzes[q.ID] = &cp
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.quizzes, id)
	return nil
}

func (s *memStore) CountByUser(_ context.Context, quizID, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	n := 0
	if q, ok := s.quizzes[quizID]; ok {
		for _, a := range q.Attempts {
			if a.UserID == userID {
				n++
			}
		}
	}
	gate := s.countGate
	s.mu.Unlock()

	if gate != nil {
		gate.Done()
		gate.Wait()
	}
	return n, nil
}

func (s *memStore) ListByUser(_ context.Context, quizID, userID uuid.UUID) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Attempt{}
	if q, ok := s.quizzes[quizID]; ok {
		for _, a := range q.Attempts {
			if a.UserID == userID {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (s *memStore) ListAll(_ context.Context, quizID uuid.UUID) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.quizzes[quizID]; ok {
		return slices.Clone(q.Attempts), nil
	}
	return []model.Attempt{}, nil
}

func (s *memStore) Append(_ context.Context, quizID uuid.UUID, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[quizID]
	if !ok {
		return repository.ErrNotFound
	}
	if !q.IsPublished() {
		return repository.ErrQuizNotPublished
	}
	q.Attempts = append(q.Attempts, *a)
	return nil
}

func (s *memStore) Stats(_ context.Context, quizID uuid.UUID) (*model.QuizStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.QuizStats{QuizID: quizID}
	q, ok := s.quizzes[quizID]
	if !ok {
		return stats, nil
	}
	users := map[uuid.UUID]struct{}{}
	sum, passed := 0, 0
	for _, a := range q.Attempts {
		users[a.UserID] = struct{}{}
		sum += a.Score.Percentage
		if a.Passed {
			passed++
		}
		stats.BestPercentage = max(stats.BestPercentage, a.Score.Percentage)
	}
	stats.TotalAttempts = len(q.Attempts)
	stats.UniqueUsers = len(users)
	if stats.TotalAttempts > 0 {
		stats.AveragePercentage = float64(sum) / float64(stats.TotalAttempts)
		stats.PassRate = float64(passed) * 100 / float64(stats.TotalAttempts)
	}
	return stats, nil
}

func (s *memStore) attemptCount(quizID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quizzes[quizID].Attempts)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.AttemptEvent
}

func (n *recordingNotifier) PublishAttempt(_ context.Context, ev model.AttemptEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

type recordingInvalidator struct {
	ids []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id uuid.UUID) error {
	r.ids = append(r.ids, id)
	return nil
}

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestAttemptService(store *memStore, notifier AttemptNotifier) *AttemptService {
	svc := NewAttemptService(store, store, notifier, zerolog.New(io.Discard))
	svc.now = func() time.Time { return testNow }
	return svc
}

func option(text string, correct bool) model.Option {
	return model.Option{ID: uuid.New(), Text: text, IsCorrect: correct}
}

func mcQuestion(points int) model.Question {
	return model.Question{
		ID:          uuid.New(),
		Text:        "Pick the Spanish word for cat",
		Type:        model.QuestionTypeMultipleChoice,
		Options:     []model.Option{option("perro", false), option("gato", true), option("pez", false)},
		Explanation: "Gato means cat.",
		Points:      points,
	}
}

func tfQuestion(points int) model.Question {
	return model.Question{
		ID:      uuid.New(),
		Text:    "'Merci' means thank you",
		Type:    model.QuestionTypeTrueFalse,
		Options: []model.Option{option("True", true), option("False", false)},
		Points:  points,
	}
}

func fibQuestion(points int) model.Question {
	return model.Question{
		ID:            uuid.New(),
		Text:          "Ich ___ Student",
		Type:          model.QuestionTypeFillInTheBlank,
		CorrectAnswer: "bin",
		Points:        points,
	}
}

func saQuestion(points int) model.Question {
	return model.Question{
		ID:            uuid.New(),
		Text:          "Translate 'good morning' into Italian",
		Type:          model.QuestionTypeShortAnswer,
		CorrectAnswer: "buongiorno",
		Points:        points,
	}
}

func publishedQuiz(questions ...model.Question) *model.Quiz {
	return &model.Quiz{
		ID:           uuid.New(),
		Title:        "Vocabulary check",
		Level:        model.QuizLevelBeginner,
		PassingScore: 70,
		AllowRetake:  true,
		Status:       model.QuizStatusPublished,
		Questions:    questions,
		CreatedBy:    uuid.New(),
	}
}

func correctOptionID(q model.Question) string {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID.String()
		}
	}
	return ""
}

func wrongOptionID(q model.Question) string {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID.String()
		}
	}
	return ""
}

func submission(start time.Time, answers ...model.AnswerInput) *model.SubmitAttemptRequest {
	return &model.SubmitAttemptRequest{Answers: answers, StartTime: &start}
}

func answer(q model.Question, userAnswer string) model.AnswerInput {
	return model.AnswerInput{QuestionID: q.ID.String(), UserAnswer: userAnswer}
}
