package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/repository"
	"github.com/linguahub/quiz-backend/internal/response"
	"github.com/rs/zerolog"
)

// Authoring errors.
var (
	ErrNotQuizOwner     = errors.New("not the owner of this quiz")
	ErrNoQuestions      = errors.New("quiz has no questions")
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrQuestionNotFound = errors.New("question not found")
	ErrPermissionDenied = errors.New("permission denied")
)

const defaultPassingScore = 70

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	UserID      uuid.UUID
	Role        model.Role
	Permissions []string
}

// Can reports whether the actor holds permission p.
func (a Actor) Can(p model.Permission) bool {
	return slices.Contains(a.Permissions, string(p))
}

// QuizStore is the persistence used for authoring.
type QuizStore interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	List(ctx context.Context, filter model.QuizFilter, limit, offset int) ([]model.QuizSummary, int, error)
	Create(ctx context.Context, q *model.Quiz) error
	Update(ctx context.Context, q *model.Quiz) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context, quizID uuid.UUID) ([]model.Attempt, error)
	Stats(ctx context.Context, quizID uuid.UUID) (*model.QuizStats, error)
}

// CacheInvalidator drops cached quiz definitions.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// QuizService handles quiz and question authoring.
type QuizService struct {
	store QuizStore
	cache CacheInvalidator
	log   zerolog.Logger
}

// NewQuizService creates a new QuizService. cache may be nil.
func NewQuizService(store QuizStore, cache CacheInvalidator, log zerolog.Logger) *QuizService {
	return &QuizService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create stores a new draft quiz owned by the actor.
func (s *QuizService) Create(ctx context.Context, actor Actor, req *model.CreateQuizRequest) (*model.Quiz, error) {
	if !actor.Can(model.PermissionQuizzesWrite) {
		return nil, ErrPermissionDenied
	}

	q := &model.Quiz{
		ID:                         uuid.New(),
		Title:                      strings.TrimSpace(req.Title),
		Description:                req.Description,
		CourseID:                   req.CourseID,
		LanguageID:                 req.LanguageID,
		Level:                      model.QuizLevel(req.Level),
		TimeLimit:                  req.TimeLimit,
		PassingScore:               defaultPassingScore,
		AllowRetake:                true,
		MaxRetakes:                 req.MaxRetakes,
		RandomizeQuestionOrder:     req.RandomizeQuestionOrder,
		ShowAnswersAfterSubmission: req.ShowAnswersAfterSubmission,
		Status:                     model.QuizStatusDraft,
		Questions:                  make([]model.Question, 0, len(req.Questions)),
		CreatedBy:                  actor.UserID,
	}
	if q.Level == "" {
		q.Level = model.QuizLevelBeginner
	}
	if req.PassingScore != nil {
		q.PassingScore = *req.PassingScore
	}
	if req.AllowRetake != nil {
		q.AllowRetake = *req.AllowRetake
	}

	for i := range req.Questions {
		question := req.Questions[i].ToQuestion()
		if err := ValidateQuestion(&question); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		q.Questions = append(q.Questions, question)
	}

	if err := s.store.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	s.log.Info().Str("quiz_id", q.ID.String()).Str("created_by", actor.UserID.String()).Msg("Quiz created")
	return q, nil
}

// Get returns the quiz and whether the actor may edit it. Non-editors never
// see drafts.
func (s *QuizService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.Quiz, bool, error) {
	q, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	canEdit := s.canEdit(actor, q)
	if !canEdit && !q.IsPublished() {
		return nil, false, ErrQuizNotFound
	}
	return q, canEdit, nil
}

// List returns a page of quizzes. Callers without write permission only see published quizzes.
func (s *QuizService) List(ctx context.Context, actor Actor, filter model.QuizFilter, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	if !actor.Can(model.PermissionQuizzesWrite) {
		published := model.QuizStatusPublished
		filter.Status = &published
	}

	quizzes, total, err := s.store.List(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}

	return quizzes, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// Update applies a partial settings update.
func (s *QuizService) Update(ctx context.Context, actor Actor, id uuid.UUID, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	q, err := s.loadEditable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		q.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		q.Description = *req.Description
	}
	if req.CourseID != nil {
		q.CourseID = req.CourseID
	}
	if req.LanguageID != nil {
		q.LanguageID = req.LanguageID
	}
	if req.Level != nil {
		q.Level = model.QuizLevel(*req.Level)
	}
	if req.TimeLimit != nil {
		q.TimeLimit = *req.TimeLimit
	}
	if req.PassingScore != nil {
		q.PassingScore = *req.PassingScore
	}
	if req.AllowRetake != nil {
		q.AllowRetake = *req.AllowRetake
	}
	if req.MaxRetakes != nil {
		q.MaxRetakes = *req.MaxRetakes
	}
	if req.RandomizeQuestionOrder != nil {
		q.RandomizeQuestionOrder = *req.RandomizeQuestionOrder
	}
	if req.ShowAnswersAfterSubmission != nil {
		q.ShowAnswersAfterSubmission = *req.ShowAnswersAfterSubmission
	}

	return q, s.save(ctx, q)
}

// Delete removes the quiz and its attempt history.
func (s *QuizService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.loadEditable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.invalidate(ctx, id)
	s.log.Info().Str("quiz_id", id.String()).Msg("Quiz deleted")
	return nil
}

// Publish makes the quiz attemptable. A quiz without questions cannot be published.
func (s *QuizService) Publish(ctx context.Context, actor Actor, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.loadEditable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if len(q.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	q.Status = model.QuizStatusPublished
	return q, s.save(ctx, q)
}

// Unpublish returns the quiz to draft. Recorded attempts are kept.
func (s *QuizService) Unpublish(ctx context.Context, actor Actor, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.loadEditable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	q.Status = model.QuizStatusDraft
	return q, s.save(ctx, q)
}

// ─── Questions ─────────────────────────────────────────────────────────

// AddQuestion appends a validated question to the quiz.
func (s *QuizService) AddQuestion(ctx context.Context, actor Actor, quizID uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	q, err := s.loadEditable(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	question := req.ToQuestion()
	if err := ValidateQuestion(&question); err != nil {
		return nil, err
	}
	q.Questions = append(q.Questions, question)
	if err := s.save(ctx, q); err != nil {
		return nil, err
	}
	return &question, nil
}

// UpdateQuestion replaces a question in place, keeping its id and position.
func (s *QuizService) UpdateQuestion(ctx context.Context, actor Actor, quizID, questionID uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	q, err := s.loadEditable(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	idx := questionIndex(q, questionID)
	if idx < 0 {
		return nil, ErrQuestionNotFound
	}

	question := req.ToQuestion()
	question.ID = questionID
	if err := ValidateQuestion(&question); err != nil {
		return nil, err
	}
	q.Questions[idx] = question
	if err := s.save(ctx, q); err != nil {
		return nil, err
	}
	return &question, nil
}

// DeleteQuestion removes a question. A published quiz keeps at least one question.
func (s *QuizService) DeleteQuestion(ctx context.Context, actor Actor, quizID, questionID uuid.UUID) error {
	q, err := s.loadEditable(ctx, actor, quizID)
	if err != nil {
		return err
	}
	idx := questionIndex(q, questionID)
	if idx < 0 {
		return ErrQuestionNotFound
	}
	if q.IsPublished() && len(q.Questions) == 1 {
		return ErrNoQuestions
	}
	q.Questions = slices.Delete(q.Questions, idx, idx+1)
	return s.save(ctx, q)
}

// ─── Attempt oversight ─────────────────────────────────────────────────

// ListAttempts returns every attempt on the quiz, newest first.
func (s *QuizService) ListAttempts(ctx context.Context, actor Actor, quizID uuid.UUID) ([]model.Attempt, error) {
	if _, err := s.loadEditable(ctx, actor, quizID); err != nil {
		return nil, err
	}
	attempts, err := s.store.ListAll(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	sortNewestFirst(attempts)
	return attempts, nil
}

// Stats aggregates the quiz's attempt history.
func (s *QuizService) Stats(ctx context.Context, actor Actor, quizID uuid.UUID) (*model.QuizStats, error) {
	if _, err := s.loadEditable(ctx, actor, quizID); err != nil {
		return nil, err
	}
	return s.store.Stats(ctx, quizID)
}

// AuthorizeMonitor checks that the actor may watch live attempts on the quiz.
func (s *QuizService) AuthorizeMonitor(ctx context.Context, actor Actor, quizID uuid.UUID) error {
	if !actor.Can(model.PermissionQuizzesMonitor) {
		return ErrPermissionDenied
	}
	_, err := s.loadEditable(ctx, actor, quizID)
	return err
}

// ValidateQuestion enforces the structural rules for each question type.
// Options are dropped from text-answer questions.
func ValidateQuestion(q *model.Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidQuestion)
	}

	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: multiple choice needs at least 2 options", ErrInvalidQuestion)
		}
		if countCorrect(q.Options) == 0 {
			return fmt.Errorf("%w: multiple choice needs a correct option", ErrInvalidQuestion)
		}
	case model.QuestionTypeTrueFalse:
		if len(q.Options) != 2 {
			return fmt.Errorf("%w: true/false needs exactly 2 options", ErrInvalidQuestion)
		}
		if countCorrect(q.Options) != 1 {
			return fmt.Errorf("%w: true/false needs exactly one correct option", ErrInvalidQuestion)
		}
	case model.QuestionTypeFillInTheBlank, model.QuestionTypeShortAnswer:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("%w: correctAnswer is required", ErrInvalidQuestion)
		}
		q.Options = []model.Option{}
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, q.Type)
	}
	return nil
}

func countCorrect(opts []model.Option) int {
	n := 0
	for _, o := range opts {
		if o.IsCorrect {
			n++
		}
	}
	return n
}

func questionIndex(q *model.Quiz, id uuid.UUID) int {
	return slices.IndexFunc(q.Questions, func(question model.Question) bool {
		return question.ID == id
	})
}

func (s *QuizService) canEdit(actor Actor, q *model.Quiz) bool {
	if actor.Can(model.PermissionQuizzesWriteAll) {
		return true
	}
	return actor.Can(model.PermissionQuizzesWrite) && q.CreatedBy == actor.UserID
}

func (s *QuizService) load(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.store.GetDefinition(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return q, nil
}

func (s *QuizService) loadEditable(ctx context.Context, actor Actor, id uuid.UUID) (*model.Quiz, error) {
	if !actor.Can(model.PermissionQuizzesWrite) {
		return nil, ErrPermissionDenied
	}
	q, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canEdit(actor, q) {
		return nil, ErrNotQuizOwner
	}
	return q, nil
}

func (s *QuizService) save(ctx context.Context, q *model.Quiz) error {
	if err := s.store.Update(ctx, q); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("update quiz: %w", err)
	}
	s.invalidate(ctx, q.ID)
	return nil
}

func (s *QuizService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Failed to invalidate quiz cache")
	}
}
