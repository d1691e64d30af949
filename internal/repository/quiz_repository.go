package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linguahub/quiz-backend/internal/model"
)

// QuizRepository stores quizzes as single rows. Questions and attempts are
// JSONB arrays on the row, so a quiz and its children are read and written
// together.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizDefinitionColumns = `id, title, description, course_id, language_id, level,
	time_limit, passing_score, allow_retake, max_retakes,
	randomize_question_order, show_answers_after_submission,
	status, questions, created_by, created_at, updated_at`

// GetDefinition loads a quiz's settings and questions without its attempts.
func (r *QuizRepository) GetDefinition(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+quizDefinitionColumns+` FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Description, &q.CourseID, &q.LanguageID, &q.Level,
		&q.TimeLimit, &q.PassingScore, &q.AllowRetake, &q.MaxRetakes,
		&q.RandomizeQuestionOrder, &q.ShowAnswersAfterSubmission,
		&q.Status, &q.Questions, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz %s: %w", id, err)
	}
	return q, nil
}

// List returns a page of quiz summaries matching filter, newest first, and the total match count.
func (r *QuizRepository) List(ctx context.Context, filter model.QuizFilter, limit, offset int) ([]model.QuizSummary, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, expr+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != nil {
		add("status", *filter.Status)
	}
	if filter.Level != nil {
		add("level", *filter.Level)
	}
	if filter.CourseID != nil {
		add("course_id", *filter.CourseID)
	}
	if filter.LanguageID != nil {
		add("language_id", *filter.LanguageID)
	}
	if filter.CreatedBy != nil {
		add("created_by", *filter.CreatedBy)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quizzes: %w", err)
	}

	query := `SELECT id, title, description, course_id, language_id, level, time_limit,
	                 passing_score, status, jsonb_array_length(questions), created_by, created_at, updated_at
	          FROM quizzes` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := make([]model.QuizSummary, 0, limit)
	for rows.Next() {
		var s model.QuizSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.CourseID, &s.LanguageID, &s.Level, &s.TimeLimit,
			&s.PassingScore, &s.Status, &s.QuestionCount, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		quizzes = append(quizzes, s)
	}
	return quizzes, total, rows.Err()
}

// Create inserts a new quiz with an empty attempt history.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	if q.Questions == nil {
		q.Questions = []model.Question{}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (id, title, description, course_id, language_id, level,
		                      time_limit, passing_score, allow_retake, max_retakes,
		                      randomize_question_order, show_answers_after_submission,
		                      status, questions, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING created_at, updated_at`,
		q.ID, q.Title, q.Description, q.CourseID, q.LanguageID, q.Level,
		q.TimeLimit, q.PassingScore, q.AllowRetake, q.MaxRetakes,
		q.RandomizeQuestionOrder, q.ShowAnswersAfterSubmission,
		q.Status, q.Questions, q.CreatedBy,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}

// Update overwrites a quiz's settings, status and questions. The attempt
// history is never touched here.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	if q.Questions == nil {
		q.Questions = []model.Question{}
	}
	err := r.pool.QueryRow(ctx,
		`UPDATE quizzes SET title = $2, description = $3, course_id = $4, language_id = $5, level = $6,
		        time_limit = $7, passing_score = $8, allow_retake = $9, max_retakes = $10,
		        randomize_question_order = $11, show_answers_after_submission = $12,
		        status = $13, questions = $14, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		q.ID, q.Title, q.Description, q.CourseID, q.LanguageID, q.Level,
		q.TimeLimit, q.PassingScore, q.AllowRetake, q.MaxRetakes,
		q.RandomizeQuestionOrder, q.ShowAnswersAfterSubmission,
		q.Status, q.Questions,
	).Scan(&q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update quiz %s: %w", q.ID, err)
	}
	return nil
}

// Delete removes a quiz together with its attempt history.
func (r *QuizRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete quiz %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPublishedIDs returns the ids of every published quiz.
func (r *QuizRepository) ListPublishedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM quizzes WHERE status = 'published'`)
	if err != nil {
		return nil, fmt.Errorf("list published quizzes: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan quiz id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Attempts ──────────────────────────────────────────────────────────

// CountByUser returns how many attempts userID has recorded on the quiz.
func (r *QuizRepository) CountByUser(ctx context.Context, quizID, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quizzes q, jsonb_array_elements(q.attempts) AS a
		 WHERE q.id = $1 AND a->>'userId' = $2`,
		quizID, userID.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

// ListByUser returns userID's attempts on the quiz in storage (submission) order.
func (r *QuizRepository) ListByUser(ctx context.Context, quizID, userID uuid.UUID) ([]model.Attempt, error) {
	return r.queryAttempts(ctx,
		`SELECT t.a FROM quizzes q, jsonb_array_elements(q.attempts) WITH ORDINALITY AS t(a, idx)
		 WHERE q.id = $1 AND t.a->>'userId' = $2
		 ORDER BY t.idx`,
		quizID, userID.String())
}

// ListAll returns every attempt on the quiz in storage order.
func (r *QuizRepository) ListAll(ctx context.Context, quizID uuid.UUID) ([]model.Attempt, error) {
	return r.queryAttempts(ctx,
		`SELECT t.a FROM quizzes q, jsonb_array_elements(q.attempts) WITH ORDINALITY AS t(a, idx)
		 WHERE q.id = $1
		 ORDER BY t.idx`,
		quizID)
}

func (r *QuizRepository) queryAttempts(ctx context.Context, query string, args ...any) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []model.Attempt{}
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Append adds an attempt to the quiz's history in a single statement. The
// write only applies while the quiz is published.
func (r *QuizRepository) Append(ctx context.Context, quizID uuid.UUID, a *model.Attempt) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET attempts = attempts || jsonb_build_array($2::jsonb)
		 WHERE id = $1 AND status = 'published'`,
		quizID, a,
	)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status model.QuizStatus
	err = r.pool.QueryRow(ctx, `SELECT status FROM quizzes WHERE id = $1`, quizID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return ErrQuizNotPublished
}

// Stats aggregates the quiz's attempt history in SQL.
func (r *QuizRepository) Stats(ctx context.Context, quizID uuid.UUID) (*model.QuizStats, error) {
	s := &model.QuizStats{QuizID: quizID}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(a)::int,
		        COUNT(DISTINCT a->>'userId')::int,
		        COALESCE(AVG((a->'score'->>'percentage')::int), 0)::float8,
		        COALESCE(AVG(CASE WHEN (a->>'passed')::boolean THEN 100.0 ELSE 0.0 END), 0)::float8,
		        COALESCE(MAX((a->'score'->>'percentage')::int), 0)::int
		 FROM quizzes q LEFT JOIN LATERAL jsonb_array_elements(q.attempts) AS a ON true
		 WHERE q.id = $1`,
		quizID,
	).Scan(&s.TotalAttempts, &s.UniqueUsers, &s.AveragePercentage, &s.PassRate, &s.BestPercentage)
	if err != nil {
		return nil, fmt.Errorf("quiz stats: %w", err)
	}
	return s, nil
}
