package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizStatus enumerates the lifecycle states of a quiz.
type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "draft"
	QuizStatusPublished QuizStatus = "published"
)

type QuizLevel string

const (
	QuizLevelBeginner     QuizLevel = "beginner"
	QuizLevelIntermediate QuizLevel = "intermediate"
	QuizLevelAdvanced     QuizLevel = "advanced"
)

// Quiz is the aggregate root: settings, an ordered question list and an
// append-only attempt history, persisted as one row.
type Quiz struct {
	ID                         uuid.UUID  `json:"id"`
	Title                      string     `json:"title"`
	Description                string     `json:"description"`
	CourseID                   *uuid.UUID `json:"courseId,omitempty"`
	LanguageID                 *uuid.UUID `json:"languageId,omitempty"`
	Level                      QuizLevel  `json:"level"`
	TimeLimit                  int        `json:"timeLimit"`
	PassingScore               int        `json:"passingScore"`
	AllowRetake                bool       `json:"allowRetake"`
	MaxRetakes                 int        `json:"maxRetakes"`
	RandomizeQuestionOrder     bool       `json:"randomizeQuestionOrder"`
	ShowAnswersAfterSubmission bool       `json:"showAnswersAfterSubmission"`
	Status                     QuizStatus `json:"status"`
	Questions                  []Question `json:"questions"`
	Attempts                   []Attempt  `json:"attempts,omitempty"`
	CreatedBy                  uuid.UUID  `json:"createdBy"`
	CreatedAt                  time.Time  `json:"createdAt"`
	UpdatedAt                  time.Time  `json:"updatedAt"`
}

// IsPublished reports whether students can attempt the quiz.
func (q *Quiz) IsPublished() bool {
	return q.Status == QuizStatusPublished
}

// QuestionByID returns the question with the given id, if any.
func (q *Quiz) QuestionByID(id string) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID.String() == id {
			return &q.Questions[i], true
		}
	}
	return nil, false
}

// QuizView is the student-facing quiz: settings plus sanitized questions.
type QuizView struct {
	ID                         uuid.UUID           `json:"id"`
	Title                      string              `json:"title"`
	Description                string              `json:"description"`
	CourseID                   *uuid.UUID          `json:"courseId,omitempty"`
	LanguageID                 *uuid.UUID          `json:"languageId,omitempty"`
	Level                      QuizLevel           `json:"level"`
	TimeLimit                  int                 `json:"timeLimit"`
	PassingScore               int                 `json:"passingScore"`
	AllowRetake                bool                `json:"allowRetake"`
	MaxRetakes                 int                 `json:"maxRetakes"`
	ShowAnswersAfterSubmission bool                `json:"showAnswersAfterSubmission"`
	Status                     QuizStatus          `json:"status"`
	QuestionCount              int                 `json:"questionCount"`
	Questions                  []SanitizedQuestion `json:"questions"`
}

// View builds the sanitized view of q.
func (q *Quiz) View() QuizView {
	questions := make([]SanitizedQuestion, len(q.Questions))
	for i := range q.Questions {
		questions[i] = q.Questions[i].Sanitize()
	}
	return QuizView{
		ID:                         q.ID,
		Title:                      q.Title,
		Description:                q.Description,
		CourseID:                   q.CourseID,
		LanguageID:                 q.LanguageID,
		Level:                      q.Level,
		TimeLimit:                  q.TimeLimit,
		PassingScore:               q.PassingScore,
		AllowRetake:                q.AllowRetake,
		MaxRetakes:                 q.MaxRetakes,
		ShowAnswersAfterSubmission: q.ShowAnswersAfterSubmission,
		Status:                     q.Status,
		QuestionCount:              len(q.Questions),
		Questions:                  questions,
	}
}

// QuizFilter narrows quiz listings. Nil fields are ignored.
type QuizFilter struct {
	Status     *QuizStatus
	Level      *QuizLevel
	CourseID   *uuid.UUID
	LanguageID *uuid.UUID
	CreatedBy  *uuid.UUID
}

// ListQuizzesQuery is the query string accepted by the quiz listing.
type ListQuizzesQuery struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PerPage    int    `form:"per_page" binding:"omitempty,min=1,max=100"`
	Status     string `form:"status" binding:"omitempty,oneof=draft published"`
	Level      string `form:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	CourseID   string `form:"courseId" binding:"omitempty,uuid"`
	LanguageID string `form:"languageId" binding:"omitempty,uuid"`
	CreatedBy  string `form:"createdBy" binding:"omitempty,uuid"`
}

// Filter converts a validated query into a QuizFilter.
func (q *ListQuizzesQuery) Filter() QuizFilter {
	var f QuizFilter
	if q.Status != "" {
		s := QuizStatus(q.Status)
		f.Status = &s
	}
	if q.Level != "" {
		l := QuizLevel(q.Level)
		f.Level = &l
	}
	f.CourseID = parseOptionalUUID(q.CourseID)
	f.LanguageID = parseOptionalUUID(q.LanguageID)
	f.CreatedBy = parseOptionalUUID(q.CreatedBy)
	return f
}

func parseOptionalUUID(s string) *uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// QuizSummary is a quiz row without questions or attempts, used in listings.
type QuizSummary struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	CourseID      *uuid.UUID `json:"courseId,omitempty"`
	LanguageID    *uuid.UUID `json:"languageId,omitempty"`
	Level         QuizLevel  `json:"level"`
	TimeLimit     int        `json:"timeLimit"`
	PassingScore  int        `json:"passingScore"`
	Status        QuizStatus `json:"status"`
	QuestionCount int        `json:"questionCount"`
	CreatedBy     uuid.UUID  `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// QuizStats aggregates a quiz's attempt history.
type QuizStats struct {
	QuizID            uuid.UUID `json:"quizId"`
	TotalAttempts     int       `json:"totalAttempts"`
	UniqueUsers       int       `json:"uniqueUsers"`
	AveragePercentage float64   `json:"averagePercentage"`
	PassRate          float64   `json:"passRate"`
	BestPercentage    int       `json:"bestPercentage"`
}

// CreateQuizRequest is the payload for creating a draft quiz.
type CreateQuizRequest struct {
	Title                      string            `json:"title" binding:"required,notblank,min=3,max=255"`
	Description                string            `json:"description" binding:"omitempty,max=2000"`
	CourseID                   *uuid.UUID        `json:"courseId" binding:"omitempty"`
	LanguageID                 *uuid.UUID        `json:"languageId" binding:"omitempty"`
	Level                      string            `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	TimeLimit                  int               `json:"timeLimit" binding:"min=0,max=600"`
	PassingScore               *int              `json:"passingScore" binding:"omitempty,min=0,max=100"`
	AllowRetake                *bool             `json:"allowRetake"`
	MaxRetakes                 int               `json:"maxRetakes" binding:"min=0,max=100"`
	RandomizeQuestionOrder     bool              `json:"randomizeQuestionOrder"`
	ShowAnswersAfterSubmission bool              `json:"showAnswersAfterSubmission"`
	Questions                  []QuestionRequest `json:"questions" binding:"omitempty,max=200,dive"`
}

// UpdateQuizRequest is the payload for a partial quiz update.
type UpdateQuizRequest struct {
	Title                      *string    `json:"title" binding:"omitempty,notblank,min=3,max=255"`
	Description                *string    `json:"description" binding:"omitempty,max=2000"`
	CourseID                   *uuid.UUID `json:"courseId" binding:"omitempty"`
	LanguageID                 *uuid.UUID `json:"languageId" binding:"omitempty"`
	Level                      *string    `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	TimeLimit                  *int       `json:"timeLimit" binding:"omitempty,min=0,max=600"`
	PassingScore               *int       `json:"passingScore" binding:"omitempty,min=0,max=100"`
	AllowRetake                *bool      `json:"allowRetake"`
	MaxRetakes                 *int       `json:"maxRetakes" binding:"omitempty,min=0,max=100"`
	RandomizeQuestionOrder     *bool      `json:"randomizeQuestionOrder"`
	ShowAnswersAfterSubmission *bool      `json:"showAnswersAfterSubmission"`
}
