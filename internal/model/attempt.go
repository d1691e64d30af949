package model

import (
	"time"

	"github.com/google/uuid"
)

// Score is the point breakdown of one attempt.
type Score struct {
	Earned     int `json:"earned"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// GradedAnswer is the grading outcome for a single submitted answer.
// CorrectAnswer and Explanation are only populated when the quiz reveals answers.
type GradedAnswer struct {
	QuestionID    uuid.UUID `json:"questionId"`
	UserAnswer    string    `json:"userAnswer"`
	IsCorrect     bool      `json:"isCorrect"`
	PointsEarned  int       `json:"pointsEarned"`
	CorrectAnswer *string   `json:"correctAnswer,omitempty"`
	Explanation   *string   `json:"explanation,omitempty"`
}

// Attempt is one scored submission. Attempts are never mutated once stored.
type Attempt struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"userId"`
	SubmittedAt time.Time      `json:"submittedAt"`
	TimeTaken   int            `json:"timeTaken"`
	Answers     []GradedAnswer `json:"answers"`
	Score       Score          `json:"score"`
	Passed      bool           `json:"passed"`
}

// AnswerInput is one client answer: an option id for choice questions,
// free text otherwise.
type AnswerInput struct {
	QuestionID string `json:"questionId" binding:"required"`
	UserAnswer string `json:"userAnswer"`
}

// SubmitAttemptRequest is the submit payload. StartTime is the value issued
// by StartAttempt and is trusted as sent.
type SubmitAttemptRequest struct {
	Answers   []AnswerInput `json:"answers" binding:"required,min=1,dive"`
	StartTime *time.Time    `json:"startTime" binding:"required"`
}

// AttemptStart is the payload returned when an attempt begins.
type AttemptStart struct {
	QuizID      uuid.UUID           `json:"quizId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	TimeLimit   int                 `json:"timeLimit"`
	Questions   []SanitizedQuestion `json:"questions"`
	StartTime   time.Time           `json:"startTime"`
}

// AttemptResult is returned from a successful submission.
type AttemptResult struct {
	AttemptID   uuid.UUID      `json:"attemptId"`
	Score       Score          `json:"score"`
	Passed      bool           `json:"passed"`
	TimeTaken   int            `json:"timeTaken"`
	Answers     []GradedAnswer `json:"answers"`
	ShowAnswers bool           `json:"showAnswers"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// ResultsSummary aggregates one user's attempts on one quiz.
type ResultsSummary struct {
	TotalAttempts int       `json:"totalAttempts"`
	LatestAttempt *Attempt  `json:"latestAttempt"`
	BestAttempt   *Attempt  `json:"bestAttempt"`
	CanRetake     bool      `json:"canRetake"`
	Attempts      []Attempt `json:"attempts"`
}

// AttemptEvent is broadcast to quiz monitors after an attempt is stored.
type AttemptEvent struct {
	Event       string    `json:"event"`
	QuizID      uuid.UUID `json:"quiz_id"`
	UserID      uuid.UUID `json:"user_id"`
	AttemptID   uuid.UUID `json:"attempt_id"`
	Percentage  int       `json:"percentage"`
	Passed      bool      `json:"passed"`
	SubmittedAt time.Time `json:"submitted_at"`
}

const EventAttemptSubmitted = "attempt_submitted"
