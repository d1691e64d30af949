package model

import (
	"github.com/google/uuid"
)

// QuestionType selects how a question is graded.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MultipleChoice"
	QuestionTypeTrueFalse      QuestionType = "TrueFalse"
	QuestionTypeFillInTheBlank QuestionType = "FillInTheBlank"
	QuestionTypeShortAnswer    QuestionType = "ShortAnswer"
)

// UsesOptions reports whether answers to this type reference an option id.
func (t QuestionType) UsesOptions() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeFillInTheBlank, QuestionTypeShortAnswer:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type MediaType string

const (
	MediaTypeNone  MediaType = ""
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

// Option is one selectable answer of a MultipleChoice or TrueFalse question.
type Option struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsCorrect bool      `json:"isCorrect"`
}

// Question is a gradable item owned by a quiz. It has no identity outside its quiz.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"questionType"`
	Options       []Option     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Difficulty    Difficulty   `json:"difficulty"`
	Points        int          `json:"points"`
	MediaURL      string       `json:"mediaUrl,omitempty"`
	MediaType     MediaType    `json:"mediaType,omitempty"`
}

// PointValue returns the question's points, defaulting to 1.
func (q *Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// OptionByID returns the option with the given id, if any.
func (q *Question) OptionByID(id string) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].ID.String() == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// SanitizedOption is an option without its correctness flag.
type SanitizedOption struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// SanitizedQuestion is the client-facing view of a question: no correctAnswer,
// no option correctness, no explanation.
type SanitizedQuestion struct {
	ID         uuid.UUID         `json:"id"`
	Text       string            `json:"text"`
	Type       QuestionType      `json:"questionType"`
	Options    []SanitizedOption `json:"options"`
	Difficulty Difficulty        `json:"difficulty"`
	Points     int               `json:"points"`
	MediaURL   string            `json:"mediaUrl,omitempty"`
	MediaType  MediaType         `json:"mediaType,omitempty"`
}

// Sanitize strips answer-revealing fields.
func (q *Question) Sanitize() SanitizedQuestion {
	opts := make([]SanitizedOption, len(q.Options))
	for i, o := range q.Options {
		opts[i] = SanitizedOption{ID: o.ID, Text: o.Text}
	}
	return SanitizedQuestion{
		ID:         q.ID,
		Text:       q.Text,
		Type:       q.Type,
		Options:    opts,
		Difficulty: q.Difficulty,
		Points:     q.PointValue(),
		MediaURL:   q.MediaURL,
		MediaType:  q.MediaType,
	}
}

// OptionRequest is the authoring payload for an option.
type OptionRequest struct {
	Text      string `json:"text" binding:"required,notblank,max=500"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionRequest is the payload for adding or replacing a question.
type QuestionRequest struct {
	Text          string          `json:"text" binding:"required,notblank,max=2000"`
	Type          string          `json:"questionType" binding:"required,oneof=MultipleChoice TrueFalse FillInTheBlank ShortAnswer"`
	Options       []OptionRequest `json:"options" binding:"omitempty,max=10,dive"`
	CorrectAnswer string          `json:"correctAnswer" binding:"omitempty,max=500"`
	Explanation   string          `json:"explanation" binding:"omitempty,max=2000"`
	Difficulty    string          `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Points        int             `json:"points" binding:"omitempty,min=1,max=100"`
	MediaURL      string          `json:"mediaUrl" binding:"omitempty,url,max=1000"`
	MediaType     string          `json:"mediaType" binding:"omitempty,oneof=image audio video"`
}

// ToQuestion converts the request into a question, assigning fresh ids.
func (r *QuestionRequest) ToQuestion() Question {
	q := Question{
		ID:            uuid.New(),
		Text:          r.Text,
		Type:          QuestionType(r.Type),
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation,
		Difficulty:    Difficulty(r.Difficulty),
		Points:        r.Points,
		MediaURL:      r.MediaURL,
		MediaType:     MediaType(r.MediaType),
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if q.Points == 0 {
		q.Points = 1
	}
	q.Options = make([]Option, len(r.Options))
	for i, o := range r.Options {
		q.Options[i] = Option{ID: uuid.New(), Text: o.Text, IsCorrect: o.IsCorrect}
	}
	return q
}
