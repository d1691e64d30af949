package main

import (
	"fmt"
	"io"

	"github.com/linguahub/quiz-backend/internal/model"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout read by seed-quizzes.
type seedFile struct {
	Owner   string     `yaml:"owner"`
	Quizzes []seedQuiz `yaml:"quizzes"`
}

type seedQuiz struct {
	Title                      string         `yaml:"title"`
	Description                string         `yaml:"description"`
	Level                      string         `yaml:"level"`
	TimeLimit                  int            `yaml:"time_limit"`
	PassingScore               *int           `yaml:"passing_score"`
	AllowRetake                *bool          `yaml:"allow_retake"`
	MaxRetakes                 int            `yaml:"max_retakes"`
	RandomizeQuestionOrder     bool           `yaml:"randomize_question_order"`
	ShowAnswersAfterSubmission bool           `yaml:"show_answers_after_submission"`
	Publish                    bool           `yaml:"publish"`
	Questions                  []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Text          string       `yaml:"text"`
	Type          string       `yaml:"type"`
	Options       []seedOption `yaml:"options"`
	CorrectAnswer string       `yaml:"correct_answer"`
	Explanation   string       `yaml:"explanation"`
	Difficulty    string       `yaml:"difficulty"`
	Points        int          `yaml:"points"`
}

type seedOption struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

// parseSeed decodes a seed file, rejecting unknown keys.
func parseSeed(r io.Reader) (*seedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if f.Owner == "" {
		return nil, fmt.Errorf("seed file: owner is required")
	}
	for i, q := range f.Quizzes {
		if q.Title == "" {
			return nil, fmt.Errorf("seed file: quiz %d has no title", i+1)
		}
	}
	return &f, nil
}

// request converts a seeded quiz into the authoring payload.
func (q *seedQuiz) request() *model.CreateQuizRequest {
	req := &model.CreateQuizRequest{
		Title:                      q.Title,
		Description:                q.Description,
		Level:                      q.Level,
		TimeLimit:                  q.TimeLimit,
		PassingScore:               q.PassingScore,
		AllowRetake:                q.AllowRetake,
		MaxRetakes:                 q.MaxRetakes,
		RandomizeQuestionOrder:     q.RandomizeQuestionOrder,
		ShowAnswersAfterSubmission: q.ShowAnswersAfterSubmission,
		Questions:                  make([]model.QuestionRequest, len(q.Questions)),
	}
	for i, sq := range q.Questions {
		qr := model.QuestionRequest{
			Text:          sq.Text,
			Type:          sq.Type,
			CorrectAnswer: sq.CorrectAnswer,
			Explanation:   sq.Explanation,
			Difficulty:    sq.Difficulty,
			Points:        sq.Points,
		}
		for _, o := range sq.Options {
			qr.Options = append(qr.Options, model.OptionRequest{Text: o.Text, IsCorrect: o.Correct})
		}
		req.Questions[i] = qr
	}
	return req
}
