package service

import (
	"math"
	"strings"

	"github.com/linguahub/quiz-backend/internal/model"
)

// gradeAnswers scores answers against the authoritative questions of quiz.
// Answers to unknown questions and repeated answers to the same question are
// skipped and count toward neither earned nor total.
func gradeAnswers(quiz *model.Quiz, answers []model.AnswerInput) ([]model.GradedAnswer, model.Score) {
	graded := make([]model.GradedAnswer, 0, len(answers))
	seen := make(map[string]struct{}, len(answers))
	var earned, total int

	for _, a := range answers {
		q, ok := quiz.QuestionByID(a.QuestionID)
		if !ok {
			continue
		}
		if _, dup := seen[a.QuestionID]; dup {
			continue
		}
		seen[a.QuestionID] = struct{}{}

		points := q.PointValue()
		total += points

		ga := model.GradedAnswer{
			QuestionID: q.ID,
			UserAnswer: a.UserAnswer,
			IsCorrect:  isCorrect(q, a.UserAnswer),
		}
		if ga.IsCorrect {
			ga.PointsEarned = points
			earned += points
		}
		if quiz.ShowAnswersAfterSubmission {
			correct := canonicalAnswer(q)
			explanation := q.Explanation
			ga.CorrectAnswer = &correct
			ga.Explanation = &explanation
		}
		graded = append(graded, ga)
	}

	return graded, model.Score{
		Earned:     earned,
		Total:      total,
		Percentage: percentage(earned, total),
	}
}

// isCorrect dispatches on the stored question type, never on anything the client sent.
func isCorrect(q *model.Question, answer string) bool {
	switch q.Type {
	case model.QuestionTypeMultipleChoice, model.QuestionTypeTrueFalse:
		opt, ok := q.OptionByID(strings.TrimSpace(answer))
		return ok && opt.IsCorrect
	case model.QuestionTypeFillInTheBlank:
		return normalize(answer) == normalize(q.CorrectAnswer)
	case model.QuestionTypeShortAnswer:
		user, want := normalize(answer), normalize(q.CorrectAnswer)
		if user == "" || want == "" {
			return false
		}
		return strings.Contains(user, want) || strings.Contains(want, user)
	default:
		return false
	}
}

// canonicalAnswer is what a student is shown as the right answer: the
// correct option's id for choice questions, the stored text otherwise.
func canonicalAnswer(q *model.Question) string {
	if q.Type.UsesOptions() {
		for _, o := range q.Options {
			if o.IsCorrect {
				return o.ID.String()
			}
		}
		return ""
	}
	return q.CorrectAnswer
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// percentage rounds half away from zero; an empty total scores 0.
func percentage(earned, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(earned) / float64(total) * 100))
}
