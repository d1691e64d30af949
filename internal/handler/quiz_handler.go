package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/response"
	"github.com/linguahub/quiz-backend/internal/service"
	"github.com/linguahub/quiz-backend/internal/validator"
)

// QuizHandler handles quiz and question authoring endpoints.
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// ListQuizzes godoc
// GET /api/v1/quizzes
// Lists quizzes with pagination. Students only ever see published quizzes.
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var q model.ListQuizzesQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quizzes, pagination, err := h.quizService.List(c.Request.Context(), a, q.Filter(), q.Page, q.PerPage)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// GetQuiz godoc
// GET /api/v1/quizzes/:id
// Editors get the full definition; everyone else gets sanitized questions.
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	quiz, canEdit, err := h.quizService.Get(c.Request.Context(), a, quizID)
	if err != nil {
		failWithError(c, err)
		return
	}

	if canEdit {
		response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": quiz.View()})
}

// CreateQuiz godoc
// POST /api/v1/quizzes
// Creates a new draft quiz, optionally with its questions.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), a, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// UpdateQuiz godoc
// PUT /api/v1/quizzes/:id
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), a, quizID, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// DeleteQuiz godoc
// DELETE /api/v1/quizzes/:id
// Deletes the quiz and its attempt history.
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), a, quizID); err != nil {
		failWithError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Quiz deleted.", gin.H{})
}

// PublishQuiz godoc
// POST /api/v1/quizzes/:id/publish
func (h *QuizHandler) PublishQuiz(c *gin.Context) {
	h.setStatus(c, h.quizService.Publish)
}

// UnpublishQuiz godoc
// POST /api/v1/quizzes/:id/unpublish
func (h *QuizHandler) UnpublishQuiz(c *gin.Context) {
	h.setStatus(c, h.quizService.Unpublish)
}

func (h *QuizHandler) setStatus(c *gin.Context, apply func(ctx context.Context, a service.Actor, id uuid.UUID) (*model.Quiz, error)) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	quiz, err := apply(c.Request.Context(), a, quizID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// AddQuestion godoc
// POST /api/v1/quizzes/:id/questions
func (h *QuizHandler) AddQuestion(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.quizService.AddQuestion(c.Request.Context(), a, quizID, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// UpdateQuestion godoc
// PUT /api/v1/quizzes/:id/questions/:question_id
func (h *QuizHandler) UpdateQuestion(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	questionID, ok := pathUUID(c, "question_id")
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.quizService.UpdateQuestion(c.Request.Context(), a, quizID, questionID, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/quizzes/:id/questions/:question_id
func (h *QuizHandler) DeleteQuestion(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	questionID, ok := pathUUID(c, "question_id")
	if !ok {
		return
	}

	if err := h.quizService.DeleteQuestion(c.Request.Context(), a, quizID, questionID); err != nil {
		failWithError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Question deleted.", gin.H{})
}

// ListAttempts godoc
// GET /api/v1/quizzes/:id/attempts
// Returns every attempt on the quiz, newest first.
func (h *QuizHandler) ListAttempts(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	attempts, err := h.quizService.ListAttempts(c.Request.Context(), a, quizID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetStats godoc
// GET /api/v1/quizzes/:id/stats
func (h *QuizHandler) GetStats(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	stats, err := h.quizService.Stats(c.Request.Context(), a, quizID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// pathUUID parses a UUID path parameter, writing a 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
