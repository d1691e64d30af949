package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linguahub/quiz-backend/internal/model"
	"github.com/linguahub/quiz-backend/internal/response"
	"github.com/linguahub/quiz-backend/internal/service"
	"github.com/linguahub/quiz-backend/internal/validator"
)

// AttemptHandler handles the student attempt lifecycle: start, submit and results.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// StartAttempt godoc
// POST /api/v1/quizzes/:id/attempt
// Returns the sanitized questions and the startTime to send back on submit.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	start, err := h.attemptService.StartAttempt(c.Request.Context(), quizID, a.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": start})
}

// SubmitAttempt godoc
// POST /api/v1/quizzes/:id/submit
// Grades the answers and records the attempt.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), quizID, a.UserID, &req)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Quiz submitted successfully.", gin.H{"result": result})
}

// GetResults godoc
// GET /api/v1/quizzes/:id/results
// Summarizes the caller's attempts, newest first.
func (h *AttemptHandler) GetResults(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	quizID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	results, err := h.attemptService.GetResults(c.Request.Context(), quizID, a.UserID)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}
