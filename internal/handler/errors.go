package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linguahub/quiz-backend/internal/middleware"
	"github.com/linguahub/quiz-backend/internal/response"
	"github.com/linguahub/quiz-backend/internal/service"
)

type errMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// serviceErrors maps service sentinels to HTTP responses. Order matters only
// for errors that wrap one another.
var serviceErrors = []errMapping{
	{service.ErrQuizNotFound, http.StatusNotFound, response.ErrQuizNotFound},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrQuestionNotFound},
	{service.ErrNoAttempts, http.StatusNotFound, response.ErrNoAttempts},
	{service.ErrUserNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrQuizNotPublished, http.StatusForbidden, response.ErrQuizNotPublished},
	{service.ErrRetakeLimitReached, http.StatusForbidden, response.ErrRetakeLimitReached},
	{service.ErrTimeLimitExceeded, http.StatusForbidden, response.ErrTimeLimitExceeded},
	{service.ErrNotQuizOwner, http.StatusForbidden, response.ErrNotQuizOwner},
	{service.ErrPermissionDenied, http.StatusForbidden, response.ErrPermissionDenied},
	{service.ErrNoQuestions, http.StatusBadRequest, response.ErrNoQuestions},
	{service.ErrInvalidSubmission, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidRole, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrEmailTaken, http.StatusConflict, response.ErrEmailTaken},
}

// failWithError writes the response for a service error. Unmapped errors are
// recorded on the context for the request logger and reported as 500.
func failWithError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidQuestion) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQuestion, map[string]string{
			"question": err.Error(),
		})
		return
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}
	_ = c.Error(err)
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// actor returns the authenticated caller. ok is false (and a 401 has been
// written) when the route is missing RequireAuth.
func actor(c *gin.Context) (service.Actor, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return service.Actor{}, false
	}
	return claims.Actor(), true
}
