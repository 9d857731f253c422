package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/catalog"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// classify maps a domain error to its HTTP status and envelope code.
func classify(err error) (int, response.ErrCode) {
	var loadErr *catalog.LoadError
	switch {
	case errors.As(err, &loadErr):
		return http.StatusBadGateway, response.ErrLoadFailed
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusNotFound, response.ErrNoQuestions
	case errors.Is(err, service.ErrQuizNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, quiz.ErrClosed):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, quiz.ErrOutOfRange):
		return http.StatusUnprocessableEntity, response.ErrOutOfRange
	case errors.Is(err, quiz.ErrUnknownOption):
		return http.StatusUnprocessableEntity, response.ErrUnknownOption
	case errors.Is(err, service.ErrCountTooLarge):
		return http.StatusUnprocessableEntity, response.ErrValidation
	case errors.Is(err, service.ErrTooManyQuizzes):
		return http.StatusTooManyRequests, response.ErrTooManyQuizzes
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failWith writes the envelope for err. Unclassified errors are logged.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Request failed")
	}
	if code == response.ErrValidation {
		response.FailWithFields(c, status, code, map[string]string{"count": err.Error()})
		return
	}
	response.Fail(c, status, code)
}
