package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"ai-nutritionist/internal/fitness"
	"ai-nutritionist/internal/planner"
	"ai-nutritionist/internal/profile"
	"ai-nutritionist/internal/rating"
	"ai-nutritionist/internal/recipe"
	"ai-nutritionist/internal/store"

	"github.com/gin-gonic/gin"
)

// ErrorCode is a stable, machine-readable error kind.
type ErrorCode string

const (
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// APIError is the error shape every handler responds with.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func InvalidInput(message string) *APIError {
	return &APIError{Code: CodeInvalidInput, Message: message, HTTPStatus: http.StatusBadRequest}
}

func NotFound(message string) *APIError {
	return &APIError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

func Unavailable(message string) *APIError {
	return &APIError{Code: CodeUnavailable, Message: message, HTTPStatus: http.StatusServiceUnavailable}
}

func Internal() *APIError {
	return &APIError{Code: CodeInternal, Message: "internal server error", HTTPStatus: http.StatusInternalServerError}
}

// FromError maps domain errors onto API errors. Unknown errors become a
// generic 500 so internals are not leaked.
func FromError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, profile.ErrMalformed),
		errors.Is(err, planner.ErrInvalidPlan),
		errors.Is(err, rating.ErrInvalidRating),
		errors.Is(err, fitness.ErrInvalidInput):
		return InvalidInput(err.Error())
	case errors.Is(err, recipe.ErrRecipeNotFound),
		errors.Is(err, planner.ErrPlanNotFound),
		errors.Is(err, store.ErrNotFound):
		return NotFound(err.Error())
	default:
		return Internal()
	}
}

type errorResponse struct {
	Error *APIError `json:"error"`
}

// abort writes err as {error:{code,message}} and records it on the context
// for the request logger.
func abort(c *gin.Context, err error) {
	apiErr := FromError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.HTTPStatus, errorResponse{Error: apiErr})
}
