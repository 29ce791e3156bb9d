package handlers

import (
	"errors"
	"net/http"

	"discord-harvester/analyzer"
	"discord-harvester/database"
	"discord-harvester/models"

	"github.com/gin-gonic/gin"
)

// Error codes returned in ErrorResponse.Code.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeGateway          = "gateway_error"
	ErrCodeAnalysis         = "analysis_failed"
	ErrCodeInternal         = "internal_error"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		LoggerFrom(c).Error().Int("status", status).Str("code", code).Str("message", msg).Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.GetString(requestIDKey),
		Code:      code,
		Message:   msg,
	})
}

// failErr maps the error taxonomy onto HTTP statuses.
func failErr(c *gin.Context, err error) {
	var (
		notFound *models.TargetNotFoundError
		gateway  *models.GatewayError
		parse    *models.ParseError
		analysis *models.AnalysisError
	)
	switch {
	case errors.As(err, &notFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.As(err, &gateway):
		fail(c, http.StatusBadGateway, ErrCodeGateway, err.Error())
	case errors.As(err, &parse), errors.Is(err, database.ErrInvalidJob), errors.Is(err, analyzer.ErrInvalidPeriod):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.As(err, &analysis):
		fail(c, http.StatusInternalServerError, ErrCodeAnalysis, "LLM error: "+err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
