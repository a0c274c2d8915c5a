package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/biomatch-server/internal/domain"
	"github.com/biomatch-server/internal/middleware"
)

var statusByCode = map[string]int{
	domain.ErrCodeInvalidSampleType:   http.StatusBadRequest,
	domain.ErrCodeInvalidArgument:     http.StatusBadRequest,
	domain.ErrCodeFeatureExtraction:   http.StatusUnprocessableEntity,
	domain.ErrCodeNotFound:            http.StatusNotFound,
	domain.ErrCodeInvalidTransition:   http.StatusConflict,
	domain.ErrCodeNotifierUnavailable: http.StatusServiceUnavailable,
	domain.ErrCodeRequestTimeout:      http.StatusGatewayTimeout,
}

// HTTPStatus maps an error onto its response status
func HTTPStatus(err error) int {
	if status, ok := statusByCode[domain.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := HTTPStatus(err)

	message := err.Error()
	details := ""
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
		details = verr.Field
	}
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", c.GetString(middleware.CorrelationIDKey)).Error("Request failed")
		message = "internal error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, domain.NewMatchError(code, message, details, c.GetString(middleware.CorrelationIDKey)))
}

func badRequest(field, message string, value interface{}) error {
	return domain.NewValidationError(field, message, value).Wrap(domain.ErrInvalidArgument)
}
