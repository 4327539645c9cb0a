// internal/api/response.go
package api

import (
	"github.com/gin-gonic/gin"

	apperrors "loan-sanction/internal/common/errors"
)

const (
	HeaderRequestID       = "X-Request-ID"
	HeaderModelVersion    = "X-Model-Version"
	HeaderEncodingVersion = "X-Encoding-Version"

	requestIDKey = "request_id"
)

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Error     ErrorInfo `json:"error"`
	RequestID string    `json:"request_id"`
}

type ErrorInfo struct {
	Kind    string                 `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  []apperrors.FieldError `json:"fields"`
}

// NewErrorResponse never exposes StandardError.Details; those stay in the logs.
func NewErrorResponse(stdErr *apperrors.StandardError, requestID string) ErrorResponse {
	fields := stdErr.Fields
	if fields == nil {
		fields = []apperrors.FieldError{}
	}
	return ErrorResponse{
		Error: ErrorInfo{
			Kind:    apperrors.Kind(stdErr.Code),
			Code:    string(stdErr.Code),
			Message: stdErr.Message,
			Fields:  fields,
		},
		RequestID: requestID,
	}
}

func respondError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(stdErr.Code), NewErrorResponse(stdErr, c.GetString(requestIDKey)))
}
