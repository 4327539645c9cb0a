// Package errors provides the standardized error model shared by the HTTP API and the
// workflow job worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"
	ErrCodePayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeArtifactInvalid  ErrorCode = "MODEL_ARTIFACT_INVALID"
	ErrCodeEncodingMismatch ErrorCode = "ENCODING_VERSION_MISMATCH"
	ErrCodeInferenceFailed  ErrorCode = "INFERENCE_FAILED"
	ErrCodeRequestTimeout   ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// Error kinds exposed to HTTP callers. The browser form only distinguishes
// validation problems from everything else.
const (
	KindValidation       = "validation"
	KindModelUnavailable = "model_unavailable"
	KindRateLimited      = "rate_limited"
	KindTimeout          = "timeout"
	KindInternal         = "internal"
)

// FieldError describes a single offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any *StandardError carrying the same code, so callers can write
// errors.Is(err, &StandardError{Code: ErrCodeModelUnavailable}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable error listing every offending field.
func NewValidationFailedError(fields []FieldError) *StandardError {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   fmt.Sprintf("invalid fields: %s", strings.Join(names, ", ")),
		Retryable: false,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedPayloadError creates a non-retryable error for bodies that are not a JSON object.
func NewMalformedPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedPayload,
		Message:   "Request body must be a JSON object",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadTooLargeError creates a non-retryable body size error.
func NewPayloadTooLargeError(limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadTooLarge,
		Message:   "Request body too large",
		Details:   fmt.Sprintf("limit: %d bytes", limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError creates an error for requests arriving while no model is loaded.
// It is retryable from a workflow's point of view: a redeploy with a good artifact fixes it.
func NewModelUnavailableError(cause error) *StandardError {
	details := "model not loaded"
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "Prediction model is not available",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewArtifactInvalidError creates a non-retryable error for corrupt model artifacts.
func NewArtifactInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeArtifactInvalid,
		Message:   "Model artifact is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEncodingMismatchError creates an error for artifacts trained against another encoding table.
func NewEncodingMismatchError(expected, actual string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEncodingMismatch,
		Message:   "Model artifact encoding version does not match the feature encoder",
		Details:   fmt.Sprintf("expected: %s, actual: %s", expected, actual),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInferenceFailedError creates a non-retryable error for unexpected prediction failures.
func NewInferenceFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceFailed,
		Message:   "Prediction failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestTimeoutError creates a retryable error for cancelled or expired requests.
func NewRequestTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Message:   "Request timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError creates a retryable rate limit error.
func NewRateLimitedError(client string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Rate limit exceeded",
		Details:   fmt.Sprintf("client: %s", client),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Transport Mapping
// ==========================

// HTTPStatus maps an error code to the response status of the predict API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeMalformedPayload:
		return http.StatusBadRequest
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeModelUnavailable, ErrCodeArtifactInvalid, ErrCodeEncodingMismatch:
		return http.StatusServiceUnavailable
	case ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the stable error kind string exposed to callers.
func Kind(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeMalformedPayload, ErrCodePayloadTooLarge:
		return KindValidation
	case ErrCodeModelUnavailable, ErrCodeArtifactInvalid, ErrCodeEncodingMismatch:
		return KindModelUnavailable
	case ErrCodeRateLimited:
		return KindRateLimited
	case ErrCodeRequestTimeout:
		return KindTimeout
	default:
		return KindInternal
	}
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed: "LOAN_APPLICATION_INVALID",
	ErrCodeMalformedPayload: "LOAN_APPLICATION_INVALID",
	ErrCodeModelUnavailable: "PREDICTION_MODEL_UNAVAILABLE",
	ErrCodeInferenceFailed:  "PREDICTION_FAILED",
	ErrCodeRequestTimeout:   "PREDICTION_TIMEOUT",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelUnavailable, ErrCodeExternalService:
		return 3
	case ErrCodeRequestTimeout:
		return 2
	default:
		return 0 // business errors: no retry
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if len(stdErr.Fields) > 0 {
		vars["fieldErrors"] = stdErr.Fields
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
