package models

import "net/http"

// ErrorCode is the fixed enumeration surfaced in API error responses
type ErrorCode string

const (
	ErrAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrAuthorizationDenied    ErrorCode = "AUTHORIZATION_DENIED"
	ErrResourceNotFound       ErrorCode = "RESOURCE_NOT_FOUND"
	ErrValidationError        ErrorCode = "VALIDATION_ERROR"
	ErrInternalError          ErrorCode = "INTERNAL_ERROR"
)

// APIError is the error half of the response envelope
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Envelope is the uniform { data, error } JSON response shape
type Envelope struct {
	Data  interface{} `json:"data"`
	Error *APIError   `json:"error"`
}

// DataEnvelope wraps a successful payload
func DataEnvelope(data interface{}) Envelope {
	return Envelope{Data: data}
}

// ErrorEnvelope wraps an error code and message
func ErrorEnvelope(code ErrorCode, message string) Envelope {
	return Envelope{Error: &APIError{Code: code, Message: message}}
}

// ErrorStatus maps an error code to its HTTP status
func ErrorStatus(code ErrorCode) int {
	switch code {
	case ErrAuthenticationRequired:
		return http.StatusUnauthorized
	case ErrAuthorizationDenied:
		return http.StatusForbidden
	case ErrResourceNotFound:
		return http.StatusNotFound
	case ErrValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
