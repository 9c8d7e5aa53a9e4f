package httpdto

// ErrorCode is the machine-readable failure class carried in the envelope's code field.
type ErrorCode string

const (
	CodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"
	CodeUnavailable    ErrorCode = "UNAVAILABLE"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	// the messaging provider answered with a failure; the message carries its result code
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
	CodeUnhealthy     ErrorCode = "UNHEALTHY"
)

// Retryable reports whether a caller may repeat the same request later.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeRateLimited, CodeUnavailable, CodeProviderError, CodeUnhealthy:
		return true
	}
	return false
}

// Response is the envelope every endpoint answers with. Error responses echo the request id so
// a failed send or sweep can be matched with its log lines.
type Response[T any] struct {
	Success   bool      `json:"success"`
	Data      T         `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Code      ErrorCode `json:"code,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code ErrorCode) Response[any] {
	return Response[any]{
		Success:   false,
		Error:     err,
		Code:      code,
		Retryable: code.Retryable(),
	}
}

func (r Response[T]) WithRequestID(id string) Response[T] {
	r.RequestID = id
	return r
}
