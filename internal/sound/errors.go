package sound

import (
	"errors"
	"fmt"
)

// Common errors for the sound engine.
var (
	// ErrInvalidPitch is returned for NaN, zero or infinite playback speeds
	ErrInvalidPitch = errors.New("invalid playback speed")

	// ErrVoicesExhausted is returned when the voice budget is spent
	ErrVoicesExhausted = errors.New("no free voice")

	// ErrClosed is returned by operations on a closed source or subsystem
	ErrClosed = errors.New("sound source closed")

	// ErrUnknownMode is returned when parsing a play mode name fails
	ErrUnknownMode = errors.New("unknown play mode")

	// ErrInvalidConfig is wrapped by configuration validation failures
	ErrInvalidConfig = errors.New("invalid sound configuration")

	// ErrTickPanic is wrapped around a panic recovered from a process tick
	ErrTickPanic = errors.New("sound process tick panicked")
)

// ErrorCode identifies specific error types
type ErrorCode string

const (
	ErrorCodeAssetDecode    ErrorCode = "ASSET_DECODE"
	ErrorCodeVoiceExhausted ErrorCode = "VOICE_EXHAUSTED"
	ErrorCodeInvalidPitch   ErrorCode = "INVALID_PITCH"
	ErrorCodeQueueOverflow  ErrorCode = "QUEUE_OVERFLOW"
	ErrorCodeBackendFailure ErrorCode = "BACKEND_FAILURE"
	ErrorCodeInvalidConfig  ErrorCode = "INVALID_CONFIG"
)

// SoundError is a sound engine error with additional context
type SoundError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// NewSoundError creates a new sound error
func NewSoundError(code ErrorCode, message string, cause error) *SoundError {
	return &SoundError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *SoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *SoundError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *SoundError) WithContext(key string, value interface{}) *SoundError {
	e.Context[key] = value
	return e
}

// IsFatal reports whether the error should stop the sound process.
// Everything a source runs into degrades to silence instead.
func (e *SoundError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeBackendFailure, ErrorCodeInvalidConfig:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the failed operation is retried automatically.
func (e *SoundError) IsRetryable() bool {
	return e.Code == ErrorCodeVoiceExhausted
}

// logFields flattens the context for key/value logging.
func (e *SoundError) logFields() []interface{} {
	fields := make([]interface{}, 0, 2+2*len(e.Context))
	fields = append(fields, "code", string(e.Code))
	for k, v := range e.Context {
		fields = append(fields, k, v)
	}
	return fields
}
