package helpers

import (
	"context"
	"fmt"
	"time"

	"candle-replay/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type BacktestError struct {
	Message string
	Cause   error
}

func (e *BacktestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BacktestError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As at the command boundary
type ConfigurationError struct{ BacktestError }
type DataFormatError struct{ BacktestError }
type CommandError struct{ BacktestError }
type NotFoundError struct{ BacktestError }
type PersistenceError struct{ BacktestError }
type ProviderError struct{ BacktestError }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewDataFormatError(message string, cause error) *DataFormatError {
	return &DataFormatError{BacktestError{Message: message, Cause: cause}}
}

func NewCommandError(format string, args ...interface{}) *CommandError {
	return &CommandError{BacktestError{Message: fmt.Sprintf(format, args...)}}
}

func NewNotFoundError(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{BacktestError{Message: fmt.Sprintf(format, args...)}}
}

func NewPersistenceError(message string, cause error) *PersistenceError {
	return &PersistenceError{BacktestError{Message: message, Cause: cause}}
}

func NewProviderError(message string, cause error) *ProviderError {
	return &ProviderError{BacktestError{Message: message, Cause: cause}}
}

func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{BacktestError{Message: fmt.Sprintf(format, args...)}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to attempts times, doubling baseDelay after each
// failure. It gives up early when ctx is cancelled.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, attempts int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, attempts, operation, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
