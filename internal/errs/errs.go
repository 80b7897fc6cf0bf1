// Package errs declares the error taxonomy that tier and orchestrator code
// propagates by early-return. None of these are used for control flow via
// panic/recover; they are plain wrapped error values.
package errs

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a top-level cancellation signal preempted a
// run before it produced artifacts.
var ErrCancelled = errors.New("run cancelled")

// ConfigError wraps a missing or invalid configuration value.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError for the named field.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// RepoError wraps a failure to open or traverse the Git repository.
type RepoError struct {
	Op  string
	Err error
}

func (e *RepoError) Error() string {
	return fmt.Sprintf("repo error (%s): %v", e.Op, e.Err)
}

func (e *RepoError) Unwrap() error { return e.Err }

// NewRepoError builds a RepoError for the named operation.
func NewRepoError(op string, err error) *RepoError {
	return &RepoError{Op: op, Err: err}
}

// FittingError is returned when the prompt fitter exhausted chunk-and-combine
// and the smallest unit it could produce still exceeds the target budget.
type FittingError struct {
	Actual int
	Target int
}

func (e *FittingError) Error() string {
	return fmt.Sprintf("prompt could not be fit to budget: %d tokens > %d token target", e.Actual, e.Target)
}

// LLMClientError wraps a backend failure surfaced after retries are
// exhausted. It carries the final prompt sent, for diagnostics.
type LLMClientError struct {
	Err    error
	Prompt string
}

func (e *LLMClientError) Error() string {
	return fmt.Sprintf("llm client error: %v", e.Err)
}

func (e *LLMClientError) Unwrap() error { return e.Err }

// NewLLMClientError builds an LLMClientError carrying the prompt that failed.
func NewLLMClientError(err error, prompt string) *LLMClientError {
	return &LLMClientError{Err: err, Prompt: prompt}
}

// CacheError wraps a non-fatal cache I/O failure. It is logged by the
// caller and never propagated as a fatal run error.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error (%s): %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError builds a CacheError for the named operation.
func NewCacheError(op string, err error) *CacheError {
	return &CacheError{Op: op, Err: err}
}
