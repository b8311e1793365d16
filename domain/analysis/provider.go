package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Request is one artwork sent to a vision provider.
type Request struct {
	APIKey    string `json:"-"`
	Model     string
	MaxTokens int
	Prompt    string
	MediaType string
	// Data is the base64 image payload without any data URL prefix.
	Data string
}

// Provider turns an image into analysis text.
type Provider interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

// Network error codes reported for unreachable providers.
const (
	CodeNotFound          = "ENOTFOUND"
	CodeConnectionRefused = "ECONNREFUSED"
)

// NetworkError means the provider could not be reached at all.
type NetworkError struct {
	Code string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error %s: %v", e.Code, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// ErrCircuitOpen is returned while calls to a failing provider are shed.
var ErrCircuitOpen = errors.New("circuit breaker open")
