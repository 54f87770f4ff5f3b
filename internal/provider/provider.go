// Package provider implements the provider chain used for every external
// generative call: chat completion, structured JSON completion, and image
// synthesis. A single fallback invoker walks an ordered provider list with
// per-provider retry, exponential backoff, and a shared cool-down store for
// providers that fail with account-level errors.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// RequestKind selects which capability a request exercises.
type RequestKind string

const (
	KindChat  RequestKind = "chat"  // System+user prompt, returns text
	KindJSON  RequestKind = "json"  // Structured JSON completion
	KindImage RequestKind = "image" // Text-to-image, returns bytes
)

// Request is the payload handed to a provider.
type Request struct {
	Kind   RequestKind
	System string // System instruction (chat/json)
	User   string // User prompt (chat/json) or image prompt (image)
	Size   string // Image size hint like "1024x1024" (image only)
}

// Response is a successful provider result.
type Response struct {
	Text     string // Generated text (chat/json)
	Image    []byte // Generated image bytes (image)
	Provider string // Name of the provider that satisfied the request
	Model    string // Model that produced the response
}

// Empty reports whether the response carries no usable payload.
func (r *Response) Empty() bool {
	return r == nil || (r.Text == "" && len(r.Image) == 0)
}

// Provider is one external generative backend plus its credential.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// FailureClass buckets provider errors by how the invoker must react.
type FailureClass int

const (
	// ClassTransient covers timeouts, 5xx, 429, and connection failures.
	// Retried against the same provider with backoff.
	ClassTransient FailureClass = iota
	// ClassRejected covers 400 and 404: the request itself is bad for this
	// provider. No retries; advance to the next provider.
	ClassRejected
	// ClassAuth covers 401, 402, 403: the provider account is unusable.
	// The whole provider is cooled down and skipped immediately.
	ClassAuth
)

// StatusError is an HTTP-shaped provider failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.Code, e.Message)
}

// Classify maps an error to a failure class. Errors that carry no HTTP
// status (network failures, timeouts) are treated as transient.
func Classify(err error) FailureClass {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return ClassTransient
	}
	switch {
	case statusErr.Code == 401 || statusErr.Code == 402 || statusErr.Code == 403:
		return ClassAuth
	case statusErr.Code == 400 || statusErr.Code == 404:
		return ClassRejected
	case statusErr.Code == 429 || statusErr.Code >= 500:
		return ClassTransient
	default:
		return ClassRejected
	}
}

// ExhaustedError signals that no provider produced a usable response.
// It is an expected, reportable non-outcome rather than a fault.
type ExhaustedError struct {
	Attempts    int  // Total calls actually made
	Unreachable bool // True when every failure was transient or a cool-down skip
}

func (e *ExhaustedError) Error() string {
	if e.Unreachable {
		return fmt.Sprintf("all providers unreachable after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("all providers rejected the request after %d attempts", e.Attempts)
}

// IsExhausted reports whether err marks provider-chain exhaustion.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}
