// Package search provides the web-search backend used for research context
// and external-link discovery.
package search

import (
	"context"
	"time"

	"inkwell/internal/core"
)

// Provider is a pluggable search backend.
type Provider interface {
	GetName() string
	Search(ctx context.Context, query string, cfg Config) ([]core.SearchResult, error)
}

// Config tunes one search call.
type Config struct {
	MaxResults int
	Timeout    time.Duration
	Language   string
}

// DefaultConfig returns the configuration used when the caller does not care.
func DefaultConfig() Config {
	return Config{
		MaxResults: 10,
		Timeout:    15 * time.Second,
		Language:   "en",
	}
}
