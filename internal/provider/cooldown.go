package provider

import (
	"sync"
	"time"

	"inkwell/internal/logger"
)

// CooldownNotifier receives a single notification when a provider is first
// disabled for a cool-down window.
type CooldownNotifier interface {
	ProviderDisabled(name, reason string, until time.Time)
}

type cooldownEntry struct {
	until    time.Time
	reason   string
	notified time.Time // When the operator was last notified for this window
}

// CooldownStore tracks providers disabled after auth/quota failures.
// It is shared process-wide so concurrent runs skip a disabled provider.
// Check-then-act races are tolerated: a duplicate disable costs at most a
// duplicate (rate-limited) notification, never corruption.
type CooldownStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[string]cooldownEntry
	notifier CooldownNotifier
	now      func() time.Time
}

// NewCooldownStore creates a store with the given disable window.
func NewCooldownStore(ttl time.Duration, notifier CooldownNotifier) *CooldownStore {
	return &CooldownStore{
		ttl:      ttl,
		entries:  make(map[string]cooldownEntry),
		notifier: notifier,
		now:      time.Now,
	}
}

// Active reports whether the named provider is currently cooled down.
func (s *CooldownStore) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	return ok && s.now().Before(entry.until)
}

// Disable marks a provider unusable for the cool-down window and notifies
// the operator, at most once per window.
func (s *CooldownStore) Disable(name, reason string) {
	s.mu.Lock()
	now := s.now()
	until := now.Add(s.ttl)

	entry, existed := s.entries[name]
	alreadyNotified := existed && now.Before(entry.until) && !entry.notified.IsZero()

	s.entries[name] = cooldownEntry{
		until:    until,
		reason:   reason,
		notified: now,
	}
	s.mu.Unlock()

	logger.Warn("Provider disabled for cool-down", "provider", name, "reason", reason, "until", until)

	if s.notifier != nil && !alreadyNotified {
		s.notifier.ProviderDisabled(name, reason, until)
	}
}

// Reason returns the recorded disable reason, or "" when not cooled down.
func (s *CooldownStore) Reason(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok || !s.now().Before(entry.until) {
		return ""
	}
	return entry.reason
}
