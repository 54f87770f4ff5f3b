// Package topics selects a generation topic from candidate pools while
// rejecting near-duplicates of titles already produced.
package topics

import (
	"math/rand"

	"inkwell/internal/core"
	"inkwell/internal/logger"
	"inkwell/internal/textutil"
)

// Engine performs duplicate-aware topic selection. Selection among
// non-duplicates is randomized for content variety; inject a seeded rand
// source in tests.
type Engine struct {
	threshold   float64 // Similarity percent above which a candidate is a duplicate
	maxAttempts int
	rng         *rand.Rand
}

// NewEngine creates a dedup engine with the given similarity threshold and
// attempt bound.
func NewEngine(threshold float64, maxAttempts int, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Engine{
		threshold:   threshold,
		maxAttempts: maxAttempts,
		rng:         rng,
	}
}

// Result is the outcome of a selection pass. Exhaustion is an expected,
// reportable non-outcome, not an error.
type Result struct {
	Topic     core.CandidateTopic
	Exhausted bool
	Attempts  int
}

// IsDuplicate applies the duplicate tests in order: case-preserving
// substring containment in either direction, then fuzzy similarity above
// the threshold on lower-cased strings.
func (e *Engine) IsDuplicate(candidate string, existing []string) bool {
	for _, title := range existing {
		if textutil.ContainsEitherWay(candidate, title) {
			return true
		}
		if textutil.SimilarityRatio(candidate, title) > e.threshold {
			return true
		}
	}
	return false
}

// Select picks a non-duplicate topic from the candidate pool, refilling
// from the category's static fallback list when the pool empties. At most
// maxAttempts picks are made across both pools.
func (e *Engine) Select(candidates []core.CandidateTopic, existing []string, category string) Result {
	pool := make([]core.CandidateTopic, len(candidates))
	copy(pool, candidates)

	refilled := false
	attempts := 0

	for attempts < e.maxAttempts {
		if len(pool) == 0 {
			if refilled {
				break
			}
			pool = FallbackTopics(category)
			refilled = true
			if len(pool) == 0 {
				break
			}
		}

		idx := e.rng.Intn(len(pool))
		candidate := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		attempts++

		if e.IsDuplicate(candidate.Text, existing) {
			logger.Debug("Rejected duplicate topic", "topic", candidate.Text, "attempt", attempts)
			continue
		}

		logger.Info("Selected topic", "topic", candidate.Text, "source", candidate.Source, "attempts", attempts)
		return Result{Topic: candidate, Attempts: attempts}
	}

	logger.Warn("Topic selection exhausted", "category", category, "attempts", attempts)
	return Result{Exhausted: true, Attempts: attempts}
}

// fallbackTopics holds the static per-category topic lists used when every
// sourced candidate turned out to be a duplicate.
var fallbackTopics = map[string][]string{
	"Technology": {
		"How Edge Computing Is Reshaping Everyday Apps",
		"A Practical Guide to Passwordless Authentication",
		"What Quantum Networking Means for Ordinary Users",
		"The Hidden Costs of Always-On Cloud Sync",
		"Why Local-First Software Is Making a Comeback",
	},
	"Health": {
		"How Sleep Cycles Affect Daily Decision Making",
		"A Beginner's Guide to Zone 2 Training",
		"What Continuous Glucose Monitors Actually Measure",
		"The Science Behind Habit Stacking",
	},
	"Finance": {
		"How Index Funds Keep Costs Invisible",
		"A Plain-English Guide to Bond Ladders",
		"What Rising Rates Mean for Household Budgets",
		"The Case for Boring Investment Portfolios",
	},
	"Lifestyle": {
		"How Micro-Habits Beat Grand Resolutions",
		"A Weekend Guide to Digital Decluttering",
		"Why Slow Mornings Improve Focus",
	},
}

// FallbackTopics returns the static fallback pool for a category. Unknown
// categories fall back to the Technology list.
func FallbackTopics(category string) []core.CandidateTopic {
	titles, ok := fallbackTopics[category]
	if !ok {
		titles = fallbackTopics["Technology"]
	}
	out := make([]core.CandidateTopic, 0, len(titles))
	for _, t := range titles {
		out = append(out, core.CandidateTopic{Text: t, Source: "fallback"})
	}
	return out
}
