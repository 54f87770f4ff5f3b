// Package notify delivers run reports and provider state changes to the
// operator. The default implementation writes to the structured log;
// alternative channels implement the same interface.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/core"
	"inkwell/internal/logger"
)

// Notifier receives run outcomes and provider cool-down events.
type Notifier interface {
	RunCompleted(report core.RunReport)
	ProviderDisabled(name, reason string, until time.Time)
}

// LogNotifier reports through the structured log.
type LogNotifier struct{}

// RunCompleted logs the run outcome at a level matching its severity.
func (LogNotifier) RunCompleted(report core.RunReport) {
	fields := []any{
		"outcome", string(report.Outcome),
		"category", report.Category,
		"duration", report.EndedAt.Sub(report.StartedAt).Round(time.Second).String(),
	}
	if report.ArticleID != "" {
		fields = append(fields, "article", report.ArticleID)
	}

	switch report.Outcome {
	case core.OutcomeSuccess:
		logger.Info("Generation run completed", fields...)
	case core.OutcomeTopicsExhausted:
		logger.Warn("Generation run found no fresh topic", fields...)
	default:
		logger.Error("Generation run failed", errors.New(report.Err), fields...)
	}
}

// ProviderDisabled logs a provider entering its cool-down window.
func (LogNotifier) ProviderDisabled(name, reason string, until time.Time) {
	logger.Warn("Provider credentials rejected, disabled until window expires",
		"provider", name, "reason", reason, "until", until.Format(time.RFC3339))
}

// FormatReport renders a run report as plain text for channels that carry
// a message body.
func FormatReport(report core.RunReport) string {
	var b strings.Builder

	switch report.Outcome {
	case core.OutcomeSuccess:
		fmt.Fprintf(&b, "Article generated (%s)\n", report.Category)
		if report.ArticleID != "" {
			fmt.Fprintf(&b, "Article: %s\n", report.ArticleID)
		}
	case core.OutcomeTopicsExhausted:
		fmt.Fprintf(&b, "No article generated: every candidate topic duplicated an existing title (%s)\n", report.Category)
	default:
		fmt.Fprintf(&b, "Run failed (%s): %s\n", report.Category, report.Err)
	}

	fmt.Fprintf(&b, "Started: %s\nEnded: %s\n",
		report.StartedAt.Format(time.RFC3339), report.EndedAt.Format(time.RFC3339))

	if len(report.StageLog) > 0 {
		b.WriteString("Stages:\n")
		for _, line := range report.StageLog {
			fmt.Fprintf(&b, "  - %s\n", line)
		}
	}
	return b.String()
}
