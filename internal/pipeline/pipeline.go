// Package pipeline orchestrates one article-generation run: topic
// selection, research, drafting, optimization, link management, metadata,
// persistence, and thumbnail generation, in that order. Partial-stage
// failures degrade to named fallbacks; a run always ends in exactly one
// reported outcome.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/core"
	"inkwell/internal/draft"
	"inkwell/internal/links"
	"inkwell/internal/logger"
	"inkwell/internal/notify"
	"inkwell/internal/provider"
	"inkwell/internal/research"
	"inkwell/internal/search"
	"inkwell/internal/textutil"
	"inkwell/internal/topics"
)

// TopicSelector picks a non-duplicate topic from a candidate pool.
type TopicSelector interface {
	Select(candidates []core.CandidateTopic, existing []string, category string) topics.Result
}

// Researcher gathers contextual text for a topic.
type Researcher interface {
	Gather(ctx context.Context, topic, customPrompt string) *research.Context
}

// Drafter produces and optimizes article HTML.
type Drafter interface {
	Draft(ctx context.Context, topic, category, researchContext string) (string, error)
	Optimize(ctx context.Context, html string) (string, []core.TOCEntry, error)
}

// Linker runs the link-management pass over article content.
type Linker interface {
	Process(ctx context.Context, content, category string) (string, links.Stats, error)
}

// Thumbnailer produces the thumbnail file for a persisted article.
type Thumbnailer interface {
	Generate(ctx context.Context, article *core.Article) (string, error)
}

// Storage is the persistence surface one run needs.
type Storage interface {
	Titles(ctx context.Context) ([]string, error)
	UniqueSlug(ctx context.Context, base string) (string, error)
	SaveArticle(ctx context.Context, article *core.Article) error
	SetThumbnail(ctx context.Context, articleID, path string) error
	RecordRun(ctx context.Context, report core.RunReport) error
}

// Request describes one generation run. JobID is assigned when empty,
// CustomPrompt is optional free text that may embed a seed URL, and an
// empty Candidates pool is sourced from the prompt and the search backend.
type Request struct {
	JobID        string
	Category     string
	CustomPrompt string
	Candidates   []core.CandidateTopic
}

// Orchestrator sequences the generation stages.
type Orchestrator struct {
	gen      provider.Generator // Metadata generation; nil degrades to local metadata
	selector TopicSelector
	research Researcher
	drafter  Drafter
	linker   Linker
	thumbs   Thumbnailer
	store    Storage
	notifier notify.Notifier
	tracker  *Tracker
	searcher research.Searcher // Candidate sourcing; nil skips search candidates
	now      func() time.Time
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Generator provider.Generator
	Selector  TopicSelector
	Research  Researcher
	Drafter   Drafter
	Linker    Linker
	Thumbs    Thumbnailer
	Store     Storage
	Notifier  notify.Notifier
	Tracker   *Tracker
	Searcher  research.Searcher
}

// New creates an orchestrator.
func New(deps Deps) *Orchestrator {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = NewTracker(0)
	}
	return &Orchestrator{
		gen:      deps.Generator,
		selector: deps.Selector,
		research: deps.Research,
		drafter:  deps.Drafter,
		linker:   deps.Linker,
		thumbs:   deps.Thumbs,
		store:    deps.Store,
		notifier: notifier,
		tracker:  tracker,
		searcher: deps.Searcher,
		now:      time.Now,
	}
}

// Tracker exposes the progress tracker for status readers.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// Run executes one generation run to a terminal outcome. The returned
// error is non-nil only for fatal failures (persistence unreachable,
// structurally unusable content); exhausted topics are a normal outcome.
func (o *Orchestrator) Run(ctx context.Context, req Request) (core.RunReport, error) {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	report := core.RunReport{
		Category:  req.Category,
		StartedAt: o.now(),
	}
	o.tracker.Set(req.JobID, core.JobProcessing, 5, "selecting topic")

	titles, err := o.store.Titles(ctx)
	if err != nil {
		return o.fail(ctx, req.JobID, report, fmt.Errorf("loading title corpus: %w", err))
	}

	pool := req.Candidates
	if len(pool) == 0 {
		pool = o.sourceCandidates(ctx, req)
	}

	selection := o.selector.Select(pool, titles, req.Category)
	if selection.Exhausted {
		report.Outcome = core.OutcomeTopicsExhausted
		report.StageLog = append(report.StageLog,
			fmt.Sprintf("topic selection exhausted after %d attempts", selection.Attempts))
		return o.finish(ctx, req.JobID, report, nil)
	}
	topic := selection.Topic.Text
	report.StageLog = append(report.StageLog,
		fmt.Sprintf("selected topic %q (%s, attempt %d)", topic, selection.Topic.Source, selection.Attempts))

	o.tracker.Set(req.JobID, core.JobProcessing, 20, "gathering research")
	rc := &research.Context{Topic: topic}
	if o.research != nil {
		rc = o.research.Gather(ctx, topic, req.CustomPrompt)
	}
	report.StageLog = append(report.StageLog,
		fmt.Sprintf("research gathered %d excerpts", len(rc.Excerpts)))

	o.tracker.Set(req.JobID, core.JobProcessing, 35, "drafting")
	content, err := o.drafter.Draft(ctx, topic, req.Category, rc.Text())
	if err != nil {
		logger.Warn("Draft providers unavailable, using local fallback content", "topic", topic, "error", err.Error())
		content = draft.FallbackDraft(topic, req.Category, rc.Text())
		report.StageLog = append(report.StageLog, "draft: local fallback content")
	} else {
		report.StageLog = append(report.StageLog, "draft generated")
	}

	o.tracker.Set(req.JobID, core.JobProcessing, 55, "optimizing")
	content, toc, err := o.drafter.Optimize(ctx, content)
	if err != nil {
		return o.fail(ctx, req.JobID, report, fmt.Errorf("optimize failed: %w", err))
	}
	report.StageLog = append(report.StageLog,
		fmt.Sprintf("optimized, %d toc entries", len(toc)))

	o.tracker.Set(req.JobID, core.JobProcessing, 70, "managing links")
	if o.linker != nil {
		linked, stats, err := o.linker.Process(ctx, content, req.Category)
		if err != nil {
			logger.Warn("Link pass failed, keeping content as-is", "error", err.Error())
			report.StageLog = append(report.StageLog, "link pass skipped")
		} else {
			content = linked
			report.StageLog = append(report.StageLog,
				fmt.Sprintf("links: %d internal, %d external", stats.Internal, stats.External))
		}
	}

	o.tracker.Set(req.JobID, core.JobProcessing, 80, "persisting article")
	meta := o.buildMetadata(ctx, topic, req.Category, content)

	slug, err := o.store.UniqueSlug(ctx, textutil.Slugify(topic))
	if err != nil {
		return o.fail(ctx, req.JobID, report, fmt.Errorf("deriving slug: %w", err))
	}

	article := &core.Article{
		ID:              uuid.NewString(),
		Title:           topic,
		Slug:            slug,
		Content:         content,
		MetaTitle:       meta.Title,
		MetaDescription: meta.Description,
		Tags:            meta.Tags,
		TOC:             toc,
		Category:        req.Category,
		PublishedAt:     o.now(),
		CustomPrompt:    req.CustomPrompt,
	}

	// Persist before the thumbnail so a thumbnail-tier failure can never
	// lose the article.
	if err := o.store.SaveArticle(ctx, article); err != nil {
		return o.fail(ctx, req.JobID, report, fmt.Errorf("saving article: %w", err))
	}
	report.ArticleID = article.ID
	report.StageLog = append(report.StageLog, fmt.Sprintf("article persisted as %s", slug))

	o.tracker.Set(req.JobID, core.JobProcessing, 90, "rendering thumbnail")
	if o.thumbs != nil {
		path, err := o.thumbs.Generate(ctx, article)
		if err != nil {
			logger.Warn("Thumbnail generation failed, article stays thumbnail-less", "article", article.ID, "error", err.Error())
			report.StageLog = append(report.StageLog, "thumbnail skipped")
		} else {
			if err := o.store.SetThumbnail(ctx, article.ID, path); err != nil {
				logger.Warn("Recording thumbnail path failed", "article", article.ID, "error", err.Error())
			}
			article.ThumbnailPath = path
			report.StageLog = append(report.StageLog, "thumbnail rendered")
		}
	}

	report.Outcome = core.OutcomeSuccess
	return o.finish(ctx, req.JobID, report, nil)
}

// sourceCandidates builds the candidate pool from the custom prompt and
// the search backend. An empty pool is fine; the selector refills from the
// category fallback list.
func (o *Orchestrator) sourceCandidates(ctx context.Context, req Request) []core.CandidateTopic {
	var pool []core.CandidateTopic

	if prompt := strings.TrimSpace(req.CustomPrompt); prompt != "" {
		text := textutil.CollapseWhitespace(strings.Replace(prompt, research.ExtractPromptURL(prompt), "", 1))
		if text != "" {
			pool = append(pool, core.CandidateTopic{Text: text, Source: "prompt"})
		}
	}

	if o.searcher != nil {
		cfg := search.DefaultConfig()
		cfg.MaxResults = 8
		results, err := o.searcher.Search(ctx, req.Category+" trends this week", cfg)
		if err != nil {
			logger.Warn("Candidate search failed, relying on fallback topics", "error", err.Error())
		} else {
			for _, r := range results {
				if title := textutil.CollapseWhitespace(r.Title); title != "" {
					pool = append(pool, core.CandidateTopic{Text: title, Source: "search"})
				}
			}
		}
	}
	return pool
}

// metadata is the SEO metadata attached to an article.
type metadata struct {
	Title       string   `json:"meta_title"`
	Description string   `json:"meta_description"`
	Tags        []string `json:"tags"`
}

// buildMetadata asks the provider chain for SEO metadata and falls back
// to locally derived values on any failure.
func (o *Orchestrator) buildMetadata(ctx context.Context, topic, category, content string) metadata {
	if o.gen != nil {
		resp, err := o.gen.Generate(ctx, provider.Request{
			Kind:   provider.KindJSON,
			System: `You write SEO metadata. Respond with JSON only: {"meta_title": "...", "meta_description": "...", "tags": ["..."]}. Title under 60 characters, description under 160, 3-6 tags.`,
			User:   fmt.Sprintf("Article title: %s\nCategory: %s\n\nFirst part of the content:\n%s", topic, category, clip(content, 1500)),
		})
		if err == nil {
			var meta metadata
			if json.Unmarshal([]byte(resp.Text), &meta) == nil && meta.Title != "" && meta.Description != "" {
				if len(meta.Tags) == 0 {
					meta.Tags = []string{strings.ToLower(category)}
				}
				return meta
			}
		}
		logger.Warn("Metadata generation degraded to local derivation", "topic", topic)
	}
	return localMetadata(topic, category, content)
}

// localMetadata derives metadata from the content itself.
func localMetadata(topic, category, content string) metadata {
	description := ""
	if sentences := textutil.SplitSentences(stripMarkup(content)); len(sentences) > 0 {
		description = sentences[0]
	}
	return metadata{
		Title:       clip(topic, 60),
		Description: clip(description, 160),
		Tags:        []string{strings.ToLower(category)},
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}

// stripMarkup gives a rough plain-text view for sentence extraction.
func stripMarkup(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch r {
		case '<':
			inTag = true
		case '>':
			inTag = false
			b.WriteRune(' ')
		default:
			if !inTag {
				b.WriteRune(r)
			}
		}
	}
	return textutil.CollapseWhitespace(b.String())
}

// fail records a fatal run failure and propagates the error to the caller
// so queue-level retries can apply.
func (o *Orchestrator) fail(ctx context.Context, jobID string, report core.RunReport, err error) (core.RunReport, error) {
	report.Outcome = core.OutcomeFailed
	report.Err = err.Error()
	report.StageLog = append(report.StageLog, "fatal: "+err.Error())
	_, _ = o.finish(ctx, jobID, report, err)
	return report, err
}

// finish stamps, records, and reports the terminal outcome.
func (o *Orchestrator) finish(ctx context.Context, jobID string, report core.RunReport, runErr error) (core.RunReport, error) {
	report.EndedAt = o.now()

	if err := o.store.RecordRun(ctx, report); err != nil {
		logger.Warn("Recording run report failed", "error", err.Error())
	}
	o.notifier.RunCompleted(report)

	switch report.Outcome {
	case core.OutcomeFailed:
		o.tracker.Set(jobID, core.JobFailed, 100, report.Err)
	default:
		o.tracker.Set(jobID, core.JobCompleted, 100, string(report.Outcome))
	}
	return report, runErr
}
