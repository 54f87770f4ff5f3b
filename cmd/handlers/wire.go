package handlers

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/draft"
	"inkwell/internal/fetch"
	"inkwell/internal/links"
	"inkwell/internal/notify"
	"inkwell/internal/pipeline"
	"inkwell/internal/provider"
	"inkwell/internal/research"
	"inkwell/internal/scheduler"
	"inkwell/internal/search"
	"inkwell/internal/store"
	"inkwell/internal/thumbnail"
	"inkwell/internal/topics"
)

// app bundles the assembled pipeline and its lifecycle.
type app struct {
	cfg       *config.Config
	store     *store.Store
	orch      *pipeline.Orchestrator
	scheduler *scheduler.Daily
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// relatedFromStore adapts the article store to the link engine's
// related-content source.
type relatedFromStore struct {
	store *store.Store
}

func (r relatedFromStore) Related(ctx context.Context, category string, limit int) ([]links.RelatedItem, error) {
	articles, err := r.store.RelatedArticles(ctx, category, "", limit)
	if err != nil {
		return nil, err
	}
	items := make([]links.RelatedItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, links.RelatedItem{
			Title: a.Title,
			Path:  "/articles/" + a.Slug,
		})
	}
	return items, nil
}

// buildApp wires every collaborator from configuration.
func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Get()

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	notifier := notify.LogNotifier{}
	cooldowns := provider.NewCooldownStore(parseDuration(cfg.AI.CooldownTTL, time.Hour), notifier)

	policy := provider.DefaultBackoff()
	if cfg.AI.MaxRetries > 0 {
		policy.MaxRetries = cfg.AI.MaxRetries
	}
	invoker := provider.NewInvoker(policy, cooldowns, parseDuration(cfg.AI.Timeout, 60*time.Second))

	var providers []provider.Provider
	if cfg.AI.Gemini.APIKey != "" {
		gemini, err := provider.NewGeminiProvider(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.Model,
			cfg.AI.Gemini.MaxTokens, cfg.AI.Gemini.Temperature)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("creating gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}
	if cfg.AI.OpenAI.APIKey != "" {
		openai, err := provider.NewOpenAIProvider(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.Model,
			cfg.AI.OpenAI.ImageModel, cfg.AI.OpenAI.BaseURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("creating openai provider: %w", err)
		}
		providers = append(providers, openai)
	}
	chain := provider.NewChain(invoker, providers...)

	searcher := search.NewDuckDuckGoProvider(parseDuration(cfg.Search.RateLimit, 2*time.Second))
	fetcher := fetch.NewFetcher(parseDuration(cfg.Search.Timeout, 15*time.Second))

	linkOpts := links.Options{
		MaxInternal:      cfg.Links.MaxInternal,
		MaxExternal:      cfg.Links.MaxExternal,
		MaxValidExternal: cfg.Links.MaxValidExternal,
		MaxTotal:         cfg.Links.MaxTotal,
		ScoreThreshold:   cfg.Links.ScoreThreshold,
		SiteHost:         cfg.App.SiteHost,
	}
	linker := links.NewEngine(linkOpts,
		links.NewLiveChecker(parseDuration(cfg.Links.ValidateTimeout, 5*time.Second)),
		links.NewDiscoverer(searcher, fetcher, chain),
		relatedFromStore{store: st},
	)

	thumbs := thumbnail.NewEngine(chain, st, thumbnail.Options{
		OutputDir:           cfg.Thumbnail.OutputDir,
		MaxAttempts:         cfg.Thumbnail.MaxAttempts,
		SimilarityThreshold: cfg.Thumbnail.SimilarityThreshold,
		Width:               cfg.Thumbnail.Width,
		Height:              cfg.Thumbnail.Height,
	})

	orch := pipeline.New(pipeline.Deps{
		Generator: chain,
		Selector:  topics.NewEngine(cfg.Topics.SimilarityThreshold, cfg.Topics.MaxAttempts, nil),
		Research:  research.NewAggregator(searcher, fetcher, cfg.Search.MaxResults),
		Drafter: draft.NewStage(chain, draft.Options{
			MinWords:            cfg.Draft.MinWords,
			MaxWords:            cfg.Draft.MaxWords,
			ParagraphSplitWords: cfg.Draft.ParagraphSplitWords,
			ParagraphChunkWords: cfg.Draft.ParagraphChunkWords,
		}),
		Linker:   linker,
		Thumbs:   thumbs,
		Store:    st,
		Notifier: notifier,
		Searcher: searcher,
	})

	return &app{
		cfg:       cfg,
		store:     st,
		orch:      orch,
		scheduler: scheduler.NewDaily(cfg.Scheduler.LockPath, cfg.Scheduler.DailyLimit, st),
	}, nil
}

// parseDuration reads a config duration string, falling back when unset or
// malformed.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
