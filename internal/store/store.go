// Package store persists articles, thumbnail signatures, and run history
// in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"inkwell/internal/core"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if necessary) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "inkwell.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		content TEXT,
		meta_title TEXT,
		meta_description TEXT,
		tags TEXT,
		toc TEXT,
		category TEXT,
		published_at DATETIME,
		thumbnail_path TEXT,
		custom_prompt TEXT
	);`

	signaturesTable := `
	CREATE TABLE IF NOT EXISTS thumbnail_signatures (
		article_id TEXT PRIMARY KEY,
		signature TEXT NOT NULL,
		created_at DATETIME
	);`

	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		outcome TEXT NOT NULL,
		article_id TEXT,
		category TEXT,
		error TEXT,
		stage_log TEXT,
		started_at DATETIME,
		ended_at DATETIME
	);`

	tables := []string{articlesTable, signaturesTable, runsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveArticle inserts or replaces an article.
func (s *Store) SaveArticle(ctx context.Context, article *core.Article) error {
	tags, _ := json.Marshal(article.Tags)
	toc, _ := json.Marshal(article.TOC)

	query := `
	INSERT OR REPLACE INTO articles
	(id, title, slug, content, meta_title, meta_description, tags, toc, category, published_at, thumbnail_path, custom_prompt)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		article.ID,
		article.Title,
		article.Slug,
		article.Content,
		article.MetaTitle,
		article.MetaDescription,
		string(tags),
		string(toc),
		article.Category,
		article.PublishedAt,
		article.ThumbnailPath,
		article.CustomPrompt,
	)
	return err
}

// GetArticle retrieves one article by id. Returns nil when not found.
func (s *Store) GetArticle(ctx context.Context, id string) (*core.Article, error) {
	query := `
	SELECT id, title, slug, content, meta_title, meta_description, tags, toc, category, published_at, thumbnail_path, custom_prompt
	FROM articles WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var article core.Article
	var tags, toc string
	err := row.Scan(
		&article.ID,
		&article.Title,
		&article.Slug,
		&article.Content,
		&article.MetaTitle,
		&article.MetaDescription,
		&tags,
		&toc,
		&article.Category,
		&article.PublishedAt,
		&article.ThumbnailPath,
		&article.CustomPrompt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	if tags != "" {
		_ = json.Unmarshal([]byte(tags), &article.Tags)
	}
	if toc != "" {
		_ = json.Unmarshal([]byte(toc), &article.TOC)
	}
	return &article, nil
}

// SetThumbnail records the thumbnail file reference for an article. The
// article row exists before its thumbnail does; this is the second write.
func (s *Store) SetThumbnail(ctx context.Context, articleID, path string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET thumbnail_path = ? WHERE id = ?`, path, articleID)
	return err
}

// Titles returns every stored article title, the corpus the topic
// deduplication pass compares candidates against.
func (s *Store) Titles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("failed to query titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// UniqueSlug returns base if unused, otherwise base-2, base-3, and so on.
func (s *Store) UniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for n := 2; ; n++ {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM articles WHERE slug = ?`, slug).Scan(&count)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

// RelatedArticles returns recent articles in a category, excluding one id,
// as internal-link candidates.
func (s *Store) RelatedArticles(ctx context.Context, category, excludeID string, limit int) ([]core.Article, error) {
	query := `
	SELECT id, title, slug FROM articles
	WHERE category = ? AND id != ?
	ORDER BY published_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, category, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query related articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		var a core.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Slug); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SaveSignature records one accepted thumbnail's content signature.
func (s *Store) SaveSignature(ctx context.Context, articleID string, sig core.ThumbnailSignature) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signature: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO thumbnail_signatures (article_id, signature, created_at) VALUES (?, ?, ?)`,
		articleID, string(payload), time.Now().UTC())
	return err
}

// Signatures returns every stored thumbnail signature.
func (s *Store) Signatures(ctx context.Context) ([]core.ThumbnailSignature, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT signature FROM thumbnail_signatures`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures: %w", err)
	}
	defer rows.Close()

	var sigs []core.ThumbnailSignature
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sig core.ThumbnailSignature
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			continue // Skip rows written by older schema revisions
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

// RecordRun persists one run report.
func (s *Store) RecordRun(ctx context.Context, report core.RunReport) error {
	stageLog, _ := json.Marshal(report.StageLog)

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO runs (id, outcome, article_id, category, error, stage_log, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		string(report.Outcome),
		report.ArticleID,
		report.Category,
		report.Err,
		string(stageLog),
		report.StartedAt,
		report.EndedAt,
	)
	return err
}

// RunsSince counts runs that started at or after the cutoff. The daily
// scheduler uses this as its quota counter.
func (s *Store) RunsSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE started_at >= ?`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// LastRun returns the most recent run report, or nil when none exist.
func (s *Store) LastRun(ctx context.Context) (*core.RunReport, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT outcome, article_id, category, error, stage_log, started_at, ended_at
	FROM runs ORDER BY started_at DESC LIMIT 1`)

	var report core.RunReport
	var outcome, stageLog string
	err := row.Scan(&outcome, &report.ArticleID, &report.Category, &report.Err, &stageLog, &report.StartedAt, &report.EndedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	report.Outcome = core.RunOutcome(outcome)
	if stageLog != "" {
		_ = json.Unmarshal([]byte(stageLog), &report.StageLog)
	}
	return &report, nil
}
