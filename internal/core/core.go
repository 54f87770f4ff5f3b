package core

import "time"

// CandidateTopic represents a topic under consideration for generation.
// Candidates are ephemeral; they exist only while a topic is being selected.
type CandidateTopic struct {
	Text   string `json:"text"`   // The topic phrase
	Source string `json:"source"` // Provenance: "feed", "search", "prompt", "fallback"
}

// TOCEntry is one entry in an article's table of contents.
type TOCEntry struct {
	Level  int    `json:"level"`  // Heading level (2 or 3)
	Title  string `json:"title"`  // Heading text
	Anchor string `json:"anchor"` // Deterministic anchor id derived from the title
}

// Article represents a generated long-form article.
type Article struct {
	ID              string     `json:"id"`               // Unique identifier for the article
	Title           string     `json:"title"`            // Title of the article
	Slug            string     `json:"slug"`             // URL slug; unique and stable once assigned
	Content         string     `json:"content"`          // Full HTML content
	MetaTitle       string     `json:"meta_title"`       // SEO meta title
	MetaDescription string     `json:"meta_description"` // SEO meta description
	Tags            []string   `json:"tags"`             // Tag list
	TOC             []TOCEntry `json:"toc"`              // Ordered table of contents
	Category        string     `json:"category"`         // Category reference
	PublishedAt     time.Time  `json:"published_at"`     // Publish timestamp
	ThumbnailPath   string     `json:"thumbnail_path"`   // File reference for the thumbnail (set after render)
	CustomPrompt    string     `json:"custom_prompt"`    // Optional free-text prompt supplied by the caller
}

// LinkKind classifies an anchor as internal or external.
type LinkKind string

const (
	LinkInternal LinkKind = "internal"
	LinkExternal LinkKind = "external"
)

// LinkRecord describes one hyperlink found in article content.
// Derived during the link-management pass, never persisted.
type LinkRecord struct {
	URL        string   `json:"url"`
	AnchorText string   `json:"anchor_text"`
	Kind       LinkKind `json:"kind"`
	Position   int      `json:"position"` // Document order, zero-based
}

// ThumbnailSignature summarizes a rendered thumbnail's visual features for
// similarity comparison against prior renders.
type ThumbnailSignature struct {
	Fills       []string       `json:"fills"`        // Sorted fill colors
	Strokes     []string       `json:"strokes"`      // Sorted stroke colors
	ShapeCounts map[string]int `json:"shape_counts"` // Shape tag -> occurrence count
	Positions   int            `json:"positions"`    // Number of positioned nodes
}

// JobStatus enumerates the lifecycle states of a generation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobState tracks one generation run's progress. A job state is owned by the
// run that created it and overwritten monotonically.
type JobState struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"` // 0-100
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunOutcome is the terminal result of a generation run. Every run ends in
// exactly one outcome; there is no silent no-op.
type RunOutcome string

const (
	OutcomeSuccess         RunOutcome = "success"
	OutcomeFailed          RunOutcome = "failed"
	OutcomeTopicsExhausted RunOutcome = "all-topics-duplicate"
)

// RunReport is the structured report delivered to the notification
// collaborator after each run.
type RunReport struct {
	Outcome   RunOutcome `json:"outcome"`
	ArticleID string     `json:"article_id,omitempty"` // Produced article, if any
	Category  string     `json:"category"`
	Err       string     `json:"error,omitempty"` // Triggering error, if any
	StageLog  []string   `json:"stage_log"`       // Ordered human-readable stage messages
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
}

// SearchResult is one hit returned by a search backend.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ScrapedPage is the content extracted from a fetched URL.
type ScrapedPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Snippet string `json:"snippet"`
}
