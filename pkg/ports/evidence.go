package ports

import "context"

// SummaryKind classifies an encyclopedia page.
type SummaryKind string

const (
	SummaryStandard       SummaryKind = "standard"
	SummaryDisambiguation SummaryKind = "disambiguation"
	SummaryMissing        SummaryKind = "missing"
)

// Summary is the lead section of an encyclopedia page.
type Summary struct {
	Kind    SummaryKind `json:"kind"`
	Title   string      `json:"title"`
	URL     string      `json:"url,omitempty"`
	Extract string      `json:"extract,omitempty"`
}

// Snippet is a single search hit.
type Snippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// EvidenceSource looks up external evidence for verification.
// Implementations must honour ctx cancellation and never panic.
type EvidenceSource interface {
	// SearchSnippets returns up to limit hits for query.
	SearchSnippets(ctx context.Context, query string, limit int) ([]Snippet, error)

	// FetchSummary returns the summary of the page with the exact title.
	// A missing page is reported as Kind == SummaryMissing, not as an error.
	FetchSummary(ctx context.Context, title string) (Summary, error)
}
