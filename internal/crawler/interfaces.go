package crawler

import (
	"context"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// SourceFetcher fetches one feed source. Implementations report failures through the outcome.
type SourceFetcher interface {
	Fetch(ctx context.Context, src domain.FeedSource) domain.FetchOutcome
}

// ArticleEnricher fills in metadata the feeds left empty (e.g., descriptions from OG tags).
type ArticleEnricher interface {
	Enrich(ctx context.Context, articles []domain.Article) []domain.Article
}

// ProgressFunc receives the running tally after each fetch group settles.
type ProgressFunc func(domain.Progress)
