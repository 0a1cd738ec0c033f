// Package digest turns the articles of one fetch run into a DigestReport.
package digest

import (
	"errors"
	"sort"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// ErrNoArticles is returned by Build when the run produced no articles at all.
var ErrNoArticles = errors.New("no articles found from any feed")

// FilterRecent keeps articles with a known publication time strictly after now-hours.
// Undated articles are dropped.
func FilterRecent(articles []domain.Article, hours int, now time.Time) []domain.Article {
	cutoff := now.Add(-time.Duration(hours) * time.Hour)
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt == nil || !a.PublishedAt.After(cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// SortNewestFirst orders articles by PublishedAt descending in place. Undated articles sink to the end.
func SortNewestFirst(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i].PublishedAt, articles[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// SuccessFeeds counts distinct sources that contributed at least one article.
func SuccessFeeds(articles []domain.Article) int {
	seen := make(map[string]struct{})
	for _, a := range articles {
		seen[a.SourceName] = struct{}{}
	}
	return len(seen)
}

// Build assembles the report for one run. all is every article fetched, dated or not.
func Build(totalFeeds int, all []domain.Article, hours int, now time.Time) (domain.DigestReport, error) {
	if len(all) == 0 {
		return domain.DigestReport{}, ErrNoArticles
	}

	recent := FilterRecent(all, hours, now)
	SortNewestFirst(recent)

	return domain.DigestReport{
		FetchedAt:      now.UTC(),
		TotalFeeds:     totalFeeds,
		SuccessFeeds:   SuccessFeeds(all),
		TotalArticles:  len(all),
		TimeRangeHours: hours,
		RecentCount:    len(recent),
		Articles:       recent,
	}, nil
}
