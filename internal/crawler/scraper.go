package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feedparse"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feeds"
	"github.com/samvad-hq/samvad-feed-digest/pkg/httpclient"
	"golang.org/x/time/rate"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
)

// Scraper fetches article pages and fills empty titles and descriptions from OG tags.
type Scraper struct {
	client  httpclient.Client
	headers map[string]string
	limiter *rate.Limiter
	timeout time.Duration
	log     logger.Logger
}

// NewScraper constructs a scraper with the provided HTTP client (or default). Page visits are spaced
// at least delay apart; zero disables throttling.
func NewScraper(client httpclient.Client, headers map[string]string, delay, timeout time.Duration, log logger.Logger) *Scraper {
	if client == nil {
		client = feeds.DefaultHTTPClient()
	}
	if timeout <= 0 {
		timeout = feeds.DefaultTimeout
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Scraper{
		client:  client,
		headers: headers,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
		log:     logger.Ensure(log),
	}
}

// Enrich visits each article that has no description (with throttling) and merges page metadata.
func (s *Scraper) Enrich(ctx context.Context, articles []domain.Article) []domain.Article {
	// seed output with originals so we can return what we have on abort
	out := append([]domain.Article(nil), articles...)

	for i, art := range articles {
		if art.Description != "" || art.Link == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return out
		}

		enriched, err := s.fetchAndParse(ctx, art)
		if err != nil {
			s.log.WarnObj("article metadata scrape failed", "metadata_error", map[string]any{
				"source": art.SourceName,
				"url":    art.Link,
				"error":  err.Error(),
			})
			continue
		}
		out[i] = enriched
	}

	return out
}

func (s *Scraper) fetchAndParse(ctx context.Context, art domain.Article) (domain.Article, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Get(reqCtx, art.Link, s.headers)
	if err != nil {
		return art, fmt.Errorf("http fetch: %w", err)
	}

	if resp.StatusCode() != 200 {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return art, fmt.Errorf("status %d body: %s", resp.StatusCode(), snippet)
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	meta, err := parseMeta(body)
	if err != nil {
		return art, err
	}
	updated := art
	if updated.Title == "" && meta.Title != "" {
		updated.Title = meta.Title
	}
	if meta.Description != "" {
		updated.Description = feedparse.Truncate(feedparse.StripMarkup(meta.Description), domain.MaxDescriptionLen)
	}

	return updated, nil
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	pm := pageMeta{}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	pm.Title = firstNonEmpty(
		extract(`meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	pm.Description = firstNonEmpty(
		extract(`meta[property="og:description"]`),
		extract(`meta[name="description"]`),
	)

	return pm, nil
}

type pageMeta struct {
	Title       string
	Description string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
