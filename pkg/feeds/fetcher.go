package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feedparse"
	"github.com/samvad-hq/samvad-feed-digest/pkg/httpclient"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "AI-Daily-Digest/2.0 (RSS Reader)"
	DefaultAccept    = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
)

// HTTPClient aliases the shared httpclient.Client interface for clarity within feeds.
type HTTPClient = httpclient.Client

// DefaultHTTPClient returns the resty-backed client; deadlines come from the request context.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(0) }

// Options tunes a Fetcher. Zero values fall back to the package defaults.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Accept    string
	Parser    feedparse.Parser
	Logger    logger.Logger
}

// Fetcher retrieves one feed and converts its entries into articles.
type Fetcher struct {
	client  HTTPClient
	parser  feedparse.Parser
	timeout time.Duration
	headers map[string]string
	log     logger.Logger
}

// NewFetcher builds a Fetcher around client (or the default client).
func NewFetcher(client HTTPClient, opts Options) *Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Accept == "" {
		opts.Accept = DefaultAccept
	}
	if opts.Parser == nil {
		opts.Parser = feedparse.NewTolerantParser(nil)
	}

	return &Fetcher{
		client:  client,
		parser:  opts.Parser,
		timeout: opts.Timeout,
		headers: RequestHeaders(opts.UserAgent, opts.Accept),
		log:     logger.Ensure(opts.Logger),
	}
}

// RequestHeaders builds the feed request headers, skipping empty values.
func RequestHeaders(userAgent, accept string) map[string]string {
	headers := make(map[string]string, 2)
	if v := strings.TrimSpace(userAgent); v != "" {
		headers["User-Agent"] = v
	}
	if v := strings.TrimSpace(accept); v != "" {
		headers["Accept"] = v
	}
	return headers
}

// Timeout returns the per-request deadline.
func (f *Fetcher) Timeout() time.Duration { return f.timeout }

// Fetch GETs src.FeedURL under the fetcher's deadline. It never returns an error: failures are
// logged and reported through the outcome kind with no articles. A 2xx body without entries is
// empty when it still looks like a feed and invalid otherwise.
func (f *Fetcher) Fetch(ctx context.Context, src domain.FeedSource) domain.FetchOutcome {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.Get(reqCtx, src.FeedURL, f.headers)
	if err != nil {
		kind := domain.OutcomeNetwork
		if isTimeout(reqCtx, err) {
			kind = domain.OutcomeTimeout
			err = fmt.Errorf("timeout after %s: %w", f.timeout, err)
		}
		return f.fail(src, kind, 0, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return f.fail(src, domain.OutcomeHTTPStatus, status, fmt.Errorf("HTTP %d", status))
	}

	body := resp.Body()
	articles := ToArticles(src, f.parser.Parse(body))
	kind := domain.OutcomeOK
	if len(articles) == 0 {
		if !hasFeedRoot(body) {
			return f.fail(src, domain.OutcomeInvalid, status, errors.New("response is not an RSS, RDF or Atom document"))
		}
		kind = domain.OutcomeEmpty
		f.log.DebugObj("feed returned no entries", "fetch_empty", map[string]any{
			"source":   src.Name,
			"feed_url": src.FeedURL,
		})
	}
	return domain.FetchOutcome{Source: src, Articles: articles, Kind: kind, StatusCode: status}
}

func (f *Fetcher) fail(src domain.FeedSource, kind domain.OutcomeKind, status int, err error) domain.FetchOutcome {
	reason := err.Error()
	if kind == domain.OutcomeTimeout {
		reason = "timeout"
	}
	f.log.WarnObj("feed fetch failed", "fetch_error", map[string]any{
		"source":      src.Name,
		"feed_url":    src.FeedURL,
		"kind":        string(kind),
		"status_code": status,
		"reason":      reason,
		"error":       err.Error(),
	})
	return domain.FetchOutcome{Source: src, Kind: kind, StatusCode: status, Err: err}
}

var feedRootMarkers = [][]byte{[]byte("<rss"), []byte("<rdf"), []byte("<feed"), []byte("<channel")}

// hasFeedRoot reports whether body carries one of the feed root elements. rdf:RDF documents match
// through their channel element.
func hasFeedRoot(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range feedRootMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isTimeout(reqCtx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ToArticles maps raw entries onto articles attributed to src.
func ToArticles(src domain.FeedSource, items []domain.RawItem) []domain.Article {
	if len(items) == 0 {
		return nil
	}
	articles := make([]domain.Article, 0, len(items))
	for _, it := range items {
		a := domain.Article{
			Title:       it.Title,
			Link:        it.Link,
			Description: feedparse.Truncate(it.Description, domain.MaxDescriptionLen),
			SourceName:  src.Name,
			SourceURL:   src.SiteURL,
		}
		if t, ok := ParseFeedDate(it.PubDateText); ok {
			a.PublishedAt = &t
		}
		articles = append(articles, a)
	}
	return articles
}
