package crawler

import (
	"context"
	"fmt"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the group size used when none is configured.
const DefaultConcurrency = 10

// Service drives a list of feed sources through a fetcher in fixed-size concurrent groups.
// Each group is awaited in full before the next one starts, so at most concurrency fetches are
// ever in flight.
type Service struct {
	fetcher     SourceFetcher
	concurrency int
	log         logger.Logger
	onProgress  ProgressFunc
}

// NewService wires a crawler around fetcher.
func NewService(fetcher SourceFetcher, concurrency int, log logger.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		fetcher:     fetcher,
		concurrency: concurrency,
		log:         logger.Ensure(log),
	}
}

// OnProgress registers fn to be called after every group.
func (s *Service) OnProgress(fn ProgressFunc) {
	s.onProgress = fn
}

// Concurrency returns the group size.
func (s *Service) Concurrency() int { return s.concurrency }

// FetchAll fetches every source and returns the collected articles in catalog order, plus outcome
// counts. Individual source failures never surface as an error; the error is non-nil only when the
// service is unusable or ctx ends before all groups ran, in which case the articles gathered so far
// are still returned.
func (s *Service) FetchAll(ctx context.Context, sources []domain.FeedSource) ([]domain.Article, domain.Tally, error) {
	var tally domain.Tally
	if s == nil || s.fetcher == nil {
		return nil, tally, fmt.Errorf("crawler service is not initialized")
	}
	if len(sources) == 0 {
		return nil, tally, fmt.Errorf("no feeds configured for crawling")
	}

	var (
		all      []domain.Article
		progress = domain.Progress{Total: len(sources)}
	)

	for start := 0; start < len(sources); start += s.concurrency {
		if err := ctx.Err(); err != nil {
			s.log.WarnObj("fetch aborted", "fetch_abort", map[string]any{
				"processed": progress.Processed,
				"total":     progress.Total,
				"reason":    err.Error(),
			})
			return all, tally, fmt.Errorf("fetch aborted after %d/%d feeds: %w", progress.Processed, progress.Total, err)
		}

		end := min(start+s.concurrency, len(sources))
		outcomes := s.fetchGroup(ctx, sources[start:end])

		for _, o := range outcomes {
			switch {
			case len(o.Articles) > 0:
				tally.OK++
				progress.OK++
				all = append(all, o.Articles...)
			case o.Failed():
				tally.Failed++
				progress.Failed++
				if o.Kind == domain.OutcomeTimeout {
					tally.Timeouts++
				}
			default:
				tally.Empty++
				progress.Failed++
			}
		}

		progress.Group++
		progress.GroupSize = len(outcomes)
		progress.Processed = end
		s.reportProgress(progress)
	}

	s.log.InfoObj("fetch completed", "fetch_summary", map[string]any{
		"articles": len(all),
		"feeds":    len(sources),
		"ok":       tally.OK,
		"empty":    tally.Empty,
		"failed":   tally.Failed,
		"timeouts": tally.Timeouts,
	})
	return all, tally, nil
}

// fetchGroup runs one group concurrently and returns outcomes in input order.
func (s *Service) fetchGroup(ctx context.Context, group []domain.FeedSource) []domain.FetchOutcome {
	outcomes := make([]domain.FetchOutcome, len(group))

	var g errgroup.Group
	for i, src := range group {
		g.Go(func() error {
			outcomes[i] = s.fetcher.Fetch(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Service) reportProgress(p domain.Progress) {
	s.log.InfoObj("fetch progress", "fetch_progress", map[string]any{
		"processed": p.Processed,
		"total":     p.Total,
		"ok":        p.OK,
		"failed":    p.Failed,
	})
	if s.onProgress != nil {
		s.onProgress(p)
	}
}
