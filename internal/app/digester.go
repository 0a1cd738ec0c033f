package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/config"
	"github.com/samvad-hq/samvad-feed-digest/internal/crawler"
	"github.com/samvad-hq/samvad-feed-digest/internal/digest"
	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/samvad-hq/samvad-feed-digest/internal/storage"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feedparse"
	"github.com/samvad-hq/samvad-feed-digest/pkg/feeds"
	"github.com/samvad-hq/samvad-feed-digest/pkg/httpclient"
	"github.com/samvad-hq/samvad-feed-digest/pkg/publishers"
)

// Digester represents the feed digest runtime. It fetches the catalog through the crawler, builds
// the report and hands it to the sinks: the output writer, the archive and the publishers.
type Digester struct {
	cfg          *config.Config
	catalog      *feeds.Catalog
	crawlService *crawler.Service
	enricher     crawler.ArticleEnricher
	fanout       *publishers.Fanout
	store        storage.Store
	interval     time.Duration
	log          logger.Logger

	stdout io.Writer
	now    func() time.Time
}

// NewDigester builds a digest runtime from config.
func NewDigester(ctx context.Context, cfg *config.Config, log logger.Logger) (*Digester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	catalog, err := feeds.LoadCatalog(cfg.FeedsFile)
	if err != nil {
		return nil, fmt.Errorf("load feed catalog: %w", err)
	}
	source := cfg.FeedsFile
	if source == "" {
		source = "embedded"
	}
	log.InfoObj("feed catalog loaded", "catalog_meta", map[string]any{
		"count":  catalog.Len(),
		"source": source,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		ReportTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"report_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	client := httpclient.NewRestyClient(0)
	fetcher := feeds.NewFetcher(client, feeds.Options{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
		Accept:    cfg.Accept,
		Parser:    feedparse.NewParser(cfg.Parser),
		Logger:    log,
	})
	log.InfoObj("fetcher configured", "fetch_config", map[string]any{
		"timeout_ms":  fetcher.Timeout().Milliseconds(),
		"parser":      cfg.Parser,
		"concurrency": cfg.Concurrency,
	})

	d := &Digester{
		cfg:          cfg,
		catalog:      catalog,
		crawlService: crawler.NewService(fetcher, cfg.Concurrency, log),
		fanout:       fanout,
		store:        store,
		interval:     cfg.DigestInterval,
		log:          log,
		stdout:       os.Stdout,
		now:          time.Now,
	}
	if cfg.EnrichDescriptions {
		headers := feeds.RequestHeaders(cfg.UserAgent, "text/html, application/xhtml+xml, */*")
		d.enricher = crawler.NewScraper(client, headers, cfg.EnrichDelay, cfg.FetchTimeout, log)
	}
	return d, nil
}

// buildFanout loads the optional publishers file. No file means no publishers.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		return publishers.NewFanout(nil), nil
	}

	cfgs, err := publishers.LoadConfigs(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers: %w", err)
	}
	enabled := publishers.Enabled(cfgs)

	fanout, err := publishers.DefaultFactory().BuildFanout(ctx, enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers loaded", "publishers_meta", map[string]any{
		"configured": len(cfgs),
		"enabled":    len(enabled),
		"publishers": summaries,
	})
	return fanout, nil
}

// Run executes one digest, or when an interval is configured, keeps producing digests until the
// context is cancelled. In interval mode failed runs are logged and the loop continues.
func (d *Digester) Run(ctx context.Context) error {
	if d == nil || d.crawlService == nil {
		return fmt.Errorf("digester is not initialized")
	}
	defer d.close()

	if d.interval <= 0 {
		_, err := d.runOnce(ctx)
		return err
	}

	d.log.InfoObj("digest loop starting", "digest_state", map[string]any{
		"feeds_count":      d.catalog.Len(),
		"publishers_count": d.fanout.Size(),
		"interval":         d.interval.String(),
	})

	if _, err := d.runOnce(ctx); err != nil {
		d.log.ErrorObj("initial digest failed", "error", err)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.InfoObj("digest loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if _, err := d.runOnce(ctx); err != nil {
				d.log.ErrorObj("scheduled digest failed", "error", err)
			}
		}
	}
}

// runOnce fetches every feed, builds the report and delivers it to the sinks. Only a fetch abort,
// an empty run or a failed output write is returned as an error; archive and publish failures are
// logged.
func (d *Digester) runOnce(ctx context.Context) (domain.DigestReport, error) {
	start := d.now()
	sources := d.catalog.All()
	d.log.InfoObj("digest started", "digest_meta", map[string]any{
		"feeds_count":      len(sources),
		"time_range_hours": d.cfg.TimeRangeHours,
		"concurrency":      d.crawlService.Concurrency(),
		"started_at":       start.UTC(),
	})

	previous, hasPrevious := d.previous()

	articles, _, err := d.crawlService.FetchAll(ctx, sources)
	if err != nil {
		return domain.DigestReport{}, fmt.Errorf("fetch feeds: %w", err)
	}

	report, err := digest.Build(len(sources), articles, d.cfg.TimeRangeHours, d.now())
	if err != nil {
		return domain.DigestReport{}, err
	}
	if d.enricher != nil && len(report.Articles) > 0 {
		report.Articles = d.enricher.Enrich(ctx, report.Articles)
	}

	if err := writeReport(d.cfg.OutputPath, report, d.stdout); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	d.archive(report)
	d.publish(ctx, report)

	meta := map[string]any{
		"total_feeds":    report.TotalFeeds,
		"success_feeds":  report.SuccessFeeds,
		"total_articles": report.TotalArticles,
		"recent_count":   report.RecentCount,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	}
	if hasPrevious {
		meta["previous_recent_count"] = previous.RecentCount
		meta["previous_fetched_at"] = previous.FetchedAt.UTC()
	}
	d.log.InfoObj("digest completed", "digest_meta", meta)
	return report, nil
}

// previous looks up the last archived report so a run can be compared with the one before it.
func (d *Digester) previous() (domain.DigestReport, bool) {
	report, ok, err := d.store.Latest()
	if err != nil {
		d.log.WarnObj("previous report lookup failed", "error", err)
		return domain.DigestReport{}, false
	}
	return report, ok
}

func (d *Digester) archive(report domain.DigestReport) {
	if err := d.store.SaveReport(report); err != nil {
		d.log.ErrorObj("report archive failed", "error", err)
	}
}

func (d *Digester) publish(ctx context.Context, report domain.DigestReport) {
	if d.fanout.Size() == 0 {
		return
	}
	evt := publishers.NewEvent(report)
	delivered, err := d.fanout.Publish(ctx, evt)
	if err != nil {
		d.log.ErrorObj("digest publish failed", "publish_error", map[string]any{
			"digest_id": evt.DigestID,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	d.log.InfoObj("digest published", "publish_meta", map[string]any{
		"digest_id": evt.DigestID,
		"delivered": delivered,
	})
}

// close releases the archive and publisher connections, logging any errors encountered.
func (d *Digester) close() {
	if d == nil {
		return
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.ErrorObj("storage close failed", "error", err)
		}
	}
	if err := d.fanout.Close(); err != nil {
		d.log.ErrorObj("publisher close failed", "error", err)
	}
}

// IsNoArticles reports whether err means the run found nothing to digest.
func IsNoArticles(err error) bool {
	return errors.Is(err, digest.ErrNoArticles)
}
