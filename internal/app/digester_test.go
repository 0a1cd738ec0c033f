package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/config"
	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
	"github.com/samvad-hq/samvad-feed-digest/internal/logger"
	"github.com/samvad-hq/samvad-feed-digest/internal/storage"
	"github.com/samvad-hq/samvad-feed-digest/pkg/publishers"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().UTC()
	atom := fmt.Sprintf(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><title>Fresh</title><link rel="alternate" href="https://a.example/fresh"/><published>%s</published></entry>
  <entry><title>Stale</title><link href="https://a.example/stale"/><updated>%s</updated></entry>
  <entry><title>Newest</title><link href="https://a.example/newest"/><published>%s</published><summary>s</summary></entry>
</feed>`,
		now.Add(-2*time.Hour).Format(time.RFC3339),
		now.Add(-100*time.Hour).Format(time.RFC3339),
		now.Add(-30*time.Minute).Format(time.RFC3339),
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(atom))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func testConfig(dir, feedsFile string) *config.Config {
	return &config.Config{
		FeedsFile:              feedsFile,
		OutputPath:             filepath.Join(dir, "out", "digest.json"),
		TimeRangeHours:         48,
		Concurrency:            2,
		FetchTimeout:           2 * time.Second,
		Parser:                 "tolerant",
		StorageType:            "bbolt",
		BBoltPath:              filepath.Join(dir, "reports.db"),
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
}

func TestDigesterRunOnceWritesArchivesAndPublishes(t *testing.T) {
	srv := feedServer(t)
	dir := t.TempDir()

	var delivered atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt publishers.Event
		if err := json.NewDecoder(r.Body).Decode(&evt); err == nil && evt.Report.RecentCount == 2 {
			delivered.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	feedsFile := writeFile(t, filepath.Join(dir, "feeds.yaml"), fmt.Sprintf(`
feeds:
  - name: Alpha
    feed_url: %s/atom
    site_url: https://a.example
  - name: Broken
    feed_url: %s/broken
    site_url: https://b.example
`, srv.URL, srv.URL))
	cfg := testConfig(dir, feedsFile)
	cfg.PublishersFile = writeFile(t, filepath.Join(dir, "publishers.yaml"), fmt.Sprintf(`
publishers:
  - id: hook
    type: http
    http:
      url: %s
`, hook.URL))

	d, err := NewDigester(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDigester: %v", err)
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var report domain.DigestReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if report.TotalFeeds != 2 || report.SuccessFeeds != 1 || report.TotalArticles != 3 || report.RecentCount != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Articles[0].Title != "Newest" || report.Articles[1].Title != "Fresh" {
		t.Fatalf("articles not newest first: %+v", report.Articles)
	}
	if report.Articles[0].SourceName != "Alpha" || report.Articles[0].SourceURL != "https://a.example" {
		t.Fatalf("source attribution missing: %+v", report.Articles[0])
	}
	if !bytes.Contains(raw, []byte("\n  \"fetchedAt\"")) {
		t.Fatalf("expected two-space indented output:\n%s", raw)
	}

	if delivered.Load() != 1 {
		t.Fatalf("expected one delivered event, got %d", delivered.Load())
	}

	store, err := storage.NewStore("bbolt", cfg.BBoltPath, storage.Options{})
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	defer store.Close()
	latest, ok, err := store.Latest()
	if err != nil || !ok || latest.RecentCount != 2 {
		t.Fatalf("archive missing report: ok=%v err=%v report=%+v", ok, err, latest)
	}
}

func TestDigesterComparesWithArchivedReport(t *testing.T) {
	srv := feedServer(t)
	dir := t.TempDir()
	feedsFile := writeFile(t, filepath.Join(dir, "feeds.yaml"), fmt.Sprintf(`
feeds:
  - name: Alpha
    feed_url: %s/atom
`, srv.URL))
	cfg := testConfig(dir, feedsFile)
	cfg.OutputPath = ""

	core, logs := observer.New(zapcore.DebugLevel)
	d, err := NewDigester(context.Background(), cfg, logger.New(core))
	if err != nil {
		t.Fatalf("NewDigester: %v", err)
	}
	defer d.close()
	d.stdout = &bytes.Buffer{}

	configured := logs.FilterMessage("fetcher configured").All()
	if len(configured) != 1 || configured[0].ContextMap()["fetch_config"].(map[string]any)["timeout_ms"] != int64(2000) {
		t.Fatalf("expected fetcher timeout to be logged, got %#v", configured)
	}

	for i := 0; i < 2; i++ {
		if _, err := d.runOnce(context.Background()); err != nil {
			t.Fatalf("runOnce %d: %v", i, err)
		}
	}

	completed := logs.FilterMessage("digest completed").All()
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed digests, got %d", len(completed))
	}
	first := completed[0].ContextMap()["digest_meta"].(map[string]any)
	if _, ok := first["previous_recent_count"]; ok {
		t.Fatalf("first run has nothing to compare with: %#v", first)
	}
	second := completed[1].ContextMap()["digest_meta"].(map[string]any)
	if second["previous_recent_count"] != 2 {
		t.Fatalf("expected previous recent count 2, got %#v", second)
	}
}

func TestDigesterRunFailsWhenNoArticles(t *testing.T) {
	srv := feedServer(t)
	dir := t.TempDir()
	feedsFile := writeFile(t, filepath.Join(dir, "feeds.json"),
		fmt.Sprintf(`{"feeds":[{"name":"Broken","feed_url":"%s/broken","site_url":"https://b.example"}]}`, srv.URL))

	cfg := testConfig(dir, feedsFile)
	cfg.StorageType = "none"

	d, err := NewDigester(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDigester: %v", err)
	}
	err = d.Run(context.Background())
	if !IsNoArticles(err) {
		t.Fatalf("expected no-articles error, got %v", err)
	}
	if _, statErr := os.Stat(cfg.OutputPath); !os.IsNotExist(statErr) {
		t.Fatalf("output must not be written on failure")
	}
}

func TestDigesterIntervalLoopStopsOnCancel(t *testing.T) {
	srv := feedServer(t)
	dir := t.TempDir()
	feedsFile := writeFile(t, filepath.Join(dir, "feeds.yaml"), fmt.Sprintf(`
feeds:
  - name: Alpha
    feed_url: %s/atom
`, srv.URL))

	cfg := testConfig(dir, feedsFile)
	cfg.StorageType = "none"
	cfg.OutputPath = ""
	cfg.DigestInterval = 20 * time.Millisecond

	d, err := NewDigester(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDigester: %v", err)
	}
	var buf bytes.Buffer
	d.stdout = &buf

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := bytes.Count(buf.Bytes(), []byte(`"recentCount": 2`)); n < 2 {
		t.Fatalf("expected repeated digests on stdout, got %d", n)
	}
}

func TestWriteReportToStdout(t *testing.T) {
	var buf bytes.Buffer
	report := domain.DigestReport{FetchedAt: time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC), Articles: []domain.Article{}}
	if err := writeReport("", report, &buf); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	want := "{\n  \"fetchedAt\": \"2025-01-06T12:00:00Z\",\n"
	if !bytes.HasPrefix(buf.Bytes(), []byte(want)) {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"articles": []`)) {
		t.Fatalf("articles must render as an empty array:\n%s", buf.String())
	}
}
