package feeds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	if c.Len() < 90 {
		t.Fatalf("expected at least 90 feeds, got %d", c.Len())
	}
	first := c.All()[0]
	if first.Name != "simonwillison.net" || first.FeedURL != "https://simonwillison.net/atom/everything/" {
		t.Fatalf("catalog order must be preserved, first entry %+v", first)
	}
}

func TestLoadCatalogYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "feeds.yaml")
	content := `
feeds:
  - name: " example.com "
    feed_url: https://example.com/feed.xml
    site_url: https://example.com
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}

	c, err := LoadCatalog(file)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	src := c.All()[0]
	if src.Name != "example.com" || src.SiteURL != "https://example.com" {
		t.Fatalf("expected trimmed entry, got %+v", src)
	}
}

func TestLoadCatalogJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "feeds.json")
	content := `{"feeds":[{"name":"a","feed_url":"http://a.example/rss","site_url":"http://a.example"}]}`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}

	c, err := LoadCatalog(file)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 feed, got %d", c.Len())
	}
}

func TestLoadCatalogDuplicateName(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "feeds.yaml")
	content := `
feeds:
  - name: dup
    feed_url: https://one.example/feed
  - name: dup
    feed_url: https://two.example/feed
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}

	if _, err := LoadCatalog(file); err == nil {
		t.Fatalf("expected duplicate feed error, got nil")
	}
}

func TestNewCatalogValidatesURLs(t *testing.T) {
	if _, err := NewCatalog([]domain.FeedSource{{Name: "x", FeedURL: "ftp://x.example/feed"}}); err == nil {
		t.Fatalf("expected error for non-http url")
	}
	if _, err := NewCatalog([]domain.FeedSource{{FeedURL: "https://x.example/feed"}}); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if _, err := NewCatalog(nil); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
}
