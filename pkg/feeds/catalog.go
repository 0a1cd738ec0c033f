package feeds

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
	"gopkg.in/yaml.v3"
)

// Package feeds holds the feed catalog and the single-source fetcher.

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Feeds []domain.FeedSource `json:"feeds" yaml:"feeds"`
}

// Catalog is a validated, ordered list of feed sources.
type Catalog struct {
	sources []domain.FeedSource
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return parseCatalog(defaultCatalogYAML, ".yaml")
}

// LoadCatalog loads a catalog from a YAML or JSON file. An empty path selects the embedded catalog.
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultCatalog()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feeds file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	return parseCatalog(raw, filepath.Ext(path))
}

// NewCatalog validates sources supplied in-process.
func NewCatalog(sources []domain.FeedSource) (*Catalog, error) {
	return buildCatalog(catalogFile{Feeds: sources})
}

func parseCatalog(data []byte, ext string) (*Catalog, error) {
	file, err := decodeCatalog(data, ext)
	if err != nil {
		return nil, err
	}
	return buildCatalog(file)
}

func buildCatalog(file catalogFile) (*Catalog, error) {
	if len(file.Feeds) == 0 {
		return nil, errors.New("feeds catalog contains no feeds entries")
	}

	c := &Catalog{sources: make([]domain.FeedSource, len(file.Feeds))}
	seen := make(map[string]struct{}, len(file.Feeds))
	for i := range file.Feeds {
		src := sanitizeSource(file.Feeds[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if _, exists := seen[src.Name]; exists {
			return nil, fmt.Errorf("duplicate feed name %q", src.Name)
		}
		seen[src.Name] = struct{}{}
		c.sources[i] = src
	}
	return c, nil
}

type unmarshalFn func([]byte, any) error

func decodeCatalog(data []byte, ext string) (catalogFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file catalogFile
		if err := d.fn(data, &file); err == nil {
			return file, nil
		}
	}

	return catalogFile{}, errors.New("feeds file format not recognized (expected YAML or JSON)")
}

func sanitizeSource(src domain.FeedSource) domain.FeedSource {
	src.Name = strings.TrimSpace(src.Name)
	src.FeedURL = strings.TrimSpace(src.FeedURL)
	src.SiteURL = strings.TrimSpace(src.SiteURL)
	return src
}

func validateSource(src domain.FeedSource) error {
	if src.Name == "" {
		return errors.New("name is required")
	}
	if src.FeedURL == "" {
		return fmt.Errorf("feed_url is required for feed %q", src.Name)
	}
	u, err := url.Parse(src.FeedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed_url for feed %q must be an absolute http(s) url", src.Name)
	}
	return nil
}

// All returns a copy of the sources in catalog order.
func (c *Catalog) All() []domain.FeedSource {
	if c == nil {
		return nil
	}
	out := make([]domain.FeedSource, len(c.sources))
	copy(out, c.sources)
	return out
}

// Len returns the number of sources.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sources)
}
