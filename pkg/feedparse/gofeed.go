package feedparse

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// GofeedParser maps documents through a full gofeed parse. Documents gofeed rejects yield no items.
type GofeedParser struct {
	fp *gofeed.Parser
}

// NewGofeedParser builds a gofeed-backed Parser.
func NewGofeedParser() *GofeedParser {
	return &GofeedParser{fp: gofeed.NewParser()}
}

// Parse implements Parser.
func (p *GofeedParser) Parse(body []byte) []domain.RawItem {
	feed, err := p.fp.Parse(bytes.NewReader(body))
	if err != nil || feed == nil {
		return nil
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		item := domain.RawItem{
			Title:       StripMarkup(it.Title),
			Link:        strings.TrimSpace(firstNonEmpty(it.Link, it.GUID)),
			PubDateText: strings.TrimSpace(firstNonEmpty(it.Published, it.Updated)),
			Description: Truncate(StripMarkup(firstNonEmpty(it.Description, it.Content)), domain.MaxDescriptionLen),
		}
		if item.Title == "" && item.Link == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// NewParser returns the Parser registered under name ("tolerant" or "gofeed").
func NewParser(name string) Parser {
	if strings.EqualFold(strings.TrimSpace(name), "gofeed") {
		return NewGofeedParser()
	}
	return NewTolerantParser(nil)
}
