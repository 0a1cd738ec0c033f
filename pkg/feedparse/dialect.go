package feedparse

import (
	"regexp"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// Parser turns one feed document into raw items in document order.
type Parser interface {
	Parse(body []byte) []domain.RawItem
}

// Dialect is the sniffed feed format.
type Dialect int

const (
	DialectRSS Dialect = iota
	DialectAtom
)

func (d Dialect) String() string {
	if d == DialectAtom {
		return "atom"
	}
	return "rss"
}

var (
	atomRootRe = regexp.MustCompile(`(?i)<feed[\s>]`)
	entryRe    = regexp.MustCompile(`(?is)<entry(?:\s[^>]*)?>(.*?)</entry\s*>`)
	itemRe     = regexp.MustCompile(`(?is)<item(?:\s[^>]*)?>(.*?)</item\s*>`)
)

// Sniff classifies xml as Atom when it has a <feed> root tag, RSS/RDF otherwise.
func Sniff(xml string) Dialect {
	if atomRootRe.MatchString(xml) {
		return DialectAtom
	}
	return DialectRSS
}

// TolerantParser recovers entries with text patterns and tolerates malformed documents.
type TolerantParser struct {
	ex Extractor
}

// NewTolerantParser builds a parser on top of ex, or the regex extractor when ex is nil.
func NewTolerantParser(ex Extractor) *TolerantParser {
	if ex == nil {
		ex = RegexExtractor{}
	}
	return &TolerantParser{ex: ex}
}

// Parse implements Parser.
func (p *TolerantParser) Parse(body []byte) []domain.RawItem {
	return p.ParseString(string(body))
}

// ParseString is Parse for an already decoded document.
func (p *TolerantParser) ParseString(xml string) []domain.RawItem {
	dialect := Sniff(xml)

	segment := itemRe
	mapEntry := p.rssItem
	if dialect == DialectAtom {
		segment = entryRe
		mapEntry = p.atomEntry
	}

	var items []domain.RawItem
	for _, m := range segment.FindAllStringSubmatch(xml, -1) {
		item := mapEntry(m[1])
		if item.Title == "" && item.Link == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (p *TolerantParser) atomEntry(fragment string) domain.RawItem {
	link := p.ex.Attribute(fragment, `link[^>]*rel=["']alternate["']`, "href")
	if link == "" {
		link = p.ex.Attribute(fragment, `link`, "href")
	}

	return domain.RawItem{
		Title: StripMarkup(p.ex.TagContent(fragment, "title")),
		Link:  link,
		PubDateText: firstNonEmpty(
			p.ex.TagContent(fragment, "published"),
			p.ex.TagContent(fragment, "updated"),
		),
		Description: Truncate(StripMarkup(firstNonEmpty(
			p.ex.TagContent(fragment, "summary"),
			p.ex.TagContent(fragment, "content"),
		)), domain.MaxDescriptionLen),
	}
}

func (p *TolerantParser) rssItem(fragment string) domain.RawItem {
	return domain.RawItem{
		Title: StripMarkup(p.ex.TagContent(fragment, "title")),
		Link: firstNonEmpty(
			p.ex.TagContent(fragment, "link"),
			p.ex.TagContent(fragment, "guid"),
		),
		PubDateText: firstNonEmpty(
			p.ex.TagContent(fragment, "pubDate"),
			p.ex.TagContent(fragment, "dc:date"),
			p.ex.TagContent(fragment, "date"),
		),
		Description: Truncate(StripMarkup(firstNonEmpty(
			p.ex.TagContent(fragment, "description"),
			p.ex.TagContent(fragment, "content:encoded"),
		)), domain.MaxDescriptionLen),
	}
}

// ParseFeedItems parses xml with the default tolerant parser.
func ParseFeedItems(xml string) []domain.RawItem {
	return NewTolerantParser(nil).ParseString(xml)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
