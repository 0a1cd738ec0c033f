package feedparse

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Extractor pulls single values out of one entry fragment. Implementations only look at the first
// matching element.
type Extractor interface {
	// TagContent returns the trimmed inner text of the first element named tag, CDATA unwrapped.
	TagContent(fragment, tag string) string
	// Attribute returns attr from the first start tag matching tagPattern that carries it.
	Attribute(fragment, tagPattern, attr string) string
}

// RegexExtractor is the default Extractor. It matches text patterns only and knows nothing about nesting.
type RegexExtractor struct{}

var (
	cdataRe  = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	markupRe = regexp.MustCompile(`<[^>]*>`)
	entityRe = regexp.MustCompile(`&(amp|lt|gt|quot|#39|nbsp|#[0-9]+);`)

	patternCache sync.Map // string -> *regexp.Regexp
)

var namedEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"#39":  "'",
	"nbsp": " ",
}

func cachedPattern(expr string) *regexp.Regexp {
	if re, ok := patternCache.Load(expr); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(expr)
	patternCache.Store(expr, re)
	return re
}

// TagContent implements Extractor.
func (RegexExtractor) TagContent(fragment, tag string) string {
	name := regexp.QuoteMeta(tag)
	open := cachedPattern(`(?i)<` + name + `(?:\s[^>]*)?>`)

	loc := open.FindStringIndex(fragment)
	if loc == nil {
		return ""
	}
	if strings.HasSuffix(fragment[loc[0]:loc[1]], "/>") {
		return ""
	}

	rest := fragment[loc[1]:]
	end := cachedPattern(`(?i)</` + name + `\s*>`).FindStringIndex(rest)
	if end == nil {
		return ""
	}
	return strings.TrimSpace(unwrapCDATA(rest[:end[0]]))
}

// Attribute implements Extractor. tagPattern is a regular expression fragment such as
// `link[^>]*rel="alternate"`; attribute order inside the tag does not matter.
func (RegexExtractor) Attribute(fragment, tagPattern, attr string) string {
	if _, err := regexp.Compile(tagPattern); err != nil {
		return ""
	}
	tags := cachedPattern(`(?i)<(?:` + tagPattern + `)[^>]*>`)
	value := cachedPattern(`(?i)\s` + regexp.QuoteMeta(attr) + `\s*=\s*["']([^"']*)["']`)

	for _, tag := range tags.FindAllString(fragment, -1) {
		if m := value.FindStringSubmatch(tag); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func unwrapCDATA(text string) string {
	if m := cdataRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

var defaultExtractor Extractor = RegexExtractor{}

// ExtractTagContent returns the inner text of the first element named tagName, or "".
func ExtractTagContent(xml, tagName string) string {
	return defaultExtractor.TagContent(xml, tagName)
}

// ExtractAttribute returns attrName from the first element matching tagPattern, or "".
func ExtractAttribute(xml, tagPattern, attrName string) string {
	return defaultExtractor.Attribute(xml, tagPattern, attrName)
}

// StripMarkup removes tags, decodes the common named entities and decimal character references,
// and trims the result. Unknown entities are left as they are.
func StripMarkup(text string) string {
	if text == "" {
		return ""
	}
	text = markupRe.ReplaceAllString(text, "")
	text = entityRe.ReplaceAllStringFunc(text, decodeEntity)
	return strings.TrimSpace(text)
}

func decodeEntity(entity string) string {
	name := entity[1 : len(entity)-1]
	if v, ok := namedEntities[name]; ok {
		return v
	}
	code, err := strconv.Atoi(name[1:])
	if err != nil || code <= 0 || code > 0x10FFFF {
		return entity
	}
	return string(rune(code))
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
