package feeds

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// dayMonthYearRe recovers "DD Mon YYYY HH:MM:SS" plus an optional numeric offset from noisy strings.
var dayMonthYearRe = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]{3})[A-Za-z]*\.?\s+(\d{4})\s+(\d{2}):(\d{2}):(\d{2})(?:\s*([+-]\d{4}))?`)

// rfc822Zones are the zone names RFC 822 allows in feed dates. time.Parse would read them as
// zero-offset zones unless the local zone database happens to know them.
var rfc822Zones = map[string]string{
	"UT":  "+0000",
	"GMT": "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

var trailingZoneRe = regexp.MustCompile(`\s([A-Za-z]{2,4})$`)

// normalizeZone rewrites a trailing RFC 822 zone name as its numeric offset.
func normalizeZone(text string) string {
	m := trailingZoneRe.FindStringSubmatchIndex(text)
	if m == nil {
		return text
	}
	offset, ok := rfc822Zones[strings.ToUpper(text[m[2]:m[3]])]
	if !ok {
		return text
	}
	return text[:m[2]] + offset
}

// ambiguousZone reports whether t carries a named zone that time.Parse could not resolve, which it
// represents as a zero offset under an arbitrary name.
func ambiguousZone(t time.Time) bool {
	name, offset := t.Zone()
	if offset != 0 {
		return false
	}
	switch name {
	case "", "UTC", "GMT", "UT", "Z":
		return false
	}
	return true
}

// ParseFeedDate makes a best-effort attempt at a feed date. It tries the common feed layouts, then
// dateparse, then the bare day-month-year pattern, which is read as UTC unless an offset follows it.
// ok is false when nothing matched.
func ParseFeedDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	text = normalizeZone(text)

	for _, layout := range feedDateLayouts {
		t, err := time.Parse(layout, text)
		if err != nil || ambiguousZone(t) {
			continue
		}
		return t.UTC(), true
	}

	if t, ok := parseAny(text); ok {
		return t, true
	}

	return parseDayMonthYear(text)
}

// parseAny wraps dateparse, which can panic on some malformed inputs.
func parseAny(text string) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	parsed, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func parseDayMonthYear(text string) (time.Time, bool) {
	m := dayMonthYearRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	normalized := m[1] + " " + strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:3]) + " " + m[3] + " " + m[4] + ":" + m[5] + ":" + m[6]
	layout := "2 Jan 2006 15:04:05"
	if m[7] != "" {
		normalized += " " + m[7]
		layout += " -0700"
	}
	t, err := time.Parse(layout, normalized)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
