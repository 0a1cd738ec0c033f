package domain

import "time"

// Domain contains core models shared by the fetch and digest pipeline.

// MaxDescriptionLen caps Article.Description, counted in runes.
const MaxDescriptionLen = 500

// FeedSource identifies one feed endpoint to poll.
type FeedSource struct {
	Name    string `json:"name" yaml:"name"`
	FeedURL string `json:"feed_url" yaml:"feed_url"`
	SiteURL string `json:"site_url" yaml:"site_url"`
}

// RawItem is a feed entry as extracted from the document, before normalization.
type RawItem struct {
	Title       string
	Link        string
	PubDateText string
	Description string
}

// Article is the normalized output unit. PublishedAt is nil when the feed's date could not be parsed.
type Article struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"publishedAt"`
	Description string     `json:"description"`
	SourceName  string     `json:"sourceName"`
	SourceURL   string     `json:"sourceUrl"`
}

// OutcomeKind classifies how a single source fetch ended.
type OutcomeKind string

const (
	OutcomeOK         OutcomeKind = "ok"
	OutcomeEmpty      OutcomeKind = "empty"
	OutcomeTimeout    OutcomeKind = "timeout"
	OutcomeHTTPStatus OutcomeKind = "http_status"
	OutcomeNetwork    OutcomeKind = "network"
	OutcomeInvalid    OutcomeKind = "invalid"
)

// FetchOutcome is the per-source result of a fetch. Failed outcomes carry no articles.
type FetchOutcome struct {
	Source     FeedSource
	Articles   []Article
	Kind       OutcomeKind
	StatusCode int
	Err        error
}

// Failed reports whether the fetch itself failed, as opposed to returning an empty feed.
func (o FetchOutcome) Failed() bool {
	return o.Kind != OutcomeOK && o.Kind != OutcomeEmpty
}

// Progress is the running tally emitted after each fetch group settles.
type Progress struct {
	Group     int
	GroupSize int
	Processed int
	Total     int
	OK        int
	Failed    int
}

// Tally summarizes outcome kinds for a whole batch.
type Tally struct {
	OK       int `json:"ok"`
	Empty    int `json:"empty"`
	Failed   int `json:"failed"`
	Timeouts int `json:"timeouts"`
}

// DigestReport is the final aggregate of one run. Articles holds only the recent, newest-first subset.
type DigestReport struct {
	FetchedAt      time.Time `json:"fetchedAt"`
	TotalFeeds     int       `json:"totalFeeds"`
	SuccessFeeds   int       `json:"successFeeds"`
	TotalArticles  int       `json:"totalArticles"`
	TimeRangeHours int       `json:"timeRangeHours"`
	RecentCount    int       `json:"recentCount"`
	Articles       []Article `json:"articles"`
}
