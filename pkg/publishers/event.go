package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// Event represents the payload published downstream.
type Event struct {
	DigestID    string              `json:"digest_id"`
	Report      domain.DigestReport `json:"report"`
	PublishedAt time.Time           `json:"published_at"`
}

// NewEvent wraps a digest report, deriving a stable id from its fetch time.
func NewEvent(report domain.DigestReport) Event {
	return Event{
		DigestID:    DigestID(report.FetchedAt),
		Report:      report,
		PublishedAt: time.Now().UTC(),
	}
}

// DigestID formats fetchedAt as the digest identifier, e.g. "digest-20250106T120000Z".
func DigestID(fetchedAt time.Time) string {
	return "digest-" + fetchedAt.UTC().Format("20060102T150405Z")
}
