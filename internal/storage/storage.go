package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
)

// Package storage archives digest reports between runs.

// Store keeps past digest reports.
type Store interface {
	Close() error
	SaveReport(report domain.DigestReport) error
	// Latest returns the most recent report; ok is false when the archive is empty.
	Latest() (report domain.DigestReport, ok bool, err error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	ReportTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultReportTTL       = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = defaultReportTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                         { return nil }
func (noopStore) SaveReport(domain.DigestReport) error { return nil }

func (noopStore) Latest() (domain.DigestReport, bool, error) {
	return domain.DigestReport{}, false, nil
}
