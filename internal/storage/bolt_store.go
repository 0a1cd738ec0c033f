package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-feed-digest/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	reportBucket     = "reports"
	expiryValueBytes = 8
	keyBytes         = 8
)

// boltStore implements a Store backed by BoltDB. Keys are the report's fetchedAt in big-endian
// unix nanoseconds so cursor order is chronological; values are an 8-byte expiry followed by the
// report JSON.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	reportTTL       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(reportBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		reportTTL:       opts.ReportTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SaveReport archives report under its fetchedAt timestamp, replacing any report with the same key.
func (b *boltStore) SaveReport(report domain.DigestReport) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	value := make([]byte, expiryValueBytes, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(value, uint64(now.Add(b.reportTTL).Unix()))
	value = append(value, payload...)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucket))
		if bucket == nil {
			return fmt.Errorf("report bucket missing")
		}
		return bucket.Put(reportKey(report.FetchedAt), value)
	})
}

// reports returns up to limit live reports newest first. limit <= 0 means all.
func (b *boltStore) reports(limit int) ([]domain.DigestReport, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := b.now()
	var out []domain.DigestReport
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucket))
		if bucket == nil {
			return fmt.Errorf("report bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				continue
			}
			var report domain.DigestReport
			if err := json.Unmarshal(v[expiryValueBytes:], &report); err != nil {
				return fmt.Errorf("decode report %x: %w", k, err)
			}
			out = append(out, report)
		}
		return nil
	})
	return out, err
}

// Latest returns the newest live report.
func (b *boltStore) Latest() (domain.DigestReport, bool, error) {
	reports, err := b.reports(1)
	if err != nil || len(reports) == 0 {
		return domain.DigestReport{}, false, err
	}
	return reports[0], true, nil
}

// maybeCleanupExpired removes expired reports on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucket))
		if bucket == nil {
			return fmt.Errorf("report bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func reportKey(fetchedAt time.Time) []byte {
	key := make([]byte, keyBytes)
	binary.BigEndian.PutUint64(key, uint64(fetchedAt.UnixNano()))
	return key
}

// decodeExpiry decodes the expiry prefix of a stored value.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
