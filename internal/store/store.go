// Package store keeps a history of page analyses.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/PentesterFlow/FieldAnalyzer/pkg/page"
)

// Record is one stored analysis.
type Record struct {
	ID       string         `json:"id"`
	RunID    string         `json:"run_id,omitempty"`
	URL      string         `json:"url"`
	StoredAt time.Time      `json:"stored_at"`
	Analysis *page.Analysis `json:"analysis"`
}

// Store persists analyses.
type Store interface {
	// Put stores a copy of a and returns the new record.
	Put(a *page.Analysis, runID string) (*Record, error)
	// Get returns the record with id, or nil when absent.
	Get(id string) (*Record, error)
	// History returns up to limit records for url, newest first. limit <= 0
	// means no limit.
	History(url string, limit int) ([]*Record, error)
	Close() error
}

var (
	bucketAnalyses = []byte("analyses")
	bucketByURL    = []byte("by_url")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db   *bolt.DB
	path string
	now  func() time.Time
}

// NewBoltStore opens or creates the history database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketAnalyses, bucketByURL} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db, path: path, now: time.Now}, nil
}

// urlKey orders index entries by URL, then time.
func urlKey(url string, t time.Time) []byte {
	key := make([]byte, 0, len(url)+9)
	key = append(key, url...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, uint64(t.UnixNano()))
}

func urlPrefix(url string) []byte {
	return append([]byte(url), 0)
}

// Put implements Store.
func (s *BoltStore) Put(a *page.Analysis, runID string) (*Record, error) {
	if a == nil {
		return nil, fmt.Errorf("store: nil analysis")
	}
	rec := &Record{
		ID:       uuid.NewString(),
		RunID:    runID,
		URL:      a.URL,
		StoredAt: s.now().UTC(),
		Analysis: a,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketAnalyses).Put([]byte(rec.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketByURL).Put(urlKey(rec.URL, rec.StoredAt), []byte(rec.ID))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get implements Store.
func (s *BoltStore) Get(id string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAnalyses).Get([]byte(id))
		if data == nil {
			return nil
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// History implements Store.
func (s *BoltStore) History(url string, limit int) ([]*Record, error) {
	var records []*Record
	prefix := urlPrefix(url)

	err := s.db.View(func(tx *bolt.Tx) error {
		analyses := tx.Bucket(bucketAnalyses)
		c := tx.Bucket(bucketByURL).Cursor()

		var ids [][]byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			ids = append(ids, v)
		}

		for i := len(ids) - 1; i >= 0; i-- {
			if limit > 0 && len(records) >= limit {
				break
			}
			data := analyses.Get(ids[i])
			if data == nil {
				continue
			}
			rec := &Record{}
			if err := json.Unmarshal(data, rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// URLs returns every URL with at least one stored analysis, sorted.
func (s *BoltStore) URLs() ([]string, error) {
	var urls []string
	err := s.db.View(func(tx *bolt.Tx) error {
		var last string
		return tx.Bucket(bucketByURL).ForEach(func(k, _ []byte) error {
			if len(k) < 9 {
				return nil
			}
			if u := string(k[:len(k)-9]); u != last {
				urls = append(urls, u)
				last = u
			}
			return nil
		})
	})
	return urls, err
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Put implements Store.
func (s *MemoryStore) Put(a *page.Analysis, runID string) (*Record, error) {
	if a == nil {
		return nil, fmt.Errorf("store: nil analysis")
	}
	rec := &Record{
		ID:       uuid.NewString(),
		RunID:    runID,
		URL:      a.URL,
		StoredAt: s.now().UTC(),
		Analysis: a,
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return rec, nil
}

// Get implements Store.
func (s *MemoryStore) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, nil
}

// History implements Store.
func (s *MemoryStore) History(url string, limit int) ([]*Record, error) {
	s.mu.RLock()
	var out []*Record
	for _, rec := range s.records {
		if rec.URL == url {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StoredAt.After(out[j].StoredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
