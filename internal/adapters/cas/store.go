// Package cas implements the content-addressed transform result cache.
package cas

import (
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.TransformCache = (*Store)(nil)

// Store caches transform results on disk with an in-memory LRU index.
// Entries are keyed by (unit, content hash, options hash), so a stored
// result never goes stale; bounds only limit how much is kept. The disk is
// the source of truth: results written by an earlier process are admitted
// to the index on first access.
type Store struct {
	dir        string
	maxEntries int
	maxBytes   int64

	mu        sync.Mutex
	index     map[ports.CacheKey]*list.Element
	lru       *list.List
	bytes     int64
	hits      int64
	misses    int64
	evictions int64
}

type lruEntry struct {
	key  ports.CacheKey
	res  *domain.TransformResult
	size int64
}

// diskEntry is the stored JSON schema. Checksum covers the result code and
// is verified on read.
type diskEntry struct {
	Unit        string                 `json:"unit"`
	ContentHash string                 `json:"contentHash"`
	OptionsHash string                 `json:"optionsHash"`
	Checksum    string                 `json:"checksum"`
	Result      domain.TransformResult `json:"result"`
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, maxEntries int, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "dir", dir)
	}
	return &Store{
		dir:        dir,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		index:      map[ports.CacheKey]*list.Element{},
		lru:        list.New(),
	}, nil
}

// Get retrieves a cached result. Unreadable or corrupted entries count as
// misses and the offending file is discarded.
func (s *Store) Get(key ports.CacheKey) (*domain.TransformResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.index[key]; ok {
		s.lru.MoveToFront(el)
		s.hits++
		return el.Value.(*lruEntry).res, true
	}

	res, size, ok := s.readDisk(key)
	if !ok {
		s.misses++
		return nil, false
	}

	s.admitLocked(key, res, size)
	s.hits++
	return res, true
}

// Put stores a result on disk and admits it to the index, evicting old
// entries past the configured bounds.
func (s *Store) Put(key ports.CacheKey, result *domain.TransformResult) error {
	payload := diskEntry{
		Unit:        key.Unit.String(),
		ContentHash: key.ContentHash,
		OptionsHash: key.OptionsHash,
		Checksum:    checksum(result.Code),
		Result:      *result,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	//nolint:gosec // Path is constructed from the store dir and a hashed filename
	if err := os.WriteFile(s.filename(key), data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.admitLocked(key, result, int64(len(data)))
	return nil
}

// Stats returns current cache counters.
func (s *Store) Stats() ports.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.CacheStats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		Entries:   s.lru.Len(),
		Bytes:     s.bytes,
	}
}

func (s *Store) readDisk(key ports.CacheKey) (*domain.TransformResult, int64, bool) {
	path := s.filename(key)
	//nolint:gosec // Path is constructed from the store dir and a hashed filename
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, false
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(path)
		return nil, 0, false
	}
	if entry.Checksum != checksum(entry.Result.Code) {
		_ = os.Remove(path)
		return nil, 0, false
	}

	return &entry.Result, int64(len(data)), true
}

func (s *Store) admitLocked(key ports.CacheKey, res *domain.TransformResult, size int64) {
	if el, ok := s.index[key]; ok {
		old := el.Value.(*lruEntry)
		s.bytes += size - old.size
		old.res = res
		old.size = size
		s.lru.MoveToFront(el)
	} else {
		s.index[key] = s.lru.PushFront(&lruEntry{key: key, res: res, size: size})
		s.bytes += size
	}
	s.evictLocked()
}

// evictLocked drops least-recently-used entries until the bounds hold
// again. A single oversized entry is kept; evicting it would only force an
// immediate re-transform.
func (s *Store) evictLocked() {
	for s.lru.Len() > 1 && (s.lru.Len() > s.maxEntries || s.bytes > s.maxBytes) {
		el := s.lru.Back()
		entry := el.Value.(*lruEntry)
		s.lru.Remove(el)
		delete(s.index, entry.key)
		s.bytes -= entry.size
		s.evictions++
		_ = os.Remove(s.filename(entry.key))
	}
}

func (s *Store) filename(key ports.CacheKey) string {
	d := xxhash.New()
	_, _ = d.WriteString(key.Unit.String())
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(key.ContentHash)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(key.OptionsHash)
	return filepath.Join(s.dir, fmt.Sprintf("%016x.json", d.Sum64()))
}

func checksum(code []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(code))
}
