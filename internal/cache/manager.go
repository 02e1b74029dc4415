// Package cache keeps downloaded audio on disk. Blobs are content-addressed
// and verified on every read; an LRU index bounded by a byte capacity maps
// track keys to blobs and is persisted in a SQLite catalog.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/llehouerou/cloudwaves/internal/catalog"
)

const (
	catalogFile          = "index.db"
	defaultVerifyWorkers = 4
)

// Options configures a Manager.
type Options struct {
	Dir      string
	Quality  catalog.Quality
	Capacity int64 // bytes; zero or negative means unbounded
	Logger   *slog.Logger

	// VerifyWorkers bounds the parallelism of VerifyAll.
	VerifyWorkers int
}

// Stats is a snapshot of the index.
type Stats struct {
	Entries  int
	Size     int64
	Capacity int64
}

// Fetcher downloads the bytes of a missing key.
type Fetcher func(ctx context.Context) ([]byte, error)

// Manager is the cache of one quality tier. It is safe for concurrent use.
type Manager struct {
	quality  catalog.Quality
	capacity int64
	workers  int
	logger   *slog.Logger
	store    *Store
	cat      *Catalog

	mu    sync.Mutex
	index *lru
	pins  map[Key]int

	writes keyLocks
	group  singleflight.Group
}

// Open prepares the cache under opts.Dir. It drops tiers other than
// opts.Quality, rebuilds the index from the catalog (skipping rows whose
// blob is gone), removes blobs nothing references and enforces capacity.
// A catalog that cannot be read is recreated empty.
func Open(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Dir == "" {
		return nil, errors.New("cache: no directory")
	}
	if opts.Quality == 0 {
		opts.Quality = catalog.DefaultQuality
	}
	if !opts.Quality.Valid() {
		return nil, fmt.Errorf("cache: invalid quality %d", opts.Quality)
	}
	if opts.VerifyWorkers <= 0 {
		opts.VerifyWorkers = defaultVerifyWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	tier := opts.Quality.Bitrate()
	purgeStaleTiers(opts.Dir, tier, logger)

	store, err := NewStore(filepath.Join(opts.Dir, tier))
	if err != nil {
		return nil, err
	}
	if err := store.PurgeTmp(); err != nil {
		logger.Warn("cache: purge temp files", "error", err)
	}

	cat, entries, err := loadCatalog(ctx, filepath.Join(opts.Dir, catalogFile), opts.Quality, logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		quality:  opts.Quality,
		capacity: opts.Capacity,
		workers:  opts.VerifyWorkers,
		logger:   logger,
		store:    store,
		cat:      cat,
		index:    newLRU(),
		pins:     make(map[Key]int),
	}
	m.reconcile(ctx, entries)

	m.mu.Lock()
	m.evictLocked("")
	m.mu.Unlock()

	st := m.Stats()
	logger.Info("cache opened",
		"dir", store.Root(),
		"quality", opts.Quality.String(),
		"entries", st.Entries,
		"size", humanize.Bytes(uint64(st.Size)))
	return m, nil
}

// purgeStaleTiers removes the tier directories other than the active one.
// Directories whose name is not a tier bitrate are left alone.
func purgeStaleTiers(dir, active string, logger *slog.Logger) {
	des, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("cache: list tiers", "error", err)
		return
	}
	for _, de := range des {
		if !de.IsDir() || de.Name() == active || !isTier(de.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, de.Name())); err != nil {
			logger.Warn("cache: remove stale tier", "tier", de.Name(), "error", err)
			continue
		}
		logger.Info("cache: removed stale tier", "tier", de.Name())
	}
}

func isTier(name string) bool {
	n, err := strconv.Atoi(name)
	return err == nil && catalog.Quality(n).Valid()
}

// loadCatalog opens the catalog and returns its rows for quality q. An
// unreadable catalog is deleted and recreated; if that fails too the cache
// runs on an in-memory catalog for this session.
func loadCatalog(ctx context.Context, path string, q catalog.Quality, logger *slog.Logger) (*Catalog, []Entry, error) {
	cat, entries, err := readCatalog(ctx, path, q)
	if err == nil {
		return cat, entries, nil
	}
	logger.Warn("cache: catalog unreadable, starting empty", "path", path, "error", err)

	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		_ = os.Remove(p)
	}
	cat, err = OpenCatalog(path)
	if err == nil {
		return cat, nil, nil
	}
	logger.Error("cache: recreate catalog", "path", path, "error", err)

	cat, err = OpenCatalog(":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("open in-memory catalog: %w", err)
	}
	return cat, nil, nil
}

func readCatalog(ctx context.Context, path string, q catalog.Quality) (*Catalog, []Entry, error) {
	cat, err := OpenCatalog(path)
	if err != nil {
		return nil, nil, err
	}
	if _, err := cat.DeleteQualityNot(ctx, q); err != nil {
		cat.Close()
		return nil, nil, err
	}
	entries, err := cat.List(ctx)
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	return cat, entries, nil
}

// reconcile loads catalog rows into the index, dropping rows that are
// malformed or whose blob is missing, then removes unreferenced blobs.
func (m *Manager) reconcile(ctx context.Context, entries []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dropped []Key
	for _, e := range entries {
		if e.Key.Quality() != m.quality {
			dropped = append(dropped, e.Key)
			continue
		}
		size, err := m.store.Stat(e.Integrity)
		if err != nil || size != e.Size {
			dropped = append(dropped, e.Key)
			continue
		}
		// Rows come least recently used first; each Set moves to the front.
		m.index.Set(e)
	}
	if len(dropped) > 0 {
		m.logger.Info("cache: dropped catalog rows without blob", "count", len(dropped))
		if err := m.cat.Delete(ctx, dropped...); err != nil {
			m.logger.Warn("cache: delete catalog rows", "error", err)
		}
	}

	orphans := 0
	err := m.store.Walk(func(integrity string) error {
		if m.index.Referenced(integrity) {
			return nil
		}
		orphans++
		return m.store.Remove(integrity)
	})
	if err != nil {
		m.logger.Warn("cache: remove orphan blobs", "error", err)
	}
	if orphans > 0 {
		m.logger.Info("cache: removed orphan blobs", "count", orphans)
	}
}

// Quality returns the tier this manager serves.
func (m *Manager) Quality() catalog.Quality {
	return m.quality
}

// Key builds the key of trackID in this manager's tier.
func (m *Manager) Key(trackID string) Key {
	return NewKey(trackID, m.quality)
}

// Get returns the cached bytes of key. A blob that fails verification is
// evicted and reported as absent.
func (m *Manager) Get(key Key) (Entry, []byte, bool) {
	m.mu.Lock()
	e, ok := m.index.Get(key)
	m.mu.Unlock()
	if !ok {
		return Entry{}, nil, false
	}

	data, err := m.store.Read(e.Integrity)
	if err != nil {
		m.logger.Warn("cache: dropping unreadable entry", "key", key, "error", err)
		m.evictIfUnchanged(e)
		return Entry{}, nil, false
	}

	if err := m.cat.Touch(context.Background(), key, time.Now()); err != nil {
		m.logger.Debug("cache: touch catalog row", "key", key, "error", err)
	}
	return e, data, true
}

// Contains reports whether key is indexed, without verifying its blob.
func (m *Manager) Contains(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index.Peek(key)
	return ok
}

// Put stores data under key. The blob is written and verified before the
// index points at it; a second Put for the same key replaces the first.
// Least recently used entries are then evicted until the index fits the
// capacity, never touching key itself or a pinned key.
func (m *Manager) Put(ctx context.Context, key Key, data []byte) (Entry, error) {
	unlock := m.writes.lock(key)
	defer unlock()

	integrity, err := m.store.Write(data)
	if err != nil {
		return Entry{}, fmt.Errorf("store %s: %w", key, err)
	}
	e := Entry{
		Key:       key,
		Integrity: integrity,
		Size:      int64(len(data)),
		Format:    detectFormat(data),
		StoredAt:  time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, replaced := m.index.Set(e)
	if replaced && old.Integrity != e.Integrity && !m.index.Referenced(old.Integrity) {
		if err := m.store.Remove(old.Integrity); err != nil {
			m.logger.Warn("cache: remove replaced blob", "key", key, "error", err)
		}
	}
	if err := m.cat.Upsert(ctx, e); err != nil {
		m.logger.Warn("cache: persist entry", "key", key, "error", err)
	}
	m.evictLocked(key)
	return e, nil
}

// Evict removes key from the index, the catalog and, when no other key
// shares it, the blob store.
func (m *Manager) Evict(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
}

// Pin protects key from eviction until the returned function is called.
// Pins are counted; unpin is safe to call more than once.
func (m *Manager) Pin(key Key) (unpin func()) {
	m.mu.Lock()
	m.pins[key]++
	m.mu.Unlock()

	return sync.OnceFunc(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.pins[key]--; m.pins[key] <= 0 {
			delete(m.pins, key)
		}
		m.evictLocked("")
	})
}

type fetchResult struct {
	entry Entry
	data  []byte
}

// Fetch returns the bytes of key, calling fetch and storing the result on
// a miss. Concurrent misses for the same key share one fetch.
func (m *Manager) Fetch(ctx context.Context, key Key, fetch Fetcher) (Entry, []byte, error) {
	if e, data, ok := m.Get(key); ok {
		return e, data, nil
	}

	v, err, _ := m.group.Do(string(key), func() (any, error) {
		if e, data, ok := m.Get(key); ok {
			return fetchResult{entry: e, data: data}, nil
		}
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		e, err := m.Put(ctx, key, data)
		if err != nil {
			// Still playable; it just won't be cached.
			m.logger.Warn("cache: store fetched audio", "key", key, "error", err)
			return fetchResult{entry: Entry{Key: key, Size: int64(len(data))}, data: data}, nil
		}
		m.logger.Debug("cache: stored", "key", key, "size", humanize.Bytes(uint64(e.Size)))
		return fetchResult{entry: e, data: data}, nil
	})
	if err != nil {
		return Entry{}, nil, err
	}
	r := v.(fetchResult)
	return r.entry, r.data, nil
}

// VerifyAll re-hashes every indexed blob with bounded parallelism. Entries
// that fail are evicted. It stops early when ctx is done and returns the
// number of evicted entries.
func (m *Manager) VerifyAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	entries := m.index.Entries()
	m.mu.Unlock()

	var bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for _, e := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := m.store.Verify(e.Integrity)
			switch {
			case err == nil:
			case errors.Is(err, ErrIntegrity), errors.Is(err, ErrNotFound):
				m.logger.Warn("cache: verify failed, evicting", "key", e.Key, "error", err)
				if m.evictIfUnchanged(e) {
					bad.Add(1)
				}
			default:
				m.logger.Warn("cache: verify", "key", e.Key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(bad.Load())
	m.logger.Info("cache verified", "entries", len(entries), "evicted", n)
	return n, ctx.Err()
}

// Stats returns the current index size.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Entries:  m.index.Len(),
		Size:     m.index.Size(),
		Capacity: m.capacity,
	}
}

// Close removes leftover temp files and releases the catalog.
func (m *Manager) Close() error {
	if err := m.store.PurgeTmp(); err != nil {
		m.logger.Warn("cache: purge tmp", "error", err)
	}
	return m.cat.Close()
}

func (m *Manager) evictIfUnchanged(e Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.index.Peek(e.Key)
	if !ok || cur.Integrity != e.Integrity {
		return false
	}
	m.removeLocked(e.Key)
	return true
}

func (m *Manager) evictLocked(keep Key) {
	if m.capacity <= 0 {
		return
	}
	skip := func(k Key) bool { return k == keep || m.pins[k] > 0 }
	for m.index.Size() > m.capacity {
		victim, ok := m.index.Oldest(skip)
		if !ok {
			m.logger.Warn("cache: over capacity, nothing left to evict",
				"size", humanize.Bytes(uint64(m.index.Size())),
				"capacity", humanize.Bytes(uint64(m.capacity)))
			return
		}
		m.removeLocked(victim.Key)
		m.logger.Debug("cache: evicted", "key", victim.Key, "size", humanize.Bytes(uint64(victim.Size)))
	}
}

func (m *Manager) removeLocked(key Key) {
	e, unused, ok := m.index.Remove(key)
	if !ok {
		return
	}
	if unused {
		if err := m.store.Remove(e.Integrity); err != nil {
			m.logger.Warn("cache: remove blob", "key", key, "error", err)
		}
	}
	if err := m.cat.Delete(context.Background(), key); err != nil {
		m.logger.Warn("cache: delete catalog row", "key", key, "error", err)
	}
}

// detectFormat names the audio container of data, or "" if unknown.
func detectFormat(data []byte) string {
	_, fileType, err := tag.Identify(bytes.NewReader(data))
	if err != nil || fileType == "" {
		return ""
	}
	return strings.ToLower(string(fileType))
}

// keyLocks serializes writers of the same key.
type keyLocks struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (l *keyLocks) lock(key Key) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[Key]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		if kl.refs--; kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
