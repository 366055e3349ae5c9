package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/thaiproxy/searchproxy/internal/trie"
)

// Store owns the set of CompoundEntry records and the current trie
// Snapshot built from them (spec §4.A). All mutation — file reload or
// admin API CRUD — is serialised through a single writer so only one
// snapshot build is ever in flight, per spec §5.
type Store struct {
	path string

	writeMu sync.Mutex // single-writer serialisation for reload + CRUD
	fileMu  *flock.Flock

	snapshot   atomic.Pointer[trie.Snapshot]
	generation atomic.Uint64

	entriesMu sync.RWMutex
	entries   map[string]CompoundEntry // surface -> entry, NFC-normalised

	degraded atomic.Bool
	lastLoad atomic.Int64 // unix nanos

	subscribersMu sync.Mutex
	subscribers   []func(*trie.Snapshot)
}

// New creates an empty, degraded Store. Call Load to populate it.
func New(path string) *Store {
	s := &Store{
		path:    path,
		fileMu:  flock.New(path + ".lock"),
		entries: make(map[string]CompoundEntry),
	}
	s.snapshot.Store(trie.Empty(0))
	s.degraded.Store(true)
	return s
}

// Snapshot returns the current trie snapshot. Callers pin this pointer for
// the duration of one request (spec §5 "snapshot pinning") — a concurrent
// reload never mutates the snapshot a caller is already holding.
func (s *Store) Snapshot() *trie.Snapshot {
	return s.snapshot.Load()
}

// Degraded reports whether the dictionary is running with an empty or
// stale trie because the most recent load attempt failed.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// Generation returns the current dictionary generation number, surfaced
// by /health/detailed. It increments once per successfully published
// snapshot, starting at 0 before the first load.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Count returns the number of entries in the current snapshot.
func (s *Store) Count() int {
	s.entriesMu.RLock()
	defer s.entriesMu.RUnlock()
	return len(s.entries)
}

// Entries returns a defensive copy of every entry currently loaded,
// optionally filtered by category, for the /api/v1/compounds listing.
func (s *Store) Entries(category string) []CompoundEntry {
	s.entriesMu.RLock()
	defer s.entriesMu.RUnlock()

	out := make([]CompoundEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Get returns a single entry by its NFC-normalised surface.
func (s *Store) Get(surface string) (CompoundEntry, bool) {
	s.entriesMu.RLock()
	defer s.entriesMu.RUnlock()
	e, ok := s.entries[normalizeSurface(surface)]
	return e, ok
}

// LastReload returns the timestamp of the most recent successful load,
// surfaced by /health/detailed.
func (s *Store) LastReload() time.Time {
	ns := s.lastLoad.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Load reads the dictionary source (either JSON schema from spec §4.A),
// validates the complete entry set, and — only if every row is valid —
// atomically publishes a new trie snapshot. On failure, the previous
// snapshot (or the empty one, on first load) is retained and Degraded()
// reports true.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.degraded.Store(true)
		return fmt.Errorf("read dictionary %s: %w", s.path, err)
	}

	parsed, err := ParseSource(data, time.Now())
	if err != nil {
		s.degraded.Store(true)
		return err
	}

	validated, err := validateAll(parsed)
	if err != nil {
		s.degraded.Store(true)
		return err
	}

	s.publish(validated)
	s.degraded.Store(false)
	s.lastLoad.Store(time.Now().UnixNano())
	return nil
}

// publish builds a new trie snapshot from entries and atomically swaps it
// in, then notifies subscribers. Must be called with writeMu held.
func (s *Store) publish(validated []CompoundEntry) {
	s.entriesMu.Lock()
	s.entries = make(map[string]CompoundEntry, len(validated))
	for _, e := range validated {
		s.entries[e.Surface] = e
	}
	s.entriesMu.Unlock()

	gen := s.generation.Add(1)
	trieEntries := make([]trie.Entry, 0, len(validated))
	for _, e := range validated {
		trieEntries = append(trieEntries, trie.Entry{Surface: e.Surface, Confidence: e.Confidence})
	}
	snap, _ := trie.Build(trieEntries, gen)
	s.snapshot.Store(snap)

	s.subscribersMu.Lock()
	subs := append([]func(*trie.Snapshot){}, s.subscribers...)
	s.subscribersMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Subscribe registers callback to be invoked with every newly published
// snapshot, including the one from Load/Add/Update/Remove calls made after
// Subscribe returns.
func (s *Store) Subscribe(callback func(*trie.Snapshot)) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()
	s.subscribers = append(s.subscribers, callback)
}

// Add inserts a new entry, persists the updated dictionary file, and
// publishes a new snapshot. Returns ErrDuplicate if the surface already
// exists.
func (s *Store) Add(entry CompoundEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entry.Surface = normalizeSurface(entry.Surface)
	if entry.Confidence == 0 {
		entry.Confidence = defaultConfidence
	}
	now := time.Now()
	entry.CreatedAt, entry.UpdatedAt = now, now

	s.entriesMu.RLock()
	_, exists := s.entries[entry.Surface]
	s.entriesMu.RUnlock()
	if exists {
		return ErrDuplicate{Surface: entry.Surface}
	}

	next := s.snapshotEntries()
	next = append(next, entry)
	validated, err := validateAll(next)
	if err != nil {
		return err
	}

	if err := s.persist(validated); err != nil {
		return err
	}
	s.publish(validated)
	s.lastLoad.Store(time.Now().UnixNano())
	return nil
}

// Update replaces the entry at surface with updated, preserving CreatedAt.
func (s *Store) Update(surface string, updated CompoundEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	surface = normalizeSurface(surface)
	s.entriesMu.RLock()
	existing, ok := s.entries[surface]
	s.entriesMu.RUnlock()
	if !ok {
		return ErrNotFound{Surface: surface}
	}

	updated.Surface = surface
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	if updated.Confidence == 0 {
		updated.Confidence = existing.Confidence
	}

	next := s.snapshotEntries()
	for i, e := range next {
		if e.Surface == surface {
			next[i] = updated
			break
		}
	}

	validated, err := validateAll(next)
	if err != nil {
		return err
	}
	if err := s.persist(validated); err != nil {
		return err
	}
	s.publish(validated)
	s.lastLoad.Store(time.Now().UnixNano())
	return nil
}

// Remove deletes the entry at surface.
func (s *Store) Remove(surface string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	surface = normalizeSurface(surface)
	s.entriesMu.RLock()
	_, ok := s.entries[surface]
	s.entriesMu.RUnlock()
	if !ok {
		return ErrNotFound{Surface: surface}
	}

	next := s.snapshotEntries()
	filtered := next[:0]
	for _, e := range next {
		if e.Surface != surface {
			filtered = append(filtered, e)
		}
	}

	if err := s.persist(filtered); err != nil {
		return err
	}
	s.publish(filtered)
	s.lastLoad.Store(time.Now().UnixNano())
	return nil
}

func (s *Store) snapshotEntries() []CompoundEntry {
	s.entriesMu.RLock()
	defer s.entriesMu.RUnlock()
	out := make([]CompoundEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// persist writes the complete entry set back to the dictionary file under
// an advisory lock, so a concurrent external process editing the same file
// is respected.
func (s *Store) persist(entries []CompoundEntry) error {
	if err := s.fileMu.Lock(); err != nil {
		return fmt.Errorf("acquire dictionary file lock: %w", err)
	}
	defer func() { _ = s.fileMu.Unlock() }()

	raw := make([]rawEntry, 0, len(entries))
	for _, e := range entries {
		conf := e.Confidence
		raw = append(raw, rawEntry{
			Surface:        e.Surface,
			Components:     e.Components,
			Category:       e.Category,
			Confidence:     &conf,
			OriginLanguage: e.OriginLanguage,
		})
	}

	out, err := json.MarshalIndent(entriesSchema{Entries: raw}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dictionary: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dictionary dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// ErrDuplicate is returned by Add when the surface already exists.
type ErrDuplicate struct{ Surface string }

func (e ErrDuplicate) Error() string { return fmt.Sprintf("compound %q already exists", e.Surface) }

// ErrNotFound is returned by Update/Remove when the surface is unknown.
type ErrNotFound struct{ Surface string }

func (e ErrNotFound) Error() string { return fmt.Sprintf("compound %q not found", e.Surface) }

// Watch starts a long-lived loop watching the dictionary file for changes
// and reloading on each debounced event, serialised through the same
// single-writer path as the admin API. It never blocks the request path
// (spec §5) and runs until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create dictionary watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch dictionary dir %s: %w", dir, err)
	}

	const debounce = 200 * time.Millisecond
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("dictionary_watch_error", slog.String("error", err.Error()))

		case <-reload:
			s.writeMu.Lock()
			if err := s.loadLocked(); err != nil {
				slog.Warn("dictionary_reload_failed",
					slog.String("path", s.path),
					slog.String("error", err.Error()))
			} else {
				slog.Info("dictionary_reloaded",
					slog.String("path", s.path),
					slog.Uint64("generation", s.generation.Load()),
					slog.Int("entries", s.Count()))
			}
			s.writeMu.Unlock()
		}
	}
}
