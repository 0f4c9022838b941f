// Package store is a small in-process registry of named event store
// engines, each identified by a UUID and rooted at its own directory.
// It lets one process host more than one independently-rotating log
// (e.g. one per tenant) while every individual engine still obeys the
// storage layer's single-writer, single-directory contract.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventstore/internal/engine"
	"eventstore/internal/logging"
)

// Entry is one registered store: its identity and the live engine
// backing it.
type Entry struct {
	ID     uuid.UUID
	Alias  string
	Engine *engine.Engine
}

// Registry manages a set of Entries rooted under a common base
// directory: <base>/<uuid>/chunks.
type Registry struct {
	mu      sync.Mutex
	base    string
	now     func() time.Time
	logger  *slog.Logger
	metrics engine.Metrics
	entries map[uuid.UUID]*Entry
	aliases map[string]uuid.UUID
}

// New returns a Registry rooted at base. base is created if it does not
// already exist.
func New(base string, now func() time.Time, logger *slog.Logger, metrics engine.Metrics) (*Registry, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("store: create base %s: %w", base, err)
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		base:    base,
		now:     now,
		logger:  logging.Default(logger).With("component", "store-registry"),
		metrics: metrics,
		entries: make(map[uuid.UUID]*Entry),
		aliases: make(map[string]uuid.UUID),
	}, nil
}

// Create allocates a new store with a fresh UUIDv4 identity, optionally
// remembered under a human-readable alias, and opens its engine. The
// alias, if given, is written to an "alias" file alongside the store's
// chunks directory so a later process can resolve it with Resolve.
func (r *Registry) Create(alias string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if alias != "" {
		if _, exists := r.aliases[alias]; exists {
			return nil, fmt.Errorf("store: alias %q already in use", alias)
		}
		if _, ok, err := r.findByAlias(alias); err != nil {
			return nil, err
		} else if ok {
			return nil, fmt.Errorf("store: alias %q already in use", alias)
		}
	}

	id := uuid.New()
	entry, err := r.openLocked(id, alias)
	if err != nil {
		return nil, err
	}
	if alias != "" {
		if err := r.writeAliasFile(id, alias); err != nil {
			return nil, err
		}
	}

	r.logger.Info("store created", "id", id, "alias", alias)
	return entry, nil
}

// Open opens the engine for an existing on-disk store id, without
// requiring a prior Create call in this process (e.g. after a restart).
func (r *Registry) Open(id uuid.UUID, alias string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked(id, alias)
}

// openLocked opens (or returns the already-open) entry for id. r.mu must
// be held by the caller.
func (r *Registry) openLocked(id uuid.UUID, alias string) (*Entry, error) {
	if entry, ok := r.entries[id]; ok {
		return entry, nil
	}

	dir := filepath.Join(r.base, id.String(), "chunks")
	e, err := engine.New(engine.Config{Dir: dir, Now: r.now, Logger: r.logger, Metrics: r.metrics})
	if err != nil {
		return nil, fmt.Errorf("store: open engine for %s: %w", id, err)
	}

	if alias == "" {
		alias = r.readAliasFile(id)
	}

	entry := &Entry{ID: id, Alias: alias, Engine: e}
	r.entries[id] = entry
	if alias != "" {
		r.aliases[alias] = id
	}
	return entry, nil
}

// Resolve looks up an entry by UUID string or alias, opening it from
// disk if it was created by a previous process and is not yet open in
// this Registry.
func (r *Registry) Resolve(ref string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.aliases[ref]; ok {
		return r.openLocked(id, ref)
	}
	if id, err := uuid.Parse(ref); err == nil {
		return r.openLocked(id, "")
	}

	id, ok, err := r.findByAlias(ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("store: %q is neither a known alias nor a valid uuid", ref)
	}
	return r.openLocked(id, ref)
}

// aliasFilePath returns the path of the alias file for id.
func (r *Registry) aliasFilePath(id uuid.UUID) string {
	return filepath.Join(r.base, id.String(), "alias")
}

func (r *Registry) writeAliasFile(id uuid.UUID, alias string) error {
	if err := os.WriteFile(r.aliasFilePath(id), []byte(alias), 0o644); err != nil {
		return fmt.Errorf("store: write alias for %s: %w", id, err)
	}
	return nil
}

func (r *Registry) readAliasFile(id uuid.UUID) string {
	data, err := os.ReadFile(r.aliasFilePath(id))
	if err != nil {
		return ""
	}
	return string(data)
}

// findByAlias scans every store directory under base for one whose
// alias file matches alias. r.mu must be held by the caller.
func (r *Registry) findByAlias(alias string) (uuid.UUID, bool, error) {
	ids, err := Discover(r.base)
	if err != nil {
		return uuid.UUID{}, false, err
	}
	for _, id := range ids {
		if r.readAliasFile(id) == alias {
			return id, true, nil
		}
	}
	return uuid.UUID{}, false, nil
}

// DiscoveredStore is one store directory found on disk, with whatever
// alias (if any) was recorded for it at creation time.
type DiscoveredStore struct {
	ID    uuid.UUID
	Alias string
}

// Discover scans base for store directories left by a previous process,
// returning their ids without opening engines for them.
func Discover(base string) ([]uuid.UUID, error) {
	dirEntries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan base %s: %w", base, err)
	}

	var ids []uuid.UUID
	for _, d := range dirEntries {
		if !d.IsDir() {
			continue
		}
		id, err := uuid.Parse(d.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DiscoverWithAliases is Discover plus each store's recorded alias, for
// listing.
func DiscoverWithAliases(base string) ([]DiscoveredStore, error) {
	ids, err := Discover(base)
	if err != nil {
		return nil, err
	}
	out := make([]DiscoveredStore, len(ids))
	for i, id := range ids {
		data, _ := os.ReadFile(filepath.Join(base, id.String(), "alias"))
		out[i] = DiscoveredStore{ID: id, Alias: string(data)}
	}
	return out, nil
}

// List returns every registered entry.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	return entries
}

// Close closes every registered engine, returning the first error
// encountered (after attempting to close the rest).
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, entry := range r.entries {
		if err := entry.Engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
