// Package cache holds the in-memory schedule that rendering reads from. It is
// hydrated from the remote store at startup and mirrored to durable storage on
// every mutation so a later start can survive a remote outage.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/dutyroster/internal/duty"
	"github.com/example/dutyroster/internal/logging"
	"github.com/example/dutyroster/internal/metrics"
)

// Mirror is the durable snapshot store backing the cache. Implementations
// persist the full schedule wholesale; there is no per-entry merge.
type Mirror interface {
	Save(ctx context.Context, schedule duty.Schedule) error
	Load(ctx context.Context) (duty.Schedule, error)
}

// Lister fetches the full remote schedule. *remote.Client satisfies it.
type Lister interface {
	GetAll(ctx context.Context) (duty.Schedule, error)
}

const mirrorWriteTimeout = 5 * time.Second

// Cache is the authoritative in-process date-to-assignment mapping. Only the
// batch coordinator mutates it; other components hold read-only references.
type Cache struct {
	remote Lister
	mirror Mirror
	logger *slog.Logger

	mu       sync.RWMutex
	entries  duty.Schedule
	degraded bool

	writes sync.WaitGroup
}

// New constructs an empty cache. The mirror may be nil, in which case
// write-through is disabled and hydration has no fallback.
func New(remote Lister, mirror Mirror, logger *slog.Logger) *Cache {
	return &Cache{
		remote:  remote,
		mirror:  mirror,
		logger:  logger,
		entries: make(duty.Schedule),
	}
}

// Hydrate fills the cache from the remote store. When the remote is
// unreachable it falls back to the durable mirror and marks the cache
// degraded; whichever source answers becomes the cache wholesale.
func (c *Cache) Hydrate(ctx context.Context) error {
	logger := logging.Component(ctx, c.logger, "Cache", "Hydrate")

	if c.remote == nil {
		return fmt.Errorf("cache: remote lister not configured")
	}

	schedule, err := c.remote.GetAll(ctx)
	if err == nil {
		c.replace(schedule, false)
		logger.InfoContext(ctx, "cache hydrated from remote", "entries", len(schedule))
		return nil
	}

	if !errors.Is(err, duty.ErrUnavailable) {
		logger.WarnContext(ctx, "hydration failed", "error", err, "error_kind", duty.ErrorKind(err))
		return err
	}

	if c.mirror == nil {
		logger.WarnContext(ctx, "remote unreachable and no mirror configured", "error", err)
		return err
	}

	snapshot, loadErr := c.mirror.Load(ctx)
	if loadErr != nil {
		logger.WarnContext(ctx, "remote unreachable and mirror load failed", "error", loadErr)
		return fmt.Errorf("cache: mirror fallback failed: %w", errors.Join(err, loadErr))
	}

	c.replace(snapshot, true)
	logger.WarnContext(ctx, "cache hydrated from durable mirror; operating disconnected", "entries", len(snapshot))
	return nil
}

func (c *Cache) replace(schedule duty.Schedule, degraded bool) {
	if schedule == nil {
		schedule = make(duty.Schedule)
	}
	c.mu.Lock()
	c.entries = schedule.Clone()
	c.degraded = degraded
	c.mu.Unlock()
	metrics.SetCacheDegraded(degraded)
}

// Get returns the assignment stored for date.
func (c *Cache) Get(date string) (duty.Assignment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	assignment, ok := c.entries[date]
	return assignment, ok
}

// Has reports whether an assignment exists for date.
func (c *Cache) Has(date string) bool {
	_, ok := c.Get(date)
	return ok
}

// All returns an independent copy of the full schedule.
func (c *Cache) All() duty.Schedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Clone()
}

// Len returns the number of cached assignments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Degraded reports whether the cache is serving the durable snapshot instead
// of remote state.
func (c *Cache) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

// ApplyBatch applies one batch's net effect in a single step: puts are stored
// under their date keys and deletes are removed, then the result is mirrored.
// Leaving degraded mode is not implied; only a successful remote hydration
// clears the flag.
func (c *Cache) ApplyBatch(ctx context.Context, puts duty.Schedule, deletes []string) {
	c.mu.Lock()
	for date, assignment := range puts {
		c.entries[date] = assignment
	}
	for _, date := range deletes {
		delete(c.entries, date)
	}
	snapshot := c.entries.Clone()
	c.mu.Unlock()

	c.mirrorAsync(ctx, snapshot)
}

// mirrorAsync persists the snapshot without blocking the caller. Mirror
// failures are logged and swallowed; the mirror is best effort only.
func (c *Cache) mirrorAsync(ctx context.Context, snapshot duty.Schedule) {
	if c.mirror == nil {
		return
	}
	logger := logging.Component(ctx, c.logger, "Cache", "mirror")

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
		defer cancel()
		if err := c.mirror.Save(writeCtx, snapshot); err != nil {
			logger.Warn("mirror write failed", "error", err, "entries", len(snapshot))
		}
	}()
}

// Flush waits for outstanding mirror writes. Intended for shutdown and tests.
func (c *Cache) Flush() {
	c.writes.Wait()
}
