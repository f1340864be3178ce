// Package batch turns one user intent — assign an employee to a set of dates,
// or clear a set of dates — into per-date remote calls and applies the net
// effect to the local cache in a single step.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/example/dutyroster/internal/cache"
	"github.com/example/dutyroster/internal/duty"
	"github.com/example/dutyroster/internal/logging"
	"github.com/example/dutyroster/internal/metrics"
)

// ScheduleAPI is the slice of the remote client the coordinator dispatches
// through. *remote.Client satisfies it.
type ScheduleAPI interface {
	Create(ctx context.Context, assignment duty.Assignment) (duty.Assignment, error)
	Update(ctx context.Context, date string, input duty.AssignmentInput) (duty.Assignment, error)
	Delete(ctx context.Context, date string) error
}

// SessionGate answers whether an active session exists. The coordinator
// checks it before dispatching and again before applying results, so a logout
// while a batch is in flight discards the batch. *session.Manager satisfies
// it.
type SessionGate interface {
	Active() bool
}

// Coordinator owns the two-phase batch protocol: dispatch every per-date call
// concurrently, await all results, and only then mutate the cache — all dates
// or none.
type Coordinator struct {
	api       ScheduleAPI
	cache     *cache.Cache
	sessions  SessionGate
	selection *SelectionSet
	logger    *slog.Logger
	batchID   func() string

	mu   sync.Mutex
	busy bool
}

// NewCoordinator constructs a Coordinator around the given collaborators. A
// nil batchID generator falls back to UUIDs.
func NewCoordinator(api ScheduleAPI, c *cache.Cache, sessions SessionGate, selection *SelectionSet, batchID func() string, logger *slog.Logger) *Coordinator {
	if selection == nil {
		selection = NewSelectionSet()
	}
	if batchID == nil {
		batchID = uuid.NewString
	}
	return &Coordinator{
		api:       api,
		cache:     c,
		sessions:  sessions,
		selection: selection,
		logger:    logger,
		batchID:   batchID,
	}
}

// Selection exposes the coordinator's selection set for UI wiring.
func (c *Coordinator) Selection() *SelectionSet {
	return c.selection
}

// Busy reports whether a batch action is currently outstanding.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return duty.ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

type dispatchResult struct {
	date       string
	assignment duty.Assignment
	err        error
}

// Save assigns the employee to every selected date. Dates that already carry
// an assignment are updated, the rest are created; all calls are dispatched
// concurrently and the cache is touched only after every call succeeded. On
// any failure the cache keeps its pre-batch state and the selection is
// retained for correction.
func (c *Coordinator) Save(ctx context.Context, input duty.AssignmentInput) (err error) {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	dates := c.selection.Dates()
	logger := logging.Component(ctx, c.logger, "BatchCoordinator", "Save",
		"batch_id", c.batchID(), "dates", len(dates))
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "batch save failed", "error", err, "error_kind", duty.ErrorKind(err))
		}
	}()

	validated, err := duty.ValidateInput(input)
	if err != nil {
		metrics.ObserveBatch("save", "validation", len(dates))
		return err
	}
	if len(dates) == 0 {
		metrics.ObserveBatch("save", "validation", 0)
		vErr := &duty.ValidationError{FieldErrors: map[string]string{"selection": "no dates selected"}}
		return vErr
	}
	if !c.sessions.Active() {
		metrics.ObserveBatch("save", "unauthorized", len(dates))
		return fmt.Errorf("%w: no active session", duty.ErrUnauthorized)
	}

	results := make(chan dispatchResult, len(dates))
	for _, date := range dates {
		go func(date string) {
			assignment, callErr := c.dispatchSave(ctx, date, validated)
			results <- dispatchResult{date: date, assignment: assignment, err: callErr}
		}(date)
	}

	puts := make(duty.Schedule, len(dates))
	failed := make(map[string]error)
	for range dates {
		result := <-results
		if result.err != nil {
			failed[result.date] = result.err
			continue
		}
		puts[result.date] = result.assignment
	}

	if len(failed) > 0 {
		metrics.ObserveBatch("save", "failed", len(dates))
		// Remote rows already written by the successful calls stay in place;
		// the cache keeps its pre-batch state until the next full resync.
		logger.WarnContext(ctx, "partial batch failure leaves remote ahead of cache",
			"failed_dates", len(failed), "succeeded_dates", len(puts))
		return &duty.BatchError{Failed: failed}
	}

	if !c.sessions.Active() {
		metrics.ObserveBatch("save", "discarded", len(dates))
		logger.WarnContext(ctx, "session ended while batch was in flight; results discarded")
		return fmt.Errorf("%w: session ended before results could be applied", duty.ErrUnauthorized)
	}

	c.cache.ApplyBatch(ctx, puts, nil)
	c.selection.Clear()
	metrics.ObserveBatch("save", "ok", len(dates))
	logger.InfoContext(ctx, "batch save applied", "employee", validated.EmployeeName)
	return nil
}

func (c *Coordinator) dispatchSave(ctx context.Context, date string, input duty.AssignmentInput) (duty.Assignment, error) {
	// Prefer update whenever the cache already knows the date; the backend
	// owns create-on-duplicate semantics beyond that.
	if c.cache.Has(date) {
		return c.api.Update(ctx, date, input)
	}
	return c.api.Create(ctx, duty.Assignment{
		EmployeeName: input.EmployeeName,
		Phone:        input.Phone,
		Date:         date,
	})
}

// Delete clears every selected date. Dates without a cached assignment are
// trivially successful no-ops and are not dispatched; the same all-or-nothing
// application policy as Save applies to the rest.
func (c *Coordinator) Delete(ctx context.Context) (err error) {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	dates := c.selection.Dates()
	logger := logging.Component(ctx, c.logger, "BatchCoordinator", "Delete",
		"batch_id", c.batchID(), "dates", len(dates))
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "batch delete failed", "error", err, "error_kind", duty.ErrorKind(err))
		}
	}()

	if len(dates) == 0 {
		metrics.ObserveBatch("delete", "validation", 0)
		vErr := &duty.ValidationError{FieldErrors: map[string]string{"selection": "no dates selected"}}
		return vErr
	}
	if !c.sessions.Active() {
		metrics.ObserveBatch("delete", "unauthorized", len(dates))
		return fmt.Errorf("%w: no active session", duty.ErrUnauthorized)
	}

	present := make([]string, 0, len(dates))
	for _, date := range dates {
		if c.cache.Has(date) {
			present = append(present, date)
		}
	}

	results := make(chan dispatchResult, len(present))
	for _, date := range present {
		go func(date string) {
			callErr := c.api.Delete(ctx, date)
			// A date the backend no longer has is already in the target
			// state; deletion is idempotent.
			if errors.Is(callErr, duty.ErrNotFound) {
				callErr = nil
			}
			results <- dispatchResult{date: date, err: callErr}
		}(date)
	}

	failed := make(map[string]error)
	for range present {
		result := <-results
		if result.err != nil {
			failed[result.date] = result.err
		}
	}

	if len(failed) > 0 {
		metrics.ObserveBatch("delete", "failed", len(dates))
		logger.WarnContext(ctx, "partial batch failure leaves remote ahead of cache",
			"failed_dates", len(failed), "succeeded_dates", len(present)-len(failed))
		return &duty.BatchError{Failed: failed}
	}

	if !c.sessions.Active() {
		metrics.ObserveBatch("delete", "discarded", len(dates))
		logger.WarnContext(ctx, "session ended while batch was in flight; results discarded")
		return fmt.Errorf("%w: session ended before results could be applied", duty.ErrUnauthorized)
	}

	c.cache.ApplyBatch(ctx, nil, present)
	c.selection.Clear()
	metrics.ObserveBatch("delete", "ok", len(dates))
	logger.InfoContext(ctx, "batch delete applied", "removed", len(present))
	return nil
}
