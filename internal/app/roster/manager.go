// Package roster keeps an in-memory ordered collection in sync with a row store.
//
// A Manager owns one collection. Every entry carries a DisplayOrder; after any
// successful save the orders are exactly 0..N-1 and equal array position.
//
// Two reorder gestures exist with different persistence timing:
//   - ReorderMove (drag) is local only and is persisted by an explicit SaveOrder.
//   - ReorderStep (up/down arrow) persists the whole order immediately.
package roster

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/platform/metrics"
	clockport "github.com/campus-tech-club/roster-api/internal/ports/out/clock"
	"github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

// State is the UI-visible mode of a collection.
type State string

const (
	StateViewing    State = "VIEWING"
	StateReordering State = "REORDERING"
)

// Direction is the single-step reorder direction.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Snapshot is a consistent copy of a collection's state.
type Snapshot[P any] struct {
	Collection      domain.CollectionName
	State           State
	HasUnsavedOrder bool
	Entries         []domain.Entry[P]
}

// SaveOrderResult summarizes a settle-all order save.
type SaveOrderResult struct {
	Saved  int
	Failed int
}

// StepResult is the outcome of ReorderStep.
type StepResult[P any] struct {
	// Moved is false when the entry was already at the edge in that direction.
	Moved   bool
	Entries []domain.Entry[P]
}

type Manager[P any] struct {
	collection domain.CollectionName
	store      rowstore.Store[P]
	clk        clockport.Clock
	log        *zap.Logger

	newID func() domain.EntryID

	// Validate checks required payload fields before any remote call.
	Validate func(P) error
	// Clone deep-copies a payload for snapshots. Nil means values are copied as-is.
	Clone func(P) P
	// Matches reports whether a payload matches a lower-cased search term.
	Matches func(p P, term string) bool
	// OrderSaveConcurrency bounds in-flight row updates during an order save; <= 0 is unbounded.
	OrderSaveConcurrency int
	// Metrics is optional.
	Metrics *metrics.Recorder

	mu      sync.Mutex
	entries []domain.Entry[P]
	loaded  bool
	state   State
	dirty   bool
}

func NewManager[P any](collection domain.CollectionName, store rowstore.Store[P], clk clockport.Clock, log *zap.Logger) *Manager[P] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager[P]{
		collection: collection,
		store:      store,
		clk:        clk,
		log:        log.With(zap.String("collection", string(collection))),
		newID: func() domain.EntryID {
			return domain.EntryID(uuid.NewString())
		},
		state: StateViewing,
	}
}

func (m *Manager[P]) Collection() domain.CollectionName { return m.collection }

// Load replaces the in-memory collection with the stored rows.
//
// On failure the previously loaded collection is kept (empty on first load).
// Any unsaved local moves are discarded and the collection returns to Viewing.
func (m *Manager[P]) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.load(ctx)
	if err == nil {
		m.state = StateViewing
	}
	return err
}

// EnsureLoaded loads the collection once; later calls are no-ops.
func (m *Manager[P]) EnsureLoaded(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	return m.load(ctx)
}

func (m *Manager[P]) load(ctx context.Context) error {
	es, err := m.store.Select(ctx)
	m.Metrics.Op(string(m.collection), "load", err)
	if err != nil {
		m.log.Warn("load failed", zap.Error(err), zap.Int("kept", len(m.entries)))
		return loadFailed(m.collection, err)
	}
	domain.SortByDisplayOrder(es)
	// Stored orders with gaps or duplicates are renumbered locally; the next
	// save makes them durable.
	m.dirty = domain.Reindex(es)
	if m.dirty {
		m.log.Info("stored display order was not contiguous; renumbered locally", zap.Int("entries", len(es)))
	}
	m.entries = es
	m.loaded = true
	return nil
}

// Add appends a new entry at the end of the collection.
// Memory is only mutated after the row store accepted the insert.
func (m *Manager[P]) Add(ctx context.Context, payload P) (domain.Entry[P], error) {
	if err := m.validate(payload); err != nil {
		return domain.Entry[P]{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureNotMidReorder(); err != nil {
		return domain.Entry[P]{}, err
	}

	now := m.clk.Now()
	e := domain.Entry[P]{
		ID:           m.newID(),
		DisplayOrder: len(m.entries),
		Payload:      payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	stored, err := m.store.Insert(ctx, e)
	m.Metrics.Op(string(m.collection), "add", err)
	if err != nil {
		return domain.Entry[P]{}, writeFailed("add", err)
	}
	stored.DisplayOrder = e.DisplayOrder
	m.entries = append(m.entries, stored)
	return m.cloneEntry(stored), nil
}

// Update replaces the payload of an existing entry. DisplayOrder is not touched.
func (m *Manager[P]) Update(ctx context.Context, id domain.EntryID, payload P) (domain.Entry[P], error) {
	_, next, err := m.Replace(ctx, id, payload)
	return next, err
}

// Replace is Update that also returns the entry as it was just before the write.
func (m *Manager[P]) Replace(ctx context.Context, id domain.EntryID, payload P) (prev, next domain.Entry[P], err error) {
	if err := m.validate(payload); err != nil {
		return prev, next, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := domain.IndexOf(m.entries, id)
	if idx < 0 {
		return prev, next, notFound(id)
	}

	stored, err := m.store.Update(ctx, id, rowstore.Patch[P]{
		Payload:   &payload,
		UpdatedAt: m.clk.Now(),
	})
	m.Metrics.Op(string(m.collection), "update", err)
	if err != nil {
		if errors.Is(err, rowstore.ErrNotFound) {
			return prev, next, notFound(id)
		}
		return prev, next, writeFailed("update", err)
	}
	prev = m.cloneEntry(m.entries[idx])
	// The local order wins: it may hold unsaved moves.
	stored.DisplayOrder = m.entries[idx].DisplayOrder
	m.entries[idx] = stored
	return prev, m.cloneEntry(stored), nil
}

// Get returns a copy of the entry with the given id.
func (m *Manager[P]) Get(id domain.EntryID) (domain.Entry[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := domain.IndexOf(m.entries, id)
	if idx < 0 {
		return domain.Entry[P]{}, notFound(id)
	}
	return m.cloneEntry(m.entries[idx]), nil
}

// Delete removes an entry after explicit confirmation, then renumbers and
// persists the orders of the entries that shifted. An order that already had
// unsaved changes is persisted in full.
//
// If only the order persistence fails, the entry stays deleted and an
// *OrderSaveError is returned alongside the removed entry.
func (m *Manager[P]) Delete(ctx context.Context, id domain.EntryID, confirmed bool) (domain.Entry[P], error) {
	if !confirmed {
		return domain.Entry[P]{}, &Error{
			Status:  http.StatusPreconditionRequired,
			Code:    CodeConfirmationRequired,
			Message: "deleting an entry requires confirmation",
			Details: map[string]any{"entryId": string(id)},
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureNotMidReorder(); err != nil {
		return domain.Entry[P]{}, err
	}
	idx := domain.IndexOf(m.entries, id)
	if idx < 0 {
		return domain.Entry[P]{}, notFound(id)
	}

	err := m.store.Delete(ctx, id)
	// A row that is already gone remotely is as deleted as it gets.
	if errors.Is(err, rowstore.ErrNotFound) {
		err = nil
	}
	m.Metrics.Op(string(m.collection), "delete", err)
	if err != nil {
		return domain.Entry[P]{}, writeFailed("delete", err)
	}

	wasDirty := m.dirty
	removed := m.entries[idx]
	m.entries = slices.Delete(m.entries, idx, idx+1)
	if !domain.Reindex(m.entries) && !wasDirty {
		return m.cloneEntry(removed), nil
	}
	// Unsaved orders ahead of idx must reach storage too.
	from := idx
	if wasDirty {
		from = 0
	}
	m.dirty = true
	if _, err := m.persistOrder(ctx, from); err != nil {
		return m.cloneEntry(removed), err
	}
	m.dirty = false
	return m.cloneEntry(removed), nil
}

// BeginReorder enters the Reordering state. It is a no-op if already reordering.
func (m *Manager[P]) BeginReorder() Snapshot[P] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateReordering
	return m.snapshot(m.entries)
}

// CancelReorder discards unsaved local moves by reloading from the row store.
// If the reload fails the collection stays in Reordering.
func (m *Manager[P]) CancelReorder(ctx context.Context) (Snapshot[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReordering {
		return Snapshot[P]{}, notReordering()
	}
	if err := m.load(ctx); err != nil {
		return Snapshot[P]{}, err
	}
	m.state = StateViewing
	return m.snapshot(m.entries), nil
}

// ReorderMove moves an entry to targetPosition. Local only: nothing is written
// until SaveOrder. Requires the Reordering state.
func (m *Manager[P]) ReorderMove(id domain.EntryID, targetPosition int) ([]domain.Entry[P], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReordering {
		return nil, notReordering()
	}
	from := domain.IndexOf(m.entries, id)
	if from < 0 {
		return nil, notFound(id)
	}
	if targetPosition < 0 || targetPosition >= len(m.entries) {
		return nil, &Error{
			Status:  http.StatusUnprocessableEntity,
			Code:    CodeInvalidPosition,
			Message: "target position out of range",
			Details: map[string]any{"position": targetPosition, "size": len(m.entries)},
		}
	}
	if from != targetPosition {
		domain.MoveEntry(m.entries, from, targetPosition)
		domain.Reindex(m.entries)
		m.dirty = true
	}
	return m.cloneEntries(m.entries), nil
}

// ReorderStep swaps an entry with its neighbor and persists the resulting order
// immediately. Stepping the first entry up or the last entry down does nothing
// and issues no remote call.
func (m *Manager[P]) ReorderStep(ctx context.Context, id domain.EntryID, dir Direction) (StepResult[P], error) {
	var delta int
	switch dir {
	case DirectionUp:
		delta = -1
	case DirectionDown:
		delta = 1
	default:
		return StepResult[P]{}, ValidationError("direction", "must be one of: up, down")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := domain.IndexOf(m.entries, id)
	if idx < 0 {
		return StepResult[P]{}, notFound(id)
	}
	target := idx + delta
	if target < 0 || target >= len(m.entries) {
		return StepResult[P]{Moved: false, Entries: m.cloneEntries(m.entries)}, nil
	}

	domain.MoveEntry(m.entries, idx, target)
	domain.Reindex(m.entries)
	m.dirty = true

	res := StepResult[P]{Moved: true}
	_, err := m.persistOrder(ctx, 0)
	if err == nil {
		m.dirty = false
	}
	res.Entries = m.cloneEntries(m.entries)
	return res, err
}

// SaveOrder writes the current DisplayOrder of every entry, one update per row,
// all in flight at once. Failures do not stop the other updates and nothing is
// rolled back; a retry re-sends every row.
func (m *Manager[P]) SaveOrder(ctx context.Context) (SaveOrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.persistOrder(ctx, 0)
	if err != nil {
		return res, err
	}
	m.dirty = false
	m.state = StateViewing
	return res, nil
}

// persistOrder writes DisplayOrder for entries[from:]. Caller holds m.mu.
func (m *Manager[P]) persistOrder(ctx context.Context, from int) (SaveOrderResult, error) {
	batch := m.entries[from:]
	if len(batch) == 0 {
		return SaveOrderResult{}, nil
	}

	start := time.Now()
	now := m.clk.Now()
	errs := make([]error, len(batch))

	var g errgroup.Group
	if m.OrderSaveConcurrency > 0 {
		g.SetLimit(m.OrderSaveConcurrency)
	}
	for i := range batch {
		id := batch[i].ID
		order := batch[i].DisplayOrder
		g.Go(func() error {
			_, err := m.store.Update(ctx, id, rowstore.Patch[P]{
				DisplayOrder: &order,
				UpdatedAt:    now,
			})
			errs[i] = err
			// Settle all: a failed row never cancels its siblings.
			return nil
		})
	}
	_ = g.Wait()

	res := SaveOrderResult{}
	var sample error
	for i, err := range errs {
		if err != nil {
			res.Failed++
			if sample == nil {
				sample = err
			}
			continue
		}
		res.Saved++
		batch[i].UpdatedAt = now
	}
	m.Metrics.OrderSave(string(m.collection), res.Failed, time.Since(start))

	if res.Failed > 0 {
		m.log.Warn("order save partially failed",
			zap.Int("failed", res.Failed),
			zap.Int("total", len(batch)),
			zap.Error(sample),
		)
		return res, &OrderSaveError{
			Collection:  m.collection,
			FailedCount: res.Failed,
			Total:       len(batch),
			Sample:      sample,
		}
	}
	m.log.Debug("order saved", zap.Int("rows", res.Saved))
	return res, nil
}

// Snapshot returns a copy of the whole collection and its state.
func (m *Manager[P]) Snapshot() Snapshot[P] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(m.entries)
}

// Search returns a snapshot filtered by a case-insensitive term. The filter
// never changes order; an empty term matches everything.
func (m *Manager[P]) Search(term string) Snapshot[P] {
	term = strings.ToLower(strings.TrimSpace(term))

	m.mu.Lock()
	defer m.mu.Unlock()

	if term == "" || m.Matches == nil {
		return m.snapshot(m.entries)
	}
	filtered := make([]domain.Entry[P], 0, len(m.entries))
	for _, e := range m.entries {
		if m.Matches(e.Payload, term) {
			filtered = append(filtered, e)
		}
	}
	return m.snapshot(filtered)
}

func (m *Manager[P]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager[P]) HasUnsavedOrder() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

func (m *Manager[P]) snapshot(es []domain.Entry[P]) Snapshot[P] {
	return Snapshot[P]{
		Collection:      m.collection,
		State:           m.state,
		HasUnsavedOrder: m.dirty,
		Entries:         m.cloneEntries(es),
	}
}

func (m *Manager[P]) validate(p P) error {
	if m.Validate == nil {
		return nil
	}
	err := m.Validate(p)
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    CodeValidation,
		Message: err.Error(),
	}
}

func (m *Manager[P]) ensureNotMidReorder() error {
	if m.state == StateReordering && m.dirty {
		return &Error{
			Status:  http.StatusConflict,
			Code:    CodeReorderInProgress,
			Message: "save or cancel the pending reorder first",
		}
	}
	return nil
}

func (m *Manager[P]) cloneEntry(e domain.Entry[P]) domain.Entry[P] {
	if m.Clone != nil {
		e.Payload = m.Clone(e.Payload)
	}
	return e
}

func (m *Manager[P]) cloneEntries(es []domain.Entry[P]) []domain.Entry[P] {
	out := make([]domain.Entry[P], 0, len(es))
	for _, e := range es {
		out = append(out, m.cloneEntry(e))
	}
	return out
}

func notReordering() *Error {
	return &Error{
		Status:  http.StatusConflict,
		Code:    CodeNotReordering,
		Message: "collection is not in reorder mode",
	}
}
