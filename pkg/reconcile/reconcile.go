// Package reconcile maintains a subscriber-side cache of employee state and
// merges incoming change notifications into it without full reloads.
//
// Every notification kind has an explicit, total merge rule (no generic field
// spreading): the merge is idempotent, never clobbers locally-known derived
// state the notification is not authoritative for (the cached latest note),
// and silently discards notifications that arrive out of order. Discards are
// counted and logged rather than raised, trading detectability for resilience
// against transport reordering.
package reconcile

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	id "talenttrack/pkg/domain"
	"talenttrack/pkg/stream"
)

// EmployeeView is one locally cached employee: the last accepted snapshot
// plus derived attachments notifications do not carry in full.
type EmployeeView struct {
	stream.Employee
	LatestNote *stream.Note
}

// Cache is the reconciliation layer's local projection. Safe for concurrent
// use; readers see only fully merged state.
type Cache struct {
	logger *slog.Logger

	mu    sync.RWMutex
	views map[id.EmployeeID]*EmployeeView

	staleDiscards     atomic.Uint64
	malformedDiscards atomic.Uint64
}

// NewCache builds an empty cache. The logger may not be nil; pass a discard
// handler in tests.
func NewCache(logger *slog.Logger) *Cache {
	return &Cache{
		logger: logger,
		views:  make(map[id.EmployeeID]*EmployeeView),
	}
}

// Reset replaces the whole cache from a full refetch. Used on (re)connect:
// the notification channel has no replay, so a subscriber that was
// disconnected refetches everything and starts merging from there.
func (c *Cache) Reset(employees []stream.Employee, latestNotes []stream.Note) {
	byEmployee := make(map[id.EmployeeID]*stream.Note, len(latestNotes))
	for i := range latestNotes {
		n := latestNotes[i]
		byEmployee[n.EmployeeID] = &n
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = make(map[id.EmployeeID]*EmployeeView, len(employees))
	for _, e := range employees {
		c.views[e.ID] = &EmployeeView{Employee: e, LatestNote: cloneNote(byEmployee[e.ID])}
	}
}

// Apply merges one notification into the cache. It never returns an error:
// malformed envelopes and stale snapshots are counted and dropped.
func (c *Cache) Apply(n stream.Notification) {
	switch n.Kind {
	case stream.KindCreated:
		c.applySnapshot(n.Employee, n.Kind)
	case stream.KindUpdated:
		c.applySnapshot(n.Employee, n.Kind)
	case stream.KindTransitioned:
		c.applySnapshot(n.Employee, n.Kind)
	case stream.KindBulkTransitioned:
		if len(n.Employees) == 0 {
			c.dropMalformed(n.Kind, "empty employee list")
			return
		}
		for i := range n.Employees {
			c.applySnapshot(&n.Employees[i], n.Kind)
		}
	case stream.KindDeleted:
		c.applyDeleted(n.EmployeeID)
	case stream.KindNoteAttached:
		c.applyNoteAttached(n.EmployeeID, n.Note)
	case stream.KindNoteDetached:
		c.applyNoteDetached(n.EmployeeID, n.NoteID)
	default:
		c.dropMalformed(n.Kind, "unknown notification kind")
	}
}

// applySnapshot is the merge rule for every kind that carries a full employee
// snapshot. The snapshot is authoritative for all base fields; the cached
// latest note is carried forward because lifecycle notifications do not carry
// it. A snapshot whose stage-entry time is strictly older than the local one
// lost a race with a later transition and is discarded.
func (c *Cache) applySnapshot(snap *stream.Employee, kind stream.Kind) {
	if snap == nil || snap.ID.IsNil() {
		c.dropMalformed(kind, "missing employee snapshot")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	local, ok := c.views[snap.ID]
	if !ok {
		// Unknown locally: also covers a subscriber that missed the created
		// notification. Inserting keeps the cache converging toward server
		// state instead of ignoring employees it never saw born.
		c.views[snap.ID] = &EmployeeView{Employee: *snap}
		return
	}

	if local.StageEnteredAt.After(snap.StageEnteredAt) {
		c.staleDiscards.Add(1)
		c.logger.Debug("discarding stale notification",
			"kind", kind,
			"employee_id", snap.ID,
			"local_stage_entered_at", local.StageEnteredAt,
			"incoming_stage_entered_at", snap.StageEnteredAt,
		)
		return
	}

	local.Employee = *snap
}

func (c *Cache) applyDeleted(employeeID id.EmployeeID) {
	if employeeID.IsNil() {
		c.dropMalformed(stream.KindDeleted, "missing employee id")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, employeeID)
}

func (c *Cache) applyNoteAttached(employeeID id.EmployeeID, note *stream.Note) {
	if note == nil || note.ID.IsNil() {
		c.dropMalformed(stream.KindNoteAttached, "missing note snapshot")
		return
	}
	if employeeID.IsNil() {
		employeeID = note.EmployeeID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	local, ok := c.views[employeeID]
	if !ok {
		// Note for an employee we do not track; nothing to attach it to.
		return
	}
	local.LatestNote = cloneNote(note)
}

func (c *Cache) applyNoteDetached(employeeID id.EmployeeID, noteID id.NoteID) {
	if noteID.IsNil() {
		c.dropMalformed(stream.KindNoteDetached, "missing note id")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	local, ok := c.views[employeeID]
	if !ok {
		return
	}
	// Only clear when the detached note is the one we hold; a detach of an
	// older note must not erase a newer cached one.
	if local.LatestNote != nil && local.LatestNote.ID == noteID {
		local.LatestNote = nil
	}
}

func (c *Cache) dropMalformed(kind stream.Kind, reason string) {
	c.malformedDiscards.Add(1)
	c.logger.Warn("discarding malformed notification", "kind", kind, "reason", reason)
}

// Get returns a copy of the cached view for one employee.
func (c *Cache) Get(employeeID id.EmployeeID) (EmployeeView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	local, ok := c.views[employeeID]
	if !ok {
		return EmployeeView{}, false
	}
	return EmployeeView{Employee: local.Employee, LatestNote: cloneNote(local.LatestNote)}, true
}

// List returns copies of all cached views, newest created first (the order
// the roster UI shows).
func (c *Cache) List() []EmployeeView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]EmployeeView, 0, len(c.views))
	for _, v := range c.views {
		out = append(out, EmployeeView{Employee: v.Employee, LatestNote: cloneNote(v.LatestNote)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Len reports how many employees are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.views)
}

// StaleDiscards reports how many notifications were dropped by the ordering
// check. This is the observability hook for out-of-order delivery: a rising
// value means the transport is reordering more than expected.
func (c *Cache) StaleDiscards() uint64 { return c.staleDiscards.Load() }

// MalformedDiscards reports how many envelopes were dropped for carrying no
// usable payload.
func (c *Cache) MalformedDiscards() uint64 { return c.malformedDiscards.Load() }

func cloneNote(n *stream.Note) *stream.Note {
	if n == nil {
		return nil
	}
	cp := *n
	return &cp
}
