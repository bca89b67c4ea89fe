// Package stream defines the wire contract for change notifications: the
// envelope pushed to every connected subscriber after a committed write, and
// the snapshot shapes it carries. Server and subscriber sides share these
// types so the reconciliation layer can be tested independently of transport.
package stream

import (
	"time"

	id "talenttrack/pkg/domain"
)

// Kind names a notification. One notification is emitted per committed
// recorder operation; the payload rules are:
//
//	created, updated, transitioned  full employee snapshot
//	bulk-transitioned               list of full employee snapshots
//	deleted                         employee id only
//	note-attached                   employee id + note snapshot
//	note-detached                   employee id + note id
//
// Delivery is best-effort, at-most-once, to currently-connected subscribers.
// Ordering is FIFO per subscriber connection; nothing is guaranteed across
// subscribers or across employees.
type Kind string

const (
	KindCreated          Kind = "created"
	KindUpdated          Kind = "updated"
	KindTransitioned     Kind = "transitioned"
	KindBulkTransitioned Kind = "bulk-transitioned"
	KindDeleted          Kind = "deleted"
	KindNoteAttached     Kind = "note-attached"
	KindNoteDetached     Kind = "note-detached"
)

// Employee is the full projection snapshot carried by lifecycle
// notifications. Field names follow the HTTP API's JSON shape.
type Employee struct {
	ID             id.EmployeeID `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	HireDate       time.Time     `json:"hire_date"`
	CurrentStage   id.Stage      `json:"current_status"`
	StageEnteredAt time.Time     `json:"status_updated_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Note is the annotation snapshot carried by note-attached notifications.
type Note struct {
	ID         id.NoteID     `json:"id"`
	EmployeeID id.EmployeeID `json:"employee_id"`
	Content    string        `json:"content"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Notification is the envelope fanned out to subscribers. Exactly the fields
// the Kind is authoritative for are populated; everything else stays zero.
type Notification struct {
	Kind       Kind          `json:"kind"`
	Employee   *Employee     `json:"employee,omitempty"`
	Employees  []Employee    `json:"employees,omitempty"`
	EmployeeID id.EmployeeID `json:"employee_id,omitzero"`
	Note       *Note         `json:"note,omitempty"`
	NoteID     id.NoteID     `json:"note_id,omitzero"`
}
