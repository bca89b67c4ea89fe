package reconcile

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "talenttrack/pkg/domain"
	"talenttrack/pkg/stream"
)

type CacheSuite struct {
	suite.Suite
	cache *Cache
	base  time.Time
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.cache = NewCache(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *CacheSuite) snapshot(stage id.Stage, enteredAt time.Time) stream.Employee {
	return stream.Employee{
		ID:             id.NewEmployeeID(),
		Name:           "Ada Lovelace",
		Email:          "ada@example.com",
		HireDate:       s.base.AddDate(0, -6, 0),
		CurrentStage:   stage,
		StageEnteredAt: enteredAt,
		CreatedAt:      s.base.AddDate(0, -6, 0),
		UpdatedAt:      enteredAt,
	}
}

func (s *CacheSuite) TestCreatedInsertsRecord() {
	snap := s.snapshot(id.StageCandidatePrep, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &snap})

	view, ok := s.cache.Get(snap.ID)
	s.Require().True(ok)
	s.Equal(id.StageCandidatePrep, view.CurrentStage)
	s.Equal(1, s.cache.Len())
}

func (s *CacheSuite) TestTransitionedOverwritesStageFields() {
	snap := s.snapshot(id.StageCandidatePrep, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &snap})

	moved := snap
	moved.CurrentStage = id.StageInTraining
	moved.StageEnteredAt = s.base.Add(time.Hour)
	moved.UpdatedAt = s.base.Add(time.Hour)
	s.cache.Apply(stream.Notification{Kind: stream.KindTransitioned, Employee: &moved})

	view, ok := s.cache.Get(snap.ID)
	s.Require().True(ok)
	s.Equal(id.StageInTraining, view.CurrentStage)
	s.True(view.StageEnteredAt.Equal(s.base.Add(time.Hour)))
}

// Applying the same notification twice must produce the same local state as
// applying it once.
func (s *CacheSuite) TestTransitionedIsIdempotent() {
	snap := s.snapshot(id.StageCandidatePrep, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &snap})

	moved := snap
	moved.CurrentStage = id.StageMatchingPool
	moved.StageEnteredAt = s.base.Add(time.Hour)
	n := stream.Notification{Kind: stream.KindTransitioned, Employee: &moved}

	s.cache.Apply(n)
	first, ok := s.cache.Get(snap.ID)
	s.Require().True(ok)

	s.cache.Apply(n)
	second, ok := s.cache.Get(snap.ID)
	s.Require().True(ok)

	s.Equal(first, second)
	s.Equal(uint64(0), s.cache.StaleDiscards())
}

// A notification whose stage-entry time is strictly older than the local one
// is a reordered delivery and must leave local state unchanged.
func (s *CacheSuite) TestOutOfOrderDeliveryIsDiscarded() {
	snap := s.snapshot(id.StageInTraining, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &snap})

	stale := snap
	stale.CurrentStage = id.StageCandidatePrep
	stale.StageEnteredAt = s.base.Add(-time.Second)
	s.cache.Apply(stream.Notification{Kind: stream.KindTransitioned, Employee: &stale})

	view, ok := s.cache.Get(snap.ID)
	s.Require().True(ok)
	s.Equal(id.StageInTraining, view.CurrentStage)
	s.True(view.StageEnteredAt.Equal(s.base))
	s.Equal(uint64(1), s.cache.StaleDiscards())
}

// Lifecycle notifications carry no note payload, so a transition merge must
// carry the cached latest note forward rather than clobbering it.
func (s *CacheSuite) TestTransitionCarriesNoteForward() {
	snap := s.snapshot(id.StageCandidatePrep, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &snap})

	note := stream.Note{
		ID:         id.NewNoteID(),
		EmployeeID: snap.ID,
		Content:    "strong SQL fundamentals",
		CreatedAt:  s.base.Add(10 * time.Minute),
		UpdatedAt:  s.base.Add(10 * time.Minute),
	}
	s.cache.Apply(stream.Notification{Kind: stream.KindNoteAttached, EmployeeID: snap.ID, Note: &note})

	moved := snap
	moved.CurrentStage = id.StageReadyForMatching
	moved.StageEnteredAt = s.base.Add(time.Hour)
	s.cache.Apply(stream.Notification{Kind: stream.KindTransitioned, Employee: &moved})

	view, ok := s.cache.Get(snap.ID)
	s.Require().True(ok)
	s.Equal(id.StageReadyForMatching, view.CurrentStage)
	s.Require().NotNil(view.LatestNote)
	s.Equal("strong SQL fundamentals", view.LatestNote.Content)
}

func (s *CacheSuite) TestBulkTransitionMergesEverySnapshot() {
	first := s.snapshot(id.StageMatchingPool, s.base)
	second := s.snapshot(id.StageMatchingPool, s.base)
	second.Email = "grace@example.com"
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &first})
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &second})

	moved := []stream.Employee{first, second}
	for i := range moved {
		moved[i].CurrentStage = id.StagePlottedWithClient
		moved[i].StageEnteredAt = s.base.Add(time.Hour)
	}
	s.cache.Apply(stream.Notification{Kind: stream.KindBulkTransitioned, Employees: moved})

	for _, e := range []stream.Employee{first, second} {
		view, ok := s.cache.Get(e.ID)
		s.Require().True(ok)
		s.Equal(id.StagePlottedWithClient, view.CurrentStage)
	}
}

func (s *CacheSuite) TestDeletedRemovesRecord() {
	snap := s.snapshot(id.StageOnAssignment, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &snap})
	s.cache.Apply(stream.Notification{Kind: stream.KindDeleted, EmployeeID: snap.ID})

	_, ok := s.cache.Get(snap.ID)
	s.False(ok)

	// Deleting twice is a no-op, not an error.
	s.cache.Apply(stream.Notification{Kind: stream.KindDeleted, EmployeeID: snap.ID})
	s.Equal(0, s.cache.Len())
}

func (s *CacheSuite) TestUnknownEmployeeSnapshotIsInserted() {
	// A subscriber that missed the created notification still converges when
	// a later transition for that employee arrives.
	snap := s.snapshot(id.StageInTraining, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindTransitioned, Employee: &snap})

	view, ok := s.cache.Get(snap.ID)
	s.Require().True(ok)
	s.Equal(id.StageInTraining, view.CurrentStage)
}

func (s *CacheSuite) TestNoteDetachClearsOnlyMatchingNote() {
	snap := s.snapshot(id.StageCandidatePrep, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &snap})

	older := stream.Note{ID: id.NewNoteID(), EmployeeID: snap.ID, Content: "old"}
	newer := stream.Note{ID: id.NewNoteID(), EmployeeID: snap.ID, Content: "new"}
	s.cache.Apply(stream.Notification{Kind: stream.KindNoteAttached, EmployeeID: snap.ID, Note: &newer})

	// Detach of a note we do not hold must not erase the cached one.
	s.cache.Apply(stream.Notification{Kind: stream.KindNoteDetached, EmployeeID: snap.ID, NoteID: older.ID})
	view, _ := s.cache.Get(snap.ID)
	s.Require().NotNil(view.LatestNote)
	s.Equal("new", view.LatestNote.Content)

	s.cache.Apply(stream.Notification{Kind: stream.KindNoteDetached, EmployeeID: snap.ID, NoteID: newer.ID})
	view, _ = s.cache.Get(snap.ID)
	s.Nil(view.LatestNote)
}

func (s *CacheSuite) TestMalformedNotificationsAreCountedNotRaised() {
	s.cache.Apply(stream.Notification{Kind: stream.KindTransitioned}) // no snapshot
	s.cache.Apply(stream.Notification{Kind: "rebalanced"})            // unknown kind
	s.cache.Apply(stream.Notification{Kind: stream.KindBulkTransitioned})

	s.Equal(uint64(3), s.cache.MalformedDiscards())
	s.Equal(0, s.cache.Len())
}

func (s *CacheSuite) TestResetReplacesStateFromFullRefetch() {
	stalesnap := s.snapshot(id.StageCandidatePrep, s.base)
	s.cache.Apply(stream.Notification{Kind: stream.KindCreated, Employee: &stalesnap})

	fresh := s.snapshot(id.StageOnAssignment, s.base.Add(time.Hour))
	note := stream.Note{ID: id.NewNoteID(), EmployeeID: fresh.ID, Content: "latest"}
	s.cache.Reset([]stream.Employee{fresh}, []stream.Note{note})

	s.Equal(1, s.cache.Len())
	view, ok := s.cache.Get(fresh.ID)
	s.Require().True(ok)
	s.Require().NotNil(view.LatestNote)
	s.Equal("latest", view.LatestNote.Content)

	_, ok = s.cache.Get(stalesnap.ID)
	s.False(ok)
}
