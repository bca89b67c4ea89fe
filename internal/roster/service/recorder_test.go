package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"talenttrack/internal/roster/store/memory"
	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/requestcontext"
	"talenttrack/pkg/stream"
)

// capturePublisher records notifications in publish order.
type capturePublisher struct {
	mu            sync.Mutex
	notifications []stream.Notification
}

func (p *capturePublisher) Publish(_ context.Context, n stream.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
}

func (p *capturePublisher) all() []stream.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stream.Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}

func (p *capturePublisher) last() stream.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notifications[len(p.notifications)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type RecorderSuite struct {
	suite.Suite
	store     *memory.Store
	publisher *capturePublisher
	recorder  *Recorder
	now       time.Time
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = memory.New()
	s.publisher = &capturePublisher{}
	s.recorder = NewRecorder(s.store, s.publisher, testLogger(), nil)
	s.now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
}

func (s *RecorderSuite) ctxAt(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}

func (s *RecorderSuite) TestRecordCreationWritesFirstLedgerRecord() {
	emp, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada Lovelace", "Ada@Example.com", s.now.AddDate(0, -1, 0), "")
	s.Require().NoError(err)
	s.Equal(id.StageCandidatePrep, emp.CurrentStage)
	s.Equal("ada@example.com", emp.Email)
	s.True(emp.StageEnteredAt.Equal(s.now))

	history, err := s.store.HistoryByEmployee(context.Background(), emp.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.True(history[0].ChangedAt.Equal(emp.StageEnteredAt))

	n := s.publisher.last()
	s.Equal(stream.KindCreated, n.Kind)
	s.Require().NotNil(n.Employee)
	s.Equal(emp.ID, n.Employee.ID)
}

func (s *RecorderSuite) TestRecordCreationValidation() {
	_, err := s.recorder.RecordCreation(s.ctxAt(s.now), "", "ada@example.com", s.now, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "not-an-email", s.now, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "Interpretive Dance")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	s.Empty(s.publisher.all(), "rejected writes must not notify")
}

func (s *RecorderSuite) TestRecordCreationDuplicateEmailConflicts() {
	_, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)

	_, err = s.recorder.RecordCreation(s.ctxAt(s.now), "Other Ada", "ADA@example.com", s.now, "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Len(s.publisher.all(), 1)
}

func (s *RecorderSuite) TestRecordTransitionMovesProjectionAndLedgerTogether() {
	emp, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)

	at := s.now.Add(2 * time.Hour)
	updated, rec, err := s.recorder.RecordTransition(s.ctxAt(at), emp.ID, id.StageInTraining, "cohort 4")
	s.Require().NoError(err)
	s.Equal(id.StageInTraining, updated.CurrentStage)
	s.True(updated.StageEnteredAt.Equal(at))
	s.Equal("cohort 4", rec.Annotation)

	n := s.publisher.last()
	s.Equal(stream.KindTransitioned, n.Kind)
	s.Require().NotNil(n.Employee)
	s.Equal(id.StageInTraining, n.Employee.CurrentStage)
}

func (s *RecorderSuite) TestRecordTransitionUnknownEmployee() {
	_, _, err := s.recorder.RecordTransition(s.ctxAt(s.now), id.NewEmployeeID(), id.StageInTraining, "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.publisher.all())
}

// Two requests can capture their clocks in one order and win the employee
// lock in the other. The later-stamped loser must not rewind the ledger.
func (s *RecorderSuite) TestLateStampedTransitionCannotRewindLedger() {
	emp, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)

	_, _, err = s.recorder.RecordTransition(s.ctxAt(s.now.Add(2*time.Second)), emp.ID, id.StageInTraining, "")
	s.Require().NoError(err)
	updated, rec, err := s.recorder.RecordTransition(s.ctxAt(s.now.Add(time.Second)), emp.ID, id.StageReadyForMatching, "")
	s.Require().NoError(err)

	// The earlier stamp is clamped forward to the ledger head.
	s.True(rec.ChangedAt.Equal(s.now.Add(2 * time.Second)))
	s.Equal(id.StageReadyForMatching, updated.CurrentStage)
	s.True(updated.StageEnteredAt.Equal(rec.ChangedAt))

	history, err := s.store.HistoryByEmployee(context.Background(), emp.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal(updated.CurrentStage, history[0].Stage)
	s.True(updated.StageEnteredAt.Equal(history[0].ChangedAt))
	for i := 1; i < len(history); i++ {
		s.False(history[i-1].ChangedAt.Before(history[i].ChangedAt))
	}
}

func (s *RecorderSuite) TestConcurrentTransitionsKeepLedgerConsistent() {
	emp, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			stage := id.StageInTraining
			if idx%2 == 1 {
				stage = id.StageReadyForMatching
			}
			ctx := s.ctxAt(s.now.Add(time.Duration(idx+1) * time.Minute))
			_, _, err := s.recorder.RecordTransition(ctx, emp.ID, stage, "")
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	history, err := s.store.HistoryByEmployee(context.Background(), emp.ID)
	s.Require().NoError(err)
	s.Len(history, writers+1)

	found, err := s.store.GetEmployee(context.Background(), emp.ID)
	s.Require().NoError(err)
	s.Equal(found.CurrentStage, history[0].Stage)
	s.True(found.StageEnteredAt.Equal(history[0].ChangedAt))

	s.Len(s.publisher.all(), writers+1)
}

func (s *RecorderSuite) TestBulkTransitionAllOrNothing() {
	first, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)
	second, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Grace", "grace@example.com", s.now, "")
	s.Require().NoError(err)

	_, err = s.recorder.RecordBulkTransition(s.ctxAt(s.now.Add(time.Hour)),
		[]id.EmployeeID{first.ID, id.NewEmployeeID()}, id.StageMatchingPool)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	for _, emp := range []id.EmployeeID{first.ID, second.ID} {
		found, err := s.store.GetEmployee(context.Background(), emp)
		s.Require().NoError(err)
		s.Equal(id.StageCandidatePrep, found.CurrentStage)
	}
	s.Len(s.publisher.all(), 2, "a failed bulk must not notify")

	updated, err := s.recorder.RecordBulkTransition(s.ctxAt(s.now.Add(time.Hour)),
		[]id.EmployeeID{first.ID, second.ID}, id.StageMatchingPool)
	s.Require().NoError(err)
	s.Len(updated, 2)

	n := s.publisher.last()
	s.Equal(stream.KindBulkTransitioned, n.Kind)
	s.Len(n.Employees, 2)
}

func (s *RecorderSuite) TestOverlappingBulkTransitionsDoNotDeadlock() {
	first, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)
	second, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Grace", "grace@example.com", s.now, "")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			ids := []id.EmployeeID{first.ID, second.ID}
			if idx%2 == 1 {
				ids = []id.EmployeeID{second.ID, first.ID}
			}
			ctx := s.ctxAt(s.now.Add(time.Duration(idx+1) * time.Minute))
			_, err := s.recorder.RecordBulkTransition(ctx, ids, id.StageMatchingPool)
			s.NoError(err)
		}(i)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.FailNow("bulk transitions deadlocked")
	}
}

func (s *RecorderSuite) TestRecordUpdateLeavesLedgerAlone() {
	emp, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)

	updated, err := s.recorder.RecordUpdate(s.ctxAt(s.now.Add(time.Hour)), emp.ID, "Ada King", "ada.king@example.com", s.now)
	s.Require().NoError(err)
	s.Equal("Ada King", updated.Name)
	s.Equal(id.StageCandidatePrep, updated.CurrentStage)

	history, err := s.store.HistoryByEmployee(context.Background(), emp.ID)
	s.Require().NoError(err)
	s.Len(history, 1)

	s.Equal(stream.KindUpdated, s.publisher.last().Kind)
}

func (s *RecorderSuite) TestRecordDeletionNotifiesWithIDOnly() {
	emp, err := s.recorder.RecordCreation(s.ctxAt(s.now), "Ada", "ada@example.com", s.now, "")
	s.Require().NoError(err)

	s.Require().NoError(s.recorder.RecordDeletion(s.ctxAt(s.now.Add(time.Hour)), emp.ID))

	n := s.publisher.last()
	s.Equal(stream.KindDeleted, n.Kind)
	s.Nil(n.Employee)
	s.Equal(emp.ID, n.EmployeeID)

	err = s.recorder.RecordDeletion(s.ctxAt(s.now.Add(time.Hour)), emp.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
