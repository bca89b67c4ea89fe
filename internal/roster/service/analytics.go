package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"talenttrack/internal/roster/models"
	"talenttrack/internal/roster/store"
	id "talenttrack/pkg/domain"
	dErrors "talenttrack/pkg/domain-errors"
	"talenttrack/pkg/requestcontext"
)

const hoursPerDay = 24

// Analytics derives reporting views from the ledger and the projection. It
// never writes; every answer is computed fresh from store state at the
// request's timestamp.
type Analytics struct {
	store  store.Store
	logger *slog.Logger
	tracer trace.Tracer
}

// NewAnalytics constructs the analytics engine.
func NewAnalytics(s store.Store, logger *slog.Logger) *Analytics {
	return &Analytics{
		store:  s,
		logger: logger,
		tracer: otel.Tracer("talenttrack/roster"),
	}
}

// Distribution reports current stage occupancy, highest count first. Stages
// with no employees are omitted.
func (a *Analytics) Distribution(ctx context.Context) ([]models.StageCount, error) {
	counts, err := a.store.CountByStage(ctx)
	if err != nil {
		return nil, translateStoreErr(err, "count employees by stage")
	}
	return counts, nil
}

// AverageResidency reports, per stage, how many ledger intervals touched it
// and the mean interval length in days. Each record's interval runs to the
// employee's next record; the latest record's interval is open and runs to
// the request time. An employee passing through a stage twice contributes
// two intervals.
func (a *Analytics) AverageResidency(ctx context.Context) ([]models.StageResidency, error) {
	ctx, span := a.tracer.Start(ctx, "analytics.AverageResidency")
	defer span.End()

	ledger, err := a.store.AllLedger(ctx)
	if err != nil {
		return nil, translateStoreErr(err, "load ledger")
	}
	now := requestcontext.Now(ctx)

	type bucket struct {
		count int
		total time.Duration
	}
	buckets := make(map[id.Stage]*bucket)

	for i, rec := range ledger {
		end := now
		if i+1 < len(ledger) && ledger[i+1].EmployeeID == rec.EmployeeID {
			end = ledger[i+1].ChangedAt
		}
		interval := end.Sub(rec.ChangedAt)
		if interval < 0 {
			interval = 0
		}
		b, ok := buckets[rec.Stage]
		if !ok {
			b = &bucket{}
			buckets[rec.Stage] = b
		}
		b.count++
		b.total += interval
	}

	residency := make([]models.StageResidency, 0, len(buckets))
	for stage, b := range buckets {
		avgDays := b.total.Hours() / hoursPerDay / float64(b.count)
		residency = append(residency, models.StageResidency{
			Stage:   stage,
			Count:   b.count,
			AvgDays: roundToTenth(avgDays),
		})
	}
	sort.Slice(residency, func(i, j int) bool {
		return residency[i].Stage < residency[j].Stage
	})
	return residency, nil
}

// Report combines the distribution and residency views into one payload.
func (a *Analytics) Report(ctx context.Context) (*models.Analytics, error) {
	distribution, err := a.Distribution(ctx)
	if err != nil {
		return nil, err
	}
	residency, err := a.AverageResidency(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Analytics{
		StageDistribution: distribution,
		AverageResidency:  residency,
	}, nil
}

// Stale lists employees whose current stage residency has reached the
// threshold, longest-stuck first. An employee exactly at the threshold is
// included. A non-empty stages list restricts the scan to those stages.
func (a *Analytics) Stale(ctx context.Context, stages []id.Stage, thresholdDays int) ([]models.StaleEmployee, error) {
	if thresholdDays < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "threshold must not be negative")
	}
	for _, stage := range stages {
		if !stage.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", stage)
		}
	}

	var employees []*models.Employee
	var err error
	if len(stages) > 0 {
		employees, err = a.store.ListByStages(ctx, stages)
	} else {
		employees, err = a.store.ListEmployees(ctx)
	}
	if err != nil {
		return nil, translateStoreErr(err, "list employees")
	}
	now := requestcontext.Now(ctx)
	threshold := time.Duration(thresholdDays) * hoursPerDay * time.Hour

	stale := make([]models.StaleEmployee, 0)
	for _, emp := range employees {
		elapsed := now.Sub(emp.StageEnteredAt)
		if elapsed < threshold {
			continue
		}
		stale = append(stale, models.StaleEmployee{
			Employee:    *emp,
			DaysInStage: int(elapsed.Hours() / hoursPerDay),
		})
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].StageEnteredAt.Before(stale[j].StageEnteredAt)
	})
	return stale, nil
}

func roundToTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
