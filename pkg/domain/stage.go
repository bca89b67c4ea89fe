package domain

import dErrors "talenttrack/pkg/domain-errors"

// Stage is one value from the fixed pipeline an employee occupies.
// Invariant: the value must be a member of the pipeline enumeration below.
//
// Usage: construct via ParseStage at trust boundaries to enforce the
// enumeration; direct casting bypasses validation. The source system skipped
// this check server-side, which let arbitrary strings into the ledger; every
// write path here must go through ParseStage.
type Stage string

// The pipeline, in progression order.
const (
	StageCandidatePrep     Stage = "Candidate Prep"
	StageInTraining        Stage = "In Training"
	StageReadyForMatching  Stage = "Ready for Matching"
	StageMatchingPool      Stage = "Matching Pool"
	StageRematchingPool    Stage = "Rematching Pool"
	StageNotEligible       Stage = "Not Eligible (Learning Performance)"
	StagePlottedWithClient Stage = "Plotted with Client"
	StageOnAssignment      Stage = "On Assignment"
)

// Stages lists the pipeline in progression order. The order matters only for
// display; transitions may jump between any two stages.
var Stages = []Stage{
	StageCandidatePrep,
	StageInTraining,
	StageReadyForMatching,
	StageMatchingPool,
	StageRematchingPool,
	StageNotEligible,
	StagePlottedWithClient,
	StageOnAssignment,
}

// validStages is the single source of truth for membership checks.
var validStages = func() map[Stage]bool {
	m := make(map[Stage]bool, len(Stages))
	for _, s := range Stages {
		m[s] = true
	}
	return m
}()

// ParseStage constructs a Stage from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or outside the
// pipeline enumeration; no other errors are expected.
func ParseStage(s string) (Stage, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "stage cannot be empty")
	}
	st := Stage(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", s)
	}
	return st, nil
}

// IsValid reports whether the stage is a member of the pipeline enumeration.
func (s Stage) IsValid() bool { return validStages[s] }

func (s Stage) String() string { return string(s) }
