package calendar

import (
	"context"
	"testing"
	"time"

	"schooladmin/internal/shared"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type memConfigStore struct {
	byYear map[int]*shared.AcademicYearConfig
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{byYear: make(map[int]*shared.AcademicYearConfig)}
}

func (s *memConfigStore) FindByYear(_ context.Context, academicYear int) (*shared.AcademicYearConfig, error) {
	return s.byYear[academicYear], nil
}

func (s *memConfigStore) FindByID(_ context.Context, id string) (*shared.AcademicYearConfig, error) {
	for _, cfg := range s.byYear {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return nil, nil
}

func (s *memConfigStore) Insert(_ context.Context, cfg *shared.AcademicYearConfig) error {
	if _, ok := s.byYear[cfg.AcademicYear]; ok {
		return shared.Conflictf("academic year %d is already configured", cfg.AcademicYear)
	}
	s.byYear[cfg.AcademicYear] = cfg
	return nil
}

func (s *memConfigStore) Replace(_ context.Context, cfg *shared.AcademicYearConfig) error {
	s.byYear[cfg.AcademicYear] = cfg
	return nil
}

func newTestService(t *testing.T, now time.Time) (*Service, *memConfigStore) {
	t.Helper()
	loc, err := time.LoadLocation(shared.DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	store := newMemConfigStore()
	return NewService(store, fixedClock{now: now}, loc), store
}

func termPeriod(key, name string) PeriodInput {
	return PeriodInput{
		Key:  key,
		Name: name,
		Evaluations: []EvaluationInput{
			{Type: "partial", StartDate: "2025-03-01", EndDate: "2025-06-30", PublicationDate: "2025-07-05"},
			{Type: "final", StartDate: "2025-07-01", EndDate: "2025-07-31", PublicationDate: "2025-08-05"},
		},
	}
}

func fullPeriodSet() []PeriodInput {
	return []PeriodInput{
		termPeriod(shared.PeriodFirstTerm, "Primer Cuatrimestre"),
		termPeriod(shared.PeriodSecondTerm, "Segundo Cuatrimestre"),
		{Key: shared.PeriodRecuperatoryFirstTerm, Name: "Recuperatorio"},
		{Key: shared.PeriodDecember, Name: "Diciembre"},
		{Key: shared.PeriodFebruary, Name: "Febrero"},
	}
}

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(shared.DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

// ============================================================================
// Create / Get
// ============================================================================

func TestCreate(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 2, 1, 10, 0, 0, 0, loc))

	cfg, err := svc.Create(context.Background(), 2025, fullPeriodSet(), "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if cfg.AcademicYear != 2025 || len(cfg.Periods) != 5 {
		t.Errorf("config = year %d with %d periods, want 2025 with 5", cfg.AcademicYear, len(cfg.Periods))
	}
	if cfg.CreatedBy != "admin-1" {
		t.Errorf("createdBy = %q, want admin-1", cfg.CreatedBy)
	}

	// Dates land at midnight in the canonical timezone.
	start := cfg.Period(shared.PeriodFirstTerm).Evaluation("partial").GradingWindow.StartDate
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	if !start.Equal(want) {
		t.Errorf("normalized start = %v, want %v", start, want)
	}
}

func TestCreate_DuplicateYear(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 2, 1, 10, 0, 0, 0, loc))

	if _, err := svc.Create(context.Background(), 2025, fullPeriodSet(), "admin-1"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), 2025, fullPeriodSet(), "admin-1"); !shared.IsConflict(err) {
		t.Fatalf("second Create: got %v, want conflict error", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 2, 1, 10, 0, 0, 0, loc))

	badTerm := termPeriod(shared.PeriodFirstTerm, "Primer Cuatrimestre")
	badTerm.Evaluations = badTerm.Evaluations[:1] // partial only

	reversed := termPeriod(shared.PeriodFirstTerm, "Primer Cuatrimestre")
	reversed.Evaluations[0].StartDate = "2025-06-30"
	reversed.Evaluations[0].EndDate = "2025-03-01"

	duplicated := termPeriod(shared.PeriodFirstTerm, "Primer Cuatrimestre")
	duplicated.Evaluations[1].Type = "partial"

	badType := termPeriod(shared.PeriodFirstTerm, "Primer Cuatrimestre")
	badType.Evaluations[0].Type = "midterm"

	tests := []struct {
		name    string
		periods []PeriodInput
	}{
		{"no periods", nil},
		{"unknown period key", []PeriodInput{{Key: "thirdTerm", Name: "Tercer"}}},
		{"term without final", []PeriodInput{badTerm}},
		{"end before start", []PeriodInput{reversed}},
		{"duplicate evaluation types", []PeriodInput{duplicated}},
		{"invalid evaluation type", []PeriodInput{badType}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), 2025, tt.periods, "admin-1"); !shared.IsValidation(err) {
				t.Fatalf("got %v, want validation error", err)
			}
		})
	}
}

func TestGet_Missing(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 2, 1, 10, 0, 0, 0, loc))

	if _, err := svc.Get(context.Background(), 2030); !shared.IsNotFound(err) {
		t.Fatalf("got %v, want not-found error", err)
	}
}

// ============================================================================
// UpdateEvaluation / Closure
// ============================================================================

func TestUpdateEvaluation(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 2, 1, 10, 0, 0, 0, loc))

	created, err := svc.Create(context.Background(), 2025, fullPeriodSet(), "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.UpdateEvaluation(context.Background(), created.ID, shared.PeriodFirstTerm, "partial",
		EvaluationInput{Type: "partial", StartDate: "2025-04-01", EndDate: "2025-07-15", PublicationDate: "2025-07-20"},
		"admin-2")
	if err != nil {
		t.Fatalf("UpdateEvaluation: %v", err)
	}

	got := updated.Period(shared.PeriodFirstTerm).Evaluation("partial").GradingWindow
	if !got.EndDate.Equal(time.Date(2025, 7, 15, 0, 0, 0, 0, loc)) {
		t.Errorf("end date = %v, want 2025-07-15", got.EndDate)
	}
	if updated.UpdatedBy != "admin-2" {
		t.Errorf("updatedBy = %q, want admin-2", updated.UpdatedBy)
	}

	// Untouched evaluation keeps its window.
	final := updated.Period(shared.PeriodFirstTerm).Evaluation("final").GradingWindow
	if !final.StartDate.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("final start drifted to %v", final.StartDate)
	}
}

func TestUpdateEvaluation_MissingTargets(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 2, 1, 10, 0, 0, 0, loc))

	created, err := svc.Create(context.Background(), 2025, fullPeriodSet(), "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	in := EvaluationInput{Type: "partial", StartDate: "2025-04-01", EndDate: "2025-07-15", PublicationDate: "2025-07-20"}

	if _, err := svc.UpdateEvaluation(context.Background(), "missing-id", shared.PeriodFirstTerm, "partial", in, "a"); !shared.IsNotFound(err) {
		t.Errorf("missing config: got %v, want not-found", err)
	}
	if _, err := svc.UpdateEvaluation(context.Background(), created.ID, "thirdTerm", "partial", in, "a"); !shared.IsNotFound(err) {
		t.Errorf("missing period: got %v, want not-found", err)
	}
	// Untyped periods carry no evaluations to update.
	if _, err := svc.UpdateEvaluation(context.Background(), created.ID, shared.PeriodDecember, "partial", in, "a"); !shared.IsNotFound(err) {
		t.Errorf("missing evaluation: got %v, want not-found", err)
	}
}

func TestUpdateEvaluation_TypeMismatch(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 2, 1, 10, 0, 0, 0, loc))

	created, err := svc.Create(context.Background(), 2025, fullPeriodSet(), "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A body claiming partial must not update the final evaluation.
	in := EvaluationInput{Type: "partial", StartDate: "2025-04-01", EndDate: "2025-07-15", PublicationDate: "2025-07-20"}
	if _, err := svc.UpdateEvaluation(context.Background(), created.ID, shared.PeriodFirstTerm, "final", in, "a"); !shared.IsValidation(err) {
		t.Fatalf("mismatched type: got %v, want validation error", err)
	}

	final := mustGet(t, svc, 2025).Period(shared.PeriodFirstTerm).Evaluation("final").GradingWindow
	if !final.StartDate.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("final window changed to start %v despite rejection", final.StartDate)
	}
}

func mustGet(t *testing.T, svc *Service, year int) *shared.AcademicYearConfig {
	t.Helper()
	cfg, err := svc.Get(context.Background(), year)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return cfg
}

func TestCloseAndReopenPeriod(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, loc)
	svc, _ := newTestService(t, now)

	created, err := svc.Create(context.Background(), 2025, fullPeriodSet(), "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	closed, err := svc.ClosePeriod(context.Background(), created.ID, shared.PeriodFirstTerm, "admin-2")
	if err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}

	period := closed.Period(shared.PeriodFirstTerm)
	if !period.IsManuallyClosed {
		t.Fatal("period not marked closed")
	}
	if period.ClosedBy == nil || *period.ClosedBy != "admin-2" {
		t.Errorf("closedBy = %v, want admin-2", period.ClosedBy)
	}
	if period.ClosedAt == nil || !period.ClosedAt.Equal(now) {
		t.Errorf("closedAt = %v, want %v", period.ClosedAt, now)
	}

	reopened, err := svc.ReopenPeriod(context.Background(), created.ID, shared.PeriodFirstTerm, "admin-3")
	if err != nil {
		t.Fatalf("ReopenPeriod: %v", err)
	}

	period = reopened.Period(shared.PeriodFirstTerm)
	if period.IsManuallyClosed || period.ClosedAt != nil || period.ClosedBy != nil {
		t.Errorf("reopened period = %+v, want closure fields cleared", period)
	}
}

// ============================================================================
// Window Evaluation
// ============================================================================

func TestIsEvaluationOpen(t *testing.T) {
	loc := mustLoc(t)

	period := &shared.Period{
		Key:  shared.PeriodFirstTerm,
		Name: "Primer Cuatrimestre",
		Evaluations: []shared.Evaluation{{
			Type: "partial",
			GradingWindow: shared.GradingWindow{
				StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, loc),
				EndDate:   time.Date(2025, 6, 30, 0, 0, 0, 0, loc),
			},
		}},
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"inside window", time.Date(2025, 5, 10, 12, 0, 0, 0, loc), true},
		{"exactly at start", time.Date(2025, 3, 1, 0, 0, 0, 0, loc), true},
		{"exactly at end", time.Date(2025, 6, 30, 0, 0, 0, 0, loc), true},
		{"before start", time.Date(2025, 2, 28, 23, 59, 59, 0, loc), false},
		{"after end", time.Date(2025, 6, 30, 0, 0, 1, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.now)
			if got := svc.IsEvaluationOpen(period, "partial"); got != tt.want {
				t.Errorf("IsEvaluationOpen = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsEvaluationOpen_EdgeCases(t *testing.T) {
	loc := mustLoc(t)
	inside := time.Date(2025, 5, 10, 12, 0, 0, 0, loc)
	svc, _ := newTestService(t, inside)

	period := &shared.Period{
		Key: shared.PeriodFirstTerm,
		Evaluations: []shared.Evaluation{{
			Type: "partial",
			GradingWindow: shared.GradingWindow{
				StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, loc),
				EndDate:   time.Date(2025, 6, 30, 0, 0, 0, 0, loc),
			},
		}},
	}

	if svc.IsEvaluationOpen(nil, "partial") {
		t.Error("nil period must be closed")
	}
	if svc.IsEvaluationOpen(period, "final") {
		t.Error("missing evaluation slot must be closed")
	}

	period.IsManuallyClosed = true
	if svc.IsEvaluationOpen(period, "partial") {
		t.Error("manual closure must win over an open window")
	}
}

func TestIsPeriodOpenForUntyped(t *testing.T) {
	loc := mustLoc(t)
	svc, _ := newTestService(t, time.Date(2025, 5, 10, 12, 0, 0, 0, loc))

	period := &shared.Period{Key: shared.PeriodDecember, Name: "Diciembre"}
	if !svc.IsPeriodOpenForUntyped(period) {
		t.Error("untyped period without closure must be open")
	}

	period.IsManuallyClosed = true
	if svc.IsPeriodOpenForUntyped(period) {
		t.Error("manually closed untyped period must be closed")
	}

	if svc.IsPeriodOpenForUntyped(nil) {
		t.Error("nil period must be closed")
	}
}
