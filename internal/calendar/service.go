// Package calendar manages the institution-wide grading calendar: one config
// per academic year, with per-period evaluation windows and manual closure.
// It answers whether writing to a given evaluation is currently permitted.
package calendar

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"schooladmin/internal/shared"
)

// Service validates and stores academic-year configs and evaluates window
// openness against the injected clock.
type Service struct {
	store ConfigStore
	clock shared.Clock
	loc   *time.Location
}

// NewService creates a calendar service. All dates entering the service are
// normalized to loc before storage and comparison.
func NewService(store ConfigStore, clock shared.Clock, loc *time.Location) *Service {
	return &Service{store: store, clock: clock, loc: loc}
}

// EvaluationInput carries raw date strings; normalization happens here, not
// in the handlers.
type EvaluationInput struct {
	Type            string `json:"type" validate:"required,oneof=partial final"`
	StartDate       string `json:"startDate" validate:"required"`
	EndDate         string `json:"endDate" validate:"required"`
	PublicationDate string `json:"publicationDate" validate:"required"`
}

// PeriodInput is one period of a new config.
type PeriodInput struct {
	Key         string            `json:"key" validate:"required"`
	Name        string            `json:"name" validate:"required"`
	Evaluations []EvaluationInput `json:"evaluations"`
}

// Create validates and stores the config for a year. One config per year;
// the unique index on academicYear backs up the pre-check under races.
func (s *Service) Create(ctx context.Context, academicYear int, periods []PeriodInput, createdBy string) (*shared.AcademicYearConfig, error) {
	if academicYear <= 0 || createdBy == "" {
		return nil, shared.Validationf("academicYear and createdBy are required")
	}
	if len(periods) == 0 {
		return nil, shared.Validationf("at least one period is required")
	}

	existing, err := s.store.FindByYear(ctx, academicYear)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.Conflictf("academic year %d is already configured", academicYear)
	}

	normalized := make([]shared.Period, 0, len(periods))
	for _, p := range periods {
		period, err := s.normalizePeriod(p)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, *period)
	}

	now := s.clock.Now()
	cfg := &shared.AcademicYearConfig{
		ID:           uuid.NewString(),
		AcademicYear: academicYear,
		Periods:      normalized,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Insert(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the config for a year. A grade cannot be written for a year
// with no calendar, so absence is a NotFoundError, not an empty config.
func (s *Service) Get(ctx context.Context, academicYear int) (*shared.AcademicYearConfig, error) {
	if academicYear <= 0 {
		return nil, shared.Validationf("academicYear is required")
	}
	cfg, err := s.store.FindByYear(ctx, academicYear)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, shared.NotFound("academic year config", strconv.Itoa(academicYear))
	}
	return cfg, nil
}

// UpdateEvaluation replaces the window and publication date of exactly one
// (periodKey, evaluationType) pair inside an existing config.
func (s *Service) UpdateEvaluation(ctx context.Context, configID, periodKey, evaluationType string, in EvaluationInput, updatedBy string) (*shared.AcademicYearConfig, error) {
	if configID == "" || periodKey == "" || evaluationType == "" {
		return nil, shared.Validationf("configId, periodKey and evaluationType are required")
	}
	// The route names the target evaluation; a body disagreeing with it is a
	// client bug, not a retargeting mechanism.
	if in.Type != "" && in.Type != evaluationType {
		return nil, shared.Validationf("evaluation type %s does not match the targeted %s evaluation", in.Type, evaluationType)
	}

	cfg, err := s.store.FindByID(ctx, configID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, shared.NotFound("academic year config", configID)
	}

	period := cfg.Period(periodKey)
	if period == nil {
		return nil, shared.NotFound("period", periodKey)
	}

	evaluation := period.Evaluation(evaluationType)
	if evaluation == nil {
		return nil, shared.NotFound("evaluation", periodKey+"."+evaluationType)
	}

	window, publicationDate, err := s.normalizeDates(periodKey, in)
	if err != nil {
		return nil, err
	}

	evaluation.GradingWindow = *window
	evaluation.PublicationDate = publicationDate
	cfg.UpdatedBy = updatedBy
	cfg.UpdatedAt = s.clock.Now()

	if err := s.store.Replace(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClosePeriod forces a period closed regardless of its window dates.
func (s *Service) ClosePeriod(ctx context.Context, configID, periodKey, closedBy string) (*shared.AcademicYearConfig, error) {
	return s.setClosure(ctx, configID, periodKey, closedBy, true)
}

// ReopenPeriod lifts a manual closure. Window dates apply again afterwards.
func (s *Service) ReopenPeriod(ctx context.Context, configID, periodKey, updatedBy string) (*shared.AcademicYearConfig, error) {
	return s.setClosure(ctx, configID, periodKey, updatedBy, false)
}

func (s *Service) setClosure(ctx context.Context, configID, periodKey, actorID string, closed bool) (*shared.AcademicYearConfig, error) {
	if configID == "" || periodKey == "" {
		return nil, shared.Validationf("configId and periodKey are required")
	}

	cfg, err := s.store.FindByID(ctx, configID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, shared.NotFound("academic year config", configID)
	}

	period := cfg.Period(periodKey)
	if period == nil {
		return nil, shared.NotFound("period", periodKey)
	}

	now := s.clock.Now()
	period.IsManuallyClosed = closed
	if closed {
		period.ClosedAt = &now
		period.ClosedBy = &actorID
	} else {
		period.ClosedAt = nil
		period.ClosedBy = nil
	}
	cfg.UpdatedBy = actorID
	cfg.UpdatedAt = now

	if err := s.store.Replace(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsEvaluationOpen reports whether the evaluation of the given type accepts
// writes right now. Manual closure wins over the window; a missing
// evaluation slot is closed. Both window ends are inclusive.
func (s *Service) IsEvaluationOpen(period *shared.Period, evaluationType string) bool {
	if period == nil || period.IsManuallyClosed {
		return false
	}

	evaluation := period.Evaluation(evaluationType)
	if evaluation == nil {
		return false
	}

	now := s.clock.Now()
	return !now.Before(evaluation.GradingWindow.StartDate) && !now.After(evaluation.GradingWindow.EndDate)
}

// IsPeriodOpenForUntyped gates periods addressed without an evaluation type
// (recuperatoryFirstTerm, december, february). These have no date window on
// the write path; only manual closure applies.
func (s *Service) IsPeriodOpenForUntyped(period *shared.Period) bool {
	return period != nil && !period.IsManuallyClosed
}

// ============================================================================
// Internal Helpers
// ============================================================================

func (s *Service) normalizePeriod(in PeriodInput) (*shared.Period, error) {
	if in.Key == "" || in.Name == "" {
		return nil, shared.Validationf("every period needs key and name")
	}
	if !shared.IsValidPeriodKey(in.Key) {
		return nil, shared.Validationf("unknown period key: %s", in.Key)
	}

	seen := make(map[string]bool, len(in.Evaluations))
	evaluations := make([]shared.Evaluation, 0, len(in.Evaluations))
	for _, e := range in.Evaluations {
		if e.Type != shared.EvaluationPartial && e.Type != shared.EvaluationFinal {
			return nil, shared.Validationf("period %s has invalid evaluation type: %s", in.Key, e.Type)
		}
		if seen[e.Type] {
			return nil, shared.Validationf("period %s has duplicate %s evaluations", in.Key, e.Type)
		}
		seen[e.Type] = true

		window, publicationDate, err := s.normalizeDates(in.Key, e)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, shared.Evaluation{
			Type:            e.Type,
			GradingWindow:   *window,
			PublicationDate: publicationDate,
		})
	}

	// Term periods must carry both halves of the partial/final split.
	if in.Key == shared.PeriodFirstTerm || in.Key == shared.PeriodSecondTerm {
		if !seen[shared.EvaluationPartial] || !seen[shared.EvaluationFinal] {
			return nil, shared.Validationf("period %s must define partial and final evaluations", in.Key)
		}
	}

	return &shared.Period{
		Key:         in.Key,
		Name:        in.Name,
		Evaluations: evaluations,
	}, nil
}

func (s *Service) normalizeDates(periodKey string, in EvaluationInput) (*shared.GradingWindow, time.Time, error) {
	start, err := shared.ParseDateInLocation(in.StartDate, s.loc)
	if err != nil {
		return nil, time.Time{}, err
	}
	end, err := shared.ParseDateInLocation(in.EndDate, s.loc)
	if err != nil {
		return nil, time.Time{}, err
	}
	publication, err := shared.ParseDateInLocation(in.PublicationDate, s.loc)
	if err != nil {
		return nil, time.Time{}, err
	}

	if end.Before(start) {
		return nil, time.Time{}, shared.Validationf("end date cannot precede start date in %s", periodKey)
	}

	return &shared.GradingWindow{StartDate: start, EndDate: end}, publication, nil
}
