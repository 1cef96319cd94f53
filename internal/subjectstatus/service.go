// Package subjectstatus records a student's final pass/fail outcome per
// subject and academic year, and answers which subjects a student still owes.
package subjectstatus

import (
	"context"

	"github.com/google/uuid"

	"schooladmin/internal/shared"
)

// Service validates and stores subject outcomes.
type Service struct {
	store Store
	clock shared.Clock
}

// NewService creates a subject status service.
func NewService(store Store, clock shared.Clock) *Service {
	return &Service{store: store, clock: clock}
}

// CreateInput is the shape for recording an outcome.
type CreateInput struct {
	StudentID    string `json:"student" validate:"required"`
	SubjectID    string `json:"subject" validate:"required"`
	AcademicYear int    `json:"academicYear" validate:"required,gt=0"`
	Status       string `json:"status" validate:"required"`
}

// Create records one outcome. One outcome per (student, subject, year); a
// subject already passed in any year can never be marked failed again, so
// history stays consistent across repetitions.
func (s *Service) Create(ctx context.Context, in CreateInput) (*shared.SubjectStatus, error) {
	if in.StudentID == "" || in.SubjectID == "" || in.AcademicYear <= 0 {
		return nil, shared.Validationf("student, subject and academicYear are required")
	}
	if !shared.IsValidSubjectOutcome(in.Status) {
		return nil, shared.Validationf("invalid outcome status: %s", in.Status)
	}

	existing, err := s.store.FindOne(ctx, in.StudentID, in.SubjectID, in.AcademicYear)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.Conflictf("an outcome for this subject and year already exists")
	}

	if in.Status == shared.SubjectFailed {
		passed, err := s.store.HasPassed(ctx, in.StudentID, in.SubjectID)
		if err != nil {
			return nil, err
		}
		if passed {
			return nil, shared.Validationf("subject was already passed in a previous year")
		}
	}

	now := s.clock.Now()
	st := &shared.SubjectStatus{
		ID:           uuid.NewString(),
		StudentID:    in.StudentID,
		SubjectID:    in.SubjectID,
		AcademicYear: in.AcademicYear,
		Status:       in.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Insert(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// GetByYear lists every outcome of the year with student and subject joined.
func (s *Service) GetByYear(ctx context.Context, academicYear int) ([]YearStatusView, error) {
	if academicYear <= 0 {
		return nil, shared.Validationf("academicYear is required")
	}
	return s.store.FindByYear(ctx, academicYear)
}

// PendingByStudent lists the subjects the student has failed and never
// passed, across all years.
func (s *Service) PendingByStudent(ctx context.Context, studentID string) ([]PendingSubject, error) {
	if studentID == "" {
		return nil, shared.Validationf("studentId is required")
	}
	return s.store.PendingByStudent(ctx, studentID)
}
