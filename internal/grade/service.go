package grade

import (
	"context"
	"sort"
	"time"

	"schooladmin/internal/calendar"
	"schooladmin/internal/shared"
)

// Service validates and applies grade writes. Every mutation runs the same
// gauntlet: numeric range, calendar existence, progression policy, grading
// window — with a single escape hatch for the elevated bypass role.
type Service struct {
	grades    Store
	calendar  *calendar.Service
	clock     shared.Clock
	canBypass func(shared.Actor) bool
}

// NewService creates a grade write service. The bypass capability is decided
// once here, not re-derived per branch.
func NewService(grades Store, cal *calendar.Service, clock shared.Clock) *Service {
	return &Service{
		grades:    grades,
		calendar:  cal,
		clock:     clock,
		canBypass: shared.CanBypassCalendar,
	}
}

// WriteRequest is a single intended grade write. A nil Value clears the slot.
type WriteRequest struct {
	StudentID    string
	CourseID     string
	SubjectID    string
	AcademicYear int
	Instance     string
	Value        *float64
	IsRepeating  bool
	Actor        shared.Actor
}

// BatchItem targets one record with one or more instance values. Clearing is
// not part of the bulk path; batches only load values.
type BatchItem struct {
	StudentID    string             `json:"student"`
	CourseID     string             `json:"course"`
	SubjectID    string             `json:"subject"`
	AcademicYear int                `json:"academicYear"`
	IsRepeating  bool               `json:"isRepeating"`
	Grades       map[string]float64 `json:"grades"`
}

// BatchResult summarizes an accepted batch.
type BatchResult struct {
	Records   int `json:"records"`
	Instances int `json:"instances"`
}

// WriteInstance validates and applies one grade write as a field-scoped
// atomic upsert.
func (s *Service) WriteInstance(ctx context.Context, req WriteRequest) (*shared.GradeRecord, error) {
	if req.StudentID == "" || req.CourseID == "" || req.SubjectID == "" || req.AcademicYear <= 0 {
		return nil, shared.Validationf("student, course, subject and academicYear are required")
	}

	key, err := ParseInstanceKey(req.Instance)
	if err != nil {
		return nil, err
	}

	deleting := req.Value == nil
	if !deleting && (*req.Value < 1 || *req.Value > 10) {
		return nil, shared.Validationf("grade for %s must be between 1 and 10", key)
	}

	cfg, err := s.calendar.Get(ctx, req.AcademicYear)
	if err != nil {
		return nil, err
	}

	recordKey := RecordKey{
		StudentID:    req.StudentID,
		SubjectID:    req.SubjectID,
		CourseID:     req.CourseID,
		AcademicYear: req.AcademicYear,
	}

	existing, err := s.grades.FindOne(ctx, recordKey)
	if err != nil {
		return nil, err
	}
	var current shared.GradeLedger
	if existing != nil {
		current = existing.Grades
	}

	// Elevated actors skip progression and window gating entirely: they may
	// correct closed periods and already-promoted students.
	if !s.canBypass(req.Actor) {
		if err := s.checkWritable(cfg, &current, key); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	slot := SlotWrite{Key: key}
	if !deleting {
		value := *req.Value
		loadedBy := req.Actor.ID
		slot.Value = &value
		slot.LoadedBy = &loadedBy
		slot.LoadedAt = &now
	}

	return s.grades.Apply(ctx, RecordUpdate{
		Key:         recordKey,
		IsRepeating: req.IsRepeating,
		Slots:       []SlotWrite{slot},
		UpdatedAt:   now,
	})
}

// WriteBatch validates every item of a batch and only then applies all
// upserts in one bulk operation. A single violation anywhere rejects the
// whole batch with zero writes; a batch is a unit of acceptance, not a
// best-effort partial apply.
func (s *Service) WriteBatch(ctx context.Context, items []BatchItem, actor shared.Actor) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, shared.Validationf("no grades to save")
	}

	academicYear := items[0].AcademicYear
	cfg, err := s.calendar.Get(ctx, academicYear)
	if err != nil {
		return nil, err
	}

	bypass := s.canBypass(actor)
	now := s.clock.Now()
	instances := 0

	updates := make([]RecordUpdate, 0, len(items))
	for _, item := range items {
		if item.StudentID == "" || item.CourseID == "" || item.SubjectID == "" {
			return nil, shared.Validationf("every batch item needs student, course and subject")
		}
		if item.AcademicYear != academicYear {
			return nil, shared.Validationf("all batch items must share one academicYear")
		}
		if len(item.Grades) == 0 {
			return nil, shared.Validationf("batch item for student %s carries no grades", item.StudentID)
		}

		recordKey := RecordKey{
			StudentID:    item.StudentID,
			SubjectID:    item.SubjectID,
			CourseID:     item.CourseID,
			AcademicYear: item.AcademicYear,
		}

		existing, err := s.grades.FindOne(ctx, recordKey)
		if err != nil {
			return nil, err
		}
		var current shared.GradeLedger
		if existing != nil {
			current = existing.Grades
		}

		update := RecordUpdate{
			Key:         recordKey,
			IsRepeating: item.IsRepeating,
			UpdatedAt:   now,
		}

		for _, raw := range sortedKeys(item.Grades) {
			key, err := ParseInstanceKey(raw)
			if err != nil {
				return nil, err
			}

			value := item.Grades[raw]
			if value < 1 || value > 10 {
				return nil, shared.Validationf("grade for %s must be between 1 and 10", key)
			}

			if !bypass {
				if err := s.checkWritable(cfg, &current, key); err != nil {
					return nil, err
				}
			}

			loadedBy := actor.ID
			v := value
			loadedAt := now
			update.Slots = append(update.Slots, SlotWrite{
				Key:      key,
				Value:    &v,
				LoadedBy: &loadedBy,
				LoadedAt: &loadedAt,
			})
		}

		instances += len(update.Slots)
		updates = append(updates, update)
	}

	if err := s.grades.BulkApply(ctx, updates); err != nil {
		return nil, err
	}

	return &BatchResult{Records: len(updates), Instances: instances}, nil
}

// checkWritable enforces progression and calendar gating for normal actors.
// Progression only gates first writes: correcting an already-loaded slot is
// always permitted, subject to the window.
func (s *Service) checkWritable(cfg *shared.AcademicYearConfig, current *shared.GradeLedger, key InstanceKey) error {
	allowed := AllowedInstances(current)
	alreadyLoaded := Slot(current, key).Value != nil
	if !instanceAllowed(allowed, key) && !alreadyLoaded {
		return shared.Policyf("writing %s is not allowed at this point", key)
	}

	periodKey, evaluationType := key.Split()
	period := cfg.Period(periodKey)
	if period == nil {
		return shared.NotFound("period", periodKey)
	}

	if evaluationType != "" {
		if !s.calendar.IsEvaluationOpen(period, evaluationType) {
			return shared.Policyf("evaluation %s of %s is not open", evaluationType, period.Name)
		}
	} else if !s.calendar.IsPeriodOpenForUntyped(period) {
		return shared.Policyf("period %s is closed", period.Name)
	}

	return nil
}

// ============================================================================
// Read Projections
// ============================================================================

// RecordView is the read shape: the full ledger when no instance filter is
// given, a single slot otherwise.
type RecordView struct {
	StudentID    string              `json:"studentId"`
	SubjectID    string              `json:"subjectId"`
	CourseID     string              `json:"courseId"`
	AcademicYear int                 `json:"academicYear"`
	IsRepeating  bool                `json:"isRepeating"`
	Grades       *shared.GradeLedger `json:"grades,omitempty"`
	Grade        *shared.GradeSlot   `json:"grade,omitempty"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// GetByCourse lists grade views for a course, optionally scoped to one year
// and one instance.
func (s *Service) GetByCourse(ctx context.Context, courseID string, academicYear int, instance string) ([]RecordView, error) {
	if courseID == "" {
		return nil, shared.Validationf("courseId is required")
	}
	return s.project(ctx, Filter{CourseID: courseID, AcademicYear: academicYear}, instance)
}

// GetByCourseAndSubject lists grade views for one subject in a course.
func (s *Service) GetByCourseAndSubject(ctx context.Context, courseID, subjectID string, academicYear int, instance string) ([]RecordView, error) {
	if courseID == "" || subjectID == "" {
		return nil, shared.Validationf("courseId and subjectId are required")
	}
	if academicYear <= 0 {
		return nil, shared.Validationf("academicYear is required")
	}
	return s.project(ctx, Filter{CourseID: courseID, SubjectID: subjectID, AcademicYear: academicYear}, instance)
}

// GetByCourseAndStudent lists one student's grade views across subjects.
func (s *Service) GetByCourseAndStudent(ctx context.Context, courseID, studentID, instance string) ([]RecordView, error) {
	if courseID == "" || studentID == "" {
		return nil, shared.Validationf("courseId and studentId are required")
	}
	return s.project(ctx, Filter{CourseID: courseID, StudentID: studentID}, instance)
}

func (s *Service) project(ctx context.Context, f Filter, instance string) ([]RecordView, error) {
	var key InstanceKey
	if instance != "" {
		parsed, err := ParseInstanceKey(instance)
		if err != nil {
			return nil, err
		}
		key = parsed
	}

	records, err := s.grades.Find(ctx, f)
	if err != nil {
		return nil, err
	}

	views := make([]RecordView, 0, len(records))
	for i := range records {
		rec := &records[i]
		view := RecordView{
			StudentID:    rec.StudentID,
			SubjectID:    rec.SubjectID,
			CourseID:     rec.CourseID,
			AcademicYear: rec.AcademicYear,
			IsRepeating:  rec.IsRepeating,
			UpdatedAt:    rec.UpdatedAt,
		}
		if instance == "" {
			view.Grades = &rec.Grades
		} else {
			view.Grade = Slot(&rec.Grades, key)
		}
		views = append(views, view)
	}
	return views, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
