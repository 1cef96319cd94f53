package grade

import (
	"context"
	"testing"
	"time"

	"schooladmin/internal/calendar"
	"schooladmin/internal/shared"
)

// ============================================================================
// Fakes
// ============================================================================

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeConfigStore struct {
	configs map[int]*shared.AcademicYearConfig
}

func (s *fakeConfigStore) FindByYear(_ context.Context, academicYear int) (*shared.AcademicYearConfig, error) {
	return s.configs[academicYear], nil
}

func (s *fakeConfigStore) FindByID(_ context.Context, id string) (*shared.AcademicYearConfig, error) {
	for _, cfg := range s.configs {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return nil, nil
}

func (s *fakeConfigStore) Insert(_ context.Context, cfg *shared.AcademicYearConfig) error {
	if _, ok := s.configs[cfg.AcademicYear]; ok {
		return shared.Conflictf("academic year %d is already configured", cfg.AcademicYear)
	}
	s.configs[cfg.AcademicYear] = cfg
	return nil
}

func (s *fakeConfigStore) Replace(_ context.Context, cfg *shared.AcademicYearConfig) error {
	s.configs[cfg.AcademicYear] = cfg
	return nil
}

type fakeGradeStore struct {
	records   map[RecordKey]*shared.GradeRecord
	bulkCalls int
}

func newFakeGradeStore() *fakeGradeStore {
	return &fakeGradeStore{records: make(map[RecordKey]*shared.GradeRecord)}
}

func (s *fakeGradeStore) FindOne(_ context.Context, key RecordKey) (*shared.GradeRecord, error) {
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (s *fakeGradeStore) Find(_ context.Context, f Filter) ([]shared.GradeRecord, error) {
	var out []shared.GradeRecord
	for key, rec := range s.records {
		if f.StudentID != "" && key.StudentID != f.StudentID {
			continue
		}
		if f.SubjectID != "" && key.SubjectID != f.SubjectID {
			continue
		}
		if f.CourseID != "" && key.CourseID != f.CourseID {
			continue
		}
		if f.AcademicYear > 0 && key.AcademicYear != f.AcademicYear {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *fakeGradeStore) Apply(_ context.Context, up RecordUpdate) (*shared.GradeRecord, error) {
	rec, ok := s.records[up.Key]
	if !ok {
		rec = &shared.GradeRecord{
			StudentID:    up.Key.StudentID,
			SubjectID:    up.Key.SubjectID,
			CourseID:     up.Key.CourseID,
			AcademicYear: up.Key.AcademicYear,
			CreatedAt:    up.UpdatedAt,
		}
		s.records[up.Key] = rec
	}

	rec.IsRepeating = up.IsRepeating
	rec.UpdatedAt = up.UpdatedAt
	for _, slot := range up.Slots {
		target := Slot(&rec.Grades, slot.Key)
		target.Value = slot.Value
		target.LoadedBy = slot.LoadedBy
		target.LoadedAt = slot.LoadedAt
	}

	copied := *rec
	return &copied, nil
}

func (s *fakeGradeStore) BulkApply(ctx context.Context, ups []RecordUpdate) error {
	s.bulkCalls++
	for _, up := range ups {
		if _, err := s.Apply(ctx, up); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Fixtures
// ============================================================================

const testYear = 2025

var (
	teacher    = shared.Actor{ID: "teacher-1", Role: shared.RoleTeacher}
	superAdmin = shared.Actor{ID: "root-1", Role: shared.RoleSuperAdmin}
)

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(shared.DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func window(loc *time.Location, fromMonth, fromDay, toMonth, toDay int) shared.GradingWindow {
	return shared.GradingWindow{
		StartDate: time.Date(testYear, time.Month(fromMonth), fromDay, 0, 0, 0, 0, loc),
		EndDate:   time.Date(testYear, time.Month(toMonth), toDay, 0, 0, 0, 0, loc),
	}
}

// openConfig returns a calendar where every evaluation window spans the whole
// year and no period is manually closed.
func openConfig(loc *time.Location) *shared.AcademicYearConfig {
	termEvaluations := func() []shared.Evaluation {
		return []shared.Evaluation{
			{Type: shared.EvaluationPartial, GradingWindow: window(loc, 1, 1, 12, 31)},
			{Type: shared.EvaluationFinal, GradingWindow: window(loc, 1, 1, 12, 31)},
		}
	}
	return &shared.AcademicYearConfig{
		ID:           "cfg-2025",
		AcademicYear: testYear,
		Periods: []shared.Period{
			{Key: shared.PeriodFirstTerm, Name: "Primer Cuatrimestre", Evaluations: termEvaluations()},
			{Key: shared.PeriodSecondTerm, Name: "Segundo Cuatrimestre", Evaluations: termEvaluations()},
			{Key: shared.PeriodRecuperatoryFirstTerm, Name: "Recuperatorio"},
			{Key: shared.PeriodDecember, Name: "Diciembre"},
			{Key: shared.PeriodFebruary, Name: "Febrero"},
		},
	}
}

func newTestService(t *testing.T, cfg *shared.AcademicYearConfig) (*Service, *fakeGradeStore) {
	t.Helper()
	loc := testLocation(t)
	clock := fixedClock{now: time.Date(testYear, 6, 15, 12, 0, 0, 0, loc)}

	configs := map[int]*shared.AcademicYearConfig{}
	if cfg != nil {
		configs[cfg.AcademicYear] = cfg
	}
	cal := calendar.NewService(&fakeConfigStore{configs: configs}, clock, loc)

	store := newFakeGradeStore()
	return NewService(store, cal, clock), store
}

func writeReq(instance string, value *float64, actor shared.Actor) WriteRequest {
	return WriteRequest{
		StudentID:    "student-1",
		CourseID:     "course-1",
		SubjectID:    "subject-1",
		AcademicYear: testYear,
		Instance:     instance,
		Value:        value,
		Actor:        actor,
	}
}

func preload(t *testing.T, store *fakeGradeStore, values map[InstanceKey]float64) {
	t.Helper()
	key := RecordKey{StudentID: "student-1", SubjectID: "subject-1", CourseID: "course-1", AcademicYear: testYear}
	rec := &shared.GradeRecord{
		StudentID:    key.StudentID,
		SubjectID:    key.SubjectID,
		CourseID:     key.CourseID,
		AcademicYear: key.AcademicYear,
		Grades:       *ledgerWith(values),
	}
	store.records[key] = rec
}

// ============================================================================
// WriteInstance
// ============================================================================

func TestWriteInstance_FirstWrite(t *testing.T) {
	loc := testLocation(t)
	svc, _ := newTestService(t, openConfig(loc))

	rec, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", f(8), teacher))
	if err != nil {
		t.Fatalf("WriteInstance: %v", err)
	}

	slot := rec.Grades.FirstTerm.Partial
	if slot.Value == nil || *slot.Value != 8 {
		t.Errorf("stored value = %v, want 8", slot.Value)
	}
	if slot.LoadedBy == nil || *slot.LoadedBy != teacher.ID {
		t.Errorf("loadedBy = %v, want %q", slot.LoadedBy, teacher.ID)
	}
	if slot.LoadedAt == nil {
		t.Error("loadedAt not set")
	}
}

func TestWriteInstance_OutOfOrderRejected(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))

	_, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.final", f(8), teacher))
	if !shared.IsPolicy(err) {
		t.Fatalf("out-of-order write: got %v, want policy error", err)
	}
	if len(store.records) != 0 {
		t.Error("rejected write must not create a record")
	}
}

func TestWriteInstance_CorrectionOfLoadedSlot(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))
	preload(t, store, map[InstanceKey]float64{FirstTermPartial: 4})

	// firstTerm.partial is no longer the allowed next instance, but it is
	// already loaded, so correcting it passes the progression gate.
	rec, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", f(6), teacher))
	if err != nil {
		t.Fatalf("correction: %v", err)
	}
	if *rec.Grades.FirstTerm.Partial.Value != 6 {
		t.Errorf("corrected value = %v, want 6", *rec.Grades.FirstTerm.Partial.Value)
	}
}

func TestWriteInstance_PromotedStudentLocked(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))
	preload(t, store, map[InstanceKey]float64{
		FirstTermPartial: 8, FirstTermFinal: 8,
		SecondTermPartial: 8, SecondTermFinal: 7,
	})

	_, err := svc.WriteInstance(context.Background(), writeReq("recuperatoryFirstTerm", f(5), teacher))
	if !shared.IsPolicy(err) {
		t.Fatalf("write after promotion: got %v, want policy error", err)
	}
}

func TestWriteInstance_SuperAdminBypass(t *testing.T) {
	loc := testLocation(t)
	cfg := openConfig(loc)
	cfg.Period(shared.PeriodDecember).IsManuallyClosed = true
	svc, _ := newTestService(t, cfg)

	// december is neither the next instance nor open, yet the elevated role
	// may write it.
	rec, err := svc.WriteInstance(context.Background(), writeReq("december", f(9), superAdmin))
	if err != nil {
		t.Fatalf("bypass write: %v", err)
	}
	if *rec.Grades.December.Value != 9 {
		t.Errorf("december = %v, want 9", *rec.Grades.December.Value)
	}
}

func TestWriteInstance_WindowClosed(t *testing.T) {
	loc := testLocation(t)
	cfg := openConfig(loc)
	// Clock sits at June 15; a window ending March 31 is in the past.
	cfg.Period(shared.PeriodFirstTerm).Evaluation(shared.EvaluationPartial).GradingWindow = window(loc, 3, 1, 3, 31)
	svc, _ := newTestService(t, cfg)

	_, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", f(8), teacher))
	if !shared.IsPolicy(err) {
		t.Fatalf("closed window: got %v, want policy error", err)
	}
}

func TestWriteInstance_ManualClosureWinsOverWindow(t *testing.T) {
	loc := testLocation(t)
	cfg := openConfig(loc)
	cfg.Period(shared.PeriodFirstTerm).IsManuallyClosed = true
	svc, _ := newTestService(t, cfg)

	_, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", f(8), teacher))
	if !shared.IsPolicy(err) {
		t.Fatalf("manually closed period: got %v, want policy error", err)
	}
}

func TestWriteInstance_UntypedPeriodClosure(t *testing.T) {
	loc := testLocation(t)
	cfg := openConfig(loc)
	cfg.Period(shared.PeriodRecuperatoryFirstTerm).IsManuallyClosed = true
	svc, store := newTestService(t, cfg)
	preload(t, store, map[InstanceKey]float64{
		FirstTermPartial: 5, FirstTermFinal: 5,
		SecondTermPartial: 5, SecondTermFinal: 5,
	})

	_, err := svc.WriteInstance(context.Background(), writeReq("recuperatoryFirstTerm", f(6), teacher))
	if !shared.IsPolicy(err) {
		t.Fatalf("closed untyped period: got %v, want policy error", err)
	}

	// Reopening restores writability: untyped periods have no date window.
	cfg.Period(shared.PeriodRecuperatoryFirstTerm).IsManuallyClosed = false
	if _, err := svc.WriteInstance(context.Background(), writeReq("recuperatoryFirstTerm", f(6), teacher)); err != nil {
		t.Fatalf("reopened untyped period: %v", err)
	}
}

func TestWriteInstance_ClearSlotKeepsRecord(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))
	preload(t, store, map[InstanceKey]float64{FirstTermPartial: 7})

	rec, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", nil, teacher))
	if err != nil {
		t.Fatalf("clear: %v", err)
	}

	slot := rec.Grades.FirstTerm.Partial
	if slot.Value != nil || slot.LoadedBy != nil || slot.LoadedAt != nil {
		t.Errorf("cleared slot = %+v, want all nil", slot)
	}
	if len(store.records) != 1 {
		t.Error("clearing a slot must not delete the record")
	}
}

func TestWriteInstance_ValueRange(t *testing.T) {
	loc := testLocation(t)
	svc, _ := newTestService(t, openConfig(loc))

	for _, v := range []float64{0, 0.5, 10.5, -1, 11} {
		_, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", f(v), teacher))
		if !shared.IsValidation(err) {
			t.Errorf("value %v: got %v, want validation error", v, err)
		}
	}

	// Both range ends are inclusive. The second write is a correction of the
	// same slot, which the progression gate permits.
	for _, v := range []float64{1, 10} {
		rec, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", f(v), teacher))
		if err != nil {
			t.Fatalf("boundary value %v: %v", v, err)
		}
		if *rec.Grades.FirstTerm.Partial.Value != v {
			t.Errorf("stored value = %v, want %v", *rec.Grades.FirstTerm.Partial.Value, v)
		}
	}
}

func TestWriteInstance_MissingCalendar(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.WriteInstance(context.Background(), writeReq("firstTerm.partial", f(8), teacher))
	if !shared.IsNotFound(err) {
		t.Fatalf("missing calendar: got %v, want not-found error", err)
	}
}

// ============================================================================
// WriteBatch
// ============================================================================

func batchItem(studentID string, grades map[string]float64) BatchItem {
	return BatchItem{
		StudentID:    studentID,
		CourseID:     "course-1",
		SubjectID:    "subject-1",
		AcademicYear: testYear,
		Grades:       grades,
	}
}

func TestWriteBatch_Applies(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))

	result, err := svc.WriteBatch(context.Background(), []BatchItem{
		batchItem("student-1", map[string]float64{"firstTerm.partial": 8}),
		batchItem("student-2", map[string]float64{"firstTerm.partial": 6}),
	}, teacher)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	if result.Records != 2 || result.Instances != 2 {
		t.Errorf("result = %+v, want 2 records / 2 instances", result)
	}
	if store.bulkCalls != 1 {
		t.Errorf("bulkCalls = %d, want 1", store.bulkCalls)
	}
	if len(store.records) != 2 {
		t.Errorf("stored records = %d, want 2", len(store.records))
	}
}

func TestWriteBatch_AllOrNothing(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))

	// Second item skips ahead in the canonical order; the whole batch must be
	// rejected with zero writes.
	_, err := svc.WriteBatch(context.Background(), []BatchItem{
		batchItem("student-1", map[string]float64{"firstTerm.partial": 8}),
		batchItem("student-2", map[string]float64{"secondTerm.final": 6}),
	}, teacher)
	if !shared.IsPolicy(err) {
		t.Fatalf("invalid batch: got %v, want policy error", err)
	}

	if store.bulkCalls != 0 {
		t.Error("rejected batch must not reach the store")
	}
	if len(store.records) != 0 {
		t.Error("rejected batch must not persist records")
	}
}

func TestWriteBatch_RangeViolationAbortsBatch(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))

	// An out-of-range value anywhere rejects the whole batch, including the
	// valid items before it.
	_, err := svc.WriteBatch(context.Background(), []BatchItem{
		batchItem("student-1", map[string]float64{"firstTerm.partial": 8}),
		batchItem("student-2", map[string]float64{"firstTerm.partial": 11}),
	}, teacher)
	if !shared.IsValidation(err) {
		t.Fatalf("out-of-range batch: got %v, want validation error", err)
	}

	if store.bulkCalls != 0 {
		t.Error("rejected batch must not reach the store")
	}
	if len(store.records) != 0 {
		t.Error("rejected batch must not persist records")
	}
}

func TestWriteBatch_MixedYearsRejected(t *testing.T) {
	loc := testLocation(t)
	svc, _ := newTestService(t, openConfig(loc))

	other := batchItem("student-2", map[string]float64{"firstTerm.partial": 6})
	other.AcademicYear = testYear + 1

	_, err := svc.WriteBatch(context.Background(), []BatchItem{
		batchItem("student-1", map[string]float64{"firstTerm.partial": 8}),
		other,
	}, teacher)
	if !shared.IsValidation(err) {
		t.Fatalf("mixed years: got %v, want validation error", err)
	}
}

func TestWriteBatch_Empty(t *testing.T) {
	loc := testLocation(t)
	svc, _ := newTestService(t, openConfig(loc))

	if _, err := svc.WriteBatch(context.Background(), nil, teacher); !shared.IsValidation(err) {
		t.Fatalf("empty batch: got %v, want validation error", err)
	}
}

func TestWriteBatch_SuperAdminBypassesGating(t *testing.T) {
	loc := testLocation(t)
	cfg := openConfig(loc)
	cfg.Period(shared.PeriodSecondTerm).IsManuallyClosed = true
	svc, _ := newTestService(t, cfg)

	result, err := svc.WriteBatch(context.Background(), []BatchItem{
		batchItem("student-1", map[string]float64{"secondTerm.final": 9}),
	}, superAdmin)
	if err != nil {
		t.Fatalf("bypass batch: %v", err)
	}
	if result.Instances != 1 {
		t.Errorf("instances = %d, want 1", result.Instances)
	}
}

// ============================================================================
// Read Projections
// ============================================================================

func TestGetByCourse_InstanceProjection(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))
	preload(t, store, map[InstanceKey]float64{FirstTermPartial: 7, FirstTermFinal: 8})

	views, err := svc.GetByCourse(context.Background(), "course-1", testYear, "firstTerm.final")
	if err != nil {
		t.Fatalf("GetByCourse: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}

	view := views[0]
	if view.Grades != nil {
		t.Error("instance projection must not carry the full ledger")
	}
	if view.Grade == nil || view.Grade.Value == nil || *view.Grade.Value != 8 {
		t.Errorf("projected grade = %+v, want value 8", view.Grade)
	}
}

func TestGetByCourse_FullLedger(t *testing.T) {
	loc := testLocation(t)
	svc, store := newTestService(t, openConfig(loc))
	preload(t, store, map[InstanceKey]float64{FirstTermPartial: 7})

	views, err := svc.GetByCourse(context.Background(), "course-1", testYear, "")
	if err != nil {
		t.Fatalf("GetByCourse: %v", err)
	}
	if len(views) != 1 || views[0].Grades == nil {
		t.Fatalf("full projection must carry the ledger, got %+v", views)
	}
	if *views[0].Grades.FirstTerm.Partial.Value != 7 {
		t.Errorf("ledger value = %v, want 7", *views[0].Grades.FirstTerm.Partial.Value)
	}
}
