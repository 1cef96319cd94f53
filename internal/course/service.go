// Package course manages courses, their subject curriculum and student
// enrollment, plus the teaching-context checks the grade routes rely on.
package course

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"schooladmin/internal/shared"
)

// Service handles course and subject CRUD and enrollment.
type Service struct {
	coursesCol  *mongo.Collection
	subjectsCol *mongo.Collection
	usersCol    *mongo.Collection
}

// NewService creates a new course Service instance.
func NewService(db *mongo.Database) *Service {
	return &Service{
		coursesCol:  db.Collection(shared.ColCourses),
		subjectsCol: db.Collection(shared.ColSubjects),
		usersCol:    db.Collection(shared.ColUsers),
	}
}

// CreateCourseInput is the shape for opening a course for a year.
type CreateCourseInput struct {
	Name         string `json:"name" validate:"required"`
	Code         string `json:"code" validate:"required"`
	Modality     string `json:"modality"`
	AcademicYear int    `json:"academicYear" validate:"required,gt=0"`
}

// CreateSubjectInput is the shape for adding a curriculum subject.
type CreateSubjectInput struct {
	Name         string `json:"name" validate:"required"`
	Code         string `json:"code" validate:"required"`
	AcademicYear int    `json:"academicYear" validate:"required,gt=0"`
	Order        int    `json:"order"`
	Type         string `json:"type" validate:"required,oneof=mandatory optional"`
}

// CreateCourse opens a course. Code is unique within the academic year.
func (s *Service) CreateCourse(ctx context.Context, in CreateCourseInput) (*shared.Course, error) {
	now := time.Now()
	course := shared.Course{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Code:         in.Code,
		Modality:     in.Modality,
		AcademicYear: in.AcademicYear,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.coursesCol.InsertOne(queryCtx, course); err != nil {
		if shared.IsDuplicateKey(err) {
			return nil, shared.Conflictf("course %s already exists for year %d", in.Code, in.AcademicYear)
		}
		return nil, shared.Storage("courses.insert", err)
	}
	return &course, nil
}

// GetCourse fetches one course by id.
func (s *Service) GetCourse(ctx context.Context, id string) (*shared.Course, error) {
	if id == "" {
		return nil, shared.Validationf("course id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var course shared.Course
	if err := s.coursesCol.FindOne(queryCtx, bson.M{"_id": id}).Decode(&course); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NotFound("course", id)
		}
		return nil, shared.Storage("courses.findOne", err)
	}
	return &course, nil
}

// ListCourses returns courses for a year (all years when zero), sorted by code.
func (s *Service) ListCourses(ctx context.Context, academicYear int) ([]shared.Course, error) {
	filter := bson.M{}
	if academicYear > 0 {
		filter["academicYear"] = academicYear
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.coursesCol.Find(queryCtx, filter, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, shared.Storage("courses.find", err)
	}
	defer cursor.Close(queryCtx)

	var courses []shared.Course
	if err := cursor.All(queryCtx, &courses); err != nil {
		return nil, shared.Storage("courses.decode", err)
	}
	return courses, nil
}

// AddSubject attaches a subject to the course curriculum with its teacher.
func (s *Service) AddSubject(ctx context.Context, courseID, subjectID, teacherID string) (*shared.Course, error) {
	if courseID == "" || subjectID == "" {
		return nil, shared.Validationf("courseId and subjectId are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.ensureSubjectExists(queryCtx, subjectID); err != nil {
		return nil, err
	}
	if teacherID != "" {
		if err := s.ensureRole(queryCtx, teacherID, shared.RoleTeacher); err != nil {
			return nil, err
		}
	}

	course, err := s.GetCourse(queryCtx, courseID)
	if err != nil {
		return nil, err
	}
	for _, cs := range course.Subjects {
		if cs.SubjectID == subjectID {
			return nil, shared.Conflictf("subject is already part of the course")
		}
	}

	return s.updateCourse(queryCtx, courseID, bson.M{
		"$push": bson.M{"subjects": shared.CourseSubject{SubjectID: subjectID, TeacherID: teacherID}},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
}

// AssignSubjectTeacher sets or replaces the teacher of a course subject.
func (s *Service) AssignSubjectTeacher(ctx context.Context, courseID, subjectID, teacherID string) (*shared.Course, error) {
	if courseID == "" || subjectID == "" || teacherID == "" {
		return nil, shared.Validationf("courseId, subjectId and teacherId are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.ensureRole(queryCtx, teacherID, shared.RoleTeacher); err != nil {
		return nil, err
	}

	var course shared.Course
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.coursesCol.FindOneAndUpdate(queryCtx,
		bson.M{"_id": courseID, "subjects.subject": subjectID},
		bson.M{"$set": bson.M{"subjects.$.teacher": teacherID, "updatedAt": time.Now()}},
		opts,
	).Decode(&course)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NotFound("course subject", courseID+"/"+subjectID)
		}
		return nil, shared.Storage("courses.update", err)
	}
	return &course, nil
}

// EnrollStudent adds a student to the course roster, or reactivates a
// withdrawn entry.
func (s *Service) EnrollStudent(ctx context.Context, courseID, studentID string) (*shared.Course, error) {
	if courseID == "" || studentID == "" {
		return nil, shared.Validationf("courseId and studentId are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.ensureRole(queryCtx, studentID, shared.RoleStudent); err != nil {
		return nil, err
	}

	course, err := s.GetCourse(queryCtx, courseID)
	if err != nil {
		return nil, err
	}

	for _, cs := range course.Students {
		if cs.StudentID == studentID {
			if cs.Active {
				return nil, shared.Conflictf("student is already enrolled")
			}
			return s.setEnrollmentActive(queryCtx, courseID, studentID, true)
		}
	}

	return s.updateCourse(queryCtx, courseID, bson.M{
		"$push": bson.M{"students": shared.CourseStudent{StudentID: studentID, Active: true}},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
}

// WithdrawStudent deactivates an enrollment, keeping its grade history.
func (s *Service) WithdrawStudent(ctx context.Context, courseID, studentID string) (*shared.Course, error) {
	if courseID == "" || studentID == "" {
		return nil, shared.Validationf("courseId and studentId are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.setEnrollmentActive(queryCtx, courseID, studentID, false)
}

// AddStaff attaches a non-teaching staff member (preceptor, tutor) to the
// course.
func (s *Service) AddStaff(ctx context.Context, courseID, userID, role string) (*shared.Course, error) {
	if courseID == "" || userID == "" || role == "" {
		return nil, shared.Validationf("courseId, userId and role are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	course, err := s.GetCourse(queryCtx, courseID)
	if err != nil {
		return nil, err
	}
	for _, st := range course.Staff {
		if st.UserID == userID {
			return nil, shared.Conflictf("user is already assigned to the course")
		}
	}

	return s.updateCourse(queryCtx, courseID, bson.M{
		"$push": bson.M{"users": shared.CourseStaff{UserID: userID, Role: role}},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
}

// ============================================================================
// Subjects
// ============================================================================

// CreateSubject registers a curriculum subject. Code is globally unique.
func (s *Service) CreateSubject(ctx context.Context, in CreateSubjectInput) (*shared.Subject, error) {
	now := time.Now()
	subject := shared.Subject{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Code:         in.Code,
		AcademicYear: in.AcademicYear,
		Order:        in.Order,
		Type:         in.Type,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.subjectsCol.InsertOne(queryCtx, subject); err != nil {
		if shared.IsDuplicateKey(err) {
			return nil, shared.Conflictf("subject %s already exists", in.Code)
		}
		return nil, shared.Storage("subjects.insert", err)
	}
	return &subject, nil
}

// ListSubjects returns subjects sorted by report-card order.
func (s *Service) ListSubjects(ctx context.Context, academicYear int) ([]shared.Subject, error) {
	filter := bson.M{}
	if academicYear > 0 {
		filter["academicYear"] = academicYear
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.subjectsCol.Find(queryCtx, filter, options.Find().SetSort(bson.D{{Key: "order", Value: 1}}))
	if err != nil {
		return nil, shared.Storage("subjects.find", err)
	}
	defer cursor.Close(queryCtx)

	var subjects []shared.Subject
	if err := cursor.All(queryCtx, &subjects); err != nil {
		return nil, shared.Storage("subjects.decode", err)
	}
	return subjects, nil
}

// ============================================================================
// Teaching Context
// ============================================================================

// ValidateTeachingContext checks the structural preconditions of a grade
// write: the student is actively enrolled, the subject belongs to the course,
// and — for teacher actors — the caller teaches that subject there. Admins
// and preceptors are trusted for the teacher check.
func (s *Service) ValidateTeachingContext(ctx context.Context, courseID, subjectID, studentID string, actor shared.Actor) error {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}

	var subject *shared.CourseSubject
	for i := range course.Subjects {
		if course.Subjects[i].SubjectID == subjectID {
			subject = &course.Subjects[i]
			break
		}
	}
	if subject == nil {
		return shared.Validationf("subject does not belong to the course")
	}

	enrolled := false
	for _, cs := range course.Students {
		if cs.StudentID == studentID && cs.Active {
			enrolled = true
			break
		}
	}
	if !enrolled {
		return shared.Validationf("student is not actively enrolled in the course")
	}

	if actor.Role == shared.RoleTeacher && subject.TeacherID != actor.ID {
		return shared.Policyf("you are not the teacher of this subject in this course")
	}

	return nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

func (s *Service) updateCourse(ctx context.Context, courseID string, update bson.M) (*shared.Course, error) {
	var course shared.Course
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.coursesCol.FindOneAndUpdate(ctx, bson.M{"_id": courseID}, update, opts).Decode(&course)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NotFound("course", courseID)
		}
		return nil, shared.Storage("courses.update", err)
	}
	return &course, nil
}

func (s *Service) setEnrollmentActive(ctx context.Context, courseID, studentID string, active bool) (*shared.Course, error) {
	var course shared.Course
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.coursesCol.FindOneAndUpdate(ctx,
		bson.M{"_id": courseID, "students.student": studentID},
		bson.M{"$set": bson.M{"students.$.active": active, "updatedAt": time.Now()}},
		opts,
	).Decode(&course)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NotFound("enrollment", courseID+"/"+studentID)
		}
		return nil, shared.Storage("courses.update", err)
	}
	return &course, nil
}

func (s *Service) ensureSubjectExists(ctx context.Context, subjectID string) error {
	count, err := s.subjectsCol.CountDocuments(ctx, bson.M{"_id": subjectID})
	if err != nil {
		return shared.Storage("subjects.count", err)
	}
	if count == 0 {
		return shared.NotFound("subject", subjectID)
	}
	return nil
}

func (s *Service) ensureRole(ctx context.Context, userID, role string) error {
	var user shared.User
	if err := s.usersCol.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return shared.NotFound("user", userID)
		}
		return shared.Storage("users.findOne", err)
	}
	if user.Role != role {
		return shared.Validationf("user %s is not a %s", userID, role)
	}
	return nil
}
