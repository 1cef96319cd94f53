// Package attendance records daily presence per student and course. Writes
// are idempotent upserts keyed by (student, course, year, trimester, date);
// submitting an empty status removes the record.
package attendance

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

// Service handles attendance upserts and queries.
type Service struct {
	col *mongo.Collection
}

// NewService creates a new attendance Service instance.
func NewService(db *mongo.Database) *Service {
	return &Service{col: db.Collection(shared.ColAttendances)}
}

// RecordInput is one day's attendance for one student. An empty Status
// deletes any existing record for the key.
type RecordInput struct {
	StudentID      string  `json:"userId" validate:"required"`
	CourseID       string  `json:"courseId" validate:"required"`
	AcademicYear   int     `json:"academicYear" validate:"required,gt=0"`
	Trimester      int     `json:"trimester" validate:"required,min=1,max=3"`
	Date           string  `json:"date" validate:"required"`
	Status         string  `json:"attendanceStatus"`
	IsLate         bool    `json:"isLate"`
	LateMinutes    *int    `json:"lateMinutes"`
	IsJustified    bool    `json:"isJustified"`
	CertificateURL *string `json:"certificateUrl"`
	Notes          string  `json:"notes"`
}

// Record upserts one attendance entry. Returns nil when the empty status
// cleared the record.
func (s *Service) Record(ctx context.Context, in RecordInput) (*shared.Attendance, error) {
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, shared.Validationf("invalid date %q: expected YYYY-MM-DD", in.Date)
	}

	key := bson.M{
		"userId":       in.StudentID,
		"courseId":     in.CourseID,
		"academicYear": in.AcademicYear,
		"trimester":    in.Trimester,
		"date":         in.Date,
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if in.Status == "" {
		err := s.col.FindOneAndDelete(queryCtx, key).Err()
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.Storage("attendances.delete", err)
		}
		return nil, nil
	}

	if in.Status != shared.AttendancePresent && in.Status != shared.AttendanceAbsent {
		return nil, shared.Validationf("invalid attendance status: %s", in.Status)
	}

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"attendanceStatus": in.Status,
			"late": shared.AttendanceLate{
				IsLate:  in.IsLate,
				Minutes: in.LateMinutes,
			},
			"justification": shared.AttendanceJustification{
				IsJustified:    in.IsJustified,
				CertificateURL: in.CertificateURL,
			},
			"notes":     in.Notes,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":       uuid.NewString(),
			"createdAt": now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var rec shared.Attendance
	err := s.col.FindOneAndUpdate(queryCtx, key, update, opts).Decode(&rec)
	if err != nil && shared.IsDuplicateKey(err) {
		err = s.col.FindOneAndUpdate(queryCtx, key, update, opts).Decode(&rec)
	}
	if err != nil {
		return nil, shared.Storage("attendances.upsert", err)
	}
	return &rec, nil
}

// GetByCourseAndDate lists a course's attendance for one day.
func (s *Service) GetByCourseAndDate(ctx context.Context, courseID, date string) ([]shared.Attendance, error) {
	if courseID == "" || date == "" {
		return nil, shared.Validationf("courseId and date are required")
	}
	return s.find(ctx, bson.M{"courseId": courseID, "date": date})
}

// GetByStudent lists a student's records for a course and year, optionally
// scoped to one trimester.
func (s *Service) GetByStudent(ctx context.Context, studentID, courseID string, academicYear, trimester int) ([]shared.Attendance, error) {
	if studentID == "" || courseID == "" || academicYear <= 0 {
		return nil, shared.Validationf("userId, courseId and academicYear are required")
	}

	filter := bson.M{
		"userId":       studentID,
		"courseId":     courseID,
		"academicYear": academicYear,
	}
	if trimester > 0 {
		filter["trimester"] = trimester
	}
	return s.find(ctx, filter)
}

func (s *Service) find(ctx context.Context, filter bson.M) ([]shared.Attendance, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.col.Find(queryCtx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "userId", Value: 1}}))
	if err != nil {
		return nil, shared.Storage("attendances.find", err)
	}
	defer cursor.Close(queryCtx)

	var records []shared.Attendance
	if err := cursor.All(queryCtx, &records); err != nil {
		return nil, shared.Storage("attendances.decode", err)
	}
	return records, nil
}
