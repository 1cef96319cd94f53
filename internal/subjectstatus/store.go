package subjectstatus

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"schooladmin/internal/shared"
)

// YearStatusView is one outcome row of the year report, with the student and
// subject joined in.
type YearStatusView struct {
	ID           string `bson:"_id" json:"id"`
	AcademicYear int    `bson:"academicYear" json:"academicYear"`
	Status       string `bson:"status" json:"status"`
	Student      struct {
		ID        string `bson:"_id" json:"id"`
		FirstName string `bson:"firstName" json:"firstName"`
		LastName  string `bson:"lastName" json:"lastName"`
		DNI       string `bson:"dni" json:"dni"`
	} `bson:"student" json:"student"`
	Subject struct {
		ID   string `bson:"_id" json:"id"`
		Name string `bson:"name" json:"name"`
	} `bson:"subject" json:"subject"`
}

// PendingSubject is a subject a student still owes: at least one failed
// outcome and no passing one in any year.
type PendingSubject struct {
	SubjectID    string `bson:"subjectId" json:"subjectId"`
	SubjectName  string `bson:"subjectName" json:"subjectName"`
	AcademicYear int    `bson:"academicYear" json:"academicYear"`
}

// Store is the persistence boundary for subject outcomes. FindOne returns
// (nil, nil) when no record matches.
type Store interface {
	FindOne(ctx context.Context, studentID, subjectID string, academicYear int) (*shared.SubjectStatus, error)
	HasPassed(ctx context.Context, studentID, subjectID string) (bool, error)
	Insert(ctx context.Context, st *shared.SubjectStatus) error
	FindByYear(ctx context.Context, academicYear int) ([]YearStatusView, error)
	PendingByStudent(ctx context.Context, studentID string) ([]PendingSubject, error)
}

type mongoStatusStore struct {
	col *mongo.Collection
}

// NewMongoStore returns a Store backed by the subject status collection.
func NewMongoStore(db *mongo.Database) Store {
	return &mongoStatusStore{col: db.Collection(shared.ColStatuses)}
}

func (s *mongoStatusStore) FindOne(ctx context.Context, studentID, subjectID string, academicYear int) (*shared.SubjectStatus, error) {
	var st shared.SubjectStatus
	err := s.col.FindOne(ctx, bson.M{
		"student":      studentID,
		"subject":      subjectID,
		"academicYear": academicYear,
	}).Decode(&st)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, shared.Storage("statuses.findOne", err)
	}
	return &st, nil
}

func (s *mongoStatusStore) HasPassed(ctx context.Context, studentID, subjectID string) (bool, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{
		"student": studentID,
		"subject": subjectID,
		"status":  shared.SubjectPassed,
	})
	if err != nil {
		return false, shared.Storage("statuses.count", err)
	}
	return count > 0, nil
}

func (s *mongoStatusStore) Insert(ctx context.Context, st *shared.SubjectStatus) error {
	if _, err := s.col.InsertOne(ctx, st); err != nil {
		if shared.IsDuplicateKey(err) {
			return shared.Conflictf("an outcome for this subject and year already exists")
		}
		return shared.Storage("statuses.insert", err)
	}
	return nil
}

// FindByYear joins student and subject into each outcome of the year.
func (s *mongoStatusStore) FindByYear(ctx context.Context, academicYear int) ([]YearStatusView, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"academicYear": academicYear}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         shared.ColUsers,
			"localField":   "student",
			"foreignField": "_id",
			"as":           "student",
		}}},
		{{Key: "$unwind", Value: "$student"}},
		{{Key: "$lookup", Value: bson.M{
			"from":         shared.ColSubjects,
			"localField":   "subject",
			"foreignField": "_id",
			"as":           "subject",
		}}},
		{{Key: "$unwind", Value: "$subject"}},
		{{Key: "$project", Value: bson.M{
			"_id":               1,
			"academicYear":      1,
			"status":            1,
			"student._id":       1,
			"student.firstName": 1,
			"student.lastName":  1,
			"student.dni":       1,
			"subject._id":       1,
			"subject.name":      1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "student.lastName", Value: 1}, {Key: "subject.name", Value: 1}}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, shared.Storage("statuses.aggregate", err)
	}
	defer cursor.Close(ctx)

	var views []YearStatusView
	if err := cursor.All(ctx, &views); err != nil {
		return nil, shared.Storage("statuses.decode", err)
	}
	return views, nil
}

// PendingByStudent groups the student's outcomes per subject and keeps the
// subjects with a failed record and no passing one.
func (s *mongoStatusStore) PendingByStudent(ctx context.Context, studentID string) ([]PendingSubject, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"student": studentID}}},
		{{Key: "$group", Value: bson.M{
			"_id":      "$subject",
			"statuses": bson.M{"$push": "$status"},
		}}},
		{{Key: "$match", Value: bson.M{
			"statuses": bson.M{"$in": bson.A{shared.SubjectFailed}},
			"$expr": bson.M{
				"$not": bson.A{bson.M{"$in": bson.A{shared.SubjectPassed, "$statuses"}}},
			},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         shared.ColSubjects,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "subject",
		}}},
		{{Key: "$unwind", Value: "$subject"}},
		{{Key: "$project", Value: bson.M{
			"_id":          0,
			"subjectId":    "$subject._id",
			"subjectName":  "$subject.name",
			"academicYear": "$subject.academicYear",
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "subjectName", Value: 1}}}},
	}

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, shared.Storage("statuses.aggregate", err)
	}
	defer cursor.Close(ctx)

	var pending []PendingSubject
	if err := cursor.All(ctx, &pending); err != nil {
		return nil, shared.Storage("statuses.decode", err)
	}
	return pending, nil
}
