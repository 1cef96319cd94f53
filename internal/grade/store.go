package grade

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

// RecordKey is the identity of a grade record. The persistence layer holds a
// unique compound index over these four fields; that index, not the service,
// is the serialization point for concurrent first-writes.
type RecordKey struct {
	StudentID    string
	SubjectID    string
	CourseID     string
	AcademicYear int
}

// SlotWrite mutates one instance slot. All three fields nil clears the slot;
// the parent record is never deleted as a side effect.
type SlotWrite struct {
	Key      InstanceKey
	Value    *float64
	LoadedBy *string
	LoadedAt *time.Time
}

// RecordUpdate is a field-scoped upsert against one record. Slots touch only
// their own paths, so concurrent writers on different instance keys of the
// same record cannot clobber each other.
type RecordUpdate struct {
	Key         RecordKey
	IsRepeating bool
	Slots       []SlotWrite
	UpdatedAt   time.Time
}

// Filter selects records for the read projections. Zero fields are ignored.
type Filter struct {
	StudentID    string
	SubjectID    string
	CourseID     string
	AcademicYear int
}

// Store is the persistence boundary for grade records. FindOne returns
// (nil, nil) when the record does not exist yet.
type Store interface {
	FindOne(ctx context.Context, key RecordKey) (*shared.GradeRecord, error)
	Find(ctx context.Context, f Filter) ([]shared.GradeRecord, error)
	Apply(ctx context.Context, up RecordUpdate) (*shared.GradeRecord, error)
	BulkApply(ctx context.Context, ups []RecordUpdate) error
}

type mongoGradeStore struct {
	col *mongo.Collection
}

// NewMongoStore returns a Store backed by the grades collection.
func NewMongoStore(db *mongo.Database) Store {
	return &mongoGradeStore{col: db.Collection(shared.ColGrades)}
}

func (s *mongoGradeStore) FindOne(ctx context.Context, key RecordKey) (*shared.GradeRecord, error) {
	var rec shared.GradeRecord
	err := s.col.FindOne(ctx, keyFilter(key)).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, shared.Storage("grades.findOne", err)
	}
	return &rec, nil
}

func (s *mongoGradeStore) Find(ctx context.Context, f Filter) ([]shared.GradeRecord, error) {
	filter := bson.M{}
	if f.StudentID != "" {
		filter["student"] = f.StudentID
	}
	if f.SubjectID != "" {
		filter["subject"] = f.SubjectID
	}
	if f.CourseID != "" {
		filter["course"] = f.CourseID
	}
	if f.AcademicYear > 0 {
		filter["academicYear"] = f.AcademicYear
	}

	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "student", Value: 1}, {Key: "subject", Value: 1}}))
	if err != nil {
		return nil, shared.Storage("grades.find", err)
	}
	defer cursor.Close(ctx)

	var records []shared.GradeRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, shared.Storage("grades.decode", err)
	}
	return records, nil
}

// Apply performs the upsert. A duplicate-key error here means another writer
// inserted the record between our filter evaluation and the insert arm of the
// upsert; the retry matches the now-existing document as a plain update.
func (s *mongoGradeStore) Apply(ctx context.Context, up RecordUpdate) (*shared.GradeRecord, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var rec shared.GradeRecord
	err := s.col.FindOneAndUpdate(ctx, keyFilter(up.Key), buildUpdate(up), opts).Decode(&rec)
	if err != nil && shared.IsDuplicateKey(err) {
		err = s.col.FindOneAndUpdate(ctx, keyFilter(up.Key), buildUpdate(up), opts).Decode(&rec)
	}
	if err != nil {
		return nil, shared.Storage("grades.upsert", err)
	}
	return &rec, nil
}

// BulkApply submits every update in one bulk operation. Cross-document
// atomicity is not guaranteed by the driver; a crash mid-bulk can leave a
// partial set applied. Acceptance, however, is all-or-nothing: the service
// validates every item before calling this.
func (s *mongoGradeStore) BulkApply(ctx context.Context, ups []RecordUpdate) error {
	if len(ups) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(ups))
	for _, up := range ups {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(keyFilter(up.Key)).
			SetUpdate(buildUpdate(up)).
			SetUpsert(true))
	}

	if _, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return shared.Storage("grades.bulkWrite", err)
	}
	return nil
}

func keyFilter(key RecordKey) bson.M {
	return bson.M{
		"student":      key.StudentID,
		"subject":      key.SubjectID,
		"course":       key.CourseID,
		"academicYear": key.AcademicYear,
	}
}

func buildUpdate(up RecordUpdate) bson.M {
	set := bson.M{
		"isRepeating": up.IsRepeating,
		"updatedAt":   up.UpdatedAt,
	}
	for _, slot := range up.Slots {
		prefix := "grades." + string(slot.Key)
		set[prefix+".value"] = slot.Value
		set[prefix+".loadedBy"] = slot.LoadedBy
		set[prefix+".loadedAt"] = slot.LoadedAt
	}

	return bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":       uuid.NewString(),
			"createdAt": up.UpdatedAt,
		},
	}
}
