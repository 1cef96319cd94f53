package calendar

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"schooladmin/internal/shared"
)

// ConfigStore is the persistence boundary for academic-year calendars.
// Find methods return (nil, nil) when no document matches; any I/O failure
// surfaces as a StorageError.
type ConfigStore interface {
	FindByYear(ctx context.Context, academicYear int) (*shared.AcademicYearConfig, error)
	FindByID(ctx context.Context, id string) (*shared.AcademicYearConfig, error)
	Insert(ctx context.Context, cfg *shared.AcademicYearConfig) error
	Replace(ctx context.Context, cfg *shared.AcademicYearConfig) error
}

type mongoConfigStore struct {
	col *mongo.Collection
}

// NewMongoConfigStore returns a ConfigStore backed by the configs collection.
func NewMongoConfigStore(db *mongo.Database) ConfigStore {
	return &mongoConfigStore{col: db.Collection(shared.ColConfigs)}
}

func (s *mongoConfigStore) FindByYear(ctx context.Context, academicYear int) (*shared.AcademicYearConfig, error) {
	return s.findOne(ctx, bson.M{"academicYear": academicYear})
}

func (s *mongoConfigStore) FindByID(ctx context.Context, id string) (*shared.AcademicYearConfig, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *mongoConfigStore) findOne(ctx context.Context, filter bson.M) (*shared.AcademicYearConfig, error) {
	var cfg shared.AcademicYearConfig
	err := s.col.FindOne(ctx, filter).Decode(&cfg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, shared.Storage("configs.findOne", err)
	}
	return &cfg, nil
}

func (s *mongoConfigStore) Insert(ctx context.Context, cfg *shared.AcademicYearConfig) error {
	if _, err := s.col.InsertOne(ctx, cfg); err != nil {
		if shared.IsDuplicateKey(err) {
			return shared.Conflictf("academic year %d is already configured", cfg.AcademicYear)
		}
		return shared.Storage("configs.insert", err)
	}
	return nil
}

func (s *mongoConfigStore) Replace(ctx context.Context, cfg *shared.AcademicYearConfig) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": cfg.ID}, cfg)
	if err != nil {
		return shared.Storage("configs.replace", err)
	}
	if res.MatchedCount == 0 {
		return shared.NotFound("academic year config", cfg.ID)
	}
	return nil
}
