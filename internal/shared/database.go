// ============================================================================
// internal/shared/database.go
// MongoDB connection, index bootstrap and helper utilities
// ============================================================================

package shared

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
	MaxIdleTime    time.Duration
}

// Collection names used across services.
const (
	ColUsers       = "users"
	ColSessions    = "sessions"
	ColCourses     = "courses"
	ColSubjects    = "subjects"
	ColGrades      = "grades"
	ColConfigs     = "academicyearperiodconfigs"
	ColAttendances = "attendances"
	ColStatuses    = "studentsubjectstatuses"
)

// ConnectMongoDB establishes a connection to MongoDB with pool configuration.
func ConnectMongoDB(config *MongoConfig) (*mongo.Client, *mongo.Database, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("mongo config cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize).
		SetMaxConnIdleTime(config.MaxIdleTime).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(config.ConnectTimeout).
		SetSocketTimeout(30 * time.Second).
		SetHeartbeatInterval(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Printf("Successfully connected to MongoDB (Database: %s)", config.Database)

	db := client.Database(config.Database)
	return client, db, nil
}

// DisconnectMongoDB gracefully closes the MongoDB connection.
func DisconnectMongoDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	log.Println("Successfully disconnected from MongoDB")
	return nil
}

// EnsureIndexes creates the unique indexes the services rely on for race
// safety. The compound grade index is the real serialization point for
// concurrent first-writes to the same record.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		ColGrades: {{
			Keys: bson.D{
				{Key: "student", Value: 1},
				{Key: "subject", Value: 1},
				{Key: "course", Value: 1},
				{Key: "academicYear", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		ColConfigs: {{
			Keys:    bson.D{{Key: "academicYear", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		ColUsers: {
			{
				Keys:    bson.D{{Key: "dni", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		ColCourses: {{
			Keys: bson.D{
				{Key: "code", Value: 1},
				{Key: "academicYear", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		ColSubjects: {{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		ColAttendances: {{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "courseId", Value: 1},
				{Key: "academicYear", Value: 1},
				{Key: "trimester", Value: 1},
				{Key: "date", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		ColStatuses: {
			{
				Keys: bson.D{
					{Key: "student", Value: 1},
					{Key: "subject", Value: 1},
					{Key: "academicYear", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				// Backs the already-passed guard and the pending lookups.
				Keys: bson.D{
					{Key: "student", Value: 1},
					{Key: "status", Value: 1},
				},
			},
		},
	}

	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", col, err)
		}
	}

	log.Println("MongoDB indexes ensured")
	return nil
}

// IsDuplicateKey reports whether err is a unique-index violation (E11000).
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
