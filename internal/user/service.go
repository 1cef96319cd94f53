// Package user manages accounts for every role: students, teachers,
// preceptors and admins.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"schooladmin/internal/shared"
)

// Service handles user CRUD.
type Service struct {
	config   *shared.Config
	usersCol *mongo.Collection
}

// NewService creates a new user Service instance.
func NewService(db *mongo.Database, config *shared.Config) *Service {
	return &Service{
		config:   config,
		usersCol: db.Collection(shared.ColUsers),
	}
}

// CreateInput is the shape for registering a user.
type CreateInput struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	DNI        string `json:"dni" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Role       string `json:"role" validate:"required"`
	FileNumber string `json:"fileNumber"`
	BirthDate  string `json:"birthDate"`
	Area       string `json:"area"`
}

// UpdateInput carries optional field updates; nil pointers leave the field
// untouched.
type UpdateInput struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Email      *string `json:"email" validate:"omitempty,email"`
	FileNumber *string `json:"fileNumber"`
	Area       *string `json:"area"`
}

// Filter narrows List results.
type Filter struct {
	Role       string
	ActiveOnly bool
}

// Create registers a user. DNI is unique; email is unique when present;
// teachers must declare a subject area.
func (s *Service) Create(ctx context.Context, in CreateInput) (*shared.User, error) {
	if !shared.IsValidRole(in.Role) {
		return nil, shared.Validationf("invalid role: %s", in.Role)
	}
	if in.Role == shared.RoleTeacher && in.Area == "" {
		return nil, shared.Validationf("teachers must have an area assigned")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.Security.BCryptCost)
	if err != nil {
		return nil, shared.Storage("bcrypt.hash", err)
	}

	now := time.Now()
	user := shared.User{
		ID:           uuid.NewString(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DNI:          in.DNI,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		IsActive:     true,
		FileNumber:   in.FileNumber,
		Area:         in.Area,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if in.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", in.BirthDate)
		if err != nil {
			return nil, shared.Validationf("invalid birthDate %q: expected YYYY-MM-DD", in.BirthDate)
		}
		user.BirthDate = &birth
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.usersCol.InsertOne(queryCtx, user); err != nil {
		if shared.IsDuplicateKey(err) {
			return nil, shared.Conflictf("a user with that DNI or email already exists")
		}
		return nil, shared.Storage("users.insert", err)
	}

	return &user, nil
}

// GetByID fetches a single user.
func (s *Service) GetByID(ctx context.Context, id string) (*shared.User, error) {
	if id == "" {
		return nil, shared.Validationf("user id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NotFound("user", id)
		}
		return nil, shared.Storage("users.findOne", err)
	}
	return &user, nil
}

// List returns users sorted by last name, optionally filtered by role and
// activity.
func (s *Service) List(ctx context.Context, f Filter) ([]shared.User, error) {
	filter := bson.M{}
	if f.Role != "" {
		if !shared.IsValidRole(f.Role) {
			return nil, shared.Validationf("invalid role: %s", f.Role)
		}
		filter["role"] = f.Role
	}
	if f.ActiveOnly {
		filter["active"] = true
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}})
	cursor, err := s.usersCol.Find(queryCtx, filter, opts)
	if err != nil {
		return nil, shared.Storage("users.find", err)
	}
	defer cursor.Close(queryCtx)

	var users []shared.User
	if err := cursor.All(queryCtx, &users); err != nil {
		return nil, shared.Storage("users.decode", err)
	}
	return users, nil
}

// Update patches profile fields.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*shared.User, error) {
	if id == "" {
		return nil, shared.Validationf("user id is required")
	}

	set := bson.M{"updatedAt": time.Now()}
	if in.FirstName != nil {
		set["firstName"] = *in.FirstName
	}
	if in.LastName != nil {
		set["lastName"] = *in.LastName
	}
	if in.Email != nil {
		set["email"] = *in.Email
	}
	if in.FileNumber != nil {
		set["fileNumber"] = *in.FileNumber
	}
	if in.Area != nil {
		set["area"] = *in.Area
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.usersCol.FindOneAndUpdate(queryCtx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NotFound("user", id)
		}
		if shared.IsDuplicateKey(err) {
			return nil, shared.Conflictf("a user with that email already exists")
		}
		return nil, shared.Storage("users.update", err)
	}
	return &user, nil
}

// SetActive toggles the account without deleting history.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if id == "" {
		return shared.Validationf("user id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.usersCol.UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"active": active, "updatedAt": time.Now()},
	})
	if err != nil {
		return shared.Storage("users.update", err)
	}
	if res.MatchedCount == 0 {
		return shared.NotFound("user", id)
	}
	return nil
}

// ResetPassword sets a new password hash without checking the old one.
// Admin-only route; the role guard lives in the gateway.
func (s *Service) ResetPassword(ctx context.Context, id, newPassword string) error {
	if id == "" || newPassword == "" {
		return shared.Validationf("user id and newPassword are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.Security.BCryptCost)
	if err != nil {
		return shared.Storage("bcrypt.hash", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.usersCol.UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password": string(hash), "updatedAt": time.Now()},
	})
	if err != nil {
		return shared.Storage("users.update", err)
	}
	if res.MatchedCount == 0 {
		return shared.NotFound("user", id)
	}
	return nil
}
