// Package auth issues and validates JWTs and keeps server-side session
// records so logins can be revoked.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"schooladmin/internal/shared"
)

const tokenIssuer = "school-admin-backend"

// Service handles login, logout, token validation and password changes.
type Service struct {
	config      *shared.Config
	usersCol    *mongo.Collection
	sessionsCol *mongo.Collection
}

// CustomClaims for JWT
type CustomClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewService creates a new auth Service instance.
func NewService(db *mongo.Database, config *shared.Config) *Service {
	return &Service{
		config:      config,
		usersCol:    db.Collection(shared.ColUsers),
		sessionsCol: db.Collection(shared.ColSessions),
	}
}

// Login authenticates by email or DNI and returns a signed JWT.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, *shared.User, error) {
	if identifier == "" || password == "" {
		return "", nil, shared.Validationf("identifier and password are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user shared.User
	filter := bson.M{
		"$or": []bson.M{
			{"email": identifier},
			{"dni": identifier},
			{"fileNumber": identifier},
		},
	}

	err := s.usersCol.FindOne(queryCtx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil, shared.Policyf("invalid credentials")
		}
		return "", nil, shared.Storage("users.findOne", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, shared.Policyf("invalid credentials")
	}

	if !user.IsActive {
		return "", nil, shared.Policyf("account is inactive")
	}

	tokenString, expiresAt, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return "", nil, shared.Storage("token.sign", err)
	}

	// Session record allows server-side logout/revocation.
	session := shared.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if _, err := s.sessionsCol.InsertOne(queryCtx, session); err != nil {
		return "", nil, shared.Storage("sessions.insert", err)
	}

	return tokenString, &user, nil
}

// Logout invalidates the session. Idempotent: a missing session still counts
// as logged out from the client's perspective.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return shared.Validationf("token is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.sessionsCol.DeleteMany(queryCtx, bson.M{"token": token}); err != nil {
		return shared.Storage("sessions.delete", err)
	}
	return nil
}

// ValidateToken verifies the signature, checks the session has not been
// revoked, and returns the current user.
func (s *Service) ValidateToken(ctx context.Context, token string) (*shared.User, error) {
	if token == "" {
		return nil, shared.Policyf("token missing")
	}

	parsed, claims, err := s.parseToken(token)
	if err != nil || !parsed.Valid {
		return nil, shared.Policyf("invalid token signature")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := s.sessionsCol.CountDocuments(queryCtx, bson.M{"token": token})
	if err != nil {
		return nil, shared.Storage("sessions.count", err)
	}
	if count == 0 {
		return nil, shared.Policyf("session expired or revoked")
	}

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": claims.UserID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NotFound("user", claims.UserID)
		}
		return nil, shared.Storage("users.findOne", err)
	}

	if !user.IsActive {
		return nil, shared.Policyf("account is inactive")
	}

	return &user, nil
}

// ChangePassword verifies the old password, stores the new hash and forces
// logout everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if userID == "" || oldPassword == "" || newPassword == "" {
		return shared.Validationf("userId, oldPassword and newPassword are required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user shared.User
	if err := s.usersCol.FindOne(queryCtx, bson.M{"_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return shared.NotFound("user", userID)
		}
		return shared.Storage("users.findOne", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return shared.Policyf("incorrect old password")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.Security.BCryptCost)
	if err != nil {
		return shared.Storage("bcrypt.hash", err)
	}

	_, err = s.usersCol.UpdateOne(queryCtx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{
			"password":  string(newHash),
			"updatedAt": time.Now(),
		},
	})
	if err != nil {
		return shared.Storage("users.update", err)
	}

	// Invalidate existing sessions (force logout).
	_, _ = s.sessionsCol.DeleteMany(queryCtx, bson.M{"userId": userID})

	return nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

func (s *Service) generateToken(userID, role string) (string, time.Time, error) {
	expirationTime := time.Now().Add(time.Duration(s.config.Security.JWTExpirationHours) * time.Hour)

	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))

	return tokenString, expirationTime, err
}

func (s *Service) parseToken(tokenString string) (*jwt.Token, *CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Security.JWTSecret), nil
	})

	return token, claims, err
}
