package util

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"schooladmin/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type contextKey string

const userContextKey contextKey = "user"

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *shared.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user injected by the auth
// middleware, or nil outside the protected route group.
func UserFromContext(r *http.Request) *shared.User {
	user, ok := r.Context().Value(userContextKey).(*shared.User)
	if !ok {
		return nil
	}
	return user
}

// ActorFromContext projects the authenticated user into the actor descriptor
// the services consume.
func ActorFromContext(r *http.Request) shared.Actor {
	user := UserFromContext(r)
	if user == nil {
		return shared.Actor{}
	}
	return shared.Actor{ID: user.ID, Role: user.Role}
}

// JSONResponse structure for successful responses
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// JSONError structure for error responses
type JSONError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteJSON is a helper to write JSON responses
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(JSONResponse{Success: true, Data: payload}); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	log.Printf("HTTP Error %d: %s", status, message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(JSONError{Success: false, Message: message}); err != nil {
		log.Printf("Error writing JSON error response: %v", err)
	}
}

// HandleServiceError translates service-layer errors to HTTP responses.
// Validation problems are the client's fault, policy rejections are valid
// requests the rules refuse, and anything unclassified is a 500 whose
// internals stay in the log rather than the response body.
func HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsValidation(err):
		WriteJSONError(w, http.StatusBadRequest, err.Error())
	case shared.IsNotFound(err):
		WriteJSONError(w, http.StatusNotFound, err.Error())
	case shared.IsConflict(err):
		WriteJSONError(w, http.StatusConflict, err.Error())
	case shared.IsPolicy(err):
		WriteJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("internal error: %v", err)
		WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ExtractToken extracts the token from the Authorization header (Bearer <token>)
func ExtractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	// Expect header: "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}

// DecodeAndValidate decodes the JSON body into dst and runs struct validation.
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return shared.Validationf("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return shared.Validationf("invalid field: %s (%s)", verrs[0].Field(), verrs[0].Tag())
		}
		return shared.Validationf("invalid request body")
	}
	return nil
}
