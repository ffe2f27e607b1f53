package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/opsprep/user-api/internal/auth"
	"github.com/opsprep/user-api/internal/models"
	"github.com/opsprep/user-api/internal/services"
	"github.com/opsprep/user-api/internal/store"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	store    store.UserStoreProvider
	tokens   *auth.TokenService
	audit    services.AuditServiceProvider
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userStore store.UserStoreProvider, tokens *auth.TokenService, audit services.AuditServiceProvider) *UserHandler {
	return &UserHandler{
		store:    userStore,
		tokens:   tokens,
		audit:    audit,
		validate: validator.New(),
	}
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserPayload defines the structure for user creation requests.
type CreateUserPayload struct {
	Name  string      `json:"name" validate:"required"`
	Email string      `json:"email" validate:"required"`
	Role  models.Role `json:"role" validate:"omitempty,oneof=admin user"`
}

// UpdateUserPayload defines the structure for user update requests. Empty
// fields are treated as omitted and keep their stored value.
type UpdateUserPayload struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// PageRef points at an adjacent page of the user listing.
type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// UserListResponse is the paginated listing envelope.
type UserListResponse struct {
	Users    []models.User `json:"users"`
	Total    int           `json:"total"`
	Next     *PageRef      `json:"next,omitempty"`
	Previous *PageRef      `json:"previous,omitempty"`
}

// Login authenticates by email lookup and issues a bearer token.
//
// The password field is accepted but never checked against anything; this is
// the demo contract inherited from the original and is unfit for production.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, ok := h.store.FindByEmail(payload.Email)
	if !ok {
		log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
		h.audit.Record("auth.login.failure", "warn", fmt.Sprintf("Login failed for %s", payload.Email), nil)
		respondError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Error().Err(err).Int("user_id", user.ID).Msg("Failed to generate token")
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.audit.Record("auth.login.success", "info", fmt.Sprintf("User %s logged in", user.Email), &user.ID)
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// List returns a page of the user collection.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	start := (page - 1) * limit
	end := page * limit
	users, total := h.store.List(start, limit)

	resp := UserListResponse{Users: users, Total: total}
	if end < total {
		resp.Next = &PageRef{Page: page + 1, Limit: limit}
	}
	if start > 0 {
		resp.Previous = &PageRef{Page: page - 1, Limit: limit}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	user, ok := h.store.FindByID(id)
	if !ok {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Create handles user creation. Admin only.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}
	if claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "Forbidden: Admin access required")
		return
	}

	var payload CreateUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Role" {
			respondError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		respondError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	role := payload.Role
	if role == "" {
		role = models.RoleUser
	}

	created := h.store.Add(models.User{Name: payload.Name, Email: payload.Email, Role: role})

	h.audit.Record("user.create", "info",
		fmt.Sprintf("User %s (id %d) created", created.Email, created.ID), &claims.UserID)
	respondJSON(w, http.StatusCreated, created)
}

// Update handles partial updates of a user record. Admins may update anyone;
// other callers only themselves, and never their role.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	isAdmin := claims.Role == models.RoleAdmin
	if !isAdmin && claims.UserID != id {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var payload UpdateUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if payload.Role != "" {
		if !isAdmin {
			respondError(w, http.StatusForbidden, "Forbidden")
			return
		}
		if !payload.Role.Valid() {
			respondError(w, http.StatusBadRequest, "Invalid role")
			return
		}
	}

	updated, ok := h.store.UpdateByID(id, func(u models.User) models.User {
		if payload.Name != "" {
			u.Name = payload.Name
		}
		if payload.Email != "" {
			u.Email = payload.Email
		}
		if payload.Role != "" {
			u.Role = payload.Role
		}
		return u
	})
	if !ok {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	h.audit.Record("user.update", "info",
		fmt.Sprintf("User id %d updated", updated.ID), &claims.UserID)
	respondJSON(w, http.StatusOK, updated)
}

// Delete handles the removal of a user record. Admin only.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "Could not retrieve user from token")
		return
	}
	if claims.Role != models.RoleAdmin {
		respondError(w, http.StatusForbidden, "Forbidden: Admin access required")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	removed, ok := h.store.RemoveByID(id)
	if !ok {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	h.audit.Record("user.delete", "info",
		fmt.Sprintf("User %s (id %d) deleted", removed.Email, removed.ID), &claims.UserID)
	respondJSON(w, http.StatusOK, removed)
}

// queryInt reads an integer query parameter, falling back on absent or
// unparsable values.
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
