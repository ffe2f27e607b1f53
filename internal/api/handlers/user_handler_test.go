package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/opsprep/user-api/internal/api"
	"github.com/opsprep/user-api/internal/api/handlers"
	"github.com/opsprep/user-api/internal/auth"
	"github.com/opsprep/user-api/internal/config"
	"github.com/opsprep/user-api/internal/database"
	"github.com/opsprep/user-api/internal/models"
	"github.com/opsprep/user-api/internal/services"
	"github.com/opsprep/user-api/internal/store"
	"github.com/opsprep/user-api/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *chi.Mux
	tokens *auth.TokenService
	store  *store.UserStore
}

// newTestEnv builds the full router with a fresh seeded store and an audit
// trail in a throwaway sqlite file.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	hub := websocket.NewHub()
	go hub.Run()

	userStore := store.NewUserStore()
	tokens := auth.NewTokenService("test-secret")
	audit := services.NewAuditService(db, hub)

	cfg := &config.Config{ServerPort: 3000, JWTSecret: "test-secret", CORSOrigin: "http://localhost:3000"}
	router := api.NewRouter(cfg, tokens, userStore, audit, hub)

	return &testEnv{router: router, tokens: tokens, store: userStore}
}

// do performs a request against the test router, optionally authenticated.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// loginToken logs in through the API and returns the issued token.
func (e *testEnv) loginToken(t *testing.T, email string) string {
	t.Helper()

	w := e.do(t, "POST", "/login", "", map[string]string{"email": email, "password": "anything"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func TestHealthProbes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())

	w = env.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	// Any password is accepted for a known email; only the email is checked.
	token := env.loginToken(t, "john@example.com")

	claims, err := env.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, 1, claims.UserID)
	assert.Equal(t, "john@example.com", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	w := env.do(t, "POST", "/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())
}

func TestListUsersRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, "GET", "/users", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListUsersPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		env.store.Add(models.User{Name: "Extra", Email: "extra@x.com", Role: models.RoleUser})
	}
	token := env.loginToken(t, "jane@example.com")

	var page handlers.UserListResponse

	// Defaults: page 1, limit 10.
	w := env.do(t, "GET", "/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Users, 10)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 1, page.Users[0].ID)
	require.NotNil(t, page.Next)
	assert.Equal(t, 2, page.Next.Page)
	assert.Nil(t, page.Previous)

	// Middle page is the contiguous slice [(P-1)*L, P*L).
	w = env.do(t, "GET", "/users?page=2&limit=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = handlers.UserListResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Users, 5)
	assert.Equal(t, 6, page.Users[0].ID)
	require.NotNil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Equal(t, 1, page.Previous.Page)
	assert.Equal(t, 5, page.Previous.Limit)

	// Last partial page has no next.
	w = env.do(t, "GET", "/users?page=3&limit=5", token, nil)
	page = handlers.UserListResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Users, 2)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)

	// Past the end: empty users array, not null.
	w = env.do(t, "GET", "/users?page=9&limit=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"users":[]`)
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)
	token := env.loginToken(t, "jane@example.com")

	w := env.do(t, "GET", "/users/1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, models.User{ID: 1, Name: "John Doe", Email: "john@example.com", Role: models.RoleAdmin}, user)

	// Idempotent: a repeat with no intervening mutation is identical.
	again := env.do(t, "GET", "/users/1", token, nil)
	assert.Equal(t, w.Body.String(), again.Body.String())

	w = env.do(t, "GET", "/users/999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.loginToken(t, "john@example.com")
	regular := env.loginToken(t, "jane@example.com")

	// Admin create; id is pre-call count + 1, role defaults to user.
	w := env.do(t, "POST", "/users", admin, map[string]string{"name": "Alice", "email": "alice@x.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.User{ID: 3, Name: "Alice", Email: "alice@x.com", Role: models.RoleUser}, created)

	// Round-trip through GET.
	w = env.do(t, "GET", "/users/3", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created, fetched)

	// Non-admin is rejected.
	w = env.do(t, "POST", "/users", regular, map[string]string{"name": "Bob", "email": "bob@x.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden: Admin access required"}`, w.Body.String())

	// Missing required fields.
	w = env.do(t, "POST", "/users", admin, map[string]string{"name": "NoEmail"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Name and email are required"}`, w.Body.String())

	// Unknown role is rejected by schema validation.
	w = env.do(t, "POST", "/users", admin, map[string]string{"name": "Eve", "email": "eve@x.com", "role": "root"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid role"}`, w.Body.String())
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.loginToken(t, "john@example.com")
	regular := env.loginToken(t, "jane@example.com")

	// Self update of non-role fields; omitted fields keep their values.
	w := env.do(t, "PUT", "/users/2", regular, map[string]string{"name": "Jane S."})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Jane S.", updated.Name)
	assert.Equal(t, "jane@example.com", updated.Email)
	assert.Equal(t, models.RoleUser, updated.Role)

	// Role change by a non-admin, even on themselves, is rejected.
	w = env.do(t, "PUT", "/users/2", regular, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, w.Body.String())

	// Non-admin touching someone else is rejected regardless of body.
	w = env.do(t, "PUT", "/users/1", regular, map[string]string{"name": "Hijack"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, w.Body.String())

	// Admin may change anyone, including roles.
	w = env.do(t, "PUT", "/users/2", admin, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.RoleAdmin, updated.Role)

	w = env.do(t, "PUT", "/users/999", admin, map[string]string{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.loginToken(t, "john@example.com")
	regular := env.loginToken(t, "jane@example.com")

	// Non-admin rejected and the store is untouched.
	w := env.do(t, "DELETE", "/users/1", regular, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden: Admin access required"}`, w.Body.String())

	w = env.do(t, "GET", "/users/1", regular, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Admin delete returns the removed record.
	w = env.do(t, "DELETE", "/users/2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var removed models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &removed))
	assert.Equal(t, 2, removed.ID)

	w = env.do(t, "GET", "/users/2", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "DELETE", "/users/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
}

func TestRecentEvents(t *testing.T) {
	env := newTestEnv(t)
	admin := env.loginToken(t, "john@example.com")
	regular := env.loginToken(t, "jane@example.com")

	w := env.do(t, "GET", "/events", regular, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "GET", "/events", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var events []models.AuditEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.NotEmpty(t, events)

	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, "auth.login.success")
}

func TestSystemStats(t *testing.T) {
	env := newTestEnv(t)
	admin := env.loginToken(t, "john@example.com")
	regular := env.loginToken(t, "jane@example.com")

	w := env.do(t, "GET", "/system/stats", regular, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, "GET", "/system/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats handlers.SystemStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Greater(t, stats.MemTotalMB, uint64(0))
}
