package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lounge-pos/api/internal/auth"
	"github.com/lounge-pos/api/internal/database"
	"github.com/lounge-pos/api/internal/enum"
	"github.com/lounge-pos/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	err         error
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{userByEmail: make(map[string]database.User)}
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	if m.err != nil {
		return database.User{}, m.err
	}
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		Email:          "rep@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Rep",
		Role:           enum.UserRoleSalesRep,
		IsActive:       true,
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func newAuthRouter(store handler.AuthStore) chi.Router {
	r := chi.NewRouter()
	handler.NewAuthHandler(store, testSecret).RegisterRoutes(r)
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.userByEmail[user.Email] = user

	rr := doJSON(t, newAuthRouter(store), "POST", "/auth/login", map[string]string{
		"email":    " REP@test.com ",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	accessToken, ok := resp["access_token"].(string)
	if !ok || accessToken == "" {
		t.Fatal("expected non-empty access_token string")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["role"] != enum.UserRoleSalesRep {
		t.Errorf("user role: got %v", userResp["role"])
	}
	if _, leaked := userResp["hashed_password"]; leaked {
		t.Error("response must not include hashed_password")
	}

	claims, err := auth.ValidateToken(testSecret, accessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims user ID: got %v, want %v", claims.UserID, user.ID)
	}
	if claims.Name != user.FullName {
		t.Errorf("claims name: got %q, want %q", claims.Name, user.FullName)
	}
}

func TestLogin_Failures(t *testing.T) {
	user := makeTestUser(t)

	tests := []struct {
		name     string
		storeErr error
		body     map[string]string
		want     int
	}{
		{"wrong password", nil, map[string]string{"email": user.Email, "password": "nope"}, http.StatusUnauthorized},
		{"unknown user", nil, map[string]string{"email": "nobody@test.com", "password": "x"}, http.StatusUnauthorized},
		{"missing password", nil, map[string]string{"email": user.Email}, http.StatusBadRequest},
		{"store failure", errors.New("db down"), map[string]string{"email": user.Email, "password": "x"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockAuthStore()
			store.userByEmail[user.Email] = user
			store.err = tt.storeErr

			rr := doJSON(t, newAuthRouter(store), "POST", "/auth/login", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	newAuthRouter(newMockAuthStore()).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
