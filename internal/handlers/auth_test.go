package handlers

import (
	"net/http"
	"testing"

	"github.com/engclin/melwatch/internal/api"
	"github.com/engclin/melwatch/internal/middleware"
	"github.com/engclin/melwatch/internal/testhelpers"
)

func newTestAuth(t *testing.T) (*middleware.JWTAuthMiddleware, http.Handler) {
	t.Helper()
	hash, err := middleware.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         "test-secret",
		JWTExpiryHours:    24,
		SkipPaths:         []string{"/auth/login"},
	}, nil)

	mux := http.NewServeMux()
	NewAuthHandler(jwtAuth, nil).SetupRoutes(mux)
	return jwtAuth, jwtAuth.Wrap(mux)
}

func TestAuthHandler_Login(t *testing.T) {
	jwtAuth, handler := newTestAuth(t)

	var resp api.LoginResponse
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/auth/login", nil).
		WithJSONBody(api.LoginRequest{Username: "admin", Password: "s3cret"}).
		Execute(handler).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)

	if resp.Username != "admin" || resp.ExpiresIn != 24*60*60 {
		t.Errorf("unexpected login response %+v", resp)
	}
	if _, err := jwtAuth.ValidateToken(resp.Token); err != nil {
		t.Errorf("issued token does not validate: %v", err)
	}
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	_, handler := newTestAuth(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"wrong password", api.LoginRequest{Username: "admin", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", api.LoginRequest{Username: "root", Password: "s3cret"}, http.StatusUnauthorized},
		{"missing password", api.LoginRequest{Username: "admin"}, http.StatusUnprocessableEntity},
		{"not an object", "just a string", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testhelpers.NewHTTPTestContext(t, http.MethodPost, "/auth/login", nil).
				WithJSONBody(tt.body).
				Execute(handler).
				AssertStatus(tt.status)
		})
	}
}

func TestAuthHandler_LoginMethodNotAllowed(t *testing.T) {
	_, handler := newTestAuth(t)
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/auth/login", nil).
		Execute(handler).
		AssertStatus(http.StatusMethodNotAllowed)
}

func TestAuthHandler_Verify(t *testing.T) {
	jwtAuth, handler := newTestAuth(t)
	token, err := jwtAuth.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/auth/verify", nil).
		WithBearerToken(token).
		Execute(handler).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"username":"admin"`)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/auth/verify", nil).
		Execute(handler).
		AssertStatus(http.StatusUnauthorized)
}
