package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/config"
	"github.com/AtoyanMikhail/tasks-auth/internal/credentials"
	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	dto "github.com/AtoyanMikhail/tasks-auth/internal/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	testCookies = config.CookieConfig{
		AccessName:  "accessToken",
		RefreshName: "refreshToken",
		Path:        "/",
		Secure:      true,
	}

	testPair = &session.TokenPair{
		SubjectID:        "u1",
		AccessToken:      "access-1",
		AccessExpiresAt:  fixedNow.Add(15 * time.Minute),
		RefreshToken:     "refresh-1",
		RefreshExpiresAt: fixedNow.Add(7 * 24 * time.Hour),
	}

	testMeta = session.Metadata{DeviceName: "test-agent", SourceAddress: "192.0.2.1"}
)

type testDeps struct {
	sessions   *mockSessionService
	principals *mockPrincipalRepo
	hasher     *mockHasher
	auth       *mockAuthenticator
	router     http.Handler
}

func setupRouter(t *testing.T) *testDeps {
	t.Helper()
	return setupRouterWith(t, RouterConfig{})
}

func setupRouterWith(t *testing.T, cfg RouterConfig) *testDeps {
	t.Helper()
	d := &testDeps{
		sessions:   &mockSessionService{},
		principals: &mockPrincipalRepo{},
		hasher:     &mockHasher{},
		auth:       &mockAuthenticator{},
	}
	h := NewHandler(d.sessions, d.principals, d.hasher, testCookies, logger.NewNop())
	h.cookies.now = func() time.Time { return fixedNow }
	d.router = NewRouter(h, d.auth, cfg, logger.NewNop())

	t.Cleanup(func() {
		d.sessions.AssertExpectations(t)
		d.principals.AssertExpectations(t)
		d.hasher.AssertExpectations(t)
		d.auth.AssertExpectations(t)
	})
	return d
}

func do(router http.Handler, method, path, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "test-agent")
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func withHeader(key, value string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func assertTokenCookies(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	cookies := cookiesByName(rec)

	access := cookies["accessToken"]
	require.NotNil(t, access)
	assert.Equal(t, "access-1", access.Value)
	assert.Equal(t, 15*60, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)

	refresh := cookies["refreshToken"]
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-1", refresh.Value)
	assert.Equal(t, 7*24*60*60, refresh.MaxAge)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
}

func assertCookiesCleared(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	cookies := cookiesByName(rec)
	for _, name := range []string{"accessToken", "refreshToken"} {
		c := cookies[name]
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestHandler_Register(t *testing.T) {
	t.Run("creates principal and session", func(t *testing.T) {
		d := setupRouter(t)
		d.hasher.On("Hash", "s3cret-pass").Return("hashed", nil)
		d.principals.On("Create", mock.Anything, mock.MatchedBy(func(p *models.Principal) bool {
			return p.Name == "Ann" && p.Email == "ann@example.com" && p.PasswordHash == "hashed"
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Principal).ID = "u1"
		}).Return(nil)
		d.sessions.On("Login", mock.Anything, "u1", testMeta).Return(testPair, nil)

		rec := do(d.router, http.MethodPost, "/api/auth/register",
			`{"name":"Ann","email":"ann@example.com","password":"s3cret-pass"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var res dto.TokensRes
		decodeBody(t, rec, &res)
		assert.Equal(t, "access-1", res.AccessToken)
		assert.Equal(t, "refresh-1", res.RefreshToken)
		assertTokenCookies(t, rec)
	})

	t.Run("email taken", func(t *testing.T) {
		d := setupRouter(t)
		d.hasher.On("Hash", "s3cret-pass").Return("hashed", nil)
		d.principals.On("Create", mock.Anything, mock.Anything).Return(models.ErrPrincipalExists)

		rec := do(d.router, http.MethodPost, "/api/auth/register",
			`{"name":"Ann","email":"ann@example.com","password":"s3cret-pass"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"name":`},
		{name: "invalid email", body: `{"name":"Ann","email":"nope","password":"s3cret-pass"}`},
		{name: "short password", body: `{"name":"Ann","email":"ann@example.com","password":"short"}`},
		{name: "missing name", body: `{"email":"ann@example.com","password":"s3cret-pass"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupRouter(t)

			rec := do(d.router, http.MethodPost, "/api/auth/register", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestHandler_Login(t *testing.T) {
	principal := &models.Principal{ID: "u1", Email: "ann@example.com", PasswordHash: "hashed"}

	t.Run("success", func(t *testing.T) {
		d := setupRouter(t)
		d.principals.On("FindByEmail", mock.Anything, "ann@example.com").Return(principal, nil)
		d.hasher.On("Compare", "hashed", "s3cret-pass").Return(nil)
		d.principals.On("TouchLastLogin", mock.Anything, "u1").Return(nil)
		d.sessions.On("Login", mock.Anything, "u1", testMeta).Return(testPair, nil)

		rec := do(d.router, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"s3cret-pass"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assertTokenCookies(t, rec)
	})

	t.Run("forwarded address from trusted proxy", func(t *testing.T) {
		d := setupRouterWith(t, RouterConfig{TrustProxy: true})
		d.principals.On("FindByEmail", mock.Anything, "ann@example.com").Return(principal, nil)
		d.hasher.On("Compare", "hashed", "s3cret-pass").Return(nil)
		d.principals.On("TouchLastLogin", mock.Anything, "u1").Return(errors.New("db busy"))
		d.sessions.On("Login", mock.Anything, "u1",
			session.Metadata{DeviceName: "test-agent", SourceAddress: "198.51.100.9"}).Return(testPair, nil)

		rec := do(d.router, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"s3cret-pass"}`,
			withHeader("X-Forwarded-For", "198.51.100.9"))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forwarded address ignored without proxy", func(t *testing.T) {
		d := setupRouter(t)
		d.principals.On("FindByEmail", mock.Anything, "ann@example.com").Return(principal, nil)
		d.hasher.On("Compare", "hashed", "s3cret-pass").Return(nil)
		d.principals.On("TouchLastLogin", mock.Anything, "u1").Return(nil)
		d.sessions.On("Login", mock.Anything, "u1", testMeta).Return(testPair, nil)

		rec := do(d.router, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"s3cret-pass"}`,
			withHeader("X-Forwarded-For", "198.51.100.9"),
			withHeader("X-Real-IP", "198.51.100.10"))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		d := setupRouter(t)
		d.principals.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)
		d.hasher.On("Compare", "", "s3cret-pass").Return(credentials.ErrMismatch)

		rec := do(d.router, http.MethodPost, "/api/auth/login", `{"email":"ghost@example.com","password":"s3cret-pass"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var res dto.MessageRes
		decodeBody(t, rec, &res)
		assert.Equal(t, "Invalid email or password", res.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		d := setupRouter(t)
		d.principals.On("FindByEmail", mock.Anything, "ann@example.com").Return(principal, nil)
		d.hasher.On("Compare", "hashed", "wrong-pass").Return(credentials.ErrMismatch)

		rec := do(d.router, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"wrong-pass"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var res dto.MessageRes
		decodeBody(t, rec, &res)
		assert.Equal(t, "Invalid email or password", res.Message)
	})

	t.Run("lookup failure", func(t *testing.T) {
		d := setupRouter(t)
		d.principals.On("FindByEmail", mock.Anything, "ann@example.com").Return(nil, errors.New("db down"))

		rec := do(d.router, http.MethodPost, "/api/auth/login", `{"email":"ann@example.com","password":"s3cret-pass"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_Refresh(t *testing.T) {
	t.Run("token from cookie", func(t *testing.T) {
		d := setupRouter(t)
		d.sessions.On("Refresh", mock.Anything, "refresh-0", testMeta).Return(testPair, nil)

		rec := do(d.router, http.MethodPost, "/api/auth/refresh-token", "", withCookie("refreshToken", "refresh-0"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assertTokenCookies(t, rec)
	})

	t.Run("body wins over cookie", func(t *testing.T) {
		d := setupRouter(t)
		d.sessions.On("Refresh", mock.Anything, "from-body", testMeta).Return(testPair, nil)

		rec := do(d.router, http.MethodPost, "/api/auth/refresh-token", `{"refreshToken":"from-body"}`,
			withCookie("refreshToken", "from-cookie"))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		d := setupRouter(t)

		rec := do(d.router, http.MethodPost, "/api/auth/refresh-token", `{"refreshToken":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantClear  bool
	}{
		{name: "no token", err: session.ErrNoToken, wantStatus: http.StatusUnauthorized, wantMsg: msgNoToken, wantClear: true},
		{name: "expired", err: session.ErrTokenExpired, wantStatus: http.StatusUnauthorized, wantMsg: msgBadSession, wantClear: true},
		{name: "invalid", err: session.ErrTokenInvalid, wantStatus: http.StatusUnauthorized, wantMsg: msgBadSession, wantClear: true},
		{name: "reuse", err: session.ErrReuseDetected, wantStatus: http.StatusForbidden, wantMsg: msgReuse, wantClear: true},
		{name: "rate limited keeps cookies", err: session.ErrRateLimited, wantStatus: http.StatusTooManyRequests, wantMsg: msgThrottled},
		{name: "store failure keeps cookies", err: fmt.Errorf("rotate session: %w", models.ErrDuplicateToken), wantStatus: http.StatusInternalServerError, wantMsg: msgInternal},
		{name: "connection failure keeps cookies", err: errors.New("find session: dial tcp: connection refused"), wantStatus: http.StatusInternalServerError, wantMsg: msgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupRouter(t)
			d.sessions.On("Refresh", mock.Anything, "refresh-0", testMeta).Return(nil, tt.err)

			rec := do(d.router, http.MethodPost, "/api/auth/refresh-token", "", withCookie("refreshToken", "refresh-0"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var res dto.MessageRes
			decodeBody(t, rec, &res)
			assert.Equal(t, tt.wantMsg, res.Message)
			if tt.wantClear {
				assertCookiesCleared(t, rec)
			} else {
				assert.Empty(t, rec.Header().Values("Set-Cookie"))
			}
		})
	}
}

func TestHandler_Logout(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		opts       []func(*http.Request)
		setup      func(d *testDeps)
		wantStatus int
		wantMsg    string
	}{
		{
			name: "with cookie",
			opts: []func(*http.Request){withCookie("refreshToken", "refresh-0")},
			setup: func(d *testDeps) {
				d.sessions.On("Logout", mock.Anything, "refresh-0").Return(nil)
			},
			wantStatus: http.StatusOK,
			wantMsg:    "Logged out successfully.",
		},
		{
			name: "malformed body falls back to cookie",
			body: `{"refreshToken":`,
			opts: []func(*http.Request){withCookie("refreshToken", "refresh-0")},
			setup: func(d *testDeps) {
				d.sessions.On("Logout", mock.Anything, "refresh-0").Return(nil)
			},
			wantStatus: http.StatusOK,
			wantMsg:    "Logged out successfully.",
		},
		{
			name: "without token",
			setup: func(d *testDeps) {
				d.sessions.On("Logout", mock.Anything, "").Return(nil)
			},
			wantStatus: http.StatusOK,
			wantMsg:    "Already logged out or no token provided.",
		},
		{
			name: "store failure",
			opts: []func(*http.Request){withCookie("refreshToken", "refresh-0")},
			setup: func(d *testDeps) {
				d.sessions.On("Logout", mock.Anything, "refresh-0").Return(errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to log out.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupRouter(t)
			tt.setup(d)

			rec := do(d.router, http.MethodPost, "/api/auth/logout", tt.body, tt.opts...)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var res dto.MessageRes
			decodeBody(t, rec, &res)
			assert.Equal(t, tt.wantMsg, res.Message)
			if tt.wantStatus == http.StatusOK {
				assertCookiesCleared(t, rec)
			}
		})
	}
}

func TestHandler_Guard(t *testing.T) {
	principal := &models.Principal{ID: "u1", Name: "Ann", Email: "ann@example.com", CreatedAt: fixedNow}

	t.Run("bearer header", func(t *testing.T) {
		d := setupRouter(t)
		d.auth.On("Authenticate", mock.Anything, "access-1").Return(principal, nil)

		rec := do(d.router, http.MethodGet, "/api/auth/me", "", withHeader("Authorization", "Bearer access-1"))

		assert.Equal(t, http.StatusOK, rec.Code)
		var res dto.PrincipalRes
		decodeBody(t, rec, &res)
		assert.Equal(t, "u1", res.ID)
		assert.Equal(t, "ann@example.com", res.Email)
	})

	t.Run("cookie fallback", func(t *testing.T) {
		d := setupRouter(t)
		d.auth.On("Authenticate", mock.Anything, "access-cookie").Return(principal, nil)

		rec := do(d.router, http.MethodGet, "/api/auth/me", "", withCookie("accessToken", "access-cookie"))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "no token", err: session.ErrNoToken, wantStatus: http.StatusUnauthorized, wantMsg: msgNoToken},
		{name: "expired", err: session.ErrTokenExpired, wantStatus: http.StatusUnauthorized, wantMsg: msgBadSession},
		{name: "unknown subject", err: session.ErrUnknownSubject, wantStatus: http.StatusUnauthorized, wantMsg: msgBadSession},
		{name: "lookup failure", err: errors.New("db down"), wantStatus: http.StatusInternalServerError, wantMsg: msgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupRouter(t)
			d.auth.On("Authenticate", mock.Anything, "").Return(nil, tt.err)

			rec := do(d.router, http.MethodGet, "/api/auth/me", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			var res dto.MessageRes
			decodeBody(t, rec, &res)
			assert.Equal(t, tt.wantMsg, res.Message)
		})
	}
}

func TestHandler_LogoutAll(t *testing.T) {
	principal := &models.Principal{ID: "u1"}

	t.Run("revokes", func(t *testing.T) {
		d := setupRouter(t)
		d.auth.On("Authenticate", mock.Anything, "access-1").Return(principal, nil)
		d.sessions.On("LogoutAll", mock.Anything, "u1").Return(int64(3), nil)

		rec := do(d.router, http.MethodPost, "/api/auth/logout-all", "", withHeader("Authorization", "Bearer access-1"))

		assert.Equal(t, http.StatusOK, rec.Code)
		var res dto.LogoutAllRes
		decodeBody(t, rec, &res)
		assert.Equal(t, int64(3), res.Revoked)
		assertCookiesCleared(t, rec)
	})

	t.Run("store failure", func(t *testing.T) {
		d := setupRouter(t)
		d.auth.On("Authenticate", mock.Anything, "access-1").Return(principal, nil)
		d.sessions.On("LogoutAll", mock.Anything, "u1").Return(int64(0), errors.New("db down"))

		rec := do(d.router, http.MethodPost, "/api/auth/logout-all", "", withHeader("Authorization", "Bearer access-1"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
