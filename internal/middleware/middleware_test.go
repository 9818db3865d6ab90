package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekou/sekou/internal/metrics"
	"github.com/sekou/sekou/internal/security"
	"github.com/sekou/sekou/internal/session"
	"github.com/sekou/sekou/internal/store"
	"github.com/sekou/sekou/internal/tenant"
	"github.com/sekou/sekou/pkg/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	return body.Error.Code
}

type authFixture struct {
	cfg      *AuthConfig
	sessions *session.Manager
	tenants  *tenant.TenantManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tenants := tenant.NewTenantManager()
	require.NoError(t, tenants.Register(tenant.CreateDefaultTenant("acme")))
	require.NoError(t, tenants.Register(&tenant.Tenant{Code: "stop", Status: "suspended"}))
	sessions := session.NewManager(store.NewMemory(), time.Hour)
	return &authFixture{
		cfg:      &AuthConfig{Sessions: sessions, Tenants: tenants, SkipPaths: []string{"/health"}},
		sessions: sessions,
		tenants:  tenants,
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(logger.RequestIDKey).(string)
	}))

	t.Run("生成新ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		id := rec.Header().Get("X-Request-ID")
		assert.Len(t, id, 20)
		assert.Equal(t, id, seen)
	})

	t.Run("沿用请求头", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "abc", seen)
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeCode(t, rec))
}

func TestAuth(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	good, err := f.sessions.Create(ctx, "acme", "u1", "", "dispatcher")
	require.NoError(t, err)
	stopped, err := f.sessions.Create(ctx, "stop", "u2", "", "dispatcher")
	require.NoError(t, err)
	ghost, err := f.sessions.Create(ctx, "ghost", "u3", "", "dispatcher")
	require.NoError(t, err)

	var gotTenant string
	h := Auth(f.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tn, ok := tenant.FromContext(r.Context())
		if ok {
			gotTenant = tn.Code
		}
		_, ok = session.FromContext(r.Context())
		assert.True(t, ok)
	}))

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		code   string
	}{
		{name: "缺少令牌", path: "/api/v1/events", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "未知令牌", path: "/api/v1/events", token: "nope", status: http.StatusUnauthorized, code: "SESSION_EXPIRED"},
		{name: "租户已停用", path: "/api/v1/events", token: stopped.Token, status: http.StatusForbidden, code: "TENANT_DISABLED"},
		{name: "租户不存在", path: "/api/v1/events", token: ghost.Token, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "有效会话", path: "/api/v1/events", token: good.Token, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeCode(t, rec))
			}
		})
	}
	assert.Equal(t, "acme", gotTenant)
}

func TestAuth_SkipPaths(t *testing.T) {
	f := newAuthFixture(t)
	rec := httptest.NewRecorder()
	Auth(f.cfg)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireFeature(t *testing.T) {
	tn := &tenant.Tenant{Code: "acme", Status: "active", Settings: tenant.TenantSettings{Features: []string{"calendar"}}}
	h := RequireFeature("stats")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), tn))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), tn))
	rec = httptest.NewRecorder()
	RequireFeature("calendar")(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin")(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(session.WithSession(req.Context(), &session.Session{Role: "viewer"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(session.WithSession(req.Context(), &session.Session{Role: "admin"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAPIKey(t *testing.T) {
	keys := security.NewAPIKeyManager()

	// 未登记密钥时放行
	rec := httptest.NewRecorder()
	RequireAPIKey(keys, "schedule")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	keys.Register("k1", "acme", "mock", []string{"schedule"})
	h := RequireAPIKey(keys, "schedule")(okHandler)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "k1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "k1")
	rec = httptest.NewRecorder()
	RequireAPIKey(keys, "admin")(okHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	m := metrics.New("")
	h := RateLimit(security.NewRateLimiter(2, 2), m)(okHandler)
	tn := tenant.CreateDefaultTenant("acme")

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(tenant.WithTenant(req.Context(), tn))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("acme")))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestLogging_UsesRoutePattern(t *testing.T) {
	m := metrics.New("")
	r := chi.NewRouter()
	r.Use(Logging(m))
	r.Get("/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/events/{id}", "418")))
}
