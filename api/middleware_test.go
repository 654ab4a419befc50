package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drdesk/config"
	"drdesk/core/auth"
	"drdesk/core/store"
)

func mustPolicy(t *testing.T) *auth.Policy {
	t.Helper()
	p, err := auth.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return p
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequirePermissionDeniesMissingPermission(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{}, policy: mustPolicy(t)}
	handler := s.requirePermission(auth.ObjIncidents, auth.ActStatus)(okHandler)
	req := httptest.NewRequest(http.MethodPatch, "/api/incidents/status", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &store.User{
		Username: "viewer",
		Roles:    []string{auth.RoleViewer},
	}))
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", rr.Code)
	}
}

func TestRequirePermissionAllowsInheritedRole(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{}, policy: mustPolicy(t)}
	handler := s.requirePermission(auth.ObjStages, auth.ActRead)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/stages/deviation", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &store.User{
		Username: "qa",
		Roles:    []string{auth.RoleQA},
	}))
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", rr.Code)
	}
}

func TestRequirePermissionWithoutUserIsUnauthorized(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{}, policy: mustPolicy(t)}
	handler := s.requirePermission(auth.ObjIncidents, auth.ActRead)(okHandler)
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/incidents/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
}

func TestWithSessionRejectsMissingCredentials(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{Security: config.SecurityConfig{AuthEnabled: true}}}
	h := s.withSession(okHandler)
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/api/incidents/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("WWW-Authenticate"), "Basic") {
		t.Fatalf("expected basic challenge, got %q", rr.Header().Get("WWW-Authenticate"))
	}
}

func TestWithSessionInjectsAnonymousAdminWhenAuthDisabled(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{}}
	var seen *store.User
	h := s.withSession(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/api/incidents/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", rr.Code)
	}
	if seen == nil || seen.Username != "anonymous" || len(seen.Roles) != 1 || seen.Roles[0] != auth.RoleAdmin {
		t.Fatalf("expected anonymous admin, got %+v", seen)
	}
}

func TestLimiterBlocksAfterCapacity(t *testing.T) {
	l := newLimiter(2, time.Hour)
	if !l.allow("a") || !l.allow("a") {
		t.Fatalf("expected first two attempts to pass")
	}
	if l.allow("a") {
		t.Fatalf("expected third attempt to be limited")
	}
	if !l.allow("b") {
		t.Fatalf("expected separate key to have its own bucket")
	}
}

func TestLimiterCleanupEvictsOldestOverMax(t *testing.T) {
	l := newLimiter(1, time.Hour)
	l.maxBuckets = 2
	now := time.Now()
	l.buckets["old"] = &tokenBucket{lastSeen: now.Add(-3 * time.Minute)}
	l.buckets["mid"] = &tokenBucket{lastSeen: now.Add(-2 * time.Minute)}
	l.buckets["new"] = &tokenBucket{lastSeen: now.Add(-time.Minute)}
	l.cleanup(now)
	if _, ok := l.buckets["old"]; ok {
		t.Fatalf("expected oldest bucket to be evicted")
	}
	if len(l.buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(l.buckets))
	}
}

func TestIsHTTPSRequestWithTLS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
	req.TLS = &tls.ConnectionState{}
	if !isHTTPSRequest(req, nil) {
		t.Fatalf("expected https request when TLS state is present")
	}
}

func TestIsHTTPSRequestIgnoresUntrustedProxyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
	req.RemoteAddr = "192.168.1.20:12345"
	req.Header.Set("X-Forwarded-Proto", "https")
	if isHTTPSRequest(req, []string{"10.0.0.10"}) {
		t.Fatalf("expected non-https for untrusted proxy source")
	}
}

func TestClientIPUsesNearestUntrustedXFFHop(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{Security: config.SecurityConfig{
		TrustedProxies: []string{"10.0.0.10", "10.0.0.0/24"},
	}}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "10.0.0.10:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.11")
	if got := s.clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected client ip 203.0.113.9, got %s", got)
	}
}

func TestClientIPIgnoresXFFForUntrustedRemote(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{Security: config.SecurityConfig{
		TrustedProxies: []string{"10.0.0.10"},
	}}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "192.168.1.20:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := s.clientIP(req); got != "192.168.1.20" {
		t.Fatalf("expected remote addr ip for untrusted source, got %s", got)
	}
}

func TestClientIPInvalidXFFFallsBackToRealIP(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{Security: config.SecurityConfig{
		TrustedProxies: []string{"10.0.0.10"},
	}}}
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "10.0.0.10:54321"
	req.Header.Set("X-Forwarded-For", "garbage,not-an-ip")
	req.Header.Set("X-Real-IP", "198.51.100.8")
	if got := s.clientIP(req); got != "198.51.100.8" {
		t.Fatalf("expected fallback to valid X-Real-IP, got %s", got)
	}
}

func TestSecurityHeadersSetHSTSForTrustedProxyHTTPS(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{Security: config.SecurityConfig{
		TrustedProxies: []string{"10.0.0.10"},
	}}}
	h := s.securityHeadersMiddleware(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.10:12345"
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Fatalf("expected HSTS header for trusted proxy https request")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
}

func TestCORSPreflightForAllowedOrigin(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{HTTP: config.HTTPConfig{CORSOrigins: []string{"https://qa.example.com"}}}}
	h := s.corsMiddleware(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodOptions, "/api/selection", nil)
	req.Header.Set("Origin", "https://qa.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://qa.example.com" {
		t.Fatalf("expected origin echoed, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	other := httptest.NewRequest(http.MethodGet, "/api/selection", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected no CORS header for unknown origin")
	}
}

func TestCORSWildcardNeverSharesCredentials(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{HTTP: config.HTTPConfig{CORSOrigins: []string{"*", "https://qa.example.com"}}}}
	h := s.corsMiddleware(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/selection", nil)
	req.Header.Set("Origin", "https://anyone.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://anyone.example.com" {
		t.Fatalf("expected wildcard to allow origin, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("expected no credentials header for wildcard match")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/selection", nil)
	req.Header.Set("Origin", "https://qa.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials for explicitly listed origin")
	}
}

func TestRecoverMiddlewareReturnsJSON500(t *testing.T) {
	s := &Server{cfg: &config.AppConfig{}}
	h := s.recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/incidents/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal") {
		t.Fatalf("expected json error body, got %s", rr.Body.String())
	}
}
