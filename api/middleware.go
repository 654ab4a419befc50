package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"drdesk/core/auth"
	"drdesk/core/store"
)

const (
	requestIDHeader             = "X-Request-ID"
	loginPayloadMaxBytes        = 64 * 1024
	loginLimiterTTL             = 10 * time.Minute
	loginLimiterCleanupInterval = time.Minute
	loginLimiterMaxBuckets      = 10000
)

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Errorf("PANIC %s %s: %v\n%s", r.Method, r.URL.Path, rec, string(debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "internal", "message": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.Must(uuid.NewV4()).String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if isHTTPSRequest(r, s.cfg.Security.TrustedProxies) {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed, exact := originAllowed(origin, s.cfg.HTTP.CORSOrigins)
		if origin == "" || !allowed {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if exact {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed reports whether origin may call the API and whether it was
// listed explicitly. Credentials are only shared with explicit origins.
func originAllowed(origin string, allowed []string) (ok, exact bool) {
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if strings.EqualFold(a, origin) {
			return true, true
		}
		if a == "*" {
			ok = true
		}
	}
	return ok, false
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.ObserveHTTP(r.Method, route, rec.status, elapsed)
		user := "-"
		if u, ok := auth.UserFromContext(r.Context()); ok {
			user = u.Username
		}
		s.logger.Printf("RESP %s %s user=%s status=%d dur=%s bytes=%d rid=%s", r.Method, r.URL.Path, user, rec.status, elapsed, rec.size, w.Header().Get(requestIDHeader))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// withSession authenticates every API call with HTTP basic credentials. With
// auth disabled the caller runs as an anonymous admin.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Security.AuthEnabled {
			anon := &store.User{Username: "anonymous", Roles: []string{auth.RoleAdmin}}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), anon)))
			return
		}
		username, password, ok := r.BasicAuth()
		if !ok {
			s.logger.Printf("AUTH fail (missing credentials) %s %s", r.Method, r.URL.Path)
			s.respondUnauthorized(w)
			return
		}
		user, err := s.authn.Verify(r.Context(), username, password)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				s.logger.Errorf("AUTH lookup failed %s %s: %v", r.Method, r.URL.Path, err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"code": "store_unavailable", "message": "authentication unavailable"})
				return
			}
			s.logger.Printf("AUTH fail (bad credentials) %s %s user=%s", r.Method, r.URL.Path, username)
			s.respondUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

func (s *Server) respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="drdesk"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "unauthorized", "message": "unauthorized"})
}

func (s *Server) requirePermission(obj, act string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				s.logger.Printf("PERM fail (no user) %s %s need=%s:%s", r.Method, r.URL.Path, obj, act)
				s.respondUnauthorized(w)
				return
			}
			if !s.policy.Allowed(user.Roles, obj, act) {
				s.logger.Printf("PERM fail %s %s user=%s roles=%v need=%s:%s", r.Method, r.URL.Path, user.Username, user.Roles, obj, act)
				writeJSON(w, http.StatusForbidden, map[string]string{"code": "forbidden", "message": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

type requestLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*tokenBucket
	capacity        int
	refill          time.Duration
	ttl             time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	maxBuckets      int
}

type tokenBucket struct {
	tokens   int
	last     time.Time
	lastSeen time.Time
}

func newLimiter(capacity int, refill time.Duration) *requestLimiter {
	return &requestLimiter{
		buckets:         make(map[string]*tokenBucket),
		capacity:        capacity,
		refill:          refill,
		ttl:             loginLimiterTTL,
		cleanupInterval: loginLimiterCleanupInterval,
		maxBuckets:      loginLimiterMaxBuckets,
	}
}

func (l *requestLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if l.cleanupInterval > 0 && now.Sub(l.lastCleanup) >= l.cleanupInterval {
		l.cleanup(now)
		l.lastCleanup = now
	}
	tb, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &tokenBucket{tokens: l.capacity - 1, last: now, lastSeen: now}
		return true
	}
	tb.lastSeen = now
	if now.Sub(tb.last) >= l.refill {
		tb.tokens = l.capacity
		tb.last = now
	}
	if tb.tokens <= 0 {
		return false
	}
	tb.tokens--
	return true
}

func (l *requestLimiter) cleanup(now time.Time) {
	if l.ttl > 0 {
		for key, tb := range l.buckets {
			if now.Sub(tb.lastSeen) > l.ttl {
				delete(l.buckets, key)
			}
		}
	}
	for l.maxBuckets > 0 && len(l.buckets) > l.maxBuckets {
		oldestKey := ""
		var oldest time.Time
		for key, tb := range l.buckets {
			if oldestKey == "" || tb.lastSeen.Before(oldest) {
				oldestKey = key
				oldest = tb.lastSeen
			}
		}
		if oldestKey == "" {
			break
		}
		delete(l.buckets, oldestKey)
	}
}

// rateLimitMiddleware throttles login by client IP and by username.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, loginPayloadMaxBytes+1)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"code": "validation", "message": "payload too large"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "validation", "message": "bad request"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var cred struct {
			Username string `json:"username"`
		}
		_ = json.Unmarshal(body, &cred)
		username := strings.ToLower(strings.TrimSpace(cred.Username))
		if !s.loginLimit.allow(strings.ToLower(s.clientIP(r))) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"code": "rate_limited", "message": "too many attempts"})
			return
		}
		if username != "" && !s.loginLimit.allow("user|"+username) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"code": "rate_limited", "message": "too many attempts"})
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) clientIP(r *http.Request) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	ip = strings.TrimSpace(ip)
	if !isTrustedProxy(ip, s.cfg.Security.TrustedProxies) {
		return ip
	}
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if candidate := extractClientIPFromXFF(xff, s.cfg.Security.TrustedProxies); candidate != "" {
			return candidate
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if parsed := net.ParseIP(realIP); parsed != nil {
			return parsed.String()
		}
	}
	return ip
}

func isHTTPSRequest(r *http.Request, trusted []string) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	remoteIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	if remoteIP == "" {
		remoteIP = strings.TrimSpace(r.RemoteAddr)
	}
	if !isTrustedProxy(strings.TrimSpace(remoteIP), trusted) {
		return false
	}
	proto := strings.ToLower(strings.TrimSpace(strings.SplitN(r.Header.Get("X-Forwarded-Proto"), ",", 2)[0]))
	return proto == "https"
}

func extractClientIPFromXFF(xff string, trusted []string) string {
	parts := strings.Split(xff, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		parsed := net.ParseIP(strings.TrimSpace(parts[i]))
		if parsed == nil {
			continue
		}
		val := parsed.String()
		if !isTrustedProxy(val, trusted) {
			return val
		}
	}
	return ""
}

func isTrustedProxy(ip string, trusted []string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	for _, raw := range trusted {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if strings.Contains(val, "/") {
			if _, block, err := net.ParseCIDR(val); err == nil && block.Contains(parsed) {
				return true
			}
			continue
		}
		if parsed.Equal(net.ParseIP(val)) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
