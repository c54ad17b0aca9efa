package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-registration/backend/config"
	"course-registration/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "middleware-test-secret-key",
		AccessTokenTTL: 15 * time.Minute,
		Issuer:         "course-registration",
	})
}

func authedEngine(mgr *jwt.Manager) *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuth(mgr), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	})
	r.GET("/admin", JWTAuth(mgr), RoleAuth(jwt.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

// ── JWTAuth ──

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWT()
	token, err := mgr.GenerateAccessToken("stu-1", jwt.RoleStudent)
	if err != nil {
		t.Fatalf("生成 token 失败: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"缺少认证头", "", http.StatusUnauthorized},
		{"格式错误", "Token " + token, http.StatusUnauthorized},
		{"无效 token", "Bearer not-a-token", http.StatusUnauthorized},
		{"有效 token", "Bearer " + token, http.StatusOK},
	}

	r := authedEngine(mgr)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && !strings.Contains(w.Body.String(), `"user_id":"stu-1"`) {
				t.Errorf("user_id 未注入上下文: %s", w.Body.String())
			}
		})
	}
}

func TestRoleAuth_RejectsStudent(t *testing.T) {
	mgr := newTestJWT()
	token, _ := mgr.GenerateAccessToken("stu-1", jwt.RoleStudent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authedEngine(mgr).ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

// ── RateLimit ──

type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func limitedEngine(limiter RateLimiter, limit int) *gin.Engine {
	r := gin.New()
	r.POST("/write", func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set("user_id", uid)
		}
		c.Next()
	}, RateLimit(limiter, limit, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimit_PerUser(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int{}}
	r := limitedEngine(limiter, 2)

	send := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/write", nil)
		req.Header.Set("X-Test-User", user)
		r.ServeHTTP(w, req)
		return w.Code
	}

	send("stu-1")
	send("stu-1")
	if code := send("stu-1"); code != http.StatusTooManyRequests {
		t.Errorf("第3次请求应被限流，got %d", code)
	}
	if code := send("stu-2"); code != http.StatusOK {
		t.Errorf("其他用户不应受影响，got %d", code)
	}

	want := "rate_limit:stu-1:POST:/write"
	if limiter.counts[want] != 3 {
		t.Errorf("限流键应为 %s，实际 %v", want, limiter.counts)
	}
}

func TestRateLimit_FailOpen(t *testing.T) {
	tests := []struct {
		name    string
		limiter RateLimiter
	}{
		{"nil 限流器", nil},
		{"限流器出错", &countingLimiter{err: errors.New("redis down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			limitedEngine(tt.limiter, 1).ServeHTTP(w, httptest.NewRequest("POST", "/write", nil))
			if w.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", w.Code)
			}
		})
	}
}

// ── RequestID / Recovery / BodyLimit ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc-123" || w.Body.String() != "abc-123" {
		t.Errorf("应沿用请求头中的 Request-ID")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", requestIDMaxLen+1))
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("过长的 Request-ID 应被替换为 UUID, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "50000") {
		t.Errorf("应返回统一错误体: %s", w.Body.String())
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader(`{"section_id":"0123456789"}`)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader(`{}`)))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("缺少 X-Content-Type-Options")
	}
}
