// Package middleware 提供HTTP中间件
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sekou/sekou/internal/metrics"
	"github.com/sekou/sekou/internal/security"
	"github.com/sekou/sekou/internal/session"
	"github.com/sekou/sekou/internal/tenant"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/logger"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Sessions  *session.Manager
	Tenants   *tenant.TenantManager
	SkipPaths []string // 跳过认证的路径

	// OnExpired 令牌对应的会话不存在或已过期时调用，用于清理按会话保存的状态
	OnExpired func(token string)
}

// Auth 会话认证中间件：校验令牌并把会话和租户放入上下文
func Auth(config *AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token := security.ExtractToken(r)
			s, err := config.Sessions.Load(r.Context(), token)
			if err != nil {
				if token != "" && config.OnExpired != nil && apperrors.Is(err, apperrors.CodeSessionExpired) {
					config.OnExpired(token)
				}
				writeError(w, err)
				return
			}

			t, err := config.Tenants.Get(s.TenantCode)
			if err != nil {
				logger.WithContext(r.Context()).Warn().Err(err).Str("tenant", s.TenantCode).Msg("会话租户不可用")
				writeError(w, err)
				return
			}

			ctx := session.WithSession(r.Context(), s)
			ctx = tenant.WithTenant(ctx, t)
			ctx = context.WithValue(ctx, logger.TenantKey, t.Code)

			w.Header().Set("X-Tenant-Code", t.Code)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireFeature 租户功能检查中间件
func RequireFeature(feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, ok := tenant.FromContext(r.Context())
			if !ok || !t.HasFeature(feature) {
				writeError(w, apperrors.New(apperrors.CodeForbidden, "租户未开通该功能").WithField("feature", feature))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole 角色检查中间件
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := session.FromContext(r.Context())
			if !ok {
				writeError(w, apperrors.New(apperrors.CodeUnauthorized, "未登录"))
				return
			}
			for _, role := range roles {
				if s.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, apperrors.New(apperrors.CodeForbidden, "权限不足"))
		})
	}
}

// RequireAPIKey 服务间调用的密钥检查，未登记任何密钥时放行
func RequireAPIKey(keys *security.APIKeyManager, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil || keys.Len() == 0 {
				next.ServeHTTP(w, r)
				return
			}

			key, err := keys.Validate(security.ExtractAPIKey(r))
			if err != nil {
				writeError(w, err)
				return
			}
			if !key.HasScope(scope) {
				writeError(w, apperrors.New(apperrors.CodeForbidden, "权限不足"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit 按租户限流，未认证的请求按客户端地址限流
func RateLimit(limiter *security.RateLimiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if t, ok := tenant.FromContext(r.Context()); ok {
				key = t.Code
			}
			if !limiter.Allow(key) {
				if m != nil {
					m.RecordRateLimited(key)
				}
				w.Header().Set("Retry-After", "60")
				writeError(w, security.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Logging 日志与指标中间件
func Logging(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			// 用路由模式作为指标标签，避免路径参数导致基数膨胀
			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					path = p
				}
			}
			if m != nil {
				m.RecordRequest(r.Method, path, status, duration)
			}

			ev := logger.WithContext(r.Context()).Info()
			if status >= 500 {
				ev = logger.WithContext(r.Context()).Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Str("remote", r.RemoteAddr).
				Msg("已处理请求")
		})
	}
}

// SecurityHeaders 安全头中间件
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// CORS 跨域中间件，origins 含 "*" 时允许任意来源
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Token, X-Request-ID")
				w.Header().Set("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recovery 恢复中间件（捕获panic）
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.WithContext(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				writeError(w, apperrors.New(apperrors.CodeInternal, "服务器内部错误"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestID 请求ID中间件，ID 同时写入响应头和日志上下文
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// errorBody 与 handler 的响应信封保持一致
type errorBody struct {
	Success bool                `json:"success"`
	Error   *apperrors.AppError `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.CodeInternal, "服务器内部错误")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(errorBody{Success: false, Error: appErr})
}
