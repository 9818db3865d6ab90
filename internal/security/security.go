// Package security 提供安全功能
package security

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/sekou/sekou/pkg/errors"
)

var (
	ErrInvalidAPIKey     = apperrors.New(apperrors.CodeUnauthorized, "无效的API密钥")
	ErrExpiredAPIKey     = apperrors.New(apperrors.CodeUnauthorized, "API密钥已过期")
	ErrRateLimitExceeded = apperrors.New(apperrors.CodeRateLimited, "请求频率超限")
)

// APIKey 服务间调用密钥
type APIKey struct {
	Key        string     `json:"key"`
	TenantCode string     `json:"tenant_code"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"` // 权限范围
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Enabled    bool       `json:"enabled"`
}

// IsValid 检查密钥是否有效
func (k *APIKey) IsValid() bool {
	if !k.Enabled {
		return false
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// HasScope 检查密钥是否有某权限
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// APIKeyManager API密钥管理器
type APIKeyManager struct {
	keys map[string]*APIKey // key -> APIKey
	mu   sync.RWMutex
}

// NewAPIKeyManager 创建密钥管理器
func NewAPIKeyManager() *APIKeyManager {
	return &APIKeyManager{
		keys: make(map[string]*APIKey),
	}
}

// GenerateKey 生成新密钥
func (m *APIKeyManager) GenerateKey(tenantCode, name string, scopes []string, expiresIn *time.Duration) (*APIKey, error) {
	key, err := generateRandomString(32)
	if err != nil {
		return nil, err
	}
	apiKey := m.Register("sk_"+key, tenantCode, name, scopes)

	if expiresIn != nil {
		expiresAt := time.Now().Add(*expiresIn)
		m.mu.Lock()
		apiKey.ExpiresAt = &expiresAt
		m.mu.Unlock()
	}
	return apiKey, nil
}

// Register 登记一个已知密钥（来自配置）
func (m *APIKeyManager) Register(key, tenantCode, name string, scopes []string) *APIKey {
	apiKey := &APIKey{
		Key:        key,
		TenantCode: tenantCode,
		Name:       name,
		Scopes:     scopes,
		CreatedAt:  time.Now(),
		Enabled:    true,
	}

	m.mu.Lock()
	m.keys[key] = apiKey
	m.mu.Unlock()

	return apiKey
}

// Validate 验证密钥
func (m *APIKeyManager) Validate(key string) (*APIKey, error) {
	m.mu.RLock()
	apiKey, exists := m.keys[key]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrInvalidAPIKey
	}

	if !apiKey.IsValid() {
		return nil, ErrExpiredAPIKey
	}

	return apiKey, nil
}

// Revoke 撤销密钥
func (m *APIKeyManager) Revoke(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if apiKey, exists := m.keys[key]; exists {
		apiKey.Enabled = false
	}
}

// Len 已登记密钥数
func (m *APIKeyManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// RateLimiter 按键（通常是租户编码）的令牌桶限流器
type RateLimiter struct {
	limiters  map[string]*rate.Limiter
	overrides map[string]int
	perMinute int
	burst     int
	mu        sync.Mutex
}

// NewRateLimiter 创建频率限制器，perMinute <= 0 表示不限流
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		overrides: make(map[string]int),
		perMinute: perMinute,
		burst:     burst,
	}
}

// SetLimit 为某个键单独设置每分钟请求数，0 表示恢复默认
func (rl *RateLimiter) SetLimit(key string, perMinute int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if perMinute <= 0 {
		delete(rl.overrides, key)
	} else {
		rl.overrides[key] = perMinute
	}
	delete(rl.limiters, key)
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[key]
	if !ok {
		lim = rl.newLimiter(key)
		rl.limiters[key] = lim
	}
	rl.mu.Unlock()

	return lim.Allow()
}

func (rl *RateLimiter) newLimiter(key string) *rate.Limiter {
	perMinute := rl.perMinute
	burst := rl.burst
	if v, ok := rl.overrides[key]; ok {
		perMinute = v
		if burst > perMinute || burst <= 0 {
			burst = perMinute
		}
	}
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
}

// ExtractToken 从请求中提取会话令牌
func ExtractToken(r *http.Request) string {
	// 1. Authorization header
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}

	// 2. X-Session-Token header
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}

	// 3. query parameter
	return r.URL.Query().Get("token")
}

// ExtractAPIKey 从请求中提取API密钥
func ExtractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

// generateRandomString 生成随机字符串
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}
