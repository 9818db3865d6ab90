// Package session 管理登录会话
//
// 会话以令牌为键存放在键值存储中并带过期时间，过期后视为未登录。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sekou/sekou/internal/store"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/logger"
)

const keyPrefix = "session"

// DefaultTTL 默认会话有效期
const DefaultTTL = 12 * time.Hour

// Session 登录会话
type Session struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	TenantCode string    `json:"tenant_code"`
	Role       string    `json:"role"` // admin/dispatcher/viewer
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired 会话是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Manager 会话管理器
type Manager struct {
	store store.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager 创建会话管理器，ttl <= 0 时使用 DefaultTTL
func NewManager(s store.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: s, ttl: ttl, now: time.Now}
}

// TTL 会话有效期
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create 创建会话
func (m *Manager) Create(ctx context.Context, tenantCode, userID, userName, role string) (*Session, error) {
	if tenantCode == "" {
		return nil, apperrors.InvalidInput("tenant", "不能为空")
	}
	if userID == "" {
		return nil, apperrors.InvalidInput("user_id", "不能为空")
	}
	if role == "" {
		role = "dispatcher"
	}

	now := m.now()
	s := &Session{
		Token:      uuid.NewString(),
		UserID:     userID,
		UserName:   userName,
		TenantCode: tenantCode,
		Role:       role,
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.ttl),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "序列化会话失败")
	}
	if err := m.store.Put(ctx, store.Key(keyPrefix, s.Token), data, m.ttl); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "保存会话失败")
	}

	logger.WithContext(ctx).Info().
		Str("tenant", tenantCode).
		Str("user_id", userID).
		Msg("会话已创建")
	return s, nil
}

// Load 读取会话，不存在或已过期返回 CodeSessionExpired
func (m *Manager) Load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "缺少会话令牌")
	}

	data, err := m.store.Get(ctx, store.Key(keyPrefix, token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeSessionExpired, "会话不存在或已过期")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "读取会话失败")
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "会话数据损坏")
	}
	// 存储的过期可能有秒级误差，以会话自身时间为准
	if s.Expired(m.now()) {
		return nil, apperrors.New(apperrors.CodeSessionExpired, "会话不存在或已过期")
	}
	return &s, nil
}

// Invalidate 注销会话，令牌不存在时不报错
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, store.Key(keyPrefix, token)); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "删除会话失败")
	}
	return nil
}

type sessionContextKey struct{}

// WithSession 将会话添加到上下文
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext 从上下文获取会话
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok
}
