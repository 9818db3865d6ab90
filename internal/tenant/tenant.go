// Package tenant 提供多租户支持
package tenant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/sekou/sekou/pkg/errors"
)

var (
	ErrTenantNotFound = apperrors.New(apperrors.CodeNotFound, "租户不存在")
	ErrInvalidTenant  = apperrors.New(apperrors.CodeInvalidInput, "无效的租户")
	ErrTenantDisabled = apperrors.New(apperrors.CodeTenantDisabled, "租户已禁用")
)

// Tenant 租户
type Tenant struct {
	ID        uuid.UUID      `json:"id"`
	Code      string         `json:"code"`   // 租户编码
	Name      string         `json:"name"`   // 租户名称
	Status    string         `json:"status"` // active/suspended/expired
	Settings  TenantSettings `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiredAt *time.Time     `json:"expired_at,omitempty"`
}

// TenantSettings 租户配置
type TenantSettings struct {
	MaxWorkers        int      `json:"max_workers"`        // 最大作业员数
	ConstructionTypes []string `json:"construction_types"` // 允许的工事类型
	Features          []string `json:"features"`           // 启用的功能
	APIRateLimit      int      `json:"api_rate_limit"`     // 每分钟请求数，0 表示使用全局值
}

// IsActive 检查租户是否活跃
func (t *Tenant) IsActive() bool {
	if t.Status != "active" {
		return false
	}
	if t.ExpiredAt != nil && t.ExpiredAt.Before(time.Now()) {
		return false
	}
	return true
}

// HasFeature 检查租户是否拥有某功能
func (t *Tenant) HasFeature(feature string) bool {
	for _, f := range t.Settings.Features {
		if f == feature || f == "*" {
			return true
		}
	}
	return false
}

// AllowsConstructionType 检查租户是否承接某工事类型
func (t *Tenant) AllowsConstructionType(ct string) bool {
	for _, s := range t.Settings.ConstructionTypes {
		if s == ct || s == "*" {
			return true
		}
	}
	return false
}

// TenantManager 租户管理器
type TenantManager struct {
	tenants map[string]*Tenant // code -> tenant
	mu      sync.RWMutex
}

// NewTenantManager 创建租户管理器
func NewTenantManager() *TenantManager {
	return &TenantManager{
		tenants: make(map[string]*Tenant),
	}
}

// Register 注册租户
func (m *TenantManager) Register(tenant *Tenant) error {
	if tenant == nil || tenant.Code == "" {
		return ErrInvalidTenant
	}
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tenants[tenant.Code] = tenant
	return nil
}

// Get 获取租户
func (m *TenantManager) Get(code string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenant, exists := m.tenants[code]
	if !exists {
		return nil, ErrTenantNotFound
	}

	if !tenant.IsActive() {
		return nil, ErrTenantDisabled
	}

	return tenant, nil
}

// GetByID 通过ID获取租户
func (m *TenantManager) GetByID(id uuid.UUID) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, tenant := range m.tenants {
		if tenant.ID == id {
			if !tenant.IsActive() {
				return nil, ErrTenantDisabled
			}
			return tenant, nil
		}
	}

	return nil, ErrTenantNotFound
}

// List 列出所有租户（按编码排序）
func (m *TenantManager) List() []*Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

// Remove 移除租户
func (m *TenantManager) Remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tenants, code)
}

type tenantContextKey struct{}

// WithTenant 将租户添加到上下文
func WithTenant(ctx context.Context, tenant *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// FromContext 从上下文获取租户
func FromContext(ctx context.Context) (*Tenant, bool) {
	tenant, ok := ctx.Value(tenantContextKey{}).(*Tenant)
	return tenant, ok
}

// DefaultTenantSettings 默认租户配置
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		MaxWorkers:        100,
		ConstructionTypes: []string{"*"},
		Features:          []string{"calendar", "capacity", "assignment", "stats"},
	}
}

// CreateDefaultTenant 创建默认租户（开发测试用）
func CreateDefaultTenant(code string) *Tenant {
	if code == "" {
		code = "default"
	}
	return &Tenant{
		ID:        uuid.New(),
		Code:      code,
		Name:      "默认租户",
		Status:    "active",
		Settings:  DefaultTenantSettings(),
		CreatedAt: time.Now(),
	}
}
