package main

import (
	"context"
	"fmt"

	"github.com/sekou/sekou/internal/config"
	"github.com/sekou/sekou/internal/metrics"
	"github.com/sekou/sekou/internal/repository"
	"github.com/sekou/sekou/internal/security"
	"github.com/sekou/sekou/internal/session"
	"github.com/sekou/sekou/internal/store"
	"github.com/sekou/sekou/internal/tenant"
	"github.com/sekou/sekou/pkg/assignment"
	"github.com/sekou/sekou/pkg/calendar"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/stats"
)

// app 进程内共享的组件
type app struct {
	cfg        *config.Config
	store      store.Store
	view       *calendar.View
	slots      []model.TimeSlot
	tenants    *tenant.TenantManager
	sessions   *session.Manager
	capacities *repository.CapacityRepository
	events     *repository.EventRepository
	workers    *repository.WorkerRepository
	keys       *security.APIKeyManager
	limiter    *security.RateLimiter
	metrics    *metrics.Metrics
	client     *assignment.Client
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Calendar.Location()
	if err != nil {
		st.Close()
		return nil, err
	}

	tenants := tenant.NewTenantManager()
	if err := tenants.Register(tenant.CreateDefaultTenant(cfg.App.DefaultTenant)); err != nil {
		st.Close()
		return nil, fmt.Errorf("注册默认租户失败: %w", err)
	}

	keys := security.NewAPIKeyManager()
	if cfg.Mock.APIKey != "" {
		keys.Register(cfg.Mock.APIKey, cfg.App.DefaultTenant, "mock", []string{"schedule"})
	}

	// 与内置 API 同进程时沿用同一把密钥
	assignCfg := cfg.Assignment
	if assignCfg.APIKey == "" {
		assignCfg.APIKey = cfg.Mock.APIKey
	}

	a := &app{
		cfg:        cfg,
		store:      st,
		view:       calendar.New(loc, cfg.Calendar.MaxPerCell),
		slots:      cfg.Calendar.Slots(),
		tenants:    tenants,
		sessions:   session.NewManager(st, cfg.Session.TTL),
		capacities: repository.NewCapacityRepository(st),
		events:     repository.NewEventRepository(st),
		workers:    repository.NewWorkerRepository(st),
		keys:       keys,
		limiter:    security.NewRateLimiter(cfg.API.RateLimit, cfg.API.Burst),
		client:     assignment.NewClient(assignCfg, assignment.WithHeader("X-Tenant-Code", cfg.App.DefaultTenant)),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.App.Name)
	}
	return a, nil
}

func (a *app) analyzer() *stats.UtilizationAnalyzer {
	return stats.NewUtilizationAnalyzer(a.view, a.slots)
}

func (a *app) close() error {
	return a.store.Close()
}
