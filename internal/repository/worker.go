package repository

import (
	"context"
	"sort"
	"time"

	"github.com/sekou/sekou/internal/store"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/model"
)

// WorkerRepository 作业员仓储
type WorkerRepository struct {
	kv  kv
	now func() time.Time
}

// NewWorkerRepository 创建作业员仓储
func NewWorkerRepository(s store.Store) *WorkerRepository {
	return &WorkerRepository{kv: kv{s: s}, now: time.Now}
}

// Save 保存作业员
func (r *WorkerRepository) Save(ctx context.Context, tenant string, w *model.Worker) error {
	if w.ID == "" {
		return apperrors.InvalidInput("id", "不能为空")
	}
	if w.Status == "" {
		w.Status = "active"
	}
	w.TenantID = tenant
	w.Touch(r.now())
	return r.kv.put(ctx, r.kv.key(tenant, kindWorker, w.ID), w)
}

// Get 获取作业员
func (r *WorkerRepository) Get(ctx context.Context, tenant, id string) (*model.Worker, error) {
	var w model.Worker
	if err := r.kv.get(ctx, r.kv.key(tenant, kindWorker, id), &w); err != nil {
		return nil, notFoundOr(err, "worker", id)
	}
	return &w, nil
}

// List 列出作业员（按ID排序）
func (r *WorkerRepository) List(ctx context.Context, tenant string) ([]model.Worker, error) {
	workers, err := list[model.Worker](ctx, r.kv, tenant, kindWorker)
	if err != nil {
		return nil, err
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	return workers, nil
}

// Delete 删除作业员
func (r *WorkerRepository) Delete(ctx context.Context, tenant, id string) error {
	return r.kv.s.Delete(ctx, r.kv.key(tenant, kindWorker, id))
}
