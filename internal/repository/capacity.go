package repository

import (
	"context"
	"sort"

	"github.com/sekou/sekou/internal/store"
	"github.com/sekou/sekou/pkg/capacity"
	apperrors "github.com/sekou/sekou/pkg/errors"
)

// CapacityRepository 接单能力仓储，每个作业员只有一条记录
type CapacityRepository struct {
	kv kv
}

// NewCapacityRepository 创建接单能力仓储
func NewCapacityRepository(s store.Store) *CapacityRepository {
	return &CapacityRepository{kv: kv{s: s}}
}

// Get 获取作业员的接单能力配置
func (r *CapacityRepository) Get(ctx context.Context, tenant, workerID string) (*capacity.WorkerCapacity, error) {
	var c capacity.WorkerCapacity
	if err := r.kv.get(ctx, r.kv.key(tenant, kindCapacity, workerID), &c); err != nil {
		return nil, notFoundOr(err, "capacity", workerID)
	}
	return &c, nil
}

// Save 校验后保存，覆盖已有记录
func (r *CapacityRepository) Save(ctx context.Context, tenant string, c *capacity.WorkerCapacity) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.kv.put(ctx, r.kv.key(tenant, kindCapacity, c.WorkerID), c)
}

// Update 读取-修改-保存，记录不存在时以 base=0 新建
func (r *CapacityRepository) Update(ctx context.Context, tenant, workerID string, fn func(c *capacity.WorkerCapacity) error) (*capacity.WorkerCapacity, error) {
	c, err := r.Get(ctx, tenant, workerID)
	if apperrors.Is(err, apperrors.CodeNotFound) {
		c, err = capacity.New(workerID, 0)
	}
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, tenant, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete 删除配置
func (r *CapacityRepository) Delete(ctx context.Context, tenant, workerID string) error {
	return r.kv.s.Delete(ctx, r.kv.key(tenant, kindCapacity, workerID))
}

// List 返回租户下全部配置
func (r *CapacityRepository) List(ctx context.Context, tenant string) ([]*capacity.WorkerCapacity, error) {
	items, err := list[capacity.WorkerCapacity](ctx, r.kv, tenant, kindCapacity)
	if err != nil {
		return nil, err
	}
	out := make([]*capacity.WorkerCapacity, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

// Map 以作业员ID为键返回全部配置
func (r *CapacityRepository) Map(ctx context.Context, tenant string) (map[string]*capacity.WorkerCapacity, error) {
	items, err := r.List(ctx, tenant)
	if err != nil {
		return nil, err
	}
	m := make(map[string]*capacity.WorkerCapacity, len(items))
	for _, c := range items {
		m[c.WorkerID] = c
	}
	return m, nil
}
