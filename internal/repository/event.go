package repository

import (
	"context"
	"sort"
	"time"

	"github.com/sekou/sekou/internal/store"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/status"
)

// EventRepository 工事事件仓储
type EventRepository struct {
	kv  kv
	now func() time.Time
}

// NewEventRepository 创建事件仓储
func NewEventRepository(s store.Store) *EventRepository {
	return &EventRepository{kv: kv{s: s}, now: time.Now}
}

// Import 迁移导入数据后保存，返回规范事件
func (r *EventRepository) Import(ctx context.Context, tenant string, raw model.RawEvent) (*model.Event, error) {
	ev, err := raw.Normalize()
	if err != nil {
		return nil, err
	}
	ev.TenantID = tenant
	if err := r.Save(ctx, tenant, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Save 保存事件
func (r *EventRepository) Save(ctx context.Context, tenant string, ev *model.Event) error {
	if ev.ID == "" {
		return apperrors.InvalidInput("id", "不能为空")
	}
	ev.TenantID = tenant
	ev.Touch(r.now())
	return r.kv.put(ctx, r.kv.key(tenant, kindEvent, ev.ID), ev)
}

// Get 获取事件，已归档的视为不存在
func (r *EventRepository) Get(ctx context.Context, tenant, id string) (*model.Event, error) {
	ev, err := r.Lookup(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if ev.IsArchived() {
		return nil, apperrors.NotFound("event", id)
	}
	return ev, nil
}

// Lookup 获取事件，包括已归档的
func (r *EventRepository) Lookup(ctx context.Context, tenant, id string) (*model.Event, error) {
	var ev model.Event
	if err := r.kv.get(ctx, r.kv.key(tenant, kindEvent, id), &ev); err != nil {
		return nil, notFoundOr(err, "event", id)
	}
	return &ev, nil
}

// Archive 归档事件。记录保留在存储中，只从列表与查询中隐藏；重复归档不报错
func (r *EventRepository) Archive(ctx context.Context, tenant, id string) (*model.Event, error) {
	ev, err := r.Lookup(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if ev.IsArchived() {
		return ev, nil
	}
	now := r.now()
	ev.ArchivedAt = &now
	if err := r.Save(ctx, tenant, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// List 按过滤器列出事件，按开始日期、开始时刻、ID 排序
func (r *EventRepository) List(ctx context.Context, tenant string, f ListFilter) ([]model.Event, error) {
	events, err := list[model.Event](ctx, r.kv, tenant, kindEvent)
	if err != nil {
		return nil, err
	}

	buckets := make(map[status.Bucket]bool, len(f.Buckets))
	for _, b := range f.Buckets {
		if bk, ok := status.ParseBucket(b); ok {
			buckets[bk] = true
		}
	}

	out := events[:0]
	for _, ev := range events {
		if ev.IsArchived() {
			continue
		}
		if f.WorkerID != "" && ev.WorkerID != f.WorkerID {
			continue
		}
		if len(buckets) > 0 && !buckets[ev.Bucket()] {
			continue
		}
		// 日期范围按重叠判断，多日事件只要有一天落在范围内即可
		if f.StartDate != "" && ev.LastDate() < f.StartDate {
			continue
		}
		if f.EndDate != "" && ev.StartDate > f.EndDate {
			continue
		}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return page(out, f), nil
}

// Transition 迁移事件状态，颜色随状态重新派生
func (r *EventRepository) Transition(ctx context.Context, tenant, id, to string) (*model.Event, error) {
	ev, err := r.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	next, err := status.Transition(ev.Status, to)
	if err != nil {
		return nil, err
	}
	ev.Status = string(next)
	ev.Color = status.ColorOf(status.Classify(ev.Status, ""))
	if err := r.Save(ctx, tenant, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// AssignWorker 记录分配结果
func (r *EventRepository) AssignWorker(ctx context.Context, tenant, id, workerID, workerName string) (*model.Event, error) {
	ev, err := r.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	ev.WorkerID = workerID
	ev.WorkerName = workerName
	if err := r.Save(ctx, tenant, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
