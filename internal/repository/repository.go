// Package repository 提供数据访问层
//
// 所有记录以 JSON 形式按租户存放在键值存储中：
//
//	{tenant}:capacity:{workerID}
//	{tenant}:event:{eventID}
//	{tenant}:worker:{workerID}
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sekou/sekou/internal/store"
	apperrors "github.com/sekou/sekou/pkg/errors"
)

const (
	kindCapacity = "capacity"
	kindEvent    = "event"
	kindWorker   = "worker"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	WorkerID  string   `json:"worker_id,omitempty"`
	Buckets   []string `json:"buckets,omitempty"`
	Offset    int      `json:"offset"`
	Limit     int      `json:"limit"` // 0 表示不限制
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithWorker 设置作业员过滤
func (f ListFilter) WithWorker(workerID string) ListFilter {
	f.WorkerID = workerID
	return f
}

// WithDateRange 设置日期范围
func (f ListFilter) WithDateRange(start, end string) ListFilter {
	f.StartDate = start
	f.EndDate = end
	return f
}

// page 对结果分页
func page[T any](items []T, f ListFilter) []T {
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return items[:0]
		}
		items = items[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}

// kv 键值存储上的 JSON 读写
type kv struct {
	s store.Store
}

func (k kv) key(tenant, kind, id string) string {
	return store.Key(tenant, kind, id)
}

func (k kv) get(ctx context.Context, key string, out interface{}) error {
	data, err := k.s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, fmt.Sprintf("记录 %s 无法解析", key))
	}
	return nil
}

func (k kv) put(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "序列化失败")
	}
	if err := k.s.Put(ctx, key, data, 0); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "写入存储失败")
	}
	return nil
}

// list 读取某类记录，读取期间被删除的键跳过
func list[T any](ctx context.Context, k kv, tenant, kind string) ([]T, error) {
	keys, err := k.s.Keys(ctx, store.Key(tenant, kind, ""))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "读取存储失败")
	}
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		var v T
		if err := k.get(ctx, key, &v); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(resource, id)
	}
	if _, ok := err.(*apperrors.AppError); ok {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeStorageError, "读取存储失败")
}
