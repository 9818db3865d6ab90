package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sekou/sekou/internal/repository"
	"github.com/sekou/sekou/pkg/capacity"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/model"
)

// OverrideRequest 覆盖值请求
type OverrideRequest struct {
	Capacity *int `json:"capacity" validate:"required,gte=0"`
}

// ResolveResponse 接单能力解析结果
type ResolveResponse struct {
	WorkerID string        `json:"workerId"`
	Room     capacity.Room `json:"room"`
}

// GetCapacity 获取作业员接单能力配置
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.deps.Capacities.Get(r.Context(), t.Code, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// PutCapacity 整体替换接单能力配置
func (h *Handler) PutCapacity(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// workerId 可以省略，由路径决定；校验在保存时进行
	var c capacity.WorkerCapacity
	if err := decodeJSON(r, &c); err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if c.WorkerID != "" && c.WorkerID != id {
		respondError(w, r, apperrors.InvalidInput("workerId", "与路径中的作业员不一致"))
		return
	}
	c.WorkerID = id

	if err := h.deps.Capacities.Save(r.Context(), t.Code, &c); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &c)
}

// SetDateOverride 设置指定日期覆盖
func (h *Handler) SetDateOverride(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	h.updateCapacity(w, r, true, func(c *capacity.WorkerCapacity, n int) error {
		return c.SetSpecificDate(date, n)
	})
}

// ClearDateOverride 删除指定日期覆盖，回退到星期/基础值
func (h *Handler) ClearDateOverride(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	h.updateCapacity(w, r, false, func(c *capacity.WorkerCapacity, _ int) error {
		c.ClearSpecificDate(date)
		return nil
	})
}

// SetWeekdayOverride 设置星期覆盖
func (h *Handler) SetWeekdayOverride(w http.ResponseWriter, r *http.Request) {
	day, err := weekdayParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.updateCapacity(w, r, true, func(c *capacity.WorkerCapacity, n int) error {
		return c.SetWeekday(day, n)
	})
}

// ClearWeekdayOverride 删除星期覆盖
func (h *Handler) ClearWeekdayOverride(w http.ResponseWriter, r *http.Request) {
	day, err := weekdayParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.updateCapacity(w, r, false, func(c *capacity.WorkerCapacity, _ int) error {
		c.ClearWeekday(day)
		return nil
	})
}

// SetSlotCap 设置时间段子上限
func (h *Handler) SetSlotCap(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	h.updateCapacity(w, r, true, func(c *capacity.WorkerCapacity, n int) error {
		return c.SetSlot(slot, n)
	})
}

// ClearSlotCap 删除时间段子上限
func (h *Handler) ClearSlotCap(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	h.updateCapacity(w, r, false, func(c *capacity.WorkerCapacity, _ int) error {
		c.ClearSlot(slot)
		return nil
	})
}

// updateCapacity 读取-修改-保存，withValue 时从请求体读取覆盖值
func (h *Handler) updateCapacity(w http.ResponseWriter, r *http.Request, withValue bool, fn func(c *capacity.WorkerCapacity, n int) error) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	n := 0
	if withValue {
		var req OverrideRequest
		if err := h.decode(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		n = *req.Capacity
	}

	c, err := h.deps.Capacities.Update(r.Context(), t.Code, chi.URLParam(r, "id"), func(c *capacity.WorkerCapacity) error {
		return fn(c, n)
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// ResolveCapacity 解析某天（及时间段）的剩余接单空间
// assigned/slotAssigned 未给出时按已保存的事件统计
func (h *Handler) ResolveCapacity(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	workerID := chi.URLParam(r, "id")
	q := r.URL.Query()

	day, err := h.deps.View.ParseDate(q.Get("date"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	slot := q.Get("slot")

	c, err := h.deps.Capacities.Get(r.Context(), t.Code, workerID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	dayAssigned, slotAssigned := -1, -1
	if v := q.Get("assigned"); v != "" {
		if dayAssigned, err = nonNegative("assigned", v); err != nil {
			respondError(w, r, err)
			return
		}
	}
	if v := q.Get("slotAssigned"); v != "" {
		if slotAssigned, err = nonNegative("slotAssigned", v); err != nil {
			respondError(w, r, err)
			return
		}
	}
	if dayAssigned < 0 || slotAssigned < 0 {
		d, bySlot, err := h.loadOf(r, t.Code, workerID, day)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if dayAssigned < 0 {
			dayAssigned = d
		}
		if slotAssigned < 0 {
			slotAssigned = bySlot[slot]
		}
	}

	respondJSON(w, http.StatusOK, ResolveResponse{
		WorkerID: workerID,
		Room:     h.deps.View.CheckRoom(c, day, slot, dayAssigned, slotAssigned),
	})
}

// loadOf 从事件仓储统计作业员某天的负荷
func (h *Handler) loadOf(r *http.Request, tenantCode, workerID string, day time.Time) (int, map[string]int, error) {
	date := day.Format(model.DateLayout)
	events, err := h.deps.Events.List(r.Context(), tenantCode,
		repository.DefaultListFilter().WithWorker(workerID).WithDateRange(date, date))
	if err != nil {
		return 0, nil, err
	}
	d, bySlot := h.analyzer.Load(events, workerID, day)
	return d, bySlot, nil
}

func weekdayParam(r *http.Request) (time.Weekday, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil || n < 0 || n > 6 {
		return 0, apperrors.InvalidInput("weekday", "必须在 0-6 之间")
	}
	return time.Weekday(n), nil
}

func nonNegative(field, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.InvalidInput(field, "必须是非负整数")
	}
	return n, nil
}

// ListWorkers 列出作业员
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	workers, err := h.deps.Workers.List(r.Context(), t.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, workers)
}

// SaveWorker 新建或更新作业员
func (h *Handler) SaveWorker(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var worker model.Worker
	if err := h.decode(r, &worker); err != nil {
		respondError(w, r, err)
		return
	}
	if limit := t.Settings.MaxWorkers; limit > 0 {
		existing, err := h.deps.Workers.List(r.Context(), t.Code)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if len(existing) >= limit && !containsWorker(existing, worker.ID) {
			respondError(w, r, apperrors.New(apperrors.CodeCapacityExceeded, "作业员数量已达租户上限").WithField("max_workers", limit))
			return
		}
	}

	if err := h.deps.Workers.Save(r.Context(), t.Code, &worker); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &worker)
}

func containsWorker(workers []model.Worker, id string) bool {
	for _, w := range workers {
		if w.ID == id {
			return true
		}
	}
	return false
}
