package handler

import (
	"net/http"
	"time"

	"github.com/sekou/sekou/internal/repository"
	"github.com/sekou/sekou/internal/security"
	"github.com/sekou/sekou/pkg/assignment"
	"github.com/sekou/sekou/pkg/capacity"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/logger"
	"github.com/sekou/sekou/pkg/model"
	conflict "github.com/sekou/sekou/pkg/validator"
)

const breakerName = "assignment-service"

// RecommendRequest 推荐请求
// 除 eventId 外的字段用于在保存前预览修改后的条件
type RecommendRequest struct {
	EventID          string `json:"eventId" validate:"required"`
	ConstructionType string `json:"constructionType"`
	PreferredDate    string `json:"preferredDate" validate:"omitempty,datetime=2006-01-02"`
	SiteAddress      string `json:"siteAddress"`
}

// ApplyRequest 提交分配请求
type ApplyRequest struct {
	EventID    string `json:"eventId" validate:"required"`
	WorkerID   string `json:"workerId" validate:"required"`
	WorkerName string `json:"workerName"`
	// Force 为 true 时跳过接单能力检查
	Force bool `json:"force"`
}

// ApplyResponse 提交分配响应
type ApplyResponse struct {
	Event     *model.Event        `json:"event"`
	Room      *capacity.Room      `json:"room,omitempty"`
	Conflicts []conflict.Conflict `json:"conflicts,omitempty"`
}

// Recommend 请求推荐候选
// 同一会话内新的请求会取消进行中的旧请求，被取代的结果标记为 superseded
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req RecommendRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ev, err := h.deps.Events.Get(r.Context(), t.Code, req.EventID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if req.ConstructionType != "" {
		ev.ConstructionType = req.ConstructionType
	}
	if req.PreferredDate != "" {
		ev.StartDate = req.PreferredDate
	}
	if req.SiteAddress != "" {
		ev.Address = req.SiteAddress
	}

	out := h.recalcs.For(security.ExtractToken(r)).Recalculate(r.Context(), *ev)
	if h.deps.Metrics != nil && !out.Superseded {
		h.deps.Metrics.RecordRecommendation(string(out.Source), string(out.FallbackReason), time.Duration(out.ElapsedMs)*time.Millisecond)
	}
	h.recordBreaker()

	if out.IsFallback() {
		logger.WithContext(r.Context()).Warn().
			Err(out.Cause).
			Str("event_id", ev.ID).
			Str("reason", string(out.FallbackReason)).
			Msg("推荐使用示例候选")
	}
	respondJSON(w, http.StatusOK, out)
}

// LatestRecommendation 返回本会话最近发布的推荐结果
func (h *Handler) LatestRecommendation(w http.ResponseWriter, r *http.Request) {
	var (
		out assignment.Outcome
		ok  bool
	)
	if rc, found := h.recalcs.Lookup(security.ExtractToken(r)); found {
		out, ok = rc.Latest()
	}
	if !ok {
		respondError(w, r, apperrors.NotFound("recommendation", "latest"))
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Apply 提交分配
// 先做日级与时间段两项接单能力检查和冲突检查，再提交到自动分配服务，最后记录到事件
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req ApplyRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if assignment.IsFallbackWorker(req.WorkerID) {
		respondError(w, r, apperrors.InvalidInput("workerId", "示例候选不能用于提交分配"))
		return
	}

	ev, err := h.deps.Events.Get(r.Context(), t.Code, req.EventID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := ApplyResponse{}
	if c, err := h.deps.Capacities.Get(r.Context(), t.Code, req.WorkerID); err == nil {
		room, err := h.roomFor(r, t.Code, c, ev)
		if err != nil {
			respondError(w, r, err)
			return
		}
		resp.Room = &room
		if !room.OK && !req.Force {
			respondError(w, r, apperrors.New(apperrors.CodeCapacityExceeded, "作业员在 "+room.Date+" 没有剩余接单空间").
				WithField("room", room))
			return
		}
	} else if !apperrors.Is(err, apperrors.CodeNotFound) {
		respondError(w, r, err)
		return
	}

	var worker *model.Worker
	if wk, err := h.deps.Workers.Get(r.Context(), t.Code, req.WorkerID); err == nil {
		worker = wk
	}
	resp.Conflicts, err = h.conflictsFor(r, t.Code, ev, req.WorkerID, worker)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if conflict.HasErrors(resp.Conflicts) && !req.Force {
		respondError(w, r, apperrors.New(apperrors.CodeScheduleConflict, "分配会造成排程冲突").
			WithField("conflicts", resp.Conflicts))
		return
	}

	err = h.deps.Assigner.Assign(r.Context(), ev.ID, req.WorkerID)
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordAssignCommit(err == nil)
	}
	h.recordBreaker()
	if err != nil {
		respondError(w, r, err)
		return
	}

	name := req.WorkerName
	if worker != nil {
		name = worker.Name
	}
	resp.Event, err = h.deps.Events.AssignWorker(r.Context(), t.Code, ev.ID, req.WorkerID, name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// roomFor 逐日检查事件覆盖的每一天（不计事件本身），返回第一个没有空间的日子；
// 每天都有空间时返回开始日的结果
func (h *Handler) roomFor(r *http.Request, tenantCode string, c *capacity.WorkerCapacity, ev *model.Event) (capacity.Room, error) {
	first, err := h.deps.View.ParseDate(ev.StartDate)
	if err != nil {
		return capacity.Room{}, err
	}
	last, err := h.deps.View.ParseDate(ev.LastDate())
	if err != nil {
		return capacity.Room{}, err
	}
	events, err := h.deps.Events.List(r.Context(), tenantCode, repository.DefaultListFilter().
		WithWorker(c.WorkerID).
		WithDateRange(ev.StartDate, ev.LastDate()))
	if err != nil {
		return capacity.Room{}, err
	}

	slot, _ := model.SlotOf(h.deps.Slots, ev.StartTime)
	var firstRoom capacity.Room
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		dayAssigned, bySlot := h.analyzer.Load(events, c.WorkerID, day)
		if ev.WorkerID == c.WorkerID {
			// 重复提交同一作业员时不把自己算作已占用
			dayAssigned = max(dayAssigned-1, 0)
			if slot != "" {
				bySlot[slot] = max(bySlot[slot]-1, 0)
			}
		}
		room := h.deps.View.CheckRoom(c, day, slot, dayAssigned, bySlot[slot])
		if !room.OK {
			return room, nil
		}
		if day.Equal(first) {
			firstRoom = room
		}
	}
	return firstRoom, nil
}

// conflictsFor 检查分配后的冲突，前后各多取一周用于连续天数判断
func (h *Handler) conflictsFor(r *http.Request, tenantCode string, ev *model.Event, workerID string, worker *model.Worker) ([]conflict.Conflict, error) {
	first, err := h.deps.View.ParseDate(ev.StartDate)
	if err != nil {
		return nil, err
	}
	last, err := h.deps.View.ParseDate(ev.LastDate())
	if err != nil {
		return nil, err
	}
	existing, err := h.deps.Events.List(r.Context(), tenantCode, repository.DefaultListFilter().
		WithWorker(workerID).
		WithDateRange(first.AddDate(0, 0, -7).Format(model.DateLayout), last.AddDate(0, 0, 7).Format(model.DateLayout)))
	if err != nil {
		return nil, err
	}
	return h.detector.DetectForAssignment(*ev, workerID, existing, worker), nil
}

func (h *Handler) recordBreaker() {
	if h.deps.Metrics != nil && h.deps.Assigner != nil {
		h.deps.Metrics.SetBreakerState(breakerName, h.deps.Assigner.BreakerState())
	}
}
