package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sekou/sekou/internal/repository"
	"github.com/sekou/sekou/internal/tenant"
	"github.com/sekou/sekou/pkg/calendar"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/logger"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/status"
)

// ScheduleSource 外部排程来源
type ScheduleSource interface {
	FetchSchedule(ctx context.Context) ([]model.Event, error)
}

// TransitionRequest 状态迁移请求
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// ImportRequest 批量导入请求，Source 为 upstream 时从外部排程服务拉取
type ImportRequest struct {
	Source string           `json:"source" validate:"omitempty,oneof=upstream"`
	Items  []model.RawEvent `json:"items"`
}

// ImportResult 导入结果
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// parseBuckets 解析逗号分隔的筛选桶
func parseBuckets(raw string) ([]status.Bucket, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]status.Bucket, 0, len(parts))
	for _, p := range parts {
		b, ok := status.ParseBucket(p)
		if !ok {
			return nil, apperrors.InvalidInput("buckets", "未知的筛选项 "+p)
		}
		out = append(out, b)
	}
	return out, nil
}

// ListEvents 列出事件
// 指定 date 时按日历规则（多日事件按天展开）返回当天事件；否则按 from/to 重叠筛选
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()

	buckets, err := parseBuckets(q.Get("buckets"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	if date := q.Get("date"); date != "" {
		day, err := h.deps.View.ParseDate(date)
		if err != nil {
			respondError(w, r, err)
			return
		}
		events, err := h.deps.Events.List(r.Context(), t.Code, repository.DefaultListFilter().
			WithWorker(q.Get("worker")).WithDateRange(date, date))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, h.deps.View.EventsOnDate(calendar.FilterByBuckets(events, buckets...), day))
		return
	}

	f := repository.DefaultListFilter().
		WithWorker(q.Get("worker")).
		WithDateRange(q.Get("from"), q.Get("to"))
	for _, b := range buckets {
		f.Buckets = append(f.Buckets, string(b))
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = nonNegative("offset", v); err != nil {
			respondError(w, r, err)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = nonNegative("limit", v); err != nil {
			respondError(w, r, err)
			return
		}
	}

	events, err := h.deps.Events.List(r.Context(), t.Code, f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// GetEvent 获取事件
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ev, err := h.deps.Events.Get(r.Context(), t.Code, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

// CreateEvent 新建事件，兼容旧字段名
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var raw model.RawEvent
	if err := decodeJSON(r, &raw); err != nil {
		respondError(w, r, err)
		return
	}
	ev, err := h.importOne(r.Context(), t, raw)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ev)
}

// ImportEvents 批量导入事件，无法迁移的条目跳过并报告
func (h *Handler) ImportEvents(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req ImportRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result := ImportResult{}
	if req.Source == "upstream" {
		if h.deps.Schedule == nil {
			respondError(w, r, apperrors.New(apperrors.CodeUpstreamUnavailable, "未配置外部排程服务"))
			return
		}
		events, err := h.deps.Schedule.FetchSchedule(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		for i := range events {
			ev := events[i]
			if err := h.saveEvent(r.Context(), t, &ev); err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, ev.ID+": "+err.Error())
				continue
			}
			result.Imported++
		}
	}

	for _, raw := range req.Items {
		if _, err := h.importOne(r.Context(), t, raw); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, raw.ID+": "+err.Error())
			continue
		}
		result.Imported++
	}

	logger.WithContext(r.Context()).Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("事件导入完成")
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) importOne(ctx context.Context, t *tenant.Tenant, raw model.RawEvent) (*model.Event, error) {
	ev, err := raw.Normalize()
	if err != nil {
		return nil, err
	}
	if _, known := status.Parse(raw.Status); !known && strings.TrimSpace(raw.Status) != "" {
		warnUnknownStatus(ctx, ev.ID, raw.Status)
	}
	if err := h.saveEvent(ctx, t, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func warnUnknownStatus(ctx context.Context, id, raw string) {
	logger.WithContext(ctx).Warn().
		Str("event_id", id).
		Str("status", raw).
		Msg("无法识别的状态，按 proposed 导入")
}

func (h *Handler) saveEvent(ctx context.Context, t *tenant.Tenant, ev *model.Event) error {
	// 外部排程的事件不经过 Normalize，这里统一归一
	if raw := ev.Status; ev.CanonicalizeStatus() == status.RuleDefault && strings.TrimSpace(raw) != "" {
		warnUnknownStatus(ctx, ev.ID, raw)
	}
	if err := h.check(ev); err != nil {
		return err
	}
	if ev.ConstructionType != "" && !t.AllowsConstructionType(ev.ConstructionType) {
		return apperrors.InvalidInput("constructionType", "租户未承接该工事类型")
	}
	return h.deps.Events.Save(ctx, t.Code, ev)
}

// ListConflicts 检测 [from, to] 内已分配事件的冲突
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	from, err := h.deps.View.ParseDate(q.Get("from"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := h.deps.View.ParseDate(q.Get("to"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if to.Before(from) {
		respondError(w, r, apperrors.InvalidInput("to", "结束日期早于开始日期"))
		return
	}

	events, err := h.eventsBetween(r.Context(), t.Code, from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	workers, err := h.deps.Workers.List(r.Context(), t.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	byID := make(map[string]*model.Worker, len(workers))
	for i := range workers {
		byID[workers[i].ID] = &workers[i]
	}
	respondJSON(w, http.StatusOK, h.detector.DetectAll(events, byID))
}

// TransitionEvent 迁移事件状态
func (h *Handler) TransitionEvent(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req TransitionRequest
	if err := h.decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ev, err := h.deps.Events.Transition(r.Context(), t.Code, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

// DeleteEvent 删除事件（归档，记录保留）
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.deps.Events.Get(r.Context(), t.Code, id); err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.deps.Events.Archive(r.Context(), t.Code, id); err != nil {
		respondError(w, r, apperrors.Wrap(err, apperrors.CodeStorageError, "删除事件失败"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// CalendarDay 日详情
func (h *Handler) CalendarDay(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	day, err := h.deps.View.ParseDate(q.Get("date"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	buckets, err := parseBuckets(q.Get("buckets"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	events, err := h.eventsBetween(r.Context(), t.Code, day, day)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.deps.View.DayDetail(events, day, buckets...))
}

// CalendarWeek 周视图
func (h *Handler) CalendarWeek(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	start, err := h.deps.View.ParseDate(q.Get("start"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	buckets, err := parseBuckets(q.Get("buckets"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	events, err := h.eventsBetween(r.Context(), t.Code, start, start.AddDate(0, 0, 6))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.deps.View.WeekSpans(events, start, buckets...))
}

// CalendarMonth 月视图
func (h *Handler) CalendarMonth(w http.ResponseWriter, r *http.Request) {
	_, t, err := scope(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil || year < 1 {
		respondError(w, r, apperrors.InvalidInput("year", "必须是正整数"))
		return
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		respondError(w, r, apperrors.InvalidInput("month", "必须在 1-12 之间"))
		return
	}
	buckets, err := parseBuckets(q.Get("buckets"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	// 网格最多向前 6 天、向后覆盖到 1 日后第 41 天
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, h.deps.View.Location())
	events, err := h.eventsBetween(r.Context(), t.Code, first.AddDate(0, 0, -7), first.AddDate(0, 0, 42))
	if err != nil {
		respondError(w, r, err)
		return
	}

	grid, err := h.deps.View.MonthGrid(events, year, time.Month(month), buckets...)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.SetCalendarEvents(t.Code, countBuckets(calendar.FilterByBuckets(events, buckets...)))
	}
	respondJSON(w, http.StatusOK, grid)
}

func (h *Handler) eventsBetween(ctx context.Context, tenantCode string, from, to time.Time) ([]model.Event, error) {
	return h.deps.Events.List(ctx, tenantCode, repository.DefaultListFilter().
		WithDateRange(from.Format(model.DateLayout), to.Format(model.DateLayout)))
}

func countBuckets(events []model.Event) map[string]int {
	out := make(map[string]int, 4)
	for _, b := range status.Buckets() {
		out[string(b)] = 0
	}
	for i := range events {
		out[string(events[i].Bucket())]++
	}
	return out
}
