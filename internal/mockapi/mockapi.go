// Package mockapi 提供内置的排程与自动分配 API
//
// 与外部自动分配服务使用相同的路径和报文：
//
//	GET  /api/schedule              排程事件
//	POST /api/schedule/auto-assign  推荐候选（只读）
//	POST /api/schedule/assign       提交分配
//
// 数据直接读写本地仓储，租户由 X-Tenant-Code 请求头决定。
package mockapi

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/sekou/sekou/internal/metrics"
	"github.com/sekou/sekou/internal/middleware"
	"github.com/sekou/sekou/internal/repository"
	"github.com/sekou/sekou/internal/security"
	"github.com/sekou/sekou/pkg/assignment"
	"github.com/sekou/sekou/pkg/calendar"
	"github.com/sekou/sekou/pkg/dispatcher/matcher"
	"github.com/sekou/sekou/pkg/logger"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/stats"
)

// Prefix 挂载路径
const Prefix = "/api/schedule"

// maxCandidates 返回的候选上限
const maxCandidates = 5

// maxDistanceKm 超过该直线距离时距离分数为 0
const maxDistanceKm = 50

// Config 内置 API 配置
type Config struct {
	DefaultTenant string
	Latency       time.Duration
	Keys          *security.APIKeyManager
	Metrics       *metrics.Metrics
}

// Server 内置排程 API
type Server struct {
	cfg        Config
	events     *repository.EventRepository
	workers    *repository.WorkerRepository
	capacities *repository.CapacityRepository
	view       *calendar.View
	analyzer   *stats.UtilizationAnalyzer
	matcher    *matcher.ComprehensiveMatcher
	validate   *validator.Validate
	log        *zerolog.Logger
}

// New 创建内置 API
func New(cfg Config, events *repository.EventRepository, workers *repository.WorkerRepository,
	capacities *repository.CapacityRepository, view *calendar.View, slots []model.TimeSlot) *Server {
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "default"
	}
	return &Server{
		cfg:        cfg,
		events:     events,
		workers:    workers,
		capacities: capacities,
		view:       view,
		analyzer:   stats.NewUtilizationAnalyzer(view, slots),
		matcher:    matcher.NewComprehensiveMatcher(maxDistanceKm),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		log:        logger.Component("mockapi"),
	}
}

// Handler 返回挂载在 Prefix 下的路由
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(s.cfg.Metrics))
	r.Use(middleware.RequireAPIKey(s.cfg.Keys, "schedule"))

	r.Get("/", s.Schedule)
	r.Post("/auto-assign", s.AutoAssign)
	r.Post("/assign", s.Assign)
	return r
}

type scheduleResponse struct {
	Success bool          `json:"success"`
	Items   []model.Event `json:"items"`
	Message string        `json:"message,omitempty"`
}

type autoAssignResponse struct {
	Success           bool                   `json:"success"`
	Assignments       []assignment.Candidate `json:"assignments"`
	AutoAssigned      bool                   `json:"autoAssigned"`
	RecommendedWorker *assignment.WorkerRef  `json:"recommendedWorker,omitempty"`
	Message           string                 `json:"message,omitempty"`
}

type assignResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) tenantOf(r *http.Request) string {
	if code := strings.TrimSpace(r.Header.Get("X-Tenant-Code")); code != "" {
		return code
	}
	return s.cfg.DefaultTenant
}

// Schedule GET /api/schedule
func (s *Server) Schedule(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.List(r.Context(), s.tenantOf(r), repository.DefaultListFilter())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, scheduleResponse{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Success: true, Items: events})
}

// AutoAssign POST /api/schedule/auto-assign
func (s *Server) AutoAssign(w http.ResponseWriter, r *http.Request) {
	var req assignment.Request
	if err := s.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, autoAssignResponse{Message: err.Error()})
		return
	}

	if s.cfg.Latency > 0 {
		select {
		case <-time.After(s.cfg.Latency):
		case <-r.Context().Done():
			return
		}
	}

	candidates, err := s.rank(r, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, autoAssignResponse{Message: err.Error()})
		return
	}

	resp := autoAssignResponse{Success: true, Assignments: candidates}
	if len(candidates) > 0 {
		resp.RecommendedWorker = &assignment.WorkerRef{
			WorkerID:   candidates[0].WorkerID,
			WorkerName: candidates[0].WorkerName,
		}
	}
	s.log.Debug().
		Str("event_id", req.EventID).
		Int("candidates", len(candidates)).
		Msg("已计算推荐候选")
	writeJSON(w, http.StatusOK, resp)
}

// Assign POST /api/schedule/assign
func (s *Server) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignment.AssignRequest
	if err := s.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, assignResponse{Message: err.Error()})
		return
	}

	tenantCode := s.tenantOf(r)
	name := ""
	if worker, err := s.workers.Get(r.Context(), tenantCode, req.WorkerID); err == nil {
		name = worker.Name
	}
	if _, err := s.events.AssignWorker(r.Context(), tenantCode, req.EventID, req.WorkerID, name); err != nil {
		writeJSON(w, http.StatusNotFound, assignResponse{Message: err.Error()})
		return
	}

	s.log.Info().
		Str("tenant", tenantCode).
		Str("event_id", req.EventID).
		Str("worker_id", req.WorkerID).
		Msg("已记录分配")
	writeJSON(w, http.StatusOK, assignResponse{Success: true})
}

// rank 为在职作业员打分，日级或时间段已满的作业员不参与推荐
func (s *Server) rank(r *http.Request, req assignment.Request) ([]assignment.Candidate, error) {
	tenantCode := s.tenantOf(r)
	workers, err := s.workers.List(r.Context(), tenantCode)
	if err != nil {
		return nil, err
	}
	caps, err := s.capacities.Map(r.Context(), tenantCode)
	if err != nil {
		return nil, err
	}

	in := matcher.Input{
		Skills: req.SkillsRequired,
		Site:   &model.Location{Address: req.SiteAddress},
	}
	ev, evErr := s.events.Get(r.Context(), tenantCode, req.EventID)
	if evErr == nil && ev.SiteLocation != nil {
		site := *ev.SiteLocation
		if site.Address == "" {
			site.Address = req.SiteAddress
		}
		in.Site = &site
	}

	if req.PreferredDate != "" {
		days, err := s.spanDays(req.PreferredDate, ev, evErr == nil)
		if err != nil {
			return nil, err
		}
		from := days[0].Format(model.DateLayout)
		to := days[len(days)-1].Format(model.DateLayout)
		spanEvents, err := s.events.List(r.Context(), tenantCode, repository.DefaultListFilter().WithDateRange(from, to))
		if err != nil {
			return nil, err
		}
		var slot string
		if evErr == nil {
			slot, _ = model.SlotOf(s.analyzer.Slots(), ev.StartTime)
		}
		// 多日事件按覆盖的每一天检查，任何一天已满即排除，分数取最紧张的一天
		in.Workload = func(wk *model.Worker) (float64, bool) {
			score := 100.0
			wc, hasCap := caps[wk.ID]
			for _, day := range days {
				load, bySlot := s.analyzer.Load(spanEvents, wk.ID, day)
				if !hasCap {
					score = math.Min(score, math.Max(0, 100-float64(load)*20))
					continue
				}
				room := s.view.CheckRoom(wc, day, slot, load, bySlot[slot])
				if !room.OK {
					return 0, false
				}
				if room.DailyLimit > 0 {
					score = math.Min(score, float64(room.DailyRemaining)/float64(room.DailyLimit)*100)
				}
			}
			return score, true
		}
	}

	scores := s.matcher.Match(in, workers)
	if len(scores) > maxCandidates {
		scores = scores[:maxCandidates]
	}
	out := make([]assignment.Candidate, 0, len(scores))
	for _, m := range scores {
		c := assignment.Candidate{
			WorkerID:      m.WorkerID,
			WorkerName:    m.WorkerName,
			Score:         round1(m.TotalScore),
			SkillMatch:    round1(m.SkillScore),
			DistanceScore: round1(m.DistanceScore),
			WorkloadScore: round1(m.WorkloadScore),
		}
		c.Reasons = reasons(c, m.Distance)
		out = append(out, c)
	}
	return out, nil
}

// spanDays 从希望日期起，按事件覆盖的天数展开
func (s *Server) spanDays(preferred string, ev *model.Event, known bool) ([]time.Time, error) {
	first, err := s.view.ParseDate(preferred)
	if err != nil {
		return nil, err
	}
	length := 1
	if known && ev.IsMultiDay {
		start, err := s.view.ParseDate(ev.StartDate)
		if err != nil {
			return nil, err
		}
		last, err := s.view.ParseDate(ev.LastDate())
		if err != nil {
			return nil, err
		}
		length = int(last.Sub(start).Hours()/24+0.5) + 1
	}
	days := make([]time.Time, 0, length)
	for i := 0; i < length; i++ {
		days = append(days, first.AddDate(0, 0, i))
	}
	return days, nil
}

func reasons(c assignment.Candidate, km float64) []string {
	out := make([]string, 0, 3)
	if c.SkillMatch >= 100 {
		out = append(out, "必要スキルを保有")
	}
	if km > 0 {
		out = append(out, fmt.Sprintf("現場まで約%.1fkm", km))
	} else if c.DistanceScore >= 90 {
		out = append(out, "現場から近い")
	}
	if c.WorkloadScore > 0 {
		out = append(out, "当日の空きあり")
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
