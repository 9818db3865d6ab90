// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"github.com/sekou/sekou/internal/metrics"
	"github.com/sekou/sekou/internal/middleware"
	"github.com/sekou/sekou/internal/repository"
	"github.com/sekou/sekou/internal/security"
	"github.com/sekou/sekou/internal/session"
	"github.com/sekou/sekou/internal/store"
	"github.com/sekou/sekou/internal/tenant"
	"github.com/sekou/sekou/pkg/assignment"
	"github.com/sekou/sekou/pkg/calendar"
	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/logger"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/stats"
	conflict "github.com/sekou/sekou/pkg/validator"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// Assigner 自动分配服务中需要提交分配的部分
type Assigner interface {
	Assign(ctx context.Context, eventID, workerID string) error
	BreakerState() string
}

// Deps 处理器依赖
type Deps struct {
	Store      store.Store
	Sessions   *session.Manager
	Tenants    *tenant.TenantManager
	Capacities *repository.CapacityRepository
	Events     *repository.EventRepository
	Workers    *repository.WorkerRepository
	View       *calendar.View
	Slots      []model.TimeSlot

	Recommender assignment.Recommender
	Assigner    Assigner
	Schedule    ScheduleSource

	Metrics     *metrics.Metrics
	Limiter     *security.RateLimiter
	CORSOrigins []string
	MetricsPath string
	Version     string
}

// Handler API处理器
type Handler struct {
	deps       Deps
	validate   *validator.Validate
	translator ut.Translator
	recalcs    *assignment.RecalculatorSet
	analyzer   *stats.UtilizationAnalyzer
	detector   *conflict.ConflictDetector
	startedAt  time.Time
}

// New 创建处理器
func New(deps Deps) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zhLocale := zh.New()
	uni := ut.New(zhLocale, zhLocale)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}
	if deps.Recommender == nil || deps.Assigner == nil {
		return nil, errors.New("handler: recommender and assigner are required")
	}
	if len(deps.Slots) == 0 {
		deps.Slots = model.DefaultTimeSlots()
	}
	if deps.View == nil {
		deps.View = calendar.New(nil, 0)
	}

	return &Handler{
		deps:       deps,
		validate:   validate,
		translator: trans,
		recalcs:    assignment.NewRecalculatorSet(deps.Recommender),
		analyzer:   stats.NewUtilizationAnalyzer(deps.View, deps.Slots),
		detector:   conflict.NewConflictDetector(nil),
		startedAt:  time.Now(),
	}, nil
}

// PruneRecommendations 清理闲置超过 idle 的会话推荐状态
func (h *Handler) PruneRecommendations(idle time.Duration) int {
	return h.recalcs.PruneIdle(idle)
}

// Router 注册路由
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(h.deps.Metrics))
	r.Use(middleware.SecurityHeaders)
	if len(h.deps.CORSOrigins) > 0 {
		r.Use(middleware.CORS(h.deps.CORSOrigins))
	}

	r.Get("/health", h.Health)
	r.Get("/version", h.Version)
	if h.deps.Metrics != nil {
		path := h.deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, h.deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session/login", h.Login)

		// 以下 API 必须要在登录后才允许调用
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(&middleware.AuthConfig{
				Sessions:  h.deps.Sessions,
				Tenants:   h.deps.Tenants,
				OnExpired: h.recalcs.Drop,
			}))
			if h.deps.Limiter != nil {
				r.Use(middleware.RateLimit(h.deps.Limiter, h.deps.Metrics))
			}

			r.Post("/session/logout", h.Logout)
			r.Get("/session", h.CurrentSession)

			r.Route("/workers", func(r chi.Router) {
				r.Get("/", h.ListWorkers)
				r.With(middleware.RequireRole("admin", "dispatcher")).Post("/", h.SaveWorker)
				r.Route("/{id}/capacity", func(r chi.Router) {
					r.Use(middleware.RequireFeature("capacity"))
					r.Get("/", h.GetCapacity)
					r.Get("/resolve", h.ResolveCapacity)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRole("admin", "dispatcher"))
						r.Put("/", h.PutCapacity)
						r.Put("/dates/{date}", h.SetDateOverride)
						r.Delete("/dates/{date}", h.ClearDateOverride)
						r.Put("/weekdays/{weekday}", h.SetWeekdayOverride)
						r.Delete("/weekdays/{weekday}", h.ClearWeekdayOverride)
						r.Put("/slots/{slot}", h.SetSlotCap)
						r.Delete("/slots/{slot}", h.ClearSlotCap)
					})
				})
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", h.ListEvents)
				r.Get("/conflicts", h.ListConflicts)
				r.Get("/{id}", h.GetEvent)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole("admin", "dispatcher"))
					r.Post("/", h.CreateEvent)
					r.Post("/import", h.ImportEvents)
					r.Post("/{id}/status", h.TransitionEvent)
					r.Delete("/{id}", h.DeleteEvent)
				})
			})

			r.Route("/calendar", func(r chi.Router) {
				r.Use(middleware.RequireFeature("calendar"))
				r.Get("/day", h.CalendarDay)
				r.Get("/week", h.CalendarWeek)
				r.Get("/month", h.CalendarMonth)
			})

			r.With(middleware.RequireFeature("stats")).Get("/stats/utilization", h.Utilization)

			r.Route("/assignments", func(r chi.Router) {
				r.Use(middleware.RequireFeature("assignment"))
				r.Post("/recommend", h.Recommend)
				r.Get("/latest", h.LatestRecommendation)
				r.With(middleware.RequireRole("admin", "dispatcher")).Post("/apply", h.Apply)
			})
		})
	})

	return r
}

// Response 统一响应信封
type Response struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Error   *apperrors.AppError `json:"error,omitempty"`
}

// respondJSON 返回JSON响应，4xx/5xx 时 success 为 false
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: status < http.StatusBadRequest, Data: data})
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.CodeInternal, "服务器内部错误")
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("请求处理失败")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(Response{Success: false, Error: appErr})
}

// decode 解析并校验请求体
func (h *Handler) decode(r *http.Request, v interface{}) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	return h.check(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "请求体不是合法的JSON")
	}
	return nil
}

// check 校验结构体，错误信息翻译为中文
func (h *Handler) check(v interface{}) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.CodeValidationFail, "验证失败")
	}
	out := &apperrors.ValidationErrors{}
	for _, fe := range verrs {
		out.Add(fe.Field(), fe.Translate(h.translator))
	}
	return out.ToAppError()
}

// scope 返回当前请求的会话和租户
func scope(r *http.Request) (*session.Session, *tenant.Tenant, error) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		return nil, nil, apperrors.New(apperrors.CodeUnauthorized, "未登录")
	}
	t, ok := tenant.FromContext(r.Context())
	if !ok {
		return nil, nil, apperrors.New(apperrors.CodeUnauthorized, "未登录")
	}
	return s, t, nil
}
