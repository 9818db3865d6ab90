package assignment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/logger"
	"github.com/sekou/sekou/pkg/model"
)

const (
	pathSchedule   = "/api/schedule"
	pathAutoAssign = "/api/schedule/auto-assign"
	pathAssign     = "/api/schedule/assign"

	noticeUnavailable = "自动分配服务暂时不可用，当前显示示例候选"
	noticeEmpty       = "没有找到符合条件的作业员，当前显示示例候选"
)

// errEmptyResult 请求成功但没有候选
var errEmptyResult = errors.New("assignment service returned no candidates")

// Config 客户端配置
type Config struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL" envDefault:"http://localhost:7012"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" envDefault:"10s"`
	APIKey  string        `yaml:"api_key" env:"API_KEY"` // 非空时以 X-API-Key 发送

	// 熔断：连续失败 BreakerFailures 次后打开，BreakerOpenFor 后半开探测
	BreakerFailures uint32        `yaml:"breaker_failures" env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for" env:"BREAKER_OPEN_FOR" envDefault:"30s"`
	BreakerHalfOpen uint32        `yaml:"breaker_half_open" env:"BREAKER_HALF_OPEN" envDefault:"1"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:7012",
		Timeout:         10 * time.Second,
		BreakerFailures: 5,
		BreakerOpenFor:  30 * time.Second,
		BreakerHalfOpen: 1,
	}
}

// Client 自动分配服务客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	headers    http.Header
	log        *zerolog.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader 为每个请求附加请求头（如 X-Tenant-Code）
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// NewClient 创建客户端
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultConfig().BreakerFailures
	}

	log := logger.Component("assignment")
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers:    make(http.Header),
		log:        log,
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "assignment-service",
		MaxRequests: cfg.BreakerHalfOpen,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 被新请求取消的调用不算服务故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断器状态变化")
		},
	})

	if cfg.APIKey != "" {
		c.headers.Set("X-API-Key", cfg.APIKey)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState 熔断器当前状态
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Recommend 请求推荐候选，任何失败都回落到示例候选，不返回错误
func (c *Client) Recommend(ctx context.Context, ev model.Event) Result {
	return c.RecommendRequest(ctx, RequestFor(ev))
}

// RecommendRequest 同 Recommend，直接使用已构造的请求
func (c *Client) RecommendRequest(ctx context.Context, req Request) Result {
	start := time.Now()
	res := Result{Request: req}

	var resp autoAssignResponse
	err := c.do(ctx, http.MethodPost, pathAutoAssign, req, &resp)
	if err == nil && !resp.Success {
		err = fmt.Errorf("assignment service reported failure: %s", resp.Message)
	}
	if err == nil && len(resp.Assignments) == 0 {
		err = errEmptyResult
	}
	res.ElapsedMs = time.Since(start).Milliseconds()

	if err != nil {
		res.Candidates = FallbackCandidates()
		res.Source = SourceFallback
		res.Cause = err
		if errors.Is(err, errEmptyResult) {
			res.FallbackReason = ReasonEmpty
			res.Notice = noticeEmpty
		} else {
			res.FallbackReason = ReasonUnavailable
			res.Notice = noticeUnavailable
		}
		c.log.Warn().Err(err).
			Str("event_id", req.EventID).
			Str("reason", string(res.FallbackReason)).
			Msg("自动分配回落到示例候选")
		return res
	}

	res.Candidates = resp.Assignments
	res.Source = SourceService
	res.AutoAssigned = resp.AutoAssigned
	res.RecommendedWorker = resp.RecommendedWorker
	c.log.Debug().Str("event_id", req.EventID).Int("candidates", len(res.Candidates)).Msg("收到推荐候选")
	return res
}

// Assign 提交分配，这是唯一会修改外部状态的调用
func (c *Client) Assign(ctx context.Context, eventID, workerID string) error {
	if eventID == "" {
		return apperrors.InvalidInput("eventId", "不能为空")
	}
	if workerID == "" {
		return apperrors.InvalidInput("workerId", "不能为空")
	}

	var resp assignResponse
	if err := c.do(ctx, http.MethodPost, pathAssign, AssignRequest{EventID: eventID, WorkerID: workerID}, &resp); err != nil {
		return apperrors.Wrap(err, apperrors.CodeUpstreamUnavailable, "提交分配失败")
	}
	if !resp.Success {
		return apperrors.New(apperrors.CodeUpstreamUnavailable, "分配服务拒绝了提交").WithDetails(resp.Message)
	}
	c.log.Info().Str("event_id", eventID).Str("worker_id", workerID).Msg("分配已提交")
	return nil
}

// FetchSchedule 拉取排程事件，条目在边界上统一迁移为规范形态
// 无法迁移的条目被跳过
func (c *Client) FetchSchedule(ctx context.Context) ([]model.Event, error) {
	var resp scheduleResponse
	if err := c.do(ctx, http.MethodGet, pathSchedule, nil, &resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamUnavailable, "获取排程失败")
	}
	if !resp.Success {
		return nil, apperrors.New(apperrors.CodeUpstreamUnavailable, "排程服务返回失败")
	}

	events := make([]model.Event, 0, len(resp.Items))
	for _, raw := range resp.Items {
		ev, err := raw.Normalize()
		if err != nil {
			c.log.Warn().Err(err).Str("event_id", raw.ID).Msg("跳过无法识别的排程条目")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// do 经熔断器发送请求，非 2xx 视为失败
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker %s: %w", c.breaker.Name(), err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if id, ok := ctx.Value(logger.RequestIDKey).(string); ok && id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	// 请求所属租户优先于 WithHeader 设置的默认租户
	if code, ok := ctx.Value(logger.TenantKey).(string); ok && code != "" {
		req.Header.Set("X-Tenant-Code", code)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
