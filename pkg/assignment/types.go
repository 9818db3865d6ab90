// Package assignment 是外部自动分配服务的客户端
//
// 推荐（Recommend）只读，提交（Assign）是唯一的写操作。
// 推荐失败时不返回错误，而是换成固定的三名示例候选，并通过 Result.Source 标明来源。
package assignment

import (
	"strings"

	"github.com/sekou/sekou/pkg/model"
)

// Request 自动分配请求
type Request struct {
	EventID          string   `json:"eventId" validate:"required"`
	ConstructionType string   `json:"constructionType"`
	SkillsRequired   []string `json:"skillsRequired"`
	PreferredDate    string   `json:"preferredDate"`
	SiteAddress      string   `json:"siteAddress"`
}

// RequestFor 由事件构造请求，技能列表由工事类型查表得到
func RequestFor(ev model.Event) Request {
	return Request{
		EventID:          ev.ID,
		ConstructionType: ev.ConstructionType,
		SkillsRequired:   SkillsFor(ev.ConstructionType),
		PreferredDate:    ev.StartDate,
		SiteAddress:      ev.Address,
	}
}

// Candidate 推荐候选（不持久化）
// 各子分数的权重由外部服务决定
type Candidate struct {
	WorkerID      string   `json:"workerId"`
	WorkerName    string   `json:"workerName"`
	Score         float64  `json:"score"` // 0-100
	Reasons       []string `json:"reasons"`
	SkillMatch    float64  `json:"skillMatch"`
	DistanceScore float64  `json:"distanceScore"`
	WorkloadScore float64  `json:"workloadScore"`
}

// WorkerRef 作业员引用
type WorkerRef struct {
	WorkerID   string `json:"workerId"`
	WorkerName string `json:"workerName"`
}

// Source 候选列表来源
type Source string

const (
	SourceService  Source = "service"
	SourceFallback Source = "fallback"
)

// FallbackReason 使用示例候选的原因
type FallbackReason string

const (
	ReasonNone        FallbackReason = ""
	ReasonUnavailable FallbackReason = "unavailable" // 网络错误、非 2xx、success=false、熔断
	ReasonEmpty       FallbackReason = "empty"       // 请求成功但没有候选
)

// Result 推荐结果
type Result struct {
	Request           Request        `json:"request"`
	Candidates        []Candidate    `json:"candidates"`
	Source            Source         `json:"source"`
	FallbackReason    FallbackReason `json:"fallbackReason,omitempty"`
	Notice            string         `json:"notice,omitempty"`
	AutoAssigned      bool           `json:"autoAssigned"`
	RecommendedWorker *WorkerRef     `json:"recommendedWorker,omitempty"`
	ElapsedMs         int64          `json:"elapsedMs"`

	// Cause 回落时的底层原因，只用于日志
	Cause error `json:"-"`
}

// IsFallback 是否为示例数据
func (r Result) IsFallback() bool {
	return r.Source == SourceFallback
}

// autoAssignResponse POST /api/schedule/auto-assign 的响应
type autoAssignResponse struct {
	Success           bool        `json:"success"`
	Assignments       []Candidate `json:"assignments"`
	AutoAssigned      bool        `json:"autoAssigned,omitempty"`
	RecommendedWorker *WorkerRef  `json:"recommendedWorker,omitempty"`
	Message           string      `json:"message,omitempty"`
}

// AssignRequest POST /api/schedule/assign 的请求体
type AssignRequest struct {
	EventID  string `json:"eventId" validate:"required"`
	WorkerID string `json:"workerId" validate:"required"`
}

type assignResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// scheduleResponse GET /api/schedule 的响应，条目可能仍是旧字段名
type scheduleResponse struct {
	Success bool             `json:"success"`
	Items   []model.RawEvent `json:"items"`
}

// fallbackIDPrefix 示例候选的作业员ID前缀
const fallbackIDPrefix = "fallback-"

// IsFallbackWorker 是否为示例候选的作业员ID
func IsFallbackWorker(workerID string) bool {
	return strings.HasPrefix(workerID, fallbackIDPrefix)
}

// FallbackCandidates 固定的示例候选，每次返回新切片
func FallbackCandidates() []Candidate {
	return []Candidate{
		{
			WorkerID:      "fallback-1",
			WorkerName:    "山田太郎",
			Score:         95,
			Reasons:       []string{"必要スキルを保有", "現場から近い", "当日の空きあり"},
			SkillMatch:    100,
			DistanceScore: 90,
			WorkloadScore: 95,
		},
		{
			WorkerID:      "fallback-2",
			WorkerName:    "佐藤次郎",
			Score:         82,
			Reasons:       []string{"必要スキルを保有", "当日の空きあり"},
			SkillMatch:    90,
			DistanceScore: 75,
			WorkloadScore: 80,
		},
		{
			WorkerID:      "fallback-3",
			WorkerName:    "鈴木三郎",
			Score:         78,
			Reasons:       []string{"現場から近い"},
			SkillMatch:    70,
			DistanceScore: 85,
			WorkloadScore: 80,
		},
	}
}
