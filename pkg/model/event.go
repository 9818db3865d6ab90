package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/status"
)

// Event 工事排程事件（规范形态，内部逻辑只使用这一种字段命名）
type Event struct {
	BaseModel
	ID       string `json:"id" validate:"required"`
	TenantID string `json:"tenantId,omitempty"`
	Title    string `json:"title,omitempty"`

	// 时间
	StartDate  string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IsMultiDay bool   `json:"isMultiDay"`
	StartTime  string `json:"startTime,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime    string `json:"endTime,omitempty" validate:"omitempty,datetime=15:04"`

	// 分类
	Status           string `json:"status"`
	ConstructionType string `json:"constructionType,omitempty"`
	Color            string `json:"color,omitempty"`

	// 分配（为空表示未分配）
	WorkerID   string `json:"workerId,omitempty"`
	WorkerName string `json:"workerName,omitempty"`

	// 现场
	ClientName string `json:"clientName,omitempty"`
	SiteName   string `json:"siteName,omitempty"`
	Address    string `json:"address,omitempty"`

	SiteLocation *Location `json:"siteLocation,omitempty"` // 可选，有坐标时按直线距离推荐

	// 删除只做归档：记录保留，但不再出现在列表、日历与推荐中
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// IsArchived 检查事件是否已归档
func (e *Event) IsArchived() bool {
	return e.ArchivedAt != nil
}

// IsAssigned 检查事件是否已分配作业员
func (e *Event) IsAssigned() bool {
	return e.WorkerID != ""
}

// Bucket 返回日历筛选桶
func (e *Event) Bucket() status.Bucket {
	return status.Classify(e.Status, e.Color)
}

// CanonicalizeStatus 把状态收敛到规范集合，颜色随状态重新派生。
// 无法识别的状态和没有状态也没有已知颜色的事件都归为 proposed；返回生效的规则
func (e *Event) CanonicalizeStatus() status.Rule {
	st, rule := status.Resolve(e.Status, e.Color)
	e.Status = string(st)
	e.Color = status.ColorOf(status.Classify(e.Status, ""))
	return rule
}

// LastDate 返回事件覆盖的最后一天
func (e *Event) LastDate() string {
	if e.IsMultiDay && e.EndDate != "" {
		return e.EndDate
	}
	return e.StartDate
}

// RawEvent 导入边界上的事件形态，兼容历史字段名
type RawEvent struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	TenantIDV1 string `json:"tenant_id"`
	Title      string `json:"title"`

	Date        string `json:"date"`
	StartDate   string `json:"startDate"`
	StartDateV1 string `json:"start_date"`
	EndDate     string `json:"endDate"`
	EndDateV1   string `json:"end_date"`
	IsMultiDay  bool   `json:"isMultiDay"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`

	Status           string `json:"status"`
	ConstructionType string `json:"constructionType"`
	Color            string `json:"color"`

	WorkerID     string `json:"workerId"`
	WorkerIDV1   string `json:"worker_id"`
	WorkerName   string `json:"workerName"`
	WorkerNameV1 string `json:"worker_name"`

	ClientName string `json:"clientName"`
	SiteName   string `json:"siteName"`
	Address    string `json:"address"`

	SiteLocation *Location `json:"siteLocation"`
}

// Normalize 将导入数据迁移为规范事件
func (r RawEvent) Normalize() (Event, error) {
	ev := Event{
		ID:               strings.TrimSpace(r.ID),
		TenantID:         firstNonEmpty(r.TenantID, r.TenantIDV1),
		Title:            r.Title,
		StartDate:        firstNonEmpty(r.StartDate, r.StartDateV1, r.Date),
		EndDate:          firstNonEmpty(r.EndDate, r.EndDateV1),
		IsMultiDay:       r.IsMultiDay,
		StartTime:        strings.TrimSpace(r.StartTime),
		EndTime:          strings.TrimSpace(r.EndTime),
		Status:           strings.TrimSpace(r.Status),
		ConstructionType: strings.TrimSpace(r.ConstructionType),
		Color:            strings.TrimSpace(r.Color),
		WorkerID:         firstNonEmpty(r.WorkerID, r.WorkerIDV1),
		WorkerName:       firstNonEmpty(r.WorkerName, r.WorkerNameV1),
		ClientName:       r.ClientName,
		SiteName:         r.SiteName,
		Address:          r.Address,
		SiteLocation:     r.SiteLocation,
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.StartDate == "" {
		return Event{}, apperrors.InvalidInput("startDate", "缺少日期")
	}
	start, err := time.Parse(DateLayout, ev.StartDate)
	if err != nil {
		return Event{}, apperrors.InvalidDate(ev.StartDate)
	}

	if ev.EndDate != "" {
		end, err := time.Parse(DateLayout, ev.EndDate)
		if err != nil {
			return Event{}, apperrors.InvalidDate(ev.EndDate)
		}
		if end.Before(start) {
			return Event{}, apperrors.InvalidInput("endDate", "结束日期早于开始日期")
		}
		if end.After(start) {
			ev.IsMultiDay = true
		}
	}
	if ev.IsMultiDay && ev.EndDate == "" {
		ev.IsMultiDay = false
	}

	ev.CanonicalizeStatus()
	return ev, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
