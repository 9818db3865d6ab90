// Package calendar 计算日历格子中可见的事件
//
// 多日事件按「开始日 00:00:00 ~ 结束日 23:59:59」的闭区间处理，查询日固定取当天 12:00，
// 因此事件和查询的具体时刻都不会影响匹配结果。
package calendar

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sekou/sekou/pkg/capacity"
	"github.com/sekou/sekou/pkg/logger"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/status"
)

// DefaultMaxPerCell 月视图每格默认显示的事件数
const DefaultMaxPerCell = 3

// View 日历视图计算器
type View struct {
	loc        *time.Location
	maxPerCell int
	log        *zerolog.Logger
}

// New 创建日历视图，loc 为空时使用 UTC
func New(loc *time.Location, maxPerCell int) *View {
	if loc == nil {
		loc = time.UTC
	}
	if maxPerCell <= 0 {
		maxPerCell = DefaultMaxPerCell
	}
	return &View{
		loc:        loc,
		maxPerCell: maxPerCell,
		log:        logger.Component("calendar"),
	}
}

// Location 返回视图使用的时区
func (v *View) Location() *time.Location {
	return v.loc
}

// span 事件覆盖的时间区间
type span struct {
	start time.Time // 开始日 00:00:00
	end   time.Time // 结束日 23:59:59
}

func (v *View) spanOf(e *model.Event) (span, bool) {
	start, err := time.ParseInLocation(model.DateLayout, e.StartDate, v.loc)
	if err != nil {
		v.log.Debug().Str("event_id", e.ID).Str("start_date", e.StartDate).Msg("事件日期无法解析，跳过")
		return span{}, false
	}
	last := start
	if e.IsMultiDay && e.EndDate != "" {
		end, err := time.ParseInLocation(model.DateLayout, e.EndDate, v.loc)
		if err != nil || end.Before(start) {
			v.log.Debug().Str("event_id", e.ID).Str("end_date", e.EndDate).Msg("结束日期无效，按单日处理")
		} else {
			last = end
		}
	}
	return span{
		start: start,
		end:   time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, 0, v.loc),
	}, true
}

// midday 返回日期在视图时区内当天的 12:00
func (v *View) midday(date time.Time) time.Time {
	y, m, d := date.In(v.loc).Date()
	return time.Date(y, m, d, 12, 0, 0, 0, v.loc)
}

func (s span) covers(t time.Time) bool {
	return !t.Before(s.start) && !t.After(s.end)
}

// Occurs 检查事件是否出现在某天
func (v *View) Occurs(e *model.Event, date time.Time) bool {
	sp, ok := v.spanOf(e)
	if !ok {
		return false
	}
	return sp.covers(v.midday(date))
}

// EventsOnDate 返回某天可见的事件，保持输入顺序
func (v *View) EventsOnDate(events []model.Event, date time.Time) []model.Event {
	q := v.midday(date)
	out := make([]model.Event, 0)
	for i := range events {
		sp, ok := v.spanOf(&events[i])
		if !ok {
			continue
		}
		if sp.covers(q) {
			out = append(out, events[i])
		}
	}
	return out
}

// EventsOnISO 以 YYYY-MM-DD 字符串查询
func (v *View) EventsOnISO(events []model.Event, date string) ([]model.Event, error) {
	d, err := v.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return v.EventsOnDate(events, d), nil
}

// ParseDate 在视图时区内解析日期
func (v *View) ParseDate(date string) (time.Time, error) {
	return parseDate(date, v.loc)
}

// Day 返回 t 在视图时区内所在的日历日（当天 00:00）
func (v *View) Day(t time.Time) time.Time {
	y, m, d := t.In(v.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, v.loc)
}

// ResolveDaily 先换算到视图时区再解析日级上限，与 EventsOnDate 使用同一个日历日
func (v *View) ResolveDaily(c *capacity.WorkerCapacity, t time.Time) (int, capacity.Source) {
	return capacity.ResolveDailyWithSource(c, v.Day(t))
}

// CheckRoom 同 capacity.CheckRoom，日期按视图时区解释
func (v *View) CheckRoom(c *capacity.WorkerCapacity, t time.Time, slotID string, dayAssigned, slotAssigned int) capacity.Room {
	return capacity.CheckRoom(c, v.Day(t), slotID, dayAssigned, slotAssigned)
}

// FilterByBuckets 按状态桶筛选，不传桶时返回全部
func FilterByBuckets(events []model.Event, buckets ...status.Bucket) []model.Event {
	if len(buckets) == 0 {
		return events
	}
	want := make(map[status.Bucket]bool, len(buckets))
	for _, b := range buckets {
		want[b] = true
	}
	out := make([]model.Event, 0, len(events))
	for i := range events {
		if want[events[i].Bucket()] {
			out = append(out, events[i])
		}
	}
	return out
}

// DayDetail 日详情（日期弹窗的数据）
type DayDetail struct {
	Date     string                `json:"date"`
	Events   []model.Event         `json:"events"`
	ByBucket map[status.Bucket]int `json:"byBucket"`
	Workers  []string              `json:"workers"`
}

// DayDetail 先筛选再按日期匹配
func (v *View) DayDetail(events []model.Event, date time.Time, buckets ...status.Bucket) DayDetail {
	day := v.EventsOnDate(FilterByBuckets(events, buckets...), date)
	detail := DayDetail{
		Date:     v.midday(date).Format(model.DateLayout),
		Events:   day,
		ByBucket: make(map[status.Bucket]int),
		Workers:  make([]string, 0),
	}
	seen := make(map[string]bool)
	for i := range day {
		detail.ByBucket[day[i].Bucket()]++
		if id := day[i].WorkerID; id != "" && !seen[id] {
			seen[id] = true
			detail.Workers = append(detail.Workers, id)
		}
	}
	return detail
}
