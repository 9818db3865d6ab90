package calendar

import (
	"time"

	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/status"
)

const daysPerWeek = 7

// Span 周视图中被裁剪到可见窗口的事件条
type Span struct {
	Event           model.Event `json:"event"`
	StartIndex      int         `json:"startIndex"` // 0..6，相对周起始日
	Length          int         `json:"length"`
	ContinuesBefore bool        `json:"continuesBefore"`
	ContinuesAfter  bool        `json:"continuesAfter"`
	Lane            int         `json:"lane"` // 绘制行号，同一行内的条不重叠
}

// Week 周视图
type Week struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Days  []string `json:"days"`
	Spans []Span   `json:"spans"`
}

// WeekSpans 计算 weekStart 开始的 7 天窗口内的事件条
// 每次调用都按当前窗口重新裁剪，同一事件在相邻两周的结果不同
func (v *View) WeekSpans(events []model.Event, weekStart time.Time, buckets ...status.Bucket) Week {
	first := v.midday(weekStart)
	firstDay := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, v.loc)
	lastDay := firstDay.AddDate(0, 0, daysPerWeek-1)
	window := span{
		start: firstDay,
		end:   time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 23, 59, 59, 0, v.loc),
	}

	week := Week{
		Start: firstDay.Format(model.DateLayout),
		End:   lastDay.Format(model.DateLayout),
		Days:  make([]string, daysPerWeek),
		Spans: make([]Span, 0),
	}
	for i := 0; i < daysPerWeek; i++ {
		week.Days[i] = firstDay.AddDate(0, 0, i).Format(model.DateLayout)
	}

	filtered := FilterByBuckets(events, buckets...)
	for i := range filtered {
		sp, ok := v.spanOf(&filtered[i])
		if !ok {
			continue
		}
		if sp.end.Before(window.start) || sp.start.After(window.end) {
			continue
		}

		startIdx := 0
		if sp.start.After(window.start) {
			startIdx = daysBetween(firstDay, sp.start)
		}
		endIdx := daysPerWeek - 1
		if sp.end.Before(window.end) {
			endIdx = daysBetween(firstDay, sp.end)
		}

		week.Spans = append(week.Spans, Span{
			Event:           filtered[i],
			StartIndex:      startIdx,
			Length:          endIdx - startIdx + 1,
			ContinuesBefore: sp.start.Before(window.start),
			ContinuesAfter:  sp.end.After(window.end),
		})
	}

	assignLanes(week.Spans)
	return week
}

// assignLanes 贪心分配绘制行，保持输入顺序
func assignLanes(spans []Span) {
	var lanes [][daysPerWeek]bool
	for i := range spans {
		s := &spans[i]
		lane := -1
		for l := range lanes {
			if laneFree(lanes[l], s.StartIndex, s.Length) {
				lane = l
				break
			}
		}
		if lane < 0 {
			lanes = append(lanes, [daysPerWeek]bool{})
			lane = len(lanes) - 1
		}
		for d := s.StartIndex; d < s.StartIndex+s.Length; d++ {
			lanes[lane][d] = true
		}
		s.Lane = lane
	}
}

func laneFree(row [daysPerWeek]bool, start, length int) bool {
	for d := start; d < start+length; d++ {
		if row[d] {
			return false
		}
	}
	return true
}

// daysBetween 两个同时区日期之间相差的日历天数
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Cell 月视图的一个格子
type Cell struct {
	Date      string        `json:"date"`
	InMonth   bool          `json:"inMonth"`
	Events    []model.Event `json:"events"`
	More      int           `json:"more"` // "+N more" 中的 N
	Total     int           `json:"total"`
	IsWeekend bool          `json:"isWeekend"`
}

// Month 月视图（6 行 x 7 列）
type Month struct {
	Year  int        `json:"year"`
	Month int        `json:"month"`
	Weeks [6][7]Cell `json:"weeks"`
}

// MonthGrid 计算月视图，网格从包含 1 日的那一周的周日开始
// 溢出数按筛选后的事件计算
func (v *View) MonthGrid(events []model.Event, year int, month time.Month, buckets ...status.Bucket) (Month, error) {
	if month < time.January || month > time.December {
		return Month{}, apperrors.InvalidInput("month", "必须在 1-12 之间")
	}
	filtered := FilterByBuckets(events, buckets...)

	first := time.Date(year, month, 1, 0, 0, 0, 0, v.loc)
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))

	grid := Month{Year: year, Month: int(month)}
	for w := 0; w < 6; w++ {
		for d := 0; d < daysPerWeek; d++ {
			date := gridStart.AddDate(0, 0, w*daysPerWeek+d)
			day := v.EventsOnDate(filtered, date)

			visible := day
			if len(visible) > v.maxPerCell {
				visible = visible[:v.maxPerCell]
			}
			grid.Weeks[w][d] = Cell{
				Date:      date.Format(model.DateLayout),
				InMonth:   date.Month() == month,
				Events:    visible,
				More:      len(day) - len(visible),
				Total:     len(day),
				IsWeekend: date.Weekday() == time.Saturday || date.Weekday() == time.Sunday,
			}
		}
	}
	return grid, nil
}

func parseDate(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return time.Time{}, apperrors.InvalidDate(date)
	}
	return d, nil
}
