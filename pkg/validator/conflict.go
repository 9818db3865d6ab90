// Package validator 提供排程冲突检测
//
// 容量（每天能接几单）由 capacity 包判断，这里只检查同一作业员的事件之间
// 以及事件与作业员之间的冲突。
package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/sekou/sekou/pkg/assignment"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/status"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictOverlap      ConflictType = "overlap"      // 时间重叠
	ConflictConsecutive  ConflictType = "consecutive"  // 连续天数过多
	ConflictSkill        ConflictType = "skill"        // 技能不匹配
	ConflictAvailability ConflictType = "availability" // 作业员不在职
)

// Severity 严重程度
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Conflict 冲突信息
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity Severity     `json:"severity"`
	WorkerID string       `json:"workerId"`
	Date     string       `json:"date,omitempty"`
	Message  string       `json:"message"`
	Events   []string     `json:"events,omitempty"` // 相关的事件ID
}

// HasErrors 是否存在 error 级别的冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	MaxConsecutiveDays int  // 最大连续作业天数，0 表示不检查
	CheckSkills        bool // 是否检查技能
	CheckAvailability  bool // 是否检查在职状态
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		MaxConsecutiveDays: 6,
		CheckSkills:        true,
		CheckAvailability:  true,
	}
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// DetectAll 检测所有已分配事件的冲突
// workers 中找不到的作业员只做事件之间的检查
func (d *ConflictDetector) DetectAll(events []model.Event, workers map[string]*model.Worker) []Conflict {
	var conflicts []Conflict

	byWorker := groupByWorker(events)
	for workerID, list := range byWorker {
		worker := workers[workerID]

		conflicts = append(conflicts, d.detectOverlaps(workerID, list)...)
		conflicts = append(conflicts, d.detectConsecutiveDays(workerID, list)...)
		for i := range list {
			conflicts = append(conflicts, d.detectWorkerFit(worker, &list[i])...)
		}
	}

	sortConflicts(conflicts)
	return conflicts
}

// DetectForAssignment 检测把 ev 分配给 workerID 时产生的冲突
// existing 中与 ev 同 ID 的事件被忽略
func (d *ConflictDetector) DetectForAssignment(ev model.Event, workerID string, existing []model.Event, worker *model.Worker) []Conflict {
	ev.WorkerID = workerID

	list := []model.Event{ev}
	for _, e := range existing {
		if e.ID != ev.ID && e.WorkerID == workerID && occupies(&e) {
			list = append(list, e)
		}
	}

	var conflicts []Conflict
	for _, c := range d.detectOverlaps(workerID, list) {
		if contains(c.Events, ev.ID) {
			conflicts = append(conflicts, c)
		}
	}
	conflicts = append(conflicts, d.detectConsecutiveDays(workerID, list)...)
	conflicts = append(conflicts, d.detectWorkerFit(worker, &ev)...)

	sortConflicts(conflicts)
	return conflicts
}

// window 事件在某天的作业时段
type window struct {
	eventID    string
	date       string
	start, end time.Time
}

// detectOverlaps 检测同一天内时间重叠的事件，没有起止时刻的事件不参与
func (d *ConflictDetector) detectOverlaps(workerID string, events []model.Event) []Conflict {
	var conflicts []Conflict

	byDate := make(map[string][]window)
	for i := range events {
		ev := &events[i]
		start, err1 := time.Parse(model.TimeLayout, ev.StartTime)
		end, err2 := time.Parse(model.TimeLayout, ev.EndTime)
		if err1 != nil || err2 != nil || !start.Before(end) {
			continue
		}
		for _, date := range eventDates(ev) {
			byDate[date] = append(byDate[date], window{eventID: ev.ID, date: date, start: start, end: end})
		}
	}

	for date, windows := range byDate {
		sort.Slice(windows, func(i, j int) bool {
			if !windows[i].start.Equal(windows[j].start) {
				return windows[i].start.Before(windows[j].start)
			}
			return windows[i].eventID < windows[j].eventID
		})

		// 与之前结束最晚的时段比较，覆盖被长时段包住的情况
		latest := 0
		for i := 1; i < len(windows); i++ {
			prev := windows[latest]
			cur := windows[i]
			if cur.start.Before(prev.end) {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictOverlap,
					Severity: SeverityError,
					WorkerID: workerID,
					Date:     date,
					Message: fmt.Sprintf("%s %s-%s 与 %s-%s 时间重叠", date,
						prev.start.Format(model.TimeLayout), prev.end.Format(model.TimeLayout),
						cur.start.Format(model.TimeLayout), cur.end.Format(model.TimeLayout)),
					Events: []string{prev.eventID, cur.eventID},
				})
			}
			if cur.end.After(prev.end) {
				latest = i
			}
		}
	}

	return conflicts
}

// detectConsecutiveDays 检测连续作业天数
func (d *ConflictDetector) detectConsecutiveDays(workerID string, events []model.Event) []Conflict {
	if d.config.MaxConsecutiveDays <= 0 || len(events) == 0 {
		return nil
	}

	workDates := make(map[string]bool)
	for i := range events {
		for _, date := range eventDates(&events[i]) {
			workDates[date] = true
		}
	}
	dates := make([]string, 0, len(workDates))
	for date := range workDates {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var conflicts []Conflict
	runStart, run := 0, 1
	flush := func(end int) {
		if run > d.config.MaxConsecutiveDays {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictConsecutive,
				Severity: SeverityWarning,
				WorkerID: workerID,
				Date:     dates[runStart],
				Message: fmt.Sprintf("%s 至 %s 连续作业 %d 天，超过 %d 天",
					dates[runStart], dates[end], run, d.config.MaxConsecutiveDays),
			})
		}
	}
	for i := 1; i < len(dates); i++ {
		if isNextDay(dates[i-1], dates[i]) {
			run++
			continue
		}
		flush(i - 1)
		runStart, run = i, 1
	}
	flush(len(dates) - 1)

	return conflicts
}

// detectWorkerFit 检查作业员的在职状态与技能
func (d *ConflictDetector) detectWorkerFit(worker *model.Worker, ev *model.Event) []Conflict {
	if worker == nil {
		return nil
	}
	var conflicts []Conflict

	if d.config.CheckAvailability && !worker.IsActive() {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictAvailability,
			Severity: SeverityError,
			WorkerID: worker.ID,
			Date:     ev.StartDate,
			Message:  fmt.Sprintf("作业员 %s 当前状态为 %s", worker.Name, worker.Status),
			Events:   []string{ev.ID},
		})
	}

	if d.config.CheckSkills {
		required := assignment.SkillsFor(ev.ConstructionType)
		var missing []string
		for _, s := range required {
			if !worker.HasSkill(s) {
				missing = append(missing, s)
			}
		}
		if len(missing) > 0 {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictSkill,
				Severity: SeverityWarning,
				WorkerID: worker.ID,
				Date:     ev.StartDate,
				Message:  fmt.Sprintf("作业员 %s 缺少技能 %v", worker.Name, missing),
				Events:   []string{ev.ID},
			})
		}
	}

	return conflicts
}

// occupies 已拒绝或已取消的事件不占用作业员
func occupies(ev *model.Event) bool {
	st, ok := status.Parse(ev.Status)
	return !ok || (st != status.Rejected && st != status.Cancelled)
}

// groupByWorker 按作业员分组，未分配与不占用的事件跳过
func groupByWorker(events []model.Event) map[string][]model.Event {
	result := make(map[string][]model.Event)
	for i := range events {
		ev := events[i]
		if ev.IsAssigned() && occupies(&ev) {
			result[ev.WorkerID] = append(result[ev.WorkerID], ev)
		}
	}
	return result
}

// eventDates 事件覆盖的每一天，日期无效时为空
func eventDates(ev *model.Event) []string {
	days, err := model.DateRange{StartDate: ev.StartDate, EndDate: ev.LastDate()}.Days(time.UTC)
	if err != nil {
		return nil
	}
	out := make([]string, len(days))
	for i, day := range days {
		out[i] = day.Format(model.DateLayout)
	}
	return out
}

func isNextDay(date1, date2 string) bool {
	t1, err1 := time.Parse(model.DateLayout, date1)
	t2, err2 := time.Parse(model.DateLayout, date2)
	if err1 != nil || err2 != nil {
		return false
	}
	return t1.AddDate(0, 0, 1).Equal(t2)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.WorkerID != b.WorkerID {
			return a.WorkerID < b.WorkerID
		}
		return a.Type < b.Type
	})
}
