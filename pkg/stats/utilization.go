// Package stats 提供接单负荷统计分析功能
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sekou/sekou/pkg/calendar"
	"github.com/sekou/sekou/pkg/capacity"
	"github.com/sekou/sekou/pkg/model"
	"github.com/sekou/sekou/pkg/status"
)

// UtilizationReport 负荷报告
type UtilizationReport struct {
	From          string              `json:"from"`
	To            string              `json:"to"`
	TotalAssigned int                 `json:"total_assigned"` // 已分配的作业日数
	TotalCapacity int                 `json:"total_capacity"` // 已配置作业员的日级上限合计
	OverallRate   float64             `json:"overall_rate"`   // 整体负荷率 (%)
	Workers       []WorkerUtilization `json:"workers"`
	Overbooked    []Overbooking       `json:"overbooked"` // 超出上限的日期/时间段
	Unassigned    int                 `json:"unassigned"` // 范围内未分配的作业日数
	Balance       *BalanceMetrics     `json:"balance"`
}

// WorkerUtilization 作业员负荷
type WorkerUtilization struct {
	WorkerID   string           `json:"worker_id"`
	WorkerName string           `json:"worker_name"`
	Configured bool             `json:"configured"` // 是否有接单能力配置
	Assigned   int              `json:"assigned"`
	Capacity   int              `json:"capacity"`
	Rate       float64          `json:"rate"`
	Days       []DayUtilization `json:"days"`
}

// DayUtilization 单日负荷
type DayUtilization struct {
	Date       string            `json:"date"`
	Assigned   int               `json:"assigned"`
	Capacity   int               `json:"capacity"`
	Source     capacity.Source   `json:"source,omitempty"`
	Remaining  int               `json:"remaining"`
	Overbooked bool              `json:"overbooked"`
	Slots      []SlotUtilization `json:"slots,omitempty"`
}

// SlotUtilization 时间段负荷
type SlotUtilization struct {
	SlotID     string `json:"slot_id"`
	Assigned   int    `json:"assigned"`
	Limited    bool   `json:"limited"`
	Limit      int    `json:"limit,omitempty"`
	Overbooked bool   `json:"overbooked"`
}

// Overbooking 超出上限的记录
type Overbooking struct {
	WorkerID string `json:"worker_id"`
	Date     string `json:"date"`
	SlotID   string `json:"slot_id,omitempty"` // 为空表示日级上限
	Assigned int    `json:"assigned"`
	Limit    int    `json:"limit"`
}

// UtilizationAnalyzer 负荷分析器
type UtilizationAnalyzer struct {
	view  *calendar.View
	slots []model.TimeSlot
}

// NewUtilizationAnalyzer 创建负荷分析器，slots 为空时使用默认时间段
func NewUtilizationAnalyzer(view *calendar.View, slots []model.TimeSlot) *UtilizationAnalyzer {
	if len(slots) == 0 {
		slots = model.DefaultTimeSlots()
	}
	return &UtilizationAnalyzer{view: view, slots: slots}
}

// Slots 时间段定义
func (a *UtilizationAnalyzer) Slots() []model.TimeSlot {
	return a.slots
}

// occupies 事件是否占用接单能力，已拒绝/已取消的不占用
func occupies(e *model.Event) bool {
	st, ok := status.Parse(e.Status)
	if !ok {
		return true
	}
	return st != status.Rejected && st != status.Cancelled
}

// Load 统计作业员某天已占用的单数，以及按时间段的分布
func (a *UtilizationAnalyzer) Load(events []model.Event, workerID string, date time.Time) (int, map[string]int) {
	day := 0
	bySlot := make(map[string]int)
	for i := range events {
		ev := &events[i]
		if ev.WorkerID != workerID || !occupies(ev) || !a.view.Occurs(ev, date) {
			continue
		}
		day++
		if slot, ok := model.SlotOf(a.slots, ev.StartTime); ok {
			bySlot[slot]++
		}
	}
	return day, bySlot
}

// Analyze 统计 [from, to] 内每个作业员每天的负荷
// 多日事件在覆盖的每一天各计一单；没有配置的作业员只统计数量，不判定超限
func (a *UtilizationAnalyzer) Analyze(events []model.Event, caps map[string]*capacity.WorkerCapacity, workers []model.Worker, from, to time.Time) *UtilizationReport {
	report := &UtilizationReport{
		From:       from.Format(model.DateLayout),
		To:         to.Format(model.DateLayout),
		Workers:    make([]WorkerUtilization, 0),
		Overbooked: make([]Overbooking, 0),
	}

	active := make([]model.Event, 0, len(events))
	for i := range events {
		if occupies(&events[i]) {
			active = append(active, events[i])
		}
	}

	names := make(map[string]string)
	for _, w := range workers {
		names[w.ID] = w.Name
	}
	ids := make(map[string]bool)
	for id := range caps {
		ids[id] = true
	}
	for _, w := range workers {
		ids[w.ID] = true
	}
	for i := range active {
		if active[i].WorkerID != "" {
			ids[active[i].WorkerID] = true
			if names[active[i].WorkerID] == "" {
				names[active[i].WorkerID] = active[i].WorkerName
			}
		}
	}

	byWorker := make(map[string]*WorkerUtilization, len(ids))
	for id := range ids {
		wc, ok := caps[id]
		byWorker[id] = &WorkerUtilization{
			WorkerID:   id,
			WorkerName: names[id],
			Configured: ok && wc != nil,
			Days:       make([]DayUtilization, 0),
		}
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dayEvents := a.view.EventsOnDate(active, d)
		date := d.Format(model.DateLayout)

		dayCount := make(map[string]int)
		slotCount := make(map[string]map[string]int)
		for i := range dayEvents {
			ev := &dayEvents[i]
			if !ev.IsAssigned() {
				report.Unassigned++
				continue
			}
			dayCount[ev.WorkerID]++
			if slot, ok := model.SlotOf(a.slots, ev.StartTime); ok {
				if slotCount[ev.WorkerID] == nil {
					slotCount[ev.WorkerID] = make(map[string]int)
				}
				slotCount[ev.WorkerID][slot]++
			}
		}

		for id, wu := range byWorker {
			day := DayUtilization{Date: date, Assigned: dayCount[id]}
			wu.Assigned += day.Assigned

			if wu.Configured {
				wc := caps[id]
				day.Capacity, day.Source = a.view.ResolveDaily(wc, d)
				day.Remaining = max(day.Capacity-day.Assigned, 0)
				day.Overbooked = day.Assigned > day.Capacity
				wu.Capacity += day.Capacity
				if day.Overbooked {
					report.Overbooked = append(report.Overbooked, Overbooking{
						WorkerID: id, Date: date, Assigned: day.Assigned, Limit: day.Capacity,
					})
				}

				for _, s := range a.slots {
					su := SlotUtilization{SlotID: s.ID, Assigned: slotCount[id][s.ID]}
					if limit, ok := capacity.ResolveSlot(wc, s.ID); ok {
						su.Limited = true
						su.Limit = limit
						su.Overbooked = su.Assigned > limit
						if su.Overbooked {
							report.Overbooked = append(report.Overbooked, Overbooking{
								WorkerID: id, Date: date, SlotID: s.ID, Assigned: su.Assigned, Limit: limit,
							})
						}
					}
					if su.Assigned > 0 || su.Limited {
						day.Slots = append(day.Slots, su)
					}
				}
			}
			wu.Days = append(wu.Days, day)
		}
	}

	loads := make([]float64, 0, len(byWorker))
	for _, wu := range byWorker {
		if wu.Capacity > 0 {
			wu.Rate = float64(wu.Assigned) / float64(wu.Capacity) * 100
		}
		report.TotalAssigned += wu.Assigned
		if wu.Configured {
			report.TotalCapacity += wu.Capacity
		}
		loads = append(loads, float64(wu.Assigned))
		report.Workers = append(report.Workers, *wu)
	}
	sort.Slice(report.Workers, func(i, j int) bool {
		return report.Workers[i].WorkerID < report.Workers[j].WorkerID
	})
	sort.SliceStable(report.Overbooked, func(i, j int) bool {
		if report.Overbooked[i].Date != report.Overbooked[j].Date {
			return report.Overbooked[i].Date < report.Overbooked[j].Date
		}
		return report.Overbooked[i].WorkerID < report.Overbooked[j].WorkerID
	})

	if report.TotalCapacity > 0 {
		report.OverallRate = float64(report.TotalAssigned) / float64(report.TotalCapacity) * 100
	}
	report.Balance = NewBalanceAnalyzer().Analyze(loads)
	return report
}

// GenerateReport 生成文本报告
func GenerateReport(r *UtilizationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== 负荷报告 %s ~ %s ===\n\n", r.From, r.To)
	fmt.Fprintf(&b, "  已分配: %d  上限合计: %d  负荷率: %.1f%%  未分配: %d\n\n",
		r.TotalAssigned, r.TotalCapacity, r.OverallRate, r.Unassigned)

	b.WriteString("【作业员】\n")
	for _, w := range r.Workers {
		name := w.WorkerName
		if name == "" {
			name = w.WorkerID
		}
		if !w.Configured {
			fmt.Fprintf(&b, "  - %s: %d 单（未配置接单能力）\n", name, w.Assigned)
			continue
		}
		fmt.Fprintf(&b, "  - %s: %d/%d (%.1f%%)\n", name, w.Assigned, w.Capacity, w.Rate)
	}

	if len(r.Overbooked) > 0 {
		b.WriteString("\n【超出上限】\n")
		for _, o := range r.Overbooked {
			scope := "日级"
			if o.SlotID != "" {
				scope = "时间段 " + o.SlotID
			}
			fmt.Fprintf(&b, "  - %s %s %s: %d > %d\n", o.Date, o.WorkerID, scope, o.Assigned, o.Limit)
		}
	}

	if r.Balance != nil {
		fmt.Fprintf(&b, "\n【均衡度】基尼系数 %.3f，评分 %.1f\n", r.Balance.Gini, r.Balance.Score)
	}
	return b.String()
}
