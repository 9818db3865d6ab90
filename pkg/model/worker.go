package model

import (
	"time"
)

// Worker 作业员
type Worker struct {
	BaseModel
	ID           string    `json:"id" validate:"required"`
	TenantID     string    `json:"tenantId,omitempty"`
	Name         string    `json:"name" validate:"required"`
	Status       string    `json:"status"` // active/inactive/leave
	Skills       []string  `json:"skills,omitempty"`
	HomeLocation *Location `json:"homeLocation,omitempty"`
}

// IsActive 检查作业员是否在职
func (w *Worker) IsActive() bool {
	return w.Status == "active"
}

// HasSkill 检查作业员是否具备某技能
func (w *Worker) HasSkill(skill string) bool {
	for _, s := range w.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// SkillMatch 返回所需技能中已具备的比例（0-1），无要求时为 1
func (w *Worker) SkillMatch(required []string) float64 {
	if len(required) == 0 {
		return 1
	}
	matched := 0
	for _, s := range required {
		if w.HasSkill(s) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

// TimeSlot 时间段定义
type TimeSlot struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Start string `json:"start" yaml:"start"` // HH:MM
	End   string `json:"end" yaml:"end"`     // HH:MM
}

// DefaultTimeSlots 默认时间段
func DefaultTimeSlots() []TimeSlot {
	return []TimeSlot{
		{ID: "morning", Name: "午前", Start: "08:00", End: "12:00"},
		{ID: "afternoon", Name: "午後", Start: "12:00", End: "17:00"},
		{ID: "evening", Name: "夜間", Start: "17:00", End: "22:00"},
	}
}

// Contains 检查时刻是否落在时间段内 [Start, End)
func (s TimeSlot) Contains(hhmm string) bool {
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return false
	}
	start, err := time.Parse(TimeLayout, s.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse(TimeLayout, s.End)
	if err != nil {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// SlotOf 返回开始时刻所属的时间段
func SlotOf(slots []TimeSlot, startTime string) (string, bool) {
	if startTime == "" {
		return "", false
	}
	for _, s := range slots {
		if s.Contains(startTime) {
			return s.ID, true
		}
	}
	return "", false
}
