package capacity

import (
	"time"

	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/model"
)

// Source 日级上限的来源规则
type Source string

const (
	SourceSpecificDate Source = "specific_date"
	SourceWeekday      Source = "weekday"
	SourceBase         Source = "base"
)

// ResolveDaily 解析某日的日级上限（纯函数）
// 日期按其自身时区的日历日与星期解释，不做时区换算。调用方应传入已在日历视图时区内的日期，
// 或者使用 calendar.View.ResolveDaily，使上限与当天可见的事件落在同一个日历日
func ResolveDaily(c *WorkerCapacity, date time.Time) int {
	n, _ := ResolveDailyWithSource(c, date)
	return n
}

// ResolveDailyWithSource 同 ResolveDaily，并返回生效的规则
func ResolveDailyWithSource(c *WorkerCapacity, date time.Time) (int, Source) {
	if n, ok := c.SpecificDates[date.Format(model.DateLayout)]; ok {
		return n, SourceSpecificDate
	}
	if n, ok := c.WeekdayCapacities[date.Weekday()]; ok {
		return n, SourceWeekday
	}
	return c.BaseCapacity, SourceBase
}

// ResolveDailyISO 以 YYYY-MM-DD 字符串解析日级上限
func ResolveDailyISO(c *WorkerCapacity, date string) (int, error) {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return 0, apperrors.InvalidDate(date)
	}
	return ResolveDaily(c, d), nil
}

// ResolveSlot 读取时间段子上限，没有回落链；false 表示该时间段没有单独上限
func ResolveSlot(c *WorkerCapacity, slotID string) (int, bool) {
	n, ok := c.TimeSlotCapacities[slotID]
	return n, ok
}

// Room 剩余接单空间
type Room struct {
	Date           string `json:"date"`
	DailyLimit     int    `json:"dailyLimit"`
	DailySource    Source `json:"dailySource"`
	DailyAssigned  int    `json:"dailyAssigned"`
	DailyRemaining int    `json:"dailyRemaining"`

	SlotID        string `json:"slotId,omitempty"`
	SlotLimited   bool   `json:"slotLimited"`
	SlotLimit     int    `json:"slotLimit,omitempty"`
	SlotAssigned  int    `json:"slotAssigned,omitempty"`
	SlotRemaining int    `json:"slotRemaining,omitempty"`

	// OK 日级与时间段两项检查都通过
	OK bool `json:"ok"`
}

// CheckRoom 检查在已分配 dayAssigned（当天）/slotAssigned（该时间段）的情况下能否再接一单
// slotID 为空时只检查日级上限
func CheckRoom(c *WorkerCapacity, date time.Time, slotID string, dayAssigned, slotAssigned int) Room {
	limit, src := ResolveDailyWithSource(c, date)
	room := Room{
		Date:           date.Format(model.DateLayout),
		DailyLimit:     limit,
		DailySource:    src,
		DailyAssigned:  dayAssigned,
		DailyRemaining: max(limit-dayAssigned, 0),
		SlotID:         slotID,
	}
	dayOK := dayAssigned < limit

	slotOK := true
	if slotID != "" {
		if slotLimit, ok := ResolveSlot(c, slotID); ok {
			room.SlotLimited = true
			room.SlotLimit = slotLimit
			room.SlotAssigned = slotAssigned
			room.SlotRemaining = max(slotLimit-slotAssigned, 0)
			slotOK = slotAssigned < slotLimit
		}
	}

	room.OK = dayOK && slotOK
	return room
}
