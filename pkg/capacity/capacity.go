// Package capacity 提供作业员可接单数量的配置与解析
//
// 日级上限按「指定日期 > 星期 > 基础」的优先级解析；时间段上限是独立的子上限，
// 不参与日级解析。「今天还能接吗」与「这个时间段还能接吗」是两个必须同时通过的判断。
package capacity

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/model"
)

// WorkerCapacity 作业员接单能力配置
type WorkerCapacity struct {
	WorkerID     string `json:"workerId" validate:"required"`
	BaseCapacity int    `json:"baseCapacity" validate:"gte=0"`

	// 星期覆盖：0=周日 .. 6=周六
	WeekdayCapacities map[time.Weekday]int `json:"weekdayCapacities,omitempty" validate:"omitempty,dive,keys,gte=0,lte=6,endkeys,gte=0"`

	// 指定日期覆盖，显式 0 表示当天不可用（与「没有条目」不同）
	SpecificDates map[string]int `json:"specificDates,omitempty" validate:"omitempty,dive,keys,datetime=2006-01-02,endkeys,gte=0"`

	// 时间段子上限
	TimeSlotCapacities map[string]int `json:"timeSlotCapacities,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 构造时校验，解析时不再校验
func (c *WorkerCapacity) Validate() error {
	if err := validate.Struct(c); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperrors.Wrap(err, apperrors.CodeValidationFail, "接单能力配置无效")
		}
		out := &apperrors.ValidationErrors{}
		for _, fe := range verrs {
			out.Add(fe.Namespace(), fmt.Sprintf("不满足 %s=%s (值: %v)", fe.Tag(), fe.Param(), fe.Value()))
		}
		return out.ToAppError()
	}
	return nil
}

// New 创建并校验接单能力配置
func New(workerID string, base int) (*WorkerCapacity, error) {
	c := &WorkerCapacity{
		WorkerID:           workerID,
		BaseCapacity:       base,
		WeekdayCapacities:  make(map[time.Weekday]int),
		SpecificDates:      make(map[string]int),
		TimeSlotCapacities: make(map[string]int),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetWeekday 设置星期覆盖
func (c *WorkerCapacity) SetWeekday(day time.Weekday, n int) error {
	if day < time.Sunday || day > time.Saturday {
		return apperrors.InvalidInput("weekday", "必须在 0-6 之间")
	}
	if n < 0 {
		return apperrors.InvalidInput("weekdayCapacities", "不能为负数")
	}
	if c.WeekdayCapacities == nil {
		c.WeekdayCapacities = make(map[time.Weekday]int)
	}
	c.WeekdayCapacities[day] = n
	return nil
}

// SetSpecificDate 设置指定日期覆盖
func (c *WorkerCapacity) SetSpecificDate(date string, n int) error {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return apperrors.InvalidDate(date)
	}
	if n < 0 {
		return apperrors.InvalidInput("specificDates", "不能为负数")
	}
	if c.SpecificDates == nil {
		c.SpecificDates = make(map[string]int)
	}
	c.SpecificDates[date] = n
	return nil
}

// SetSlot 设置时间段子上限
func (c *WorkerCapacity) SetSlot(slotID string, n int) error {
	if slotID == "" {
		return apperrors.InvalidInput("slotId", "不能为空")
	}
	if n < 0 {
		return apperrors.InvalidInput("timeSlotCapacities", "不能为负数")
	}
	if c.TimeSlotCapacities == nil {
		c.TimeSlotCapacities = make(map[string]int)
	}
	c.TimeSlotCapacities[slotID] = n
	return nil
}

// ClearWeekday 删除星期覆盖，回落到基础值
func (c *WorkerCapacity) ClearWeekday(day time.Weekday) {
	delete(c.WeekdayCapacities, day)
}

// ClearSpecificDate 删除指定日期覆盖，回落到星期/基础值
func (c *WorkerCapacity) ClearSpecificDate(date string) {
	delete(c.SpecificDates, date)
}

// ClearSlot 删除时间段子上限
func (c *WorkerCapacity) ClearSlot(slotID string) {
	delete(c.TimeSlotCapacities, slotID)
}

// Clone 深拷贝
func (c *WorkerCapacity) Clone() *WorkerCapacity {
	out := &WorkerCapacity{
		WorkerID:           c.WorkerID,
		BaseCapacity:       c.BaseCapacity,
		WeekdayCapacities:  make(map[time.Weekday]int, len(c.WeekdayCapacities)),
		SpecificDates:      make(map[string]int, len(c.SpecificDates)),
		TimeSlotCapacities: make(map[string]int, len(c.TimeSlotCapacities)),
	}
	for k, v := range c.WeekdayCapacities {
		out.WeekdayCapacities[k] = v
	}
	for k, v := range c.SpecificDates {
		out.SpecificDates[k] = v
	}
	for k, v := range c.TimeSlotCapacities {
		out.TimeSlotCapacities[k] = v
	}
	return out
}
