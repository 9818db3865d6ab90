// Package model 定义施工排程的核心数据模型
package model

import (
	"math"
	"time"
)

// DateLayout ISO 日期格式
const DateLayout = "2006-01-02"

// TimeLayout 时刻格式 HH:MM
const TimeLayout = "15:04"

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch 更新时间戳
func (b *BaseModel) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// DateRange 日期范围（闭区间）
type DateRange struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// Days 按顺序返回范围内的每一天
func (r DateRange) Days(loc *time.Location) ([]time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, r.StartDate, loc)
	if err != nil {
		return nil, err
	}
	end, err := time.ParseInLocation(DateLayout, r.EndDate, loc)
	if err != nil {
		return nil, err
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

// Location 地理位置
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HasCoordinates 检查是否带有经纬度
func (l *Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Distance 计算两个位置之间的距离（公里）
// 使用 Haversine 公式
func (l Location) Distance(other Location) float64 {
	const earthRadius = 6371.0

	lat1Rad := l.Latitude * math.Pi / 180
	lat2Rad := other.Latitude * math.Pi / 180
	deltaLat := (other.Latitude - l.Latitude) * math.Pi / 180
	deltaLon := (other.Longitude - l.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
