package capacity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sekou/sekou/pkg/errors"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveDaily_Precedence(t *testing.T) {
	// 2025-01-05 是周日，2025-01-06 是周一
	c := &WorkerCapacity{
		WorkerID:          "w1",
		BaseCapacity:      2,
		WeekdayCapacities: map[time.Weekday]int{time.Sunday: 0, time.Saturday: 1},
		SpecificDates:     map[string]int{"2025-01-05": 3, "2025-01-01": 0},
	}

	tests := []struct {
		name   string
		date   string
		want   int
		source Source
	}{
		{"指定日期优先于星期", "2025-01-05", 3, SourceSpecificDate},
		{"指定日期显式0", "2025-01-01", 0, SourceSpecificDate},
		{"星期覆盖显式0", "2025-01-12", 0, SourceWeekday},
		{"星期覆盖", "2025-01-11", 1, SourceWeekday},
		{"回落到基础值", "2025-01-06", 2, SourceBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := ResolveDailyWithSource(c, day(tt.date))
			if got != tt.want {
				t.Errorf("ResolveDaily(%s) = %d, expected %d", tt.date, got, tt.want)
			}
			if src != tt.source {
				t.Errorf("source = %s, expected %s", src, tt.source)
			}
		})
	}
}

func TestResolveDaily_ZeroIsNotAbsent(t *testing.T) {
	c := &WorkerCapacity{
		WorkerID:          "w1",
		BaseCapacity:      2,
		WeekdayCapacities: map[time.Weekday]int{time.Sunday: 0},
		SpecificDates:     map[string]int{"2025-01-05": 0},
	}
	assert.Equal(t, 0, ResolveDaily(c, day("2025-01-05")))

	c.ClearSpecificDate("2025-01-05")
	assert.Equal(t, 0, ResolveDaily(c, day("2025-01-05")), "星期覆盖的 0 同样是显式值")

	c.ClearWeekday(time.Sunday)
	assert.Equal(t, 2, ResolveDaily(c, day("2025-01-05")))
}

func TestResolveDaily_Deterministic(t *testing.T) {
	c := &WorkerCapacity{WorkerID: "w1", BaseCapacity: 4, SpecificDates: map[string]int{"2025-02-10": 1}}
	first := ResolveDaily(c, day("2025-02-10"))
	for i := 0; i < 10; i++ {
		if got := ResolveDaily(c, day("2025-02-10")); got != first {
			t.Fatalf("第 %d 次解析结果不同: %d != %d", i, got, first)
		}
	}
}

func TestResolveDaily_IgnoresTimeOfDay(t *testing.T) {
	c := &WorkerCapacity{WorkerID: "w1", BaseCapacity: 2, SpecificDates: map[string]int{"2025-03-10": 5}}
	late := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	early := time.Date(2025, 3, 10, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 5, ResolveDaily(c, late))
	assert.Equal(t, 5, ResolveDaily(c, early))
}

func TestResolveDailyISO(t *testing.T) {
	c := &WorkerCapacity{WorkerID: "w1", BaseCapacity: 2}

	n, err := ResolveDailyISO(c, "2025-04-01")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = ResolveDailyISO(c, "2025/04/01")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidDate, apperrors.GetCode(err))
}

func TestResolveSlot_NoFallback(t *testing.T) {
	c := &WorkerCapacity{
		WorkerID:           "w1",
		BaseCapacity:       3,
		TimeSlotCapacities: map[string]int{"morning": 1, "evening": 0},
	}

	tests := []struct {
		slot    string
		want    int
		limited bool
	}{
		{"morning", 1, true},
		{"evening", 0, true},
		{"afternoon", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.slot, func(t *testing.T) {
			got, ok := ResolveSlot(c, tt.slot)
			assert.Equal(t, tt.limited, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckRoom(t *testing.T) {
	c := &WorkerCapacity{
		WorkerID:           "w1",
		BaseCapacity:       2,
		TimeSlotCapacities: map[string]int{"morning": 1},
	}
	d := day("2025-01-06")

	tests := []struct {
		name         string
		slot         string
		dayAssigned  int
		slotAssigned int
		ok           bool
	}{
		{"两项都有空间", "morning", 0, 0, true},
		{"日级有空间但时间段已满", "morning", 1, 1, false},
		{"时间段有空间但日级已满", "afternoon", 2, 0, false},
		{"时间段没有单独上限", "afternoon", 1, 5, true},
		{"只检查日级", "", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := CheckRoom(c, d, tt.slot, tt.dayAssigned, tt.slotAssigned)
			assert.Equal(t, tt.ok, room.OK)
			assert.GreaterOrEqual(t, room.DailyRemaining, 0)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", 1)
	require.Error(t, err)

	_, err = New("w1", -1)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFail, apperrors.GetCode(err))

	c, err := New("w1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, c.BaseCapacity)
}

func TestValidate_Maps(t *testing.T) {
	tests := []struct {
		name    string
		cap     WorkerCapacity
		wantErr bool
	}{
		{"合法配置", WorkerCapacity{WorkerID: "w1", BaseCapacity: 1, SpecificDates: map[string]int{"2025-01-01": 0}}, false},
		{"负数日期覆盖", WorkerCapacity{WorkerID: "w1", SpecificDates: map[string]int{"2025-01-01": -1}}, true},
		{"非法日期键", WorkerCapacity{WorkerID: "w1", SpecificDates: map[string]int{"20250101": 1}}, true},
		{"星期键越界", WorkerCapacity{WorkerID: "w1", WeekdayCapacities: map[time.Weekday]int{7: 1}}, true},
		{"负数时间段", WorkerCapacity{WorkerID: "w1", TimeSlotCapacities: map[string]int{"morning": -2}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cap.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetters(t *testing.T) {
	c, err := New("w1", 2)
	require.NoError(t, err)

	require.NoError(t, c.SetWeekday(time.Monday, 1))
	require.NoError(t, c.SetSpecificDate("2025-01-06", 0))
	require.NoError(t, c.SetSlot("morning", 1))

	assert.Error(t, c.SetWeekday(time.Weekday(9), 1))
	assert.Error(t, c.SetWeekday(time.Monday, -1))
	assert.Error(t, c.SetSpecificDate("bad", 1))
	assert.Error(t, c.SetSlot("", 1))

	assert.Equal(t, 0, ResolveDaily(c, day("2025-01-06")))
	c.ClearSpecificDate("2025-01-06")
	assert.Equal(t, 1, ResolveDaily(c, day("2025-01-06")))
}

func TestClone_Independent(t *testing.T) {
	c := &WorkerCapacity{WorkerID: "w1", BaseCapacity: 2, SpecificDates: map[string]int{"2025-01-01": 1}}
	cp := c.Clone()
	cp.SpecificDates["2025-01-01"] = 9
	assert.Equal(t, 1, c.SpecificDates["2025-01-01"])
}
