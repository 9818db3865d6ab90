package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekou/sekou/pkg/model"
)

func newEvent(id, worker, date, start, end string) model.Event {
	return model.Event{ID: id, WorkerID: worker, StartDate: date, StartTime: start, EndTime: end, Status: "accepted"}
}

func typesOf(conflicts []Conflict) []ConflictType {
	out := make([]ConflictType, len(conflicts))
	for i, c := range conflicts {
		out[i] = c.Type
	}
	return out
}

func TestConflictDetector_DetectAll(t *testing.T) {
	detector := NewConflictDetector(nil)

	tests := []struct {
		name   string
		events []model.Event
		want   []ConflictType
	}{
		{
			name: "正常排程没有冲突",
			events: []model.Event{
				newEvent("a", "w1", "2025-03-10", "09:00", "12:00"),
				newEvent("b", "w1", "2025-03-10", "13:00", "17:00"),
			},
			want: []ConflictType{},
		},
		{
			name: "时间重叠",
			events: []model.Event{
				newEvent("a", "w1", "2025-03-10", "09:00", "12:00"),
				newEvent("b", "w1", "2025-03-10", "11:00", "14:00"),
			},
			want: []ConflictType{ConflictOverlap},
		},
		{
			name: "首尾相接不算重叠",
			events: []model.Event{
				newEvent("a", "w1", "2025-03-10", "09:00", "12:00"),
				newEvent("b", "w1", "2025-03-10", "12:00", "14:00"),
			},
			want: []ConflictType{},
		},
		{
			name: "被长时段包住",
			events: []model.Event{
				newEvent("a", "w1", "2025-03-10", "08:00", "17:00"),
				newEvent("b", "w1", "2025-03-10", "09:00", "10:00"),
				newEvent("c", "w1", "2025-03-10", "13:00", "14:00"),
			},
			want: []ConflictType{ConflictOverlap, ConflictOverlap},
		},
		{
			name: "不同作业员不冲突",
			events: []model.Event{
				newEvent("a", "w1", "2025-03-10", "09:00", "12:00"),
				newEvent("b", "w2", "2025-03-10", "09:00", "12:00"),
			},
			want: []ConflictType{},
		},
		{
			name: "已取消的事件不参与",
			events: []model.Event{
				newEvent("a", "w1", "2025-03-10", "09:00", "12:00"),
				{ID: "b", WorkerID: "w1", StartDate: "2025-03-10", StartTime: "10:00", EndTime: "11:00", Status: "cancelled"},
			},
			want: []ConflictType{},
		},
		{
			name: "多日事件在中间的日期重叠",
			events: []model.Event{
				{ID: "a", WorkerID: "w1", StartDate: "2025-03-10", EndDate: "2025-03-12", IsMultiDay: true, StartTime: "09:00", EndTime: "17:00", Status: "accepted"},
				newEvent("b", "w1", "2025-03-11", "10:00", "11:00"),
			},
			want: []ConflictType{ConflictOverlap},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detector.DetectAll(tt.events, nil)
			assert.ElementsMatch(t, tt.want, typesOf(got))
		})
	}
}

func TestConflictDetector_ConsecutiveDays(t *testing.T) {
	detector := NewConflictDetector(&DetectorConfig{MaxConsecutiveDays: 3})

	events := []model.Event{
		{ID: "a", WorkerID: "w1", StartDate: "2025-03-10", EndDate: "2025-03-12", IsMultiDay: true, Status: "accepted"},
		{ID: "b", WorkerID: "w1", StartDate: "2025-03-13", Status: "accepted"},
		{ID: "c", WorkerID: "w1", StartDate: "2025-03-20", Status: "accepted"},
	}

	conflicts := detector.DetectAll(events, nil)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictConsecutive, conflicts[0].Type)
	assert.Equal(t, SeverityWarning, conflicts[0].Severity)
	assert.Equal(t, "2025-03-10", conflicts[0].Date)
	assert.Contains(t, conflicts[0].Message, "4 天")
}

func TestConflictDetector_WorkerFit(t *testing.T) {
	detector := NewConflictDetector(nil)
	workers := map[string]*model.Worker{
		"w1": {ID: "w1", Name: "田中", Status: "active", Skills: []string{"エアコン設置"}},
		"w2": {ID: "w2", Name: "佐藤", Status: "leave", Skills: []string{"エアコン設置", "電気工事"}},
	}

	events := []model.Event{
		{ID: "a", WorkerID: "w1", StartDate: "2025-03-10", ConstructionType: "installation", Status: "accepted"},
		{ID: "b", WorkerID: "w2", StartDate: "2025-03-11", ConstructionType: "installation", Status: "accepted"},
		{ID: "c", WorkerID: "w1", StartDate: "2025-03-12", ConstructionType: "未知", Status: "accepted"},
	}

	conflicts := detector.DetectAll(events, workers)
	require.Len(t, conflicts, 2)
	assert.Equal(t, ConflictSkill, conflicts[0].Type)
	assert.Equal(t, "w1", conflicts[0].WorkerID)
	assert.Contains(t, conflicts[0].Message, "電気工事")
	assert.Equal(t, ConflictAvailability, conflicts[1].Type)
	assert.True(t, HasErrors(conflicts))
}

func TestConflictDetector_DetectForAssignment(t *testing.T) {
	detector := NewConflictDetector(nil)
	existing := []model.Event{
		newEvent("a", "w1", "2025-03-10", "09:00", "12:00"),
		newEvent("b", "w2", "2025-03-10", "09:00", "12:00"),
		newEvent("x", "w1", "2025-03-10", "10:00", "11:00"), // 既有冲突与本次分配无关
	}

	t.Run("与已有事件重叠", func(t *testing.T) {
		target := model.Event{ID: "new", StartDate: "2025-03-10", StartTime: "11:30", EndTime: "13:00", Status: "proposed"}
		conflicts := detector.DetectForAssignment(target, "w1", existing, nil)
		require.Len(t, conflicts, 1)
		assert.Equal(t, ConflictOverlap, conflicts[0].Type)
		assert.ElementsMatch(t, []string{"a", "new"}, conflicts[0].Events)
	})

	t.Run("换成空闲的作业员", func(t *testing.T) {
		target := model.Event{ID: "new", StartDate: "2025-03-10", StartTime: "13:00", EndTime: "15:00", Status: "proposed"}
		conflicts := detector.DetectForAssignment(target, "w2", existing, nil)
		assert.Empty(t, conflicts)
		assert.False(t, HasErrors(conflicts))
	})

	t.Run("重新提交同一事件不与自己冲突", func(t *testing.T) {
		conflicts := detector.DetectForAssignment(existing[1], "w2", existing, nil)
		assert.Empty(t, conflicts)
	})
}
