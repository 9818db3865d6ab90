package model

import (
	"encoding/json"
	"testing"

	apperrors "github.com/sekou/sekou/pkg/errors"
	"github.com/sekou/sekou/pkg/status"
)

func TestRawEvent_Normalize_LegacyFields(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantStart string
		wantEnd   string
		multiDay  bool
		worker    string
		status    string
	}{
		{
			name:      "旧 date 字段",
			raw:       `{"id":"a","date":"2025-03-10","worker_id":"w1","status":"SCHEDULED"}`,
			wantStart: "2025-03-10",
			worker:    "w1",
			status:    "accepted",
		},
		{
			name:      "startDate 优先于 date",
			raw:       `{"id":"b","date":"2025-01-01","startDate":"2025-03-10","workerId":"w2"}`,
			wantStart: "2025-03-10",
			worker:    "w2",
			status:    "proposed",
		},
		{
			name:      "结束日期晚于开始日期时自动视为多日",
			raw:       `{"id":"c","start_date":"2025-03-10","end_date":"2025-03-12","status":"保留"}`,
			wantStart: "2025-03-10",
			wantEnd:   "2025-03-12",
			multiDay:  true,
			status:    "pending",
		},
		{
			name:      "没有结束日期时清除多日标记",
			raw:       `{"id":"d","startDate":"2025-03-10","isMultiDay":true}`,
			wantStart: "2025-03-10",
			status:    "proposed",
		},
		{
			name:      "未知状态归为 proposed",
			raw:       `{"id":"e","startDate":"2025-03-10","status":"mystery"}`,
			wantStart: "2025-03-10",
			status:    "proposed",
		},
		{
			name:      "只有颜色的旧数据由颜色补全状态",
			raw:       `{"id":"f","startDate":"2025-03-10","color":"#4CAF50"}`,
			wantStart: "2025-03-10",
			status:    "accepted",
		},
		{
			name:      "未知颜色归为 proposed",
			raw:       `{"id":"g","startDate":"2025-03-10","color":"#123456"}`,
			wantStart: "2025-03-10",
			status:    "proposed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw RawEvent
			if err := json.Unmarshal([]byte(tt.raw), &raw); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			ev, err := raw.Normalize()
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if ev.StartDate != tt.wantStart {
				t.Errorf("StartDate = %s, expected %s", ev.StartDate, tt.wantStart)
			}
			if ev.EndDate != tt.wantEnd {
				t.Errorf("EndDate = %s, expected %s", ev.EndDate, tt.wantEnd)
			}
			if ev.IsMultiDay != tt.multiDay {
				t.Errorf("IsMultiDay = %v, expected %v", ev.IsMultiDay, tt.multiDay)
			}
			if ev.WorkerID != tt.worker {
				t.Errorf("WorkerID = %s, expected %s", ev.WorkerID, tt.worker)
			}
			if ev.Status != tt.status {
				t.Errorf("Status = %s, expected %s", ev.Status, tt.status)
			}
		})
	}
}

func TestRawEvent_Normalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  RawEvent
		code apperrors.Code
	}{
		{"缺少日期", RawEvent{ID: "a"}, apperrors.CodeInvalidInput},
		{"非法开始日期", RawEvent{ID: "a", StartDate: "2025/03/10"}, apperrors.CodeInvalidDate},
		{"非法结束日期", RawEvent{ID: "a", StartDate: "2025-03-10", EndDate: "x"}, apperrors.CodeInvalidDate},
		{"结束早于开始", RawEvent{ID: "a", StartDate: "2025-03-10", EndDate: "2025-03-09"}, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.raw.Normalize()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := apperrors.GetCode(err); got != tt.code {
				t.Errorf("code = %s, expected %s", got, tt.code)
			}
		})
	}
}

func TestRawEvent_Normalize_DerivesColorAndID(t *testing.T) {
	ev, err := RawEvent{StartDate: "2025-03-10", Status: "accepted", Color: "#2196f3"}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID == "" {
		t.Error("ID should be generated")
	}
	// 颜色由状态派生，旧颜色被覆盖
	if ev.Color != status.ColorOf(status.BucketConfirmed) {
		t.Errorf("Color = %s, expected %s", ev.Color, status.ColorOf(status.BucketConfirmed))
	}

	// 没有状态时由颜色补全状态，之后可以正常迁移
	legacy, err := RawEvent{ID: "x", StartDate: "2025-03-10", Color: "#ff9800"}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if legacy.Status != string(status.Pending) {
		t.Errorf("Status = %s, expected pending", legacy.Status)
	}
	if legacy.Bucket() != status.BucketPending {
		t.Errorf("Bucket() = %s, expected pending", legacy.Bucket())
	}
	if _, err := status.Transition(legacy.Status, "accepted"); err != nil {
		t.Errorf("Transition() error = %v", err)
	}
}

func TestEvent_LastDate(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"单日", Event{StartDate: "2025-03-10"}, "2025-03-10"},
		{"多日", Event{StartDate: "2025-03-10", EndDate: "2025-03-12", IsMultiDay: true}, "2025-03-12"},
		{"非多日忽略结束日期", Event{StartDate: "2025-03-10", EndDate: "2025-03-12"}, "2025-03-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.LastDate(); got != tt.want {
				t.Errorf("LastDate() = %s, expected %s", got, tt.want)
			}
		})
	}
}
