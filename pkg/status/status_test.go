package status

import (
	"testing"

	apperrors "github.com/sekou/sekou/pkg/errors"
)

func TestClassify_ExplicitStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expected Bucket
	}{
		{"accepted", "accepted", BucketConfirmed},
		{"旧写法SCHEDULED", "SCHEDULED", BucketConfirmed},
		{"confirmed别名", "confirmed", BucketConfirmed},
		{"proposed", "proposed", BucketProposed},
		{"PROPOSED", "PROPOSED", BucketProposed},
		{"pending", "pending", BucketPending},
		{"PENDING", "PENDING", BucketPending},
		{"保留", "保留", BucketPending},
		{"completed", "completed", BucketCompleted},
		{"COMPLETED", "COMPLETED", BucketCompleted},
		{"rejected未映射", "rejected", BucketProposed},
		{"cancelled未映射", "cancelled", BucketProposed},
		{"未知状态", "whatever", BucketProposed},
		{"空白", "   ", BucketProposed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, ""); got != tt.expected {
				t.Errorf("Classify(%q) = %v, expected %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestClassify_StatusWinsOverColor(t *testing.T) {
	got, rule := ClassifyWithRule("completed", ColorOf(BucketPending))
	if got != BucketCompleted || rule != RuleStatus {
		t.Errorf("got (%v, %v), expected (completed, status)", got, rule)
	}
}

func TestClassify_ColorFallback(t *testing.T) {
	for _, b := range Buckets() {
		got, rule := ClassifyWithRule("", ColorOf(b))
		if got != b || rule != RuleColor {
			t.Errorf("color %s: got (%v, %v), expected (%v, color)", ColorOf(b), got, rule, b)
		}
	}

	got, rule := ClassifyWithRule("", "#123456")
	if got != BucketProposed || rule != RuleDefault {
		t.Errorf("未知颜色应回落到 proposed, got (%v, %v)", got, rule)
	}

	if got := Classify("", "#4CAF50"); got != BucketConfirmed {
		t.Errorf("颜色比较应忽略大小写, got %v", got)
	}
}

func TestClassify_NeverPanics(t *testing.T) {
	inputs := []string{"", "\x00", "🚧", "null", "undefined", "ACCEPTED ", "Pending"}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Classify(%q) panicked: %v", in, r)
				}
			}()
			_ = Classify(in, in)
		}()
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{"proposed", "accepted", true},
		{"proposed", "rejected", true},
		{"proposed", "pending", true},
		{"pending", "accepted", true},
		{"保留", "rejected", true},
		{"accepted", "completed", true},
		{"SCHEDULED", "cancelled", true},
		{"pending", "completed", false},
		{"proposed", "completed", false},
		{"completed", "cancelled", false},
		{"rejected", "accepted", false},
		{"cancelled", "accepted", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			_, err := Transition(tt.from, tt.to)
			if tt.allowed && err != nil {
				t.Errorf("expected allowed, got %v", err)
			}
			if !tt.allowed {
				if err == nil {
					t.Error("expected rejection")
				} else if !apperrors.Is(err, apperrors.CodeInvalidTransition) {
					t.Errorf("expected INVALID_TRANSITION, got %v", apperrors.GetCode(err))
				}
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{Rejected, Completed, Cancelled} {
		if !IsTerminal(s) {
			t.Errorf("%s 应为终态", s)
		}
	}
	for _, s := range []Status{Proposed, Pending, Accepted} {
		if IsTerminal(s) {
			t.Errorf("%s 不应为终态", s)
		}
	}
}

func TestCanonical(t *testing.T) {
	if got := Canonical("SCHEDULED"); got != "accepted" {
		t.Errorf("Canonical(SCHEDULED) = %s", got)
	}
	if got := Canonical("on_hold"); got != "pending" {
		t.Errorf("Canonical(on_hold) = %s", got)
	}
	if got := Canonical("mystery"); got != "mystery" {
		t.Errorf("未知状态应原样保留, got %s", got)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		status string
		color  string
		want   Status
		rule   Rule
	}{
		{"可识别的状态", "SCHEDULED", "", Accepted, RuleStatus},
		{"状态优先于颜色", "rejected", ColorOf(BucketConfirmed), Rejected, RuleStatus},
		{"未知状态归为 proposed", "foo", ColorOf(BucketPending), Proposed, RuleDefault},
		{"只有颜色", "", ColorOf(BucketPending), Pending, RuleColor},
		{"确定颜色对应 accepted", "", ColorOf(BucketConfirmed), Accepted, RuleColor},
		{"完了颜色对应 completed", "", ColorOf(BucketCompleted), Completed, RuleColor},
		{"都没有", "", "", Proposed, RuleDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := Resolve(tt.status, tt.color)
			if got != tt.want || rule != tt.rule {
				t.Errorf("Resolve(%q, %q) = (%v, %v), expected (%v, %v)", tt.status, tt.color, got, rule, tt.want, tt.rule)
			}
		})
	}

	// 归一后的状态总能继续迁移
	st, _ := Resolve("foo", "")
	if _, err := Transition(string(st), "accepted"); err != nil {
		t.Errorf("Transition() error = %v", err)
	}
}
