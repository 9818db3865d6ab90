// Package status 定义工事事件的生命周期状态、日历筛选桶以及状态迁移规则
package status

import (
	"strings"

	apperrors "github.com/sekou/sekou/pkg/errors"
)

// Status 事件生命周期状态（闭集合）
type Status string

const (
	Proposed  Status = "proposed"  // 提案中
	Pending   Status = "pending"   // 等待回复（与「保留」同义）
	Accepted  Status = "accepted"  // 已确定
	Rejected  Status = "rejected"  // 已拒绝
	Completed Status = "completed" // 已完工
	Cancelled Status = "cancelled" // 已取消
)

// All 返回全部生命周期状态
func All() []Status {
	return []Status{Proposed, Pending, Accepted, Rejected, Completed, Cancelled}
}

// aliases 历史上各画面使用过的状态写法 -> 规范状态
// key 一律为小写
var aliases = map[string]Status{
	"proposed":  Proposed,
	"pending":   Pending,
	"on_hold":   Pending,
	"hold":      Pending,
	"保留":        Pending,
	"accepted":  Accepted,
	"confirmed": Accepted,
	"scheduled": Accepted,
	"rejected":  Rejected,
	"completed": Completed,
	"cancelled": Cancelled,
	"canceled":  Cancelled,
}

// Parse 解析状态字符串，兼容大写旧写法与「保留」
func Parse(s string) (Status, bool) {
	st, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// Canonical 返回规范写法；无法识别时原样返回
func Canonical(s string) string {
	if st, ok := Parse(s); ok {
		return string(st)
	}
	return s
}

// transitions 允许的状态迁移，未列出的状态均为终态
var transitions = map[Status][]Status{
	Proposed: {Accepted, Rejected, Pending},
	Pending:  {Accepted, Rejected},
	Accepted: {Completed, Cancelled},
}

// Next 返回从 s 可以迁移到的状态
func Next(s Status) []Status {
	return transitions[s]
}

// IsTerminal 检查是否为终态
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// CanTransition 检查迁移是否合法
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition 校验从 from（原始字符串）到 to 的迁移，返回规范化后的目标状态
func Transition(from string, to string) (Status, error) {
	src, ok := Parse(from)
	if !ok {
		return "", apperrors.InvalidTransition(from, to).WithDetails("当前状态无法识别")
	}
	dst, ok := Parse(to)
	if !ok {
		return "", apperrors.InvalidInput("status", "未知状态 "+to)
	}
	if !CanTransition(src, dst) {
		return "", apperrors.InvalidTransition(string(src), string(dst))
	}
	return dst, nil
}
