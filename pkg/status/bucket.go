package status

import (
	"strings"

	"github.com/sekou/sekou/pkg/logger"
)

// Bucket 日历筛选用的四值简化状态
type Bucket string

const (
	BucketConfirmed Bucket = "confirmed"
	BucketProposed  Bucket = "proposed"
	BucketPending   Bucket = "pending"
	BucketCompleted Bucket = "completed"
)

// Buckets 返回全部筛选桶（显示顺序）
func Buckets() []Bucket {
	return []Bucket{BucketConfirmed, BucketProposed, BucketPending, BucketCompleted}
}

// ParseBucket 解析筛选桶名称
func ParseBucket(s string) (Bucket, bool) {
	b := Bucket(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case BucketConfirmed, BucketProposed, BucketPending, BucketCompleted:
		return b, true
	}
	return "", false
}

// Rule 分类时实际生效的规则
type Rule string

const (
	RuleStatus  Rule = "status"  // 由显式状态映射
	RuleColor   Rule = "color"   // 由颜色反推（兼容）
	RuleDefault Rule = "default" // 无法识别，回落到 proposed
)

// bucketColors 状态桶 -> 显示颜色，颜色只能由状态派生
var bucketColors = map[Bucket]string{
	BucketConfirmed: "#4caf50",
	BucketProposed:  "#2196f3",
	BucketPending:   "#ff9800",
	BucketCompleted: "#9e9e9e",
}

// ColorOf 返回桶对应的显示颜色
func ColorOf(b Bucket) string {
	if c, ok := bucketColors[b]; ok {
		return c
	}
	return bucketColors[BucketProposed]
}

// Classify 将事件的状态（或颜色）映射为筛选桶，任何输入都不会 panic
func Classify(rawStatus, color string) Bucket {
	b, _ := ClassifyWithRule(rawStatus, color)
	return b
}

// ClassifyWithRule 同 Classify，并返回生效的规则
func ClassifyWithRule(rawStatus, color string) (Bucket, Rule) {
	if strings.TrimSpace(rawStatus) != "" {
		if b, ok := bucketOfStatus(rawStatus); ok {
			return b, RuleStatus
		}
		logger.Debug().Str("status", rawStatus).Msg("未映射的状态，按 proposed 处理")
		return BucketProposed, RuleDefault
	}

	if strings.TrimSpace(color) != "" {
		if b, ok := BucketFromColor(color); ok {
			return b, RuleColor
		}
	}
	return BucketProposed, RuleDefault
}

// statusOfBucket 筛选桶 -> 代表性的生命周期状态，只用于由颜色补全状态
var statusOfBucket = map[Bucket]Status{
	BucketConfirmed: Accepted,
	BucketProposed:  Proposed,
	BucketPending:   Pending,
	BucketCompleted: Completed,
}

// Resolve 为导入数据确定规范状态：可识别的状态直接采用；
// 没有状态时由颜色反推（兼容）；其余一律为 proposed
func Resolve(rawStatus, color string) (Status, Rule) {
	if strings.TrimSpace(rawStatus) != "" {
		if st, ok := Parse(rawStatus); ok {
			return st, RuleStatus
		}
		return Proposed, RuleDefault
	}
	if b, ok := BucketFromColor(color); ok {
		return statusOfBucket[b], RuleColor
	}
	return Proposed, RuleDefault
}

// bucketOfStatus 显式状态直接映射
func bucketOfStatus(raw string) (Bucket, bool) {
	st, ok := Parse(raw)
	if !ok {
		return "", false
	}
	switch st {
	case Accepted:
		return BucketConfirmed, true
	case Proposed:
		return BucketProposed, true
	case Pending:
		return BucketPending, true
	case Completed:
		return BucketCompleted, true
	}
	return "", false
}

// BucketFromColor 由显示颜色反推筛选桶。
//
// Deprecated: 仅为尚未携带状态的旧数据保留，新数据必须写入 status。
// 计划在所有导入源补齐 status 后移除。
func BucketFromColor(color string) (Bucket, bool) {
	c := strings.ToLower(strings.TrimSpace(color))
	for b, hex := range bucketColors {
		if hex == c {
			return b, true
		}
	}
	return "", false
}
