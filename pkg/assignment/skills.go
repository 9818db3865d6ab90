package assignment

import (
	"slices"
	"strings"
)

// skillTable 工事类型 -> 所需技能
var skillTable = map[string][]string{
	"installation": {"エアコン設置", "電気工事"},
	"repair":       {"エアコン修理", "冷媒取扱"},
	"maintenance":  {"定期点検"},
	"cleaning":     {"エアコンクリーニング"},
	"piping":       {"配管工事"},
	"electrical":   {"電気工事"},
	"replacement":  {"エアコン設置", "冷媒取扱", "撤去"},
	"commercial":   {"業務用空調", "電気工事", "高所作業"},
	"ventilation":  {"換気設備"},
	"inspection":   {"定期点検"},
}

// SkillsFor 返回工事类型所需的技能，未知类型返回空列表（非 nil）
func SkillsFor(constructionType string) []string {
	skills, ok := skillTable[strings.ToLower(strings.TrimSpace(constructionType))]
	if !ok {
		return []string{}
	}
	out := make([]string, len(skills))
	copy(out, skills)
	return out
}

// ConstructionTypes 返回已知的工事类型
func ConstructionTypes() []string {
	out := make([]string, 0, len(skillTable))
	for k := range skillTable {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
