// Package matcher 为工事事件给作业员打分：技能、距离、当日负荷
package matcher

import (
	"sort"
	"strings"

	"github.com/sekou/sekou/pkg/model"
)

// MatchScore 匹配评分（各分项 0-100）
type MatchScore struct {
	WorkerID      string   `json:"worker_id"`
	WorkerName    string   `json:"worker_name"`
	TotalScore    float64  `json:"total_score"`
	SkillScore    float64  `json:"skill_score"`
	DistanceScore float64  `json:"distance_score"`
	WorkloadScore float64  `json:"workload_score"`
	MatchedSkills []string `json:"matched_skills"`
	Distance      float64  `json:"distance_km"` // 无坐标时为 0
}

// SkillMatcher 技能匹配器
type SkillMatcher struct {
	skillWeights map[string]float64
}

// NewSkillMatcher 创建技能匹配器
func NewSkillMatcher() *SkillMatcher {
	return &SkillMatcher{
		skillWeights: map[string]float64{
			"業務用空調": 1.5,
			"高所作業":  1.3,
			"冷媒取扱":  1.2,
			"配管工事":  1.2,
			"default": 1.0,
		},
	}
}

// MatchSkills 按权重计算已具备技能的比例
func (m *SkillMatcher) MatchSkills(requiredSkills []string, worker *model.Worker) (float64, []string) {
	if len(requiredSkills) == 0 {
		return 100, nil
	}

	matchedSkills := make([]string, 0)
	totalWeight := 0.0
	matchedWeight := 0.0

	for _, req := range requiredSkills {
		weight := m.skillWeights[req]
		if weight == 0 {
			weight = m.skillWeights["default"]
		}
		totalWeight += weight

		if worker.HasSkill(req) {
			matchedSkills = append(matchedSkills, req)
			matchedWeight += weight
		}
	}

	return (matchedWeight / totalWeight) * 100, matchedSkills
}

// 无坐标时按地址区域估算的分数
const (
	scoreSameRegion  = 90
	scoreOtherRegion = 60
	scoreUnknown     = 50
)

// DistanceMatcher 距离匹配器
type DistanceMatcher struct {
	maxDistanceKm float64
}

// NewDistanceMatcher 创建距离匹配器
func NewDistanceMatcher(maxDistance float64) *DistanceMatcher {
	return &DistanceMatcher{
		maxDistanceKm: maxDistance,
	}
}

// Score 两端都有坐标时按直线距离评分，否则比较地址的都道府県
func (d *DistanceMatcher) Score(home, site *model.Location) (score, km float64) {
	if home == nil || site == nil {
		return scoreUnknown, 0
	}
	if home.HasCoordinates() && site.HasCoordinates() {
		km = home.Distance(*site)
		return d.ScoreDistance(km), km
	}
	if home.Address == "" || site.Address == "" {
		return scoreUnknown, 0
	}
	if Region(home.Address) == Region(site.Address) {
		return scoreSameRegion, 0
	}
	return scoreOtherRegion, 0
}

// ScoreDistance 距离评分（距离越近分数越高）
func (d *DistanceMatcher) ScoreDistance(distance float64) float64 {
	if distance <= 0 {
		return 100
	}
	if distance >= d.maxDistanceKm {
		return 0
	}
	return (1 - distance/d.maxDistanceKm) * 100
}

// Region 返回地址的第一段（都道府県），没有则取第一个空格前的部分
func Region(address string) string {
	address = strings.TrimSpace(address)
	for i, r := range address {
		if r == ' ' && i > 0 {
			return address[:i]
		}
		// 「京都府」中的「都」不是分隔
		if strings.ContainsRune("都道府県", r) && i > 0 && address[:i] != "京" {
			return address[:i+len(string(r))]
		}
	}
	return address
}

// WorkloadFunc 返回作业员当日的负荷分数；ok 为 false 表示已满，不参与匹配
type WorkloadFunc func(worker *model.Worker) (score float64, ok bool)

// Input 匹配输入
type Input struct {
	Skills   []string
	Site     *model.Location
	Workload WorkloadFunc // 为 nil 时负荷分数一律 100
}

// ComprehensiveMatcher 综合匹配器
type ComprehensiveMatcher struct {
	skillMatcher    *SkillMatcher
	distanceMatcher *DistanceMatcher

	// 权重配置
	skillWeight    float64
	distanceWeight float64
	workloadWeight float64
}

// NewComprehensiveMatcher 创建综合匹配器
func NewComprehensiveMatcher(maxDistance float64) *ComprehensiveMatcher {
	return &ComprehensiveMatcher{
		skillMatcher:    NewSkillMatcher(),
		distanceMatcher: NewDistanceMatcher(maxDistance),
		skillWeight:     0.5,
		distanceWeight:  0.2,
		workloadWeight:  0.3,
	}
}

// SetWeights 设置权重，自动归一化
func (c *ComprehensiveMatcher) SetWeights(skill, distance, workload float64) {
	total := skill + distance + workload
	if total <= 0 {
		return
	}
	c.skillWeight = skill / total
	c.distanceWeight = distance / total
	c.workloadWeight = workload / total
}

// Match 为在职作业员打分，按总分降序，同分按 ID 升序
func (c *ComprehensiveMatcher) Match(in Input, workers []model.Worker) []MatchScore {
	scores := make([]MatchScore, 0, len(workers))

	for i := range workers {
		w := &workers[i]
		if !w.IsActive() {
			continue
		}
		workload := 100.0
		if in.Workload != nil {
			var ok bool
			if workload, ok = in.Workload(w); !ok {
				continue
			}
		}
		scores = append(scores, c.scoreWorker(in, w, workload))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		return scores[i].WorkerID < scores[j].WorkerID
	})

	return scores
}

func (c *ComprehensiveMatcher) scoreWorker(in Input, w *model.Worker, workload float64) MatchScore {
	skillScore, matchedSkills := c.skillMatcher.MatchSkills(in.Skills, w)
	distanceScore, km := c.distanceMatcher.Score(w.HomeLocation, in.Site)

	return MatchScore{
		WorkerID:      w.ID,
		WorkerName:    w.Name,
		TotalScore:    skillScore*c.skillWeight + distanceScore*c.distanceWeight + workload*c.workloadWeight,
		SkillScore:    skillScore,
		DistanceScore: distanceScore,
		WorkloadScore: workload,
		MatchedSkills: matchedSkills,
		Distance:      km,
	}
}

// FindBestMatch 找到最佳匹配
func (c *ComprehensiveMatcher) FindBestMatch(in Input, workers []model.Worker) *MatchScore {
	scores := c.Match(in, workers)
	if len(scores) == 0 {
		return nil
	}
	return &scores[0]
}
