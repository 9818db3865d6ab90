package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekou/sekou/pkg/model"
)

func TestSkillMatcher_MatchSkills(t *testing.T) {
	m := NewSkillMatcher()
	worker := &model.Worker{ID: "w1", Skills: []string{"エアコン設置", "業務用空調"}}

	tests := []struct {
		name        string
		required    []string
		wantScore   float64
		wantMatched []string
	}{
		{"无要求", nil, 100, nil},
		{"全部具备", []string{"エアコン設置"}, 100, []string{"エアコン設置"}},
		{"同权重各半", []string{"エアコン設置", "電気工事"}, 50, []string{"エアコン設置"}},
		{"高权重技能占比更大", []string{"業務用空調", "電気工事"}, 60, []string{"業務用空調"}},
		{"都不具备", []string{"換気設備"}, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, matched := m.MatchSkills(tt.required, worker)
			assert.InDelta(t, tt.wantScore, score, 0.01)
			assert.Equal(t, tt.wantMatched, matched)
		})
	}
}

func TestDistanceMatcher_Score(t *testing.T) {
	d := NewDistanceMatcher(50)
	tokyo := &model.Location{Address: "東京都品川区", Latitude: 35.6092, Longitude: 139.7302}
	minato := &model.Location{Address: "東京都港区", Latitude: 35.6581, Longitude: 139.7516}
	osaka := &model.Location{Address: "大阪府大阪市", Latitude: 34.6937, Longitude: 135.5023}

	tests := []struct {
		name      string
		home      *model.Location
		site      *model.Location
		wantScore float64
		wantKm    bool
	}{
		{"缺少位置", nil, minato, 50, false},
		{"有坐标按距离", tokyo, minato, 88, true},
		{"超出上限为 0", tokyo, osaka, 0, true},
		{"无坐标同一都道府県", &model.Location{Address: "東京都品川区"}, &model.Location{Address: "東京都港区1-1"}, 90, false},
		{"无坐标不同都道府県", &model.Location{Address: "東京都品川区"}, &model.Location{Address: "大阪府大阪市"}, 60, false},
		{"无地址", &model.Location{}, &model.Location{Address: "東京都港区"}, 50, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, km := d.Score(tt.home, tt.site)
			assert.InDelta(t, tt.wantScore, score, 1)
			assert.Equal(t, tt.wantKm, km > 0)
		})
	}
}

func TestRegion(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"都", "東京都港区1-1", "東京都"},
		{"府", "大阪府大阪市", "大阪府"},
		{"京都府", "京都府京都市", "京都府"},
		{"県", "神奈川県横浜市", "神奈川県"},
		{"道", "北海道札幌市", "北海道"},
		{"空格", "Springfield IL", "Springfield"},
		{"无分隔", "Springfield", "Springfield"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Region(tt.address))
		})
	}
}

func TestComprehensiveMatcher_Match(t *testing.T) {
	workers := []model.Worker{
		{ID: "w2", Name: "中村二郎", Status: "active", Skills: []string{"エアコン設置"}, HomeLocation: &model.Location{Address: "大阪府大阪市"}},
		{ID: "w1", Name: "田中一郎", Status: "active", Skills: []string{"エアコン設置", "電気工事"}, HomeLocation: &model.Location{Address: "東京都品川区"}},
		{ID: "w3", Name: "休職中", Status: "leave", Skills: []string{"エアコン設置", "電気工事"}},
		{ID: "w4", Name: "満杯", Status: "active", Skills: []string{"エアコン設置", "電気工事"}},
	}
	in := Input{
		Skills: []string{"エアコン設置", "電気工事"},
		Site:   &model.Location{Address: "東京都港区1-1"},
		Workload: func(w *model.Worker) (float64, bool) {
			if w.ID == "w4" {
				return 0, false
			}
			return 100, true
		},
	}

	m := NewComprehensiveMatcher(50)

	t.Run("排除非在职与已满并按总分排序", func(t *testing.T) {
		scores := m.Match(in, workers)
		require.Len(t, scores, 2)
		assert.Equal(t, "w1", scores[0].WorkerID)
		assert.InDelta(t, 98, scores[0].TotalScore, 0.01)
		assert.Equal(t, "w2", scores[1].WorkerID)
		assert.InDelta(t, 67, scores[1].TotalScore, 0.01)
	})

	t.Run("同分按 ID 排序", func(t *testing.T) {
		twins := []model.Worker{
			{ID: "b", Status: "active"},
			{ID: "a", Status: "active"},
		}
		scores := m.Match(Input{}, twins)
		require.Len(t, scores, 2)
		assert.Equal(t, "a", scores[0].WorkerID)
	})

	t.Run("权重归一化", func(t *testing.T) {
		custom := NewComprehensiveMatcher(50)
		custom.SetWeights(1, 0, 0)
		best := custom.FindBestMatch(in, workers)
		require.NotNil(t, best)
		assert.Equal(t, "w1", best.WorkerID)
		assert.InDelta(t, 100, best.TotalScore, 0.01)
	})

	t.Run("没有候选", func(t *testing.T) {
		assert.Nil(t, m.FindBestMatch(in, nil))
	})
}
