package stats

import (
	"math"
	"sort"
)

// BalanceMetrics 作业员之间的负荷均衡度
type BalanceMetrics struct {
	Gini   float64 `json:"gini"`    // 基尼系数 (0=完全均衡, 1=完全集中)
	Mean   float64 `json:"mean"`    // 人均作业日数
	StdDev float64 `json:"std_dev"` // 标准差
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
	Score  float64 `json:"score"` // 综合均衡评分 (0-100)
}

// BalanceAnalyzer 均衡度分析器
type BalanceAnalyzer struct {
	giniWeight float64
	cvWeight   float64
}

// NewBalanceAnalyzer 创建均衡度分析器
func NewBalanceAnalyzer() *BalanceAnalyzer {
	return &BalanceAnalyzer{
		giniWeight: 0.6,
		cvWeight:   0.4,
	}
}

// Analyze 分析每人负荷列表
func (f *BalanceAnalyzer) Analyze(loads []float64) *BalanceMetrics {
	if len(loads) == 0 {
		return &BalanceMetrics{Score: 100}
	}

	mean := f.calculateMean(loads)
	stdDev := math.Sqrt(f.calculateVariance(loads, mean))
	maxV, minV := f.calculateRange(loads)
	gini := f.calculateGini(loads)

	return &BalanceMetrics{
		Gini:   gini,
		Mean:   mean,
		StdDev: stdDev,
		Max:    maxV,
		Min:    minV,
		Score:  f.calculateScore(gini, stdDev, mean),
	}
}

// calculateMean 计算平均值
func (f *BalanceAnalyzer) calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func (f *BalanceAnalyzer) calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func (f *BalanceAnalyzer) calculateRange(values []float64) (maxV, minV float64) {
	if len(values) == 0 {
		return 0, 0
	}
	maxV, minV = values[0], values[0]
	for _, v := range values[1:] {
		maxV = max(maxV, v)
		minV = min(minV, v)
	}
	return
}

// calculateGini 计算基尼系数
func (f *BalanceAnalyzer) calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}
	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateScore 基尼系数与变异系数加权，越均衡分数越高
func (f *BalanceAnalyzer) calculateScore(gini, stdDev, mean float64) float64 {
	cv := 0.0
	if mean > 0 {
		cv = math.Min(1, stdDev/mean)
	}
	score := 100 * (1 - f.giniWeight*gini - f.cvWeight*cv)
	return math.Max(0, math.Min(100, score))
}
