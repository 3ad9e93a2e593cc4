package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func weightSum(w Weights) float64 {
	return w.Semantic + w.MedicalRelevance + w.KGExpansion + w.Association
}

func TestAdjustWeightsNormalized(t *testing.T) {
	cases := []struct {
		name       string
		quality    float64
		confidence float64
		kg, assoc  bool
	}{
		{"高质量全信号", 0.9, 0.9, true, true},
		{"低质量无信号", 0.3, 0.2, false, false},
		{"中等质量仅KG", 0.65, 0.5, true, false},
		{"高置信仅关联", 0.7, 0.85, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := adjustWeights(tc.quality, tc.confidence, tc.kg, tc.assoc)
			assert.InDelta(t, 1.0, weightSum(w), 1e-9)
		})
	}
}

func TestAdjustWeightsQualityShift(t *testing.T) {
	high := adjustWeights(0.9, 0.5, true, true)
	low := adjustWeights(0.3, 0.5, true, true)

	// 高质量查询语义权重占比更高，低质量查询偏向医学相关性
	assert.Greater(t, high.Semantic, low.Semantic)
	assert.Greater(t, low.MedicalRelevance, high.MedicalRelevance)
}

func TestAdjustWeightsUnfiredSignalsZeroed(t *testing.T) {
	w := adjustWeights(0.7, 0.5, false, false)

	assert.Zero(t, w.KGExpansion)
	assert.Zero(t, w.Association)
	assert.InDelta(t, 1.0, weightSum(w), 1e-9)
}

func TestHeuristicAssessor(t *testing.T) {
	a := HeuristicAssessor{}
	ctx := context.Background()

	specific, _ := a.Assess(ctx, "2型糖尿病患者的胰岛素治疗方案和禁忌症")
	vague, _ := a.Assess(ctx, "什么？")
	empty, _ := a.Assess(ctx, "")

	assert.Greater(t, specific, 0.6)
	assert.LessOrEqual(t, vague, 0.3)
	assert.Zero(t, empty)
}
