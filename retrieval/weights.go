package retrieval

// baseWeights 重排序信号的基准权重
func baseWeights() Weights {
	return Weights{
		Semantic:         0.50,
		MedicalRelevance: 0.20,
		KGExpansion:      0.15,
		Association:      0.15,
	}
}

// adjustWeights 按查询质量与意图置信度动态调整权重，
// 未触发的增强信号权重清零，最终归一化到和为 1。
func adjustWeights(quality, intentConfidence float64, kgFired, assocFired bool) Weights {
	w := baseWeights()

	// 高质量查询信任语义相似度，低质量查询向医学相关性倾斜
	switch {
	case quality >= 0.8:
		w.Semantic += 0.15
	case quality < 0.5:
		w.Semantic -= 0.15
		w.MedicalRelevance += 0.15
	}

	if intentConfidence >= 0.8 {
		w.MedicalRelevance += 0.05
	}

	if !kgFired {
		w.KGExpansion = 0
	}
	if !assocFired {
		w.Association = 0
	}

	return normalize(w)
}

func normalize(w Weights) Weights {
	sum := w.Semantic + w.MedicalRelevance + w.KGExpansion + w.Association
	if sum <= 0 {
		return Weights{Semantic: 1}
	}
	w.Semantic /= sum
	w.MedicalRelevance /= sum
	w.KGExpansion /= sum
	w.Association /= sum
	return w
}
