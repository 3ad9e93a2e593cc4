package retrieval

import (
	"sort"
	"strings"

	"github.com/canhui/medkb/kbstore"
)

// semanticScore 距离换算为 (0,1] 的相似度分
func semanticScore(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// medicalRelevanceScore 按元数据完整性评估医学相关性：
// 有明确科室归属与证据等级的文档更可信。
func medicalRelevanceScore(chunk kbstore.Chunk) float64 {
	score := 0.0
	if chunk.Metadata.Department != "" {
		score += 0.6
	}
	if chunk.Metadata.EvidenceLevel != "" {
		score += 0.4
	}
	return score
}

// termCoverageScore 扩展术语在文档文本中的覆盖率
func termCoverageScore(chunk kbstore.Chunk, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if term != "" && strings.Contains(chunk.Text, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// rerank 多信号加权重排序。
// 语义分来自向量距离，医学相关性来自元数据，KG 与关联信号来自
// 扩展术语在文档中的覆盖率。按综合分降序重排并赋名次。
func rerank(results []kbstore.ScoredChunk, weights Weights, expansionTerms, associationTerms []string) []RankedResult {
	ranked := make([]RankedResult, len(results))
	for i, sc := range results {
		raw := semanticScore(sc.Distance)
		weighted := weights.Semantic*raw +
			weights.MedicalRelevance*medicalRelevanceScore(sc.Chunk) +
			weights.KGExpansion*termCoverageScore(sc.Chunk, expansionTerms) +
			weights.Association*termCoverageScore(sc.Chunk, associationTerms)

		ranked[i] = RankedResult{
			Chunk:         sc.Chunk,
			RawScore:      raw,
			WeightedScore: weighted,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].WeightedScore > ranked[j].WeightedScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
