package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canhui/medkb/kbstore"
	"github.com/canhui/medkb/taxonomy"
)

func scoredChunk(text string, distance float64, meta taxonomy.Metadata) kbstore.ScoredChunk {
	return kbstore.ScoredChunk{
		Chunk:    kbstore.Chunk{ID: text, Text: text, Metadata: meta},
		Distance: distance,
	}
}

func TestRerankSemanticOnly(t *testing.T) {
	results := []kbstore.ScoredChunk{
		scoredChunk("远", 0.8, taxonomy.Metadata{}),
		scoredChunk("近", 0.1, taxonomy.Metadata{}),
	}

	ranked := rerank(results, Weights{Semantic: 1}, nil, nil)
	require.Len(t, ranked, 2)

	assert.Equal(t, "近", ranked[0].Chunk.Text)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Greater(t, ranked[0].WeightedScore, ranked[1].WeightedScore)
}

func TestRerankKGSignalInvertsOrder(t *testing.T) {
	// 语义上稍远、但命中全部图谱扩展术语的文档应反超
	results := []kbstore.ScoredChunk{
		scoredChunk("泛泛而谈的血糖科普", 0.30, taxonomy.Metadata{}),
		scoredChunk("胰岛素抵抗与二甲双胍的作用机制", 0.38, taxonomy.Metadata{}),
	}
	weights := Weights{Semantic: 0.5, KGExpansion: 0.5}
	expansion := []string{"胰岛素抵抗", "二甲双胍"}

	ranked := rerank(results, weights, expansion, nil)

	assert.Equal(t, "胰岛素抵抗与二甲双胍的作用机制", ranked[0].Chunk.Text)
}

func TestRerankMedicalRelevance(t *testing.T) {
	withMeta := taxonomy.Metadata{
		Department:    taxonomy.DeptInternalMedicine,
		DocumentType:  taxonomy.DocClinicalGuideline,
		EvidenceLevel: taxonomy.Evidence1A,
	}
	results := []kbstore.ScoredChunk{
		scoredChunk("无元数据", 0.2, taxonomy.Metadata{}),
		scoredChunk("有科室与证据等级", 0.2, withMeta),
	}

	ranked := rerank(results, Weights{Semantic: 0.5, MedicalRelevance: 0.5}, nil, nil)

	// 语义分相同时元数据完整的文档胜出
	assert.Equal(t, "有科室与证据等级", ranked[0].Chunk.Text)
}

func TestRerankRawScore(t *testing.T) {
	results := []kbstore.ScoredChunk{scoredChunk("a", 0.0, taxonomy.Metadata{})}

	ranked := rerank(results, Weights{Semantic: 1}, nil, nil)
	assert.InDelta(t, 1.0, ranked[0].RawScore, 1e-9)
}

func TestTermCoverage(t *testing.T) {
	chunk := kbstore.Chunk{Text: "糖尿病患者的胰岛素治疗"}

	assert.Equal(t, 1.0, termCoverageScore(chunk, []string{"胰岛素"}))
	assert.Equal(t, 0.5, termCoverageScore(chunk, []string{"胰岛素", "二甲双胍"}))
	assert.Equal(t, 0.0, termCoverageScore(chunk, nil))
}
