package retrieval

import (
	"github.com/canhui/medkb/kbstore"
)

// RankedResult 重排序后的检索结果
type RankedResult struct {
	Chunk kbstore.Chunk `json:"chunk"`

	// RawScore 原始语义相似度（由向量距离换算）
	RawScore float64 `json:"raw_score"`

	// WeightedScore 多信号加权后的综合分
	WeightedScore float64 `json:"weighted_score"`

	// Rank 重排序后的名次，从 1 开始
	Rank int `json:"rank"`
}

// Weights 重排序信号权重，Retrieve 返回的权重已归一化到和为 1
type Weights struct {
	Semantic         float64 `json:"semantic"`
	MedicalRelevance float64 `json:"medical_relevance"`
	KGExpansion      float64 `json:"kg_expansion"`
	Association      float64 `json:"association"`
}

// Entity 从查询中提取的医学实体
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Association 医学关联关系（共现挖掘产出）
type Association struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Relation   string  `json:"relation"`
	Confidence float64 `json:"confidence"`
}

// FilterHints 调用方传入的原始过滤提示，
// 流水线会先经分类别名表解析再构造存储层过滤条件。
type FilterHints struct {
	Department      string `json:"department,omitempty"`
	DocumentType    string `json:"document_type,omitempty"`
	DiseaseCategory string `json:"disease_category,omitempty"`
}

// Diagnostics 单次检索的诊断信息
type Diagnostics struct {
	Filter              kbstore.Filter         `json:"filter"`
	QualityScore        float64                `json:"quality_score"`
	IntentConfidence    float64                `json:"intent_confidence"`
	KGEnhanced          bool                   `json:"kg_enhanced"`
	AssociationEnhanced bool                   `json:"association_enhanced"`
	Weights             Weights                `json:"weights"`
	FallbackReason      string                 `json:"fallback_reason,omitempty"`
	SearchedPartitions  []kbstore.PartitionKey `json:"searched_partitions,omitempty"`
	ExpansionTerms      []string               `json:"expansion_terms,omitempty"`
	AssociationTerms    []string               `json:"association_terms,omitempty"`
	CacheHit            bool                   `json:"cache_hit"`
	EffectiveK          int                    `json:"effective_k"`
}

// Result 完整检索响应
type Result struct {
	Results     []RankedResult `json:"results"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}
