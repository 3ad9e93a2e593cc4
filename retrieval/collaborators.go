package retrieval

import (
	"context"
	"strings"
	"unicode/utf8"
)

// QualityAssessor 查询质量评估接口。
// 返回 [0,1] 的质量分与意图置信度，质量分决定检索深度与增强开关。
type QualityAssessor interface {
	Assess(ctx context.Context, query string) (quality, intentConfidence float64)
}

// KnowledgeGraph 知识图谱接口。
// 实现方通常是外部图数据库客户端，流水线对其结果做缓存。
type KnowledgeGraph interface {
	// ExtractEntities 从查询中提取医学实体
	ExtractEntities(ctx context.Context, query string) ([]Entity, error)

	// ExpandEntity 返回实体在图谱中的关联术语
	ExpandEntity(ctx context.Context, entity Entity) ([]string, error)
}

// AssociationMiner 医学关联挖掘接口
type AssociationMiner interface {
	// Associations 返回与查询相关的关联关系，按置信度降序
	Associations(ctx context.Context, query string) ([]Association, error)
}

// HeuristicAssessor 基于词面特征的启发式质量评估器。
// 无外部依赖，适合作为默认实现：有具体医学术语且长度适中的查询
// 得高分，过短或纯泛化疑问句得低分。
type HeuristicAssessor struct{}

// 质量评估用的医学术语表（匹配即视为具体查询）
var medicalTerms = []string{
	"症状", "治疗", "诊断", "药物", "剂量", "禁忌", "病因", "检查",
	"手术", "并发症", "预后", "用药", "适应症", "副作用", "护理",
	"病", "症", "炎", "癌", "瘤", "综合征",
}

// 泛化疑问词，单独出现时没有检索价值
var vagueMarkers = []string{"什么", "怎么", "如何", "为什么", "哪些"}

// Assess 评估查询质量。基础分 0.3，医学术语与长度逐项加分，
// 纯泛化疑问句压回低分。
func (HeuristicAssessor) Assess(_ context.Context, query string) (float64, float64) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, 0
	}

	quality := 0.3
	runeCount := utf8.RuneCountInString(query)

	termHits := 0
	for _, term := range medicalTerms {
		if strings.Contains(query, term) {
			termHits++
		}
	}
	if termHits > 0 {
		quality += 0.2
	}
	if termHits > 2 {
		quality += 0.1
	}

	switch {
	case runeCount >= 8 && runeCount <= 60:
		quality += 0.2
	case runeCount >= 4:
		quality += 0.1
	}

	// 去掉疑问词后剩不下实质内容的查询视为泛化提问
	stripped := query
	for _, marker := range vagueMarkers {
		stripped = strings.ReplaceAll(stripped, marker, "")
	}
	stripped = strings.Trim(stripped, "？?！!。，, 　")
	if utf8.RuneCountInString(stripped) < 2 {
		quality = 0.3
	}

	if quality > 1 {
		quality = 1
	}

	// 意图置信度与术语命中强相关
	confidence := 0.4 + 0.15*float64(termHits)
	if confidence > 1 {
		confidence = 1
	}
	return quality, confidence
}
