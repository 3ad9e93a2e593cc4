package kbstore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/canhui/medkb/taxonomy"
)

// Chunk 已打标的文档块。一旦入库即不可变，
// 归属于其被添加到的那个分区，分区删除时随之销毁。
type Chunk struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  taxonomy.Metadata `json:"metadata"`
}

// NewChunk 创建文档块并分配 ID
func NewChunk(text string, metadata taxonomy.Metadata) Chunk {
	return Chunk{
		ID:       uuid.NewString(),
		Text:     text,
		Metadata: metadata,
	}
}

// ScoredChunk 带原始距离分数的检索结果。
// Distance 为余弦距离，越小越相似。
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}

// PartitionKey 分区唯一键，同时是磁盘目录名。
// 格式：科室_文档类型[_疾病分类]，跨进程重启保持稳定。
type PartitionKey string

// MakePartitionKey 由分类三元组生成分区键
func MakePartitionKey(dept taxonomy.Department, doctype taxonomy.DocumentType, disease taxonomy.DiseaseCategory) PartitionKey {
	parts := []string{string(dept), string(doctype)}
	if disease != "" {
		parts = append(parts, string(disease))
	}
	return PartitionKey(strings.Join(parts, "_"))
}

// Filter 检索过滤条件，所有字段可选
type Filter struct {
	Department      taxonomy.Department      `json:"department,omitempty"`
	DocumentType    taxonomy.DocumentType    `json:"document_type,omitempty"`
	DiseaseCategory taxonomy.DiseaseCategory `json:"disease_category,omitempty"`
}

// Empty 判断过滤条件是否为空
func (f Filter) Empty() bool {
	return f.Department == "" && f.DocumentType == "" && f.DiseaseCategory == ""
}

// String 过滤条件的日志表示
func (f Filter) String() string {
	return fmt.Sprintf("dept=%s type=%s disease=%s", f.Department, f.DocumentType, f.DiseaseCategory)
}
