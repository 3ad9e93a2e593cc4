package kbstore

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"
)

// HashingEmbedder 确定性特征散列向量器：按字符二元组散列到固定维度
// 并做 L2 归一化。不依赖外部服务，适合测试与离线开发环境。
// 共享二元组越多的文本余弦距离越近，足以支撑词面级的相似检索。
type HashingEmbedder struct {
	dim int
}

// DefaultHashingDim 默认向量维度
const DefaultHashingDim = 128

// NewHashingEmbedder 创建散列向量器。dim <= 0 时使用默认维度。
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultHashingDim
	}
	return &HashingEmbedder{dim: dim}
}

// Dim 返回向量维度
func (e *HashingEmbedder) Dim() int {
	return e.dim
}

func (e *HashingEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	runes := []rune(text)
	if len(runes) == 0 {
		return vec
	}

	// 单字符文本退化为一元组
	if len(runes) == 1 {
		runes = append(runes, runes[0])
	}
	for i := 0; i+1 < len(runes); i++ {
		bigram := string(runes[i : i+2])
		h := xxhash.Sum64String(bigram)
		idx := int(h % uint64(e.dim))
		// 次高位决定符号，削弱散列碰撞带来的偏置
		if h&(1<<62) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// EmbedDocuments 批量向量化文档文本
func (e *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs[i] = e.embed(text)
	}
	return vecs, nil
}

// EmbedQuery 向量化查询文本
func (e *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}
