package kbstore

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/canhui/medkb/taxonomy"
)

// EmbeddingProvider 向量化服务接口。
// 实现方负责把文本映射为固定维度的向量，
// 同一实现内文档向量与查询向量必须同维度。
type EmbeddingProvider interface {
	// EmbedDocuments 批量向量化文档文本
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery 向量化查询文本
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RateLimitedEmbedder 带令牌桶限流的向量化包装器，
// 保护下游向量化服务不被批量索引打爆。
type RateLimitedEmbedder struct {
	inner   EmbeddingProvider
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder 创建限流包装器。
// perSec <= 0 时不限流，直接透传。
func NewRateLimitedEmbedder(inner EmbeddingProvider, perSec float64, burst int) *RateLimitedEmbedder {
	var limiter *rate.Limiter
	if perSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return &RateLimitedEmbedder{inner: inner, limiter: limiter}
}

func (e *RateLimitedEmbedder) wait(ctx context.Context, n int) error {
	if e.limiter == nil {
		return nil
	}
	if n > e.limiter.Burst() {
		n = e.limiter.Burst()
	}
	if err := e.limiter.WaitN(ctx, n); err != nil {
		return taxonomy.NewError(taxonomy.ErrEmbeddingFailure, "embedding rate limit wait canceled").WithCause(err)
	}
	return nil
}

// EmbedDocuments 按批量大小消耗令牌后转发
func (e *RateLimitedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.wait(ctx, len(texts)); err != nil {
		return nil, err
	}
	return e.inner.EmbedDocuments(ctx, texts)
}

// EmbedQuery 消耗单个令牌后转发
func (e *RateLimitedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := e.wait(ctx, 1); err != nil {
		return nil, err
	}
	return e.inner.EmbedQuery(ctx, text)
}
