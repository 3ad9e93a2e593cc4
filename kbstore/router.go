package kbstore

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 回退原因常量，透出在路由结果里供诊断
const (
	FallbackNone           = ""
	FallbackExactMiss      = "exact_partition_missing"
	FallbackDiseaseDropped = "disease_filter_dropped"
	FallbackAllPartitions  = "filter_unmatched_searched_all"
	FallbackNoPartition    = "no_partition_available"
)

// RouteResult 路由检索结果：全局合并后的文档与路由诊断信息
type RouteResult struct {
	Results            []ScoredChunk  `json:"results"`
	SearchedPartitions []PartitionKey `json:"searched_partitions"`
	FallbackReason     string         `json:"fallback_reason,omitempty"`
}

// Router 分区路由器。按过滤条件把查询定向到精确分区，
// 精确命中失败时逐级放宽条件回退，绝不让过窄的过滤条件空手而归。
type Router struct {
	manager *Manager
	logger  *zap.Logger

	// 单次路由内并行搜索的分区数上限
	maxConcurrency int
}

// NewRouter 创建路由器
func NewRouter(manager *Manager, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		manager:        manager,
		logger:         logger.With(zap.String("component", "router")),
		maxConcurrency: 8,
	}
}

// resolve 把过滤条件解析为目标分区集合。
// 路由顺序：精确键 → 字段匹配集合 → 放弃疾病维度 → 空集。
func (r *Router) resolve(filter Filter) ([]PartitionKey, string) {
	// 科室与文档类型齐备时优先尝试精确分区
	if filter.Department != "" && filter.DocumentType != "" {
		exact := MakePartitionKey(filter.Department, filter.DocumentType, filter.DiseaseCategory)
		if r.manager.Has(exact) {
			return []PartitionKey{exact}, FallbackNone
		}
	}

	keys := r.manager.Match(filter)
	if len(keys) > 0 {
		reason := FallbackNone
		if filter.Department != "" && filter.DocumentType != "" {
			reason = FallbackExactMiss
		}
		return keys, reason
	}

	// 疾病维度往往过细，放弃它再试一轮
	if filter.DiseaseCategory != "" {
		relaxed := filter
		relaxed.DiseaseCategory = ""
		if keys := r.manager.Match(relaxed); len(keys) > 0 {
			return keys, FallbackDiseaseDropped
		}
	}

	// 过滤条件完全不匹配时退回全库，宁可给弱相关结果也不空手而归
	if !filter.Empty() {
		if keys := r.manager.Match(Filter{}); len(keys) > 0 {
			return keys, FallbackAllPartitions
		}
	}

	return nil, FallbackNoPartition
}

// Search 路由检索：解析目标分区，查询只向量化一次，
// 并行搜索各分区后全局按距离升序合并取前 k。
func (r *Router) Search(ctx context.Context, query string, k int, filter Filter, threshold float64) (*RouteResult, error) {
	keys, reason := r.resolve(filter)
	if len(keys) == 0 {
		r.logger.Info("no partition matched filter",
			zap.String("filter", filter.String()))
		return &RouteResult{
			Results:        []ScoredChunk{},
			FallbackReason: reason,
		}, nil
	}

	queryVec, err := r.manager.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		merged []ScoredChunk
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			results, err := r.manager.SearchVector(gctx, key, queryVec, k, threshold)
			if err != nil {
				return err
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	if k > 0 && k < len(merged) {
		merged = merged[:k]
	}

	if reason != FallbackNone {
		r.logger.Info("routing fell back",
			zap.String("filter", filter.String()),
			zap.String("reason", reason),
			zap.Int("partitions", len(keys)))
	}
	return &RouteResult{
		Results:            merged,
		SearchedPartitions: keys,
		FallbackReason:     reason,
	}, nil
}
