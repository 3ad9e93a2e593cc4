// Package medkb provides a hierarchical medical knowledge store with
// partition-routed vector retrieval, namespace caching, and dynamic
// weighted re-ranking.
//
// Usage:
//
//	cfg := config.DefaultConfig()
//	engine, err := medkb.Open(cfg, medkb.Options{})
//	defer engine.Close()
//
//	result, err := engine.Retrieve(ctx, retrieval.Request{
//	    Question: "糖尿病的治疗方案有哪些？",
//	    Hints:    retrieval.FilterHints{Department: "内科"},
//	})
package medkb

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/canhui/medkb/cache"
	"github.com/canhui/medkb/config"
	"github.com/canhui/medkb/internal/metrics"
	"github.com/canhui/medkb/kbstore"
	"github.com/canhui/medkb/retrieval"
	"github.com/canhui/medkb/taxonomy"
)

// Options Engine 的可注入协作方，零值即可用：
// 缺省使用确定性散列向量器与启发式质量评估器，不接入图谱与关联挖掘。
type Options struct {
	// Embedder 向量化服务，nil 时使用 kbstore.HashingEmbedder
	Embedder kbstore.EmbeddingProvider

	// Assessor 查询质量评估器，nil 时使用启发式实现
	Assessor retrieval.QualityAssessor

	// KG 知识图谱客户端，nil 时跳过图谱增强
	KG retrieval.KnowledgeGraph

	// Miner 关联挖掘器，nil 时跳过关联增强
	Miner retrieval.AssociationMiner

	// Aliases 分类别名表，零值时使用默认表
	Aliases *taxonomy.AliasTable

	// Logger 日志器，nil 时使用 zap.NewNop
	Logger *zap.Logger

	// Registerer 指标注册表，nil 时使用 Prometheus 默认注册表
	Registerer prometheus.Registerer
}

// Engine 知识库引擎：组装存储、缓存、路由与检索流水线的顶层门面
type Engine struct {
	store    *kbstore.Manager
	cache    *cache.Cache
	pipeline *retrieval.Pipeline
	resolver *taxonomy.Resolver
	redis    *cache.RedisTier
	logger   *zap.Logger
}

// Open 按配置组装并打开知识库引擎
func Open(cfg *config.Config, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	collector := metrics.NewCollector("medkb", opts.Registerer, logger)

	embedder := opts.Embedder
	if embedder == nil {
		embedder = kbstore.NewHashingEmbedder(0)
		logger.Info("no embedder configured, using deterministic hashing embedder")
	}
	if cfg.Store.EmbedRatePerSec > 0 {
		embedder = kbstore.NewRateLimitedEmbedder(embedder, cfg.Store.EmbedRatePerSec, cfg.Store.EmbedBurst)
	}

	store, err := kbstore.Open(cfg.Store.BasePath, embedder, logger,
		kbstore.WithManagerMetrics(collector))
	if err != nil {
		return nil, err
	}

	var redisTier *cache.RedisTier
	cacheOpts := []cache.Option{cache.WithMetrics(collector)}
	if cfg.Redis.Enabled {
		redisTier, err = cache.NewRedisTier(cfg.Redis, logger)
		if err != nil {
			// 远端层不可用只降级为本地缓存
			logger.Warn("redis cache tier unavailable, local tier only", zap.Error(err))
		} else {
			cacheOpts = append(cacheOpts, cache.WithRemote(redisTier))
		}
	}
	resultCache := cache.New(cfg.Cache, logger, cacheOpts...)

	aliases := taxonomy.DefaultAliasTable()
	if opts.Aliases != nil {
		aliases = *opts.Aliases
	}
	resolver := taxonomy.NewResolver(aliases)

	router := kbstore.NewRouter(store, logger)
	pipelineOpts := []retrieval.PipelineOption{
		retrieval.WithResolver(resolver),
		retrieval.WithPipelineMetrics(collector),
	}
	if opts.Assessor != nil {
		pipelineOpts = append(pipelineOpts, retrieval.WithAssessor(opts.Assessor))
	}
	if opts.KG != nil {
		pipelineOpts = append(pipelineOpts, retrieval.WithKnowledgeGraph(opts.KG))
	}
	if opts.Miner != nil {
		pipelineOpts = append(pipelineOpts, retrieval.WithAssociationMiner(opts.Miner))
	}
	pipeline := retrieval.NewPipeline(cfg.Retrieval, router, resultCache, logger, pipelineOpts...)

	return &Engine{
		store:    store,
		cache:    resultCache,
		pipeline: pipeline,
		resolver: resolver,
		redis:    redisTier,
		logger:   logger.With(zap.String("component", "engine")),
	}, nil
}

// Close 释放引擎持有的外部资源
func (e *Engine) Close() error {
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}

// Retrieve 执行一次增强检索
func (e *Engine) Retrieve(ctx context.Context, req retrieval.Request) (*retrieval.Result, error) {
	return e.pipeline.Retrieve(ctx, req)
}

// AddDocuments 向指定分类组合的分区添加文档块。
// 分类字符串先经别名表归一，归一失败返回 INVALID_ARGUMENT。
// 写入成功后失效检索结果缓存，避免返回陈旧结果。
func (e *Engine) AddDocuments(ctx context.Context, department, documentType, diseaseCategory string, chunks []kbstore.Chunk) error {
	dept := e.resolver.ResolveDepartment(department)
	if dept == "" {
		return taxonomy.NewError(taxonomy.ErrInvalidArgument, "unresolvable department: "+department)
	}
	doctype := e.resolver.ResolveDocumentType(documentType)
	if doctype == "" {
		return taxonomy.NewError(taxonomy.ErrInvalidArgument, "unresolvable document type: "+documentType)
	}
	var disease taxonomy.DiseaseCategory
	if diseaseCategory != "" {
		disease = e.resolver.ResolveDiseaseCategory(diseaseCategory)
		if disease == "" {
			return taxonomy.NewError(taxonomy.ErrInvalidArgument, "unresolvable disease category: "+diseaseCategory)
		}
	}

	// 分类归一结果回填到块元数据，重排序的医学相关性信号依赖它
	for i := range chunks {
		if chunks[i].Metadata.Department == "" {
			chunks[i].Metadata.Department = dept
		}
		if chunks[i].Metadata.DocumentType == "" {
			chunks[i].Metadata.DocumentType = doctype
		}
		if chunks[i].Metadata.DiseaseCategory == "" {
			chunks[i].Metadata.DiseaseCategory = disease
		}
	}

	if err := e.store.Add(ctx, dept, doctype, disease, chunks); err != nil {
		return err
	}
	e.cache.Invalidate(ctx, cache.NamespaceQueryResult, nil)
	return nil
}

// DeletePartition 删除分类组合对应的分区并失效相关缓存命名空间。
// 分类字符串与 AddDocuments 走同一套别名归一，入库时用别名建的分区
// 删除时用同样的别名就能找到。分区消失后检索结果、图谱扩展与关联
// 缓存都可能指向已删除的文档。
func (e *Engine) DeletePartition(ctx context.Context, department, documentType, diseaseCategory string) error {
	dept := e.resolver.ResolveDepartment(department)
	if dept == "" {
		return taxonomy.NewError(taxonomy.ErrInvalidArgument, "unresolvable department: "+department)
	}
	doctype := e.resolver.ResolveDocumentType(documentType)
	if doctype == "" {
		return taxonomy.NewError(taxonomy.ErrInvalidArgument, "unresolvable document type: "+documentType)
	}
	var disease taxonomy.DiseaseCategory
	if diseaseCategory != "" {
		disease = e.resolver.ResolveDiseaseCategory(diseaseCategory)
		if disease == "" {
			return taxonomy.NewError(taxonomy.ErrInvalidArgument, "unresolvable disease category: "+diseaseCategory)
		}
	}

	key := kbstore.MakePartitionKey(dept, doctype, disease)
	if err := e.store.Delete(ctx, key); err != nil {
		return err
	}
	e.cache.Invalidate(ctx, cache.NamespaceQueryResult, nil)
	e.cache.Invalidate(ctx, cache.NamespaceKGExpansion, nil)
	e.cache.Invalidate(ctx, cache.NamespaceAssociation, nil)
	return nil
}

// ListPartitions 返回全部分区元数据
func (e *Engine) ListPartitions() []kbstore.PartitionMetadata {
	return e.store.List()
}

// CacheStats 返回缓存统计
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.GetStats()
}

// StoreStats 返回存储层统计
func (e *Engine) StoreStats() kbstore.StoreStats {
	return e.store.Stats()
}

// Classify 对文档做分类建议，供索引入口预标注
func (e *Engine) Classify(title, content string) taxonomy.Classification {
	return taxonomy.NewClassifier().Classify(title, content)
}
