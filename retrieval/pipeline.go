package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/canhui/medkb/cache"
	"github.com/canhui/medkb/internal/metrics"
	"github.com/canhui/medkb/kbstore"
	"github.com/canhui/medkb/taxonomy"
)

// Config 检索流水线配置
type Config struct {
	// 默认返回条数
	DefaultK int `yaml:"default_k" json:"default_k"`

	// 高质量查询的检索深度
	HighQualityK int `yaml:"high_quality_k" json:"high_quality_k"`

	// 低质量查询的检索深度
	LowQualityK int `yaml:"low_quality_k" json:"low_quality_k"`

	// 质量分低于该阈值时跳过 KG 与关联增强
	QualityThreshold float64 `yaml:"quality_threshold" json:"quality_threshold"`

	// 向量距离阈值，<= 0 表示不过滤
	ScoreThreshold float64 `yaml:"score_threshold" json:"score_threshold"`

	// 低质量查询放宽后的距离阈值
	RelaxedScoreThreshold float64 `yaml:"relaxed_score_threshold" json:"relaxed_score_threshold"`

	// 每个实体取前 N 条图谱扩展
	MaxExpansionTerms int `yaml:"max_expansion_terms" json:"max_expansion_terms"`

	// 取前 N 条关联关系
	MaxAssociations int `yaml:"max_associations" json:"max_associations"`
}

// DefaultConfig 返回默认流水线配置
func DefaultConfig() Config {
	return Config{
		DefaultK:              5,
		HighQualityK:          8,
		LowQualityK:           3,
		QualityThreshold:      0.6,
		ScoreThreshold:        0,
		RelaxedScoreThreshold: 0,
		MaxExpansionTerms:     3,
		MaxAssociations:       5,
	}
}

// Request 检索请求
type Request struct {
	// Question 用户查询文本
	Question string `json:"question"`

	// K 期望返回条数，<= 0 时由质量分自适应
	K int `json:"k,omitempty"`

	// Hints 原始过滤提示，经别名表归一后生效
	Hints FilterHints `json:"hints,omitempty"`
}

// Pipeline 增强检索流水线。
// 串联质量评估、缓存、KG 扩展、关联增强、分区路由与动态加权重排序，
// 所有增强环节都是尽力而为的，协作方故障只降级不失败。
type Pipeline struct {
	config   Config
	router   *kbstore.Router
	cache    *cache.Cache
	assessor QualityAssessor
	kg       KnowledgeGraph
	miner    AssociationMiner
	resolver *taxonomy.Resolver
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// PipelineOption 流水线可选项
type PipelineOption func(*Pipeline)

// WithAssessor 注入质量评估器，缺省使用 HeuristicAssessor
func WithAssessor(a QualityAssessor) PipelineOption {
	return func(p *Pipeline) { p.assessor = a }
}

// WithKnowledgeGraph 注入知识图谱，nil 时跳过图谱增强
func WithKnowledgeGraph(kg KnowledgeGraph) PipelineOption {
	return func(p *Pipeline) { p.kg = kg }
}

// WithAssociationMiner 注入关联挖掘器，nil 时跳过关联增强
func WithAssociationMiner(m AssociationMiner) PipelineOption {
	return func(p *Pipeline) { p.miner = m }
}

// WithResolver 注入分类归一器
func WithResolver(r *taxonomy.Resolver) PipelineOption {
	return func(p *Pipeline) { p.resolver = r }
}

// WithPipelineMetrics 接入指标收集器
func WithPipelineMetrics(collector *metrics.Collector) PipelineOption {
	return func(p *Pipeline) { p.metrics = collector }
}

// NewPipeline 创建检索流水线
func NewPipeline(config Config, router *kbstore.Router, c *cache.Cache, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	def := DefaultConfig()
	if config.DefaultK <= 0 {
		config.DefaultK = def.DefaultK
	}
	if config.HighQualityK <= 0 {
		config.HighQualityK = def.HighQualityK
	}
	if config.LowQualityK <= 0 {
		config.LowQualityK = def.LowQualityK
	}
	if config.QualityThreshold <= 0 {
		config.QualityThreshold = def.QualityThreshold
	}
	if config.MaxExpansionTerms <= 0 {
		config.MaxExpansionTerms = def.MaxExpansionTerms
	}
	if config.MaxAssociations <= 0 {
		config.MaxAssociations = def.MaxAssociations
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		config:   config,
		router:   router,
		cache:    c,
		assessor: HeuristicAssessor{},
		resolver: taxonomy.NewResolver(taxonomy.DefaultAliasTable()),
		logger:   logger.With(zap.String("component", "retrieval")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// queryCacheKey 检索结果缓存键。逻辑等价的请求（同问题、同归一化
// 过滤条件、同 K）命中同一条目。
type queryCacheKey struct {
	Question        string `json:"question"`
	Department      string `json:"department"`
	DocumentType    string `json:"document_type"`
	DiseaseCategory string `json:"disease_category"`
	K               int    `json:"k"`
}

// resolveFilter 把原始过滤提示归一为存储层过滤条件
func (p *Pipeline) resolveFilter(hints FilterHints) kbstore.Filter {
	return kbstore.Filter{
		Department:      p.resolver.ResolveDepartment(hints.Department),
		DocumentType:    p.resolver.ResolveDocumentType(hints.DocumentType),
		DiseaseCategory: p.resolver.ResolveDiseaseCategory(hints.DiseaseCategory),
	}
}

// Retrieve 执行一次增强检索。
// 流程：结果缓存 → 质量评估 → 自适应深度 → KG/关联增强（带缓存）→
// 分区路由检索 → 动态加权重排序 → 回写结果缓存。
func (p *Pipeline) Retrieve(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	filter := p.resolveFilter(req.Hints)

	cacheKey := queryCacheKey{
		Question:        req.Question,
		Department:      string(filter.Department),
		DocumentType:    string(filter.DocumentType),
		DiseaseCategory: string(filter.DiseaseCategory),
		K:               req.K,
	}
	var cached Result
	if p.cache.GetJSON(ctx, cache.NamespaceQueryResult, cacheKey, &cached) {
		cached.Diagnostics.CacheHit = true
		p.metrics.ObserveRetrieval("cache_hit", time.Since(start))
		return &cached, nil
	}

	quality, intentConfidence := p.assessQuality(ctx, req.Question)

	k := req.K
	if k <= 0 {
		switch {
		case quality >= 0.8:
			k = p.config.HighQualityK
		case quality < p.config.QualityThreshold:
			k = p.config.LowQualityK
		default:
			k = p.config.DefaultK
		}
	}

	threshold := p.config.ScoreThreshold
	if quality < p.config.QualityThreshold && p.config.RelaxedScoreThreshold > 0 {
		threshold = p.config.RelaxedScoreThreshold
	}

	// 质量门控：低质量查询不值得花 KG 与关联挖掘的开销
	var expansionTerms, associationTerms []string
	if quality >= p.config.QualityThreshold {
		expansionTerms = p.expandQuery(ctx, req.Question)
		associationTerms = p.associationTerms(ctx, req.Question)
	}

	searchQuery := req.Question
	for _, term := range expansionTerms {
		searchQuery += " " + term
	}
	for _, term := range associationTerms {
		searchQuery += " " + term
	}

	routed, err := p.router.Search(ctx, searchQuery, k, filter, threshold)
	if err != nil {
		p.metrics.ObserveRetrieval("error", time.Since(start))
		return nil, err
	}

	weights := adjustWeights(quality, intentConfidence, len(expansionTerms) > 0, len(associationTerms) > 0)
	ranked := rerank(routed.Results, weights, expansionTerms, associationTerms)

	result := &Result{
		Results: ranked,
		Diagnostics: Diagnostics{
			Filter:              filter,
			QualityScore:        quality,
			IntentConfidence:    intentConfidence,
			KGEnhanced:          len(expansionTerms) > 0,
			AssociationEnhanced: len(associationTerms) > 0,
			Weights:             weights,
			FallbackReason:      routed.FallbackReason,
			SearchedPartitions:  routed.SearchedPartitions,
			ExpansionTerms:      expansionTerms,
			AssociationTerms:    associationTerms,
			EffectiveK:          k,
		},
	}

	// 已取消的请求不污染缓存，结果可能是被中断的半成品
	if ctx.Err() == nil {
		p.cache.SetJSON(ctx, cache.NamespaceQueryResult, cacheKey, result)
	}

	p.metrics.ObserveRetrieval("ok", time.Since(start))
	p.logger.Info("retrieval completed",
		zap.String("filter", filter.String()),
		zap.Float64("quality", quality),
		zap.Int("k", k),
		zap.Int("results", len(ranked)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// assessQuality 质量评估，结果按意图识别命名空间缓存
func (p *Pipeline) assessQuality(ctx context.Context, query string) (float64, float64) {
	type assessment struct {
		Quality    float64 `json:"quality"`
		Confidence float64 `json:"confidence"`
	}
	var cached assessment
	if p.cache.GetJSON(ctx, cache.NamespaceIntentRecognition, query, &cached) {
		return cached.Quality, cached.Confidence
	}

	quality, confidence := p.assessor.Assess(ctx, query)
	p.cache.SetJSON(ctx, cache.NamespaceIntentRecognition, query, assessment{quality, confidence})
	return quality, confidence
}

// expandQuery 知识图谱扩展：提取实体并取每个实体的前 N 条图谱术语。
// 实体提取与图谱扩展分别缓存，图谱故障只记告警。
func (p *Pipeline) expandQuery(ctx context.Context, query string) []string {
	if p.kg == nil {
		return nil
	}

	var entities []Entity
	if !p.cache.GetJSON(ctx, cache.NamespaceEntityExtraction, query, &entities) {
		var err error
		entities, err = p.kg.ExtractEntities(ctx, query)
		if err != nil {
			p.logger.Warn("entity extraction failed, skipping kg expansion", zap.Error(err))
			return nil
		}
		p.cache.SetJSON(ctx, cache.NamespaceEntityExtraction, query, entities)
	}

	var terms []string
	seen := make(map[string]struct{})
	for _, entity := range entities {
		var expansions []string
		if !p.cache.GetJSON(ctx, cache.NamespaceKGExpansion, entity, &expansions) {
			var err error
			expansions, err = p.kg.ExpandEntity(ctx, entity)
			if err != nil {
				p.logger.Warn("kg expansion failed for entity",
					zap.String("entity", entity.Text), zap.Error(err))
				continue
			}
			p.cache.SetJSON(ctx, cache.NamespaceKGExpansion, entity, expansions)
		}
		if len(expansions) > p.config.MaxExpansionTerms {
			expansions = expansions[:p.config.MaxExpansionTerms]
		}
		for _, term := range expansions {
			if _, dup := seen[term]; dup || term == "" {
				continue
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}
	return terms
}

// associationTerms 关联增强：取前 N 条关联关系的两端术语。
// 挖掘结果整体缓存，挖掘器故障只记告警。
func (p *Pipeline) associationTerms(ctx context.Context, query string) []string {
	if p.miner == nil {
		return nil
	}

	var associations []Association
	if !p.cache.GetJSON(ctx, cache.NamespaceAssociation, query, &associations) {
		var err error
		associations, err = p.miner.Associations(ctx, query)
		if err != nil {
			p.logger.Warn("association mining failed, skipping enhancement", zap.Error(err))
			return nil
		}
		p.cache.SetJSON(ctx, cache.NamespaceAssociation, query, associations)
	}
	if len(associations) > p.config.MaxAssociations {
		associations = associations[:p.config.MaxAssociations]
	}

	var terms []string
	seen := make(map[string]struct{})
	add := func(term string) {
		if term == "" {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	for _, assoc := range associations {
		add(assoc.Source)
		add(assoc.Target)
	}
	return terms
}
