package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/canhui/medkb/cache"
	"github.com/canhui/medkb/kbstore"
	"github.com/canhui/medkb/taxonomy"
)

// fixedAssessor 返回固定质量分的测试评估器
type fixedAssessor struct {
	quality    float64
	confidence float64
}

func (a fixedAssessor) Assess(context.Context, string) (float64, float64) {
	return a.quality, a.confidence
}

// stubKG 记录调用次数的测试图谱
type stubKG struct {
	extractCalls int
	expandCalls  int
	expansions   []string
	err          error
}

func (kg *stubKG) ExtractEntities(_ context.Context, query string) ([]Entity, error) {
	kg.extractCalls++
	if kg.err != nil {
		return nil, kg.err
	}
	return []Entity{{Text: query, Type: "disease"}}, nil
}

func (kg *stubKG) ExpandEntity(context.Context, Entity) ([]string, error) {
	kg.expandCalls++
	if kg.err != nil {
		return nil, kg.err
	}
	return kg.expansions, nil
}

// stubMiner 固定关联关系的测试挖掘器
type stubMiner struct {
	calls        int
	associations []Association
	err          error
}

func (m *stubMiner) Associations(context.Context, string) ([]Association, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.associations, nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	manager  *kbstore.Manager
	cache    *cache.Cache
	kg       *stubKG
	miner    *stubMiner
}

func newPipelineFixture(t *testing.T, opts ...PipelineOption) *pipelineFixture {
	manager, err := kbstore.Open(t.TempDir(), kbstore.NewHashingEmbedder(0), zap.NewNop())
	require.NoError(t, err)

	c := cache.New(cache.DefaultConfig(), zap.NewNop())
	router := kbstore.NewRouter(manager, zap.NewNop())

	kg := &stubKG{expansions: []string{"胰岛素", "血糖"}}
	miner := &stubMiner{associations: []Association{
		{Source: "糖尿病", Target: "高血压", Relation: "共病", Confidence: 0.9},
	}}

	base := []PipelineOption{
		WithAssessor(fixedAssessor{quality: 0.9, confidence: 0.9}),
		WithKnowledgeGraph(kg),
		WithAssociationMiner(miner),
	}
	p := NewPipeline(DefaultConfig(), router, c, zap.NewNop(), append(base, opts...)...)

	return &pipelineFixture{pipeline: p, manager: manager, cache: c, kg: kg, miner: miner}
}

func (f *pipelineFixture) seed(t *testing.T, texts ...string) {
	chunks := make([]kbstore.Chunk, 0, len(texts))
	for _, text := range texts {
		chunks = append(chunks, kbstore.NewChunk(text, taxonomy.Metadata{
			Department:   taxonomy.DeptInternalMedicine,
			DocumentType: taxonomy.DocClinicalGuideline,
		}))
	}
	require.NoError(t, f.manager.Add(context.Background(),
		taxonomy.DeptInternalMedicine, taxonomy.DocClinicalGuideline, "", chunks))
}

func TestPipelineRetrieveBasic(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "糖尿病的胰岛素治疗方案", "高血压的分级管理")
	ctx := context.Background()

	result, err := f.pipeline.Retrieve(ctx, Request{
		Question: "糖尿病的治疗",
		Hints:    FilterHints{Department: "内科"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)

	// 名次连续，综合分降序
	for i, r := range result.Results {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Results[i-1].WeightedScore, r.WeightedScore)
		}
	}

	diag := result.Diagnostics
	assert.Equal(t, taxonomy.DeptInternalMedicine, diag.Filter.Department)
	assert.Equal(t, 0.9, diag.QualityScore)
	assert.True(t, diag.KGEnhanced)
	assert.True(t, diag.AssociationEnhanced)
	assert.False(t, diag.CacheHit)
	assert.InDelta(t, 1.0, weightSum(diag.Weights), 1e-9)
	// 高质量查询用更深的检索深度
	assert.Equal(t, DefaultConfig().HighQualityK, diag.EffectiveK)
}

func TestPipelineResultCacheHit(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "糖尿病的治疗方案")
	ctx := context.Background()

	req := Request{Question: "糖尿病的治疗", Hints: FilterHints{Department: "内科"}}

	first, err := f.pipeline.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Diagnostics.CacheHit)

	second, err := f.pipeline.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Diagnostics.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	// 命中缓存时不再触碰图谱
	assert.Equal(t, 1, f.kg.extractCalls)
	assert.Equal(t, 1, f.cache.GetStats().Namespaces[cache.NamespaceQueryResult].Count)
}

func TestPipelineQualityGateSkipsEnhancement(t *testing.T) {
	f := newPipelineFixture(t, WithAssessor(fixedAssessor{quality: 0.4, confidence: 0.3}))
	f.seed(t, "糖尿病的治疗方案")
	ctx := context.Background()

	result, err := f.pipeline.Retrieve(ctx, Request{
		Question: "怎么办",
		Hints:    FilterHints{Department: "内科"},
	})
	require.NoError(t, err)

	// 低质量查询跳过增强，用更浅的检索深度
	assert.Zero(t, f.kg.extractCalls)
	assert.Zero(t, f.miner.calls)
	assert.False(t, result.Diagnostics.KGEnhanced)
	assert.Zero(t, result.Diagnostics.Weights.KGExpansion)
	assert.Equal(t, DefaultConfig().LowQualityK, result.Diagnostics.EffectiveK)
}

func TestPipelineEnhancementCaching(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "糖尿病的治疗方案")
	ctx := context.Background()

	_, err := f.pipeline.Retrieve(ctx, Request{Question: "糖尿病的治疗", K: 3})
	require.NoError(t, err)

	// 换一个 K 避开结果缓存，实体提取与关联挖掘应命中各自的缓存
	_, err = f.pipeline.Retrieve(ctx, Request{Question: "糖尿病的治疗", K: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, f.kg.extractCalls)
	assert.Equal(t, 1, f.kg.expandCalls)
	assert.Equal(t, 1, f.miner.calls)
}

func TestPipelineCollaboratorFailureDegrades(t *testing.T) {
	f := newPipelineFixture(t)
	f.kg.err = errors.New("graph database down")
	f.miner.err = errors.New("miner down")
	f.seed(t, "糖尿病的治疗方案")
	ctx := context.Background()

	// 协作方全部故障时退化为纯语义检索，不报错
	result, err := f.pipeline.Retrieve(ctx, Request{Question: "糖尿病的治疗"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
	assert.False(t, result.Diagnostics.KGEnhanced)
	assert.False(t, result.Diagnostics.AssociationEnhanced)
}

func TestPipelineFallbackDiagnostics(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "糖尿病的治疗方案")
	ctx := context.Background()

	// 儿科分区不存在，应退回全库检索并在诊断里标明回退原因
	result, err := f.pipeline.Retrieve(ctx, Request{
		Question: "儿童发热怎么处理",
		Hints:    FilterHints{Department: "儿科"},
	})
	require.NoError(t, err)

	assert.Equal(t, kbstore.FallbackAllPartitions, result.Diagnostics.FallbackReason)
	assert.Equal(t, []kbstore.PartitionKey{"内科_临床指南"}, result.Diagnostics.SearchedPartitions)
}

func TestPipelineAliasHintResolution(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "糖尿病的治疗方案")
	ctx := context.Background()

	// "诊疗规范" 是 "临床指南" 的别名，应命中同一分区
	result, err := f.pipeline.Retrieve(ctx, Request{
		Question: "糖尿病的治疗",
		Hints:    FilterHints{Department: "内科", DocumentType: "诊疗规范"},
	})
	require.NoError(t, err)

	assert.Equal(t, taxonomy.DocClinicalGuideline, result.Diagnostics.Filter.DocumentType)
	assert.NotEmpty(t, result.Results)
}

func TestPipelineCanceledContextSkipsCacheWrite(t *testing.T) {
	f := newPipelineFixture(t)
	f.seed(t, "糖尿病的治疗方案")

	ctx, cancel := context.WithCancel(context.Background())
	req := Request{Question: "糖尿病的治疗"}

	// 第一次正常检索后取消 context 再查一次其他问题
	_, err := f.pipeline.Retrieve(ctx, req)
	require.NoError(t, err)
	cancel()

	// 取消后的请求即使完成也不应写入结果缓存
	canceledReq := Request{Question: "高血压的管理"}
	_, _ = f.pipeline.Retrieve(ctx, canceledReq)

	fresh := context.Background()
	result, err := f.pipeline.Retrieve(fresh, canceledReq)
	if err == nil {
		assert.False(t, result.Diagnostics.CacheHit)
	}
}
