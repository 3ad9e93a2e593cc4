package kbstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canhui/medkb/taxonomy"
)

func chunkWithVec(text string, vec []float32) Chunk {
	c := NewChunk(text, taxonomy.Metadata{
		Department:   taxonomy.DeptInternalMedicine,
		DocumentType: taxonomy.DocClinicalGuideline,
	})
	c.Embedding = vec
	return c
}

func TestCosineDistance(t *testing.T) {
	// 同向向量距离为 0
	assert.InDelta(t, 0.0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)

	// 正交向量距离为 1
	assert.InDelta(t, 1.0, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)

	// 反向向量距离为 2
	assert.InDelta(t, 2.0, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// 维度不匹配与零向量视为最远
	assert.Equal(t, 2.0, cosineDistance([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 2.0, cosineDistance([]float32{0, 0}, []float32{1, 0}))
}

func TestFlatIndexSearchOrdering(t *testing.T) {
	idx := newFlatIndex().extend([]Chunk{
		chunkWithVec("远", []float32{0, 1}),
		chunkWithVec("近", []float32{1, 0.1}),
		chunkWithVec("中", []float32{1, 1}),
	})

	results := idx.search([]float32{1, 0}, 3, 0)
	require.Len(t, results, 3)

	// 距离升序
	assert.Equal(t, "近", results[0].Chunk.Text)
	assert.Equal(t, "中", results[1].Chunk.Text)
	assert.Equal(t, "远", results[2].Chunk.Text)
	assert.Less(t, results[0].Distance, results[1].Distance)
	assert.Less(t, results[1].Distance, results[2].Distance)
}

func TestFlatIndexTopK(t *testing.T) {
	idx := newFlatIndex().extend([]Chunk{
		chunkWithVec("a", []float32{1, 0}),
		chunkWithVec("b", []float32{0.9, 0.1}),
		chunkWithVec("c", []float32{0, 1}),
	})

	results := idx.search([]float32{1, 0}, 2, 0)
	assert.Len(t, results, 2)
}

func TestFlatIndexThreshold(t *testing.T) {
	idx := newFlatIndex().extend([]Chunk{
		chunkWithVec("命中", []float32{1, 0}),
		chunkWithVec("过远", []float32{0, 1}),
	})

	// 阈值过滤掉距离超过 0.5 的结果
	results := idx.search([]float32{1, 0}, 10, 0.5)
	require.Len(t, results, 1)
	assert.Equal(t, "命中", results[0].Chunk.Text)

	// 阈值 <= 0 表示不过滤
	results = idx.search([]float32{1, 0}, 10, 0)
	assert.Len(t, results, 2)
}

func TestFlatIndexExtendLeavesOriginalUntouched(t *testing.T) {
	base := newFlatIndex().extend([]Chunk{chunkWithVec("原有", []float32{1, 0})})

	grown := base.extend([]Chunk{chunkWithVec("新增", []float32{0, 1})})

	// 追加产生副本，已发布的索引保持不变
	assert.Equal(t, 1, base.size())
	assert.Equal(t, 2, grown.size())
	assert.Len(t, base.search([]float32{1, 0}, 10, 0), 1)
}

func TestFlatIndexPersistence(t *testing.T) {
	dir := t.TempDir()

	idx := newFlatIndex().extend([]Chunk{
		chunkWithVec("糖尿病治疗", []float32{1, 0, 0}),
		chunkWithVec("高血压管理", []float32{0, 1, 0}),
	})
	require.NoError(t, idx.save(dir))

	loaded, err := loadFlatIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.size())
	assert.Equal(t, idx.chunks, loaded.chunks)
}

func TestMakePartitionKey(t *testing.T) {
	key := MakePartitionKey(taxonomy.DeptInternalMedicine, taxonomy.DocClinicalGuideline, "")
	assert.Equal(t, PartitionKey("内科_临床指南"), key)

	key = MakePartitionKey(taxonomy.DeptInternalMedicine, taxonomy.DocClinicalGuideline, taxonomy.DiseaseEndocrine)
	assert.Equal(t, PartitionKey("内科_临床指南_内分泌、营养和代谢疾病"), key)
}
