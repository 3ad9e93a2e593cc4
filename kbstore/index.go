package kbstore

import (
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// flatIndex 平铺向量索引：暴力余弦距离扫描。
// 单个分区的文档规模有上限（大库被分类切成许多小分区），
// 平铺扫描在这个规模下足够快且召回率为 1。
type flatIndex struct {
	chunks []Chunk
}

func newFlatIndex() *flatIndex {
	return &flatIndex{}
}

// extend 返回追加了新文档块的索引副本，原索引不被触碰。
// 已发布给检索方的索引因此保持不可变，检索无需加锁。
// 不去重，重复添加产生重复条目。
func (idx *flatIndex) extend(chunks []Chunk) *flatIndex {
	merged := make([]Chunk, 0, len(idx.chunks)+len(chunks))
	merged = append(merged, idx.chunks...)
	merged = append(merged, chunks...)
	return &flatIndex{chunks: merged}
}

func (idx *flatIndex) size() int {
	return len(idx.chunks)
}

// search 返回距离升序的前 k 个结果。
// threshold > 0 时过滤掉距离超过阈值的结果。
func (idx *flatIndex) search(query []float32, k int, threshold float64) []ScoredChunk {
	if len(idx.chunks) == 0 || k <= 0 {
		return []ScoredChunk{}
	}

	results := make([]ScoredChunk, 0, len(idx.chunks))
	for _, chunk := range idx.chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		dist := cosineDistance(query, chunk.Embedding)
		if threshold > 0 && dist > threshold {
			continue
		}
		results = append(results, ScoredChunk{Chunk: chunk, Distance: dist})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}

// indexFileName 分区目录下的索引文件名
const indexFileName = "index.gob"

// save 原子写索引文件：先写临时文件再改名
func (idx *flatIndex) save(dir string) error {
	tmp, err := os.CreateTemp(dir, ".index-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := gob.NewEncoder(tmp).Encode(idx.chunks); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, indexFileName))
}

// loadFlatIndex 从分区目录加载索引
func loadFlatIndex(dir string) (*flatIndex, error) {
	f, err := os.Open(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []Chunk
	if err := gob.NewDecoder(f).Decode(&chunks); err != nil {
		return nil, err
	}
	return &flatIndex{chunks: chunks}, nil
}

// cosineDistance 余弦距离（1 - 余弦相似度），维度不匹配或零向量视为最远
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}
	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
