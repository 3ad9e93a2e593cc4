package kbstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/canhui/medkb/internal/metrics"
	"github.com/canhui/medkb/taxonomy"
)

// metadataFileName 分区目录下的元数据边车文件名
const metadataFileName = "metadata.json"

// PartitionMetadata 分区元数据。落盘为每个分区目录下的边车文件，
// 启动扫描只读这份元数据，不加载索引本体。
type PartitionMetadata struct {
	Key             PartitionKey             `json:"key"`
	Department      taxonomy.Department      `json:"department"`
	DocumentType    taxonomy.DocumentType    `json:"document_type"`
	DiseaseCategory taxonomy.DiseaseCategory `json:"disease_category,omitempty"`
	DocumentCount   int                      `json:"document_count"`
	CreatedAt       time.Time                `json:"created_at"`
	LastUpdated     time.Time                `json:"last_updated"`

	// Loaded 索引是否驻留内存，仅运行时有效，不落盘
	Loaded bool `json:"-"`
}

// StoreStats 存储层聚合统计
type StoreStats struct {
	PartitionCount int            `json:"partition_count"`
	LoadedCount    int            `json:"loaded_count"`
	DocumentCount  int            `json:"document_count"`
	ByDepartment   map[string]int `json:"by_department"`
	ByDocumentType map[string]int `json:"by_document_type"`
}

type partition struct {
	meta  PartitionMetadata
	index *flatIndex // 懒加载，nil 表示尚未驻留；发布后只读，写入以副本替换
	mu    sync.Mutex // 序列化对本分区的写入
}

// Manager 分区化向量存储管理器。
// 每个分类组合对应磁盘上的一个独立目录（索引 + 元数据边车），
// 启动只扫元数据，索引按需懒加载。
type Manager struct {
	basePath string
	embedder EmbeddingProvider
	logger   *zap.Logger
	metrics  *metrics.Collector

	mu         sync.RWMutex
	partitions map[PartitionKey]*partition

	loadGroup singleflight.Group
}

// ManagerOption Manager 可选参数
type ManagerOption func(*Manager)

// WithManagerMetrics 接入指标收集器
func WithManagerMetrics(collector *metrics.Collector) ManagerOption {
	return func(m *Manager) {
		m.metrics = collector
	}
}

// Open 打开分区存储。扫描 basePath 下所有分区目录的元数据边车，
// 不加载任何索引本体。目录不存在时自动创建。
func Open(basePath string, embedder EmbeddingProvider, logger *zap.Logger, opts ...ManagerOption) (*Manager, error) {
	if embedder == nil {
		return nil, taxonomy.NewError(taxonomy.ErrInvalidArgument, "embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, taxonomy.NewError(taxonomy.ErrStorage, "create store directory").WithCause(err)
	}

	m := &Manager{
		basePath:   basePath,
		embedder:   embedder,
		logger:     logger.With(zap.String("component", "kbstore")),
		partitions: make(map[PartitionKey]*partition),
	}
	for _, opt := range opts {
		opt(m)
	}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, taxonomy.NewError(taxonomy.ErrStorage, "scan store directory").WithCause(err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readPartitionMetadata(filepath.Join(basePath, entry.Name()))
		if err != nil {
			m.logger.Warn("skipping partition with unreadable metadata",
				zap.String("partition", entry.Name()),
				zap.Error(err))
			continue
		}
		m.partitions[meta.Key] = &partition{meta: meta}
	}

	m.logger.Info("knowledge store opened",
		zap.String("path", basePath),
		zap.Int("partitions", len(m.partitions)))
	return m, nil
}

func readPartitionMetadata(dir string) (PartitionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return PartitionMetadata{}, err
	}
	var meta PartitionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return PartitionMetadata{}, err
	}
	if meta.Key == "" {
		meta.Key = PartitionKey(filepath.Base(dir))
	}
	return meta, nil
}

func (m *Manager) partitionDir(key PartitionKey) string {
	return filepath.Join(m.basePath, string(key))
}

// writeMetadata 原子写元数据边车。索引先落盘、元数据后落盘，
// 崩溃时宁可出现无元数据的孤儿目录，也不出现指向缺失索引的元数据。
func (m *Manager) writeMetadata(dir string, meta PartitionMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, metadataFileName))
}

// Add 向指定分类组合的分区追加文档块，分区不存在时创建。
// 缺少向量的文档块先经由向量器批量向量化；同一文档重复添加会产生重复条目。
func (m *Manager) Add(ctx context.Context, dept taxonomy.Department, doctype taxonomy.DocumentType, disease taxonomy.DiseaseCategory, chunks []Chunk) error {
	if !dept.Valid() {
		return taxonomy.NewError(taxonomy.ErrInvalidArgument, fmt.Sprintf("unknown department %q", dept))
	}
	if !doctype.Valid() {
		return taxonomy.NewError(taxonomy.ErrInvalidArgument, fmt.Sprintf("unknown document type %q", doctype))
	}
	if disease != "" && !disease.Valid() {
		return taxonomy.NewError(taxonomy.ErrInvalidArgument, fmt.Sprintf("unknown disease category %q", disease))
	}
	if len(chunks) == 0 {
		return nil
	}

	// 补齐缺失的向量
	var missingTexts []string
	var missingIdx []int
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			missingTexts = append(missingTexts, chunk.Text)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missingTexts) > 0 {
		vecs, err := m.embedder.EmbedDocuments(ctx, missingTexts)
		if err != nil {
			return taxonomy.NewError(taxonomy.ErrEmbeddingFailure, "embed documents").WithRetryable(true).WithCause(err)
		}
		if len(vecs) != len(missingTexts) {
			return taxonomy.NewError(taxonomy.ErrEmbeddingFailure,
				fmt.Sprintf("embedder returned %d vectors for %d texts", len(vecs), len(missingTexts)))
		}
		for j, i := range missingIdx {
			chunks[i].Embedding = vecs[j]
		}
	}

	key := MakePartitionKey(dept, doctype, disease)
	p := m.getOrCreatePartition(key, dept, doctype, disease)

	p.mu.Lock()
	defer p.mu.Unlock()

	dir := m.partitionDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return taxonomy.NewError(taxonomy.ErrStorage, "create partition directory").WithCause(err)
	}

	idx, err := m.residentIndex(p, dir)
	if err != nil {
		// 损坏索引：告警后从空索引重建，新文档不丢
		m.logger.Warn("rebuilding partition index from scratch",
			zap.String("partition", string(key)),
			zap.Error(err))
		idx = newFlatIndex()
	}
	// 写入走复制发布：并发检索方持有的旧索引引用不受影响
	idx = idx.extend(chunks)

	if err := idx.save(dir); err != nil {
		return taxonomy.NewError(taxonomy.ErrStorage, "persist partition index").WithCause(err)
	}

	now := time.Now()
	p.meta.DocumentCount = idx.size()
	p.meta.LastUpdated = now
	if p.meta.CreatedAt.IsZero() {
		p.meta.CreatedAt = now
	}
	if err := m.writeMetadata(dir, p.meta); err != nil {
		return taxonomy.NewError(taxonomy.ErrStorage, "persist partition metadata").WithCause(err)
	}

	wasResident := p.index != nil
	p.index = idx
	if !wasResident {
		m.metrics.PartitionLoaded()
	}
	m.metrics.DocumentsIndexed(len(chunks))

	m.logger.Info("documents indexed",
		zap.String("partition", string(key)),
		zap.Int("added", len(chunks)),
		zap.Int("total", p.meta.DocumentCount))
	return nil
}

func (m *Manager) getOrCreatePartition(key PartitionKey, dept taxonomy.Department, doctype taxonomy.DocumentType, disease taxonomy.DiseaseCategory) *partition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.partitions[key]; ok {
		return p
	}
	p := &partition{
		meta: PartitionMetadata{
			Key:             key,
			Department:      dept,
			DocumentType:    doctype,
			DiseaseCategory: disease,
		},
	}
	m.partitions[key] = p
	return p
}

// residentIndex 返回分区的驻留索引，未驻留时从磁盘加载。
// 调用方必须持有分区写锁。
func (m *Manager) residentIndex(p *partition, dir string) (*flatIndex, error) {
	if p.index != nil {
		return p.index, nil
	}
	if _, err := os.Stat(filepath.Join(dir, indexFileName)); os.IsNotExist(err) {
		return newFlatIndex(), nil
	}
	return loadFlatIndex(dir)
}

// loadIndex 懒加载分区索引，singleflight 合并并发加载。
// 损坏的索引记告警并返回错误，不缓存失败结果。
func (m *Manager) loadIndex(key PartitionKey) (*flatIndex, error) {
	m.mu.RLock()
	p, ok := m.partitions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, taxonomy.NewError(taxonomy.ErrNotFound, fmt.Sprintf("partition %q does not exist", key))
	}

	p.mu.Lock()
	if p.index != nil {
		idx := p.index
		p.mu.Unlock()
		return idx, nil
	}
	p.mu.Unlock()

	v, err, _ := m.loadGroup.Do(string(key), func() (any, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.index != nil {
			return p.index, nil
		}

		idx, err := loadFlatIndex(m.partitionDir(key))
		if err != nil {
			return nil, taxonomy.NewError(taxonomy.ErrCorruptIndex,
				fmt.Sprintf("load partition %q", key)).WithCause(err)
		}
		p.index = idx
		m.metrics.PartitionLoaded()
		m.logger.Info("partition index loaded",
			zap.String("partition", string(key)),
			zap.Int("documents", idx.size()))
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*flatIndex), nil
}

// EmbedQuery 向量化查询文本，失败时返回可重试的结构化错误
func (m *Manager) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, taxonomy.NewError(taxonomy.ErrEmbeddingFailure, "embed query").WithRetryable(true).WithCause(err)
	}
	return vec, nil
}

// Search 在单个分区内检索。分区不存在返回 NOT_FOUND，
// 索引损坏时告警并返回空结果，检索路径不因单分区损坏而失败。
func (m *Manager) Search(ctx context.Context, key PartitionKey, query string, k int, threshold float64) ([]ScoredChunk, error) {
	vec, err := m.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return m.SearchVector(ctx, key, vec, k, threshold)
}

// SearchVector 用预计算的查询向量在单个分区内检索
func (m *Manager) SearchVector(ctx context.Context, key PartitionKey, queryVec []float32, k int, threshold float64) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := m.loadIndex(key)
	if err != nil {
		if taxonomy.IsCode(err, taxonomy.ErrCorruptIndex) {
			m.logger.Warn("partition index corrupt, returning empty results",
				zap.String("partition", string(key)),
				zap.Error(err))
			return []ScoredChunk{}, nil
		}
		return nil, err
	}

	start := time.Now()
	results := idx.search(queryVec, k, threshold)
	m.metrics.ObservePartitionSearch(time.Since(start))
	return results, nil
}

// Delete 删除分区及其磁盘数据。分区不存在时为幂等空操作。
func (m *Manager) Delete(ctx context.Context, key PartitionKey) error {
	m.mu.Lock()
	p, ok := m.partitions[key]
	if ok {
		delete(m.partitions, key)
	}
	m.mu.Unlock()

	if ok {
		p.mu.Lock()
		wasResident := p.index != nil
		p.index = nil
		p.mu.Unlock()
		if wasResident {
			m.metrics.PartitionReleased()
		}
	}

	if err := os.RemoveAll(m.partitionDir(key)); err != nil {
		return taxonomy.NewError(taxonomy.ErrStorage, "remove partition directory").WithCause(err)
	}
	if ok {
		m.logger.Info("partition deleted", zap.String("partition", string(key)))
	}
	return nil
}

// Has 判断分区是否存在
func (m *Manager) Has(key PartitionKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.partitions[key]
	return ok
}

// List 返回全部分区元数据，按分区键排序
func (m *Manager) List() []PartitionMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PartitionMetadata, 0, len(m.partitions))
	for _, p := range m.partitions {
		p.mu.Lock()
		meta := p.meta
		meta.Loaded = p.index != nil
		p.mu.Unlock()
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// Match 返回匹配过滤条件的分区键，按键排序。
// 过滤条件为空字段不参与匹配。
func (m *Manager) Match(filter Filter) []PartitionKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []PartitionKey
	for key, p := range m.partitions {
		meta := p.meta
		if filter.Department != "" && meta.Department != filter.Department {
			continue
		}
		if filter.DocumentType != "" && meta.DocumentType != filter.DocumentType {
			continue
		}
		if filter.DiseaseCategory != "" && meta.DiseaseCategory != filter.DiseaseCategory {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Stats 返回存储层聚合统计
func (m *Manager) Stats() StoreStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := StoreStats{
		ByDepartment:   make(map[string]int),
		ByDocumentType: make(map[string]int),
	}
	for _, p := range m.partitions {
		p.mu.Lock()
		meta := p.meta
		loaded := p.index != nil
		p.mu.Unlock()

		stats.PartitionCount++
		if loaded {
			stats.LoadedCount++
		}
		stats.DocumentCount += meta.DocumentCount
		stats.ByDepartment[string(meta.Department)] += meta.DocumentCount
		stats.ByDocumentType[string(meta.DocumentType)] += meta.DocumentCount
	}
	return stats
}

// ParseKey 解析分区键字符串，校验各段的分类合法性
func ParseKey(s string) (PartitionKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 2 || len(parts) > 3 {
		return "", taxonomy.NewError(taxonomy.ErrInvalidArgument, fmt.Sprintf("malformed partition key %q", s))
	}
	dept := taxonomy.Department(parts[0])
	doctype := taxonomy.DocumentType(parts[1])
	if !dept.Valid() || !doctype.Valid() {
		return "", taxonomy.NewError(taxonomy.ErrInvalidArgument, fmt.Sprintf("malformed partition key %q", s))
	}
	if len(parts) == 3 {
		if !taxonomy.DiseaseCategory(parts[2]).Valid() {
			return "", taxonomy.NewError(taxonomy.ErrInvalidArgument, fmt.Sprintf("malformed partition key %q", s))
		}
	}
	return PartitionKey(s), nil
}
