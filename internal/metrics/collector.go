// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器。所有方法对 nil 接收者安全，
// 组件可以在不接入指标的场景下直接传 nil。
type Collector struct {
	// 检索指标
	retrievalsTotal   *prometheus.CounterVec
	retrievalDuration prometheus.Histogram

	// 缓存指标
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions prometheus.Counter

	// 分区存储指标
	partitionLoadsTotal prometheus.Counter
	partitionsResident  prometheus.Gauge
	partitionSearchSecs prometheus.Histogram
	documentsIndexed    prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器。registerer 为 nil 时使用默认注册表。
func NewCollector(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.retrievalsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of retrieval requests",
		},
		[]string{"result"},
	)

	c.retrievalDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval pipeline duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	c.cacheEvictions = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of cache entries evicted",
		},
	)

	c.partitionLoadsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partition_loads_total",
			Help:      "Total number of partition index loads from disk",
		},
	)

	c.partitionsResident = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partitions_resident",
			Help:      "Number of partition indexes resident in memory",
		},
	)

	c.partitionSearchSecs = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "partition_search_duration_seconds",
			Help:      "Single-partition vector search duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	c.documentsIndexed = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Total number of document chunks indexed",
		},
	)

	return c
}

// ObserveRetrieval 记录一次检索请求
func (c *Collector) ObserveRetrieval(result string, duration time.Duration) {
	if c == nil {
		return
	}
	c.retrievalsTotal.WithLabelValues(result).Inc()
	c.retrievalDuration.Observe(duration.Seconds())
}

// CacheHit 记录一次缓存命中
func (c *Collector) CacheHit(namespace string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(namespace).Inc()
}

// CacheMiss 记录一次缓存未命中
func (c *Collector) CacheMiss(namespace string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(namespace).Inc()
}

// CacheEvicted 记录一轮缓存淘汰
func (c *Collector) CacheEvicted(count int) {
	if c == nil {
		return
	}
	c.cacheEvictions.Add(float64(count))
}

// PartitionLoaded 记录一次分区索引加载
func (c *Collector) PartitionLoaded() {
	if c == nil {
		return
	}
	c.partitionLoadsTotal.Inc()
	c.partitionsResident.Inc()
}

// PartitionReleased 记录一次分区索引释放
func (c *Collector) PartitionReleased() {
	if c == nil {
		return
	}
	c.partitionsResident.Dec()
}

// ObservePartitionSearch 记录一次单分区搜索耗时
func (c *Collector) ObservePartitionSearch(duration time.Duration) {
	if c == nil {
		return
	}
	c.partitionSearchSecs.Observe(duration.Seconds())
}

// DocumentsIndexed 记录索引的文档块数量
func (c *Collector) DocumentsIndexed(count int) {
	if c == nil {
		return
	}
	c.documentsIndexed.Add(float64(count))
}
