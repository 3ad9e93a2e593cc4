// Copyright 2025-2026 MedKB Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package kbstore 实现分区化的医学知识向量存储。

# 分区模型

知识库按 科室 x 文档类型 [x 疾病分类] 的分类组合切分为互不重叠的分区，
每个分区是磁盘上的一个独立目录（向量索引 + 元数据边车）。启动只扫描
元数据，索引由首次检索触发懒加载，并发加载经 singleflight 合并。

# 核心类型

  - Manager — 分区生命周期管理：创建、追加、懒加载、删除、统计
  - Router — 按过滤条件路由检索，精确命中失败时逐级放宽回退，
    多分区结果全局按距离升序合并
  - EmbeddingProvider — 向量化服务接口；RateLimitedEmbedder 提供限流包装，
    HashingEmbedder 提供无外部依赖的确定性实现

# 失败语义

单个分区索引损坏不会使检索失败：告警后返回空结果，损坏结果不缓存，
修复后下一次检索自动重载。写入路径先落索引再落元数据，崩溃只会留下
孤儿目录而不会留下指向缺失索引的元数据。
*/
package kbstore
