// Copyright 2025-2026 MedKB Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package cache 提供按命名空间划分的结果缓存，用于记忆化昂贵的子计算
（实体提取、查询扩展、关联挖掘、最终检索结果）。

# 核心类型

  - Cache — 本地内存缓存：每个条目携带独立 TTL 与访问计数，
    周期性过期清扫 + 容量触发的 LRU/LFU 混合淘汰（按 (访问计数, 创建时间)
    升序每轮淘汰固定比例）
  - Namespace — 缓存命名空间，各自拥有独立的默认 TTL（DefaultTTLs）
  - RedisTier — 可选的 Redis 远端层，远端不可用时透明回退本地

# 失败语义

缓存是尽力而为的：任何读写失败都不会传播给调用方，调用方落回重新计算。
键由命名空间前缀 + keyData 的确定性序列化内容散列（xxhash64）构成，
逻辑等价的请求无论调用方字段顺序如何都命中同一条目。
*/
package cache
