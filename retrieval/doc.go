// Copyright 2025-2026 MedKB Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package retrieval 实现增强检索流水线。

流水线串联以下阶段：

 1. 结果缓存查询（逻辑等价请求直接命中）
 2. 查询质量评估与意图置信度估计
 3. 按质量分自适应检索深度（高质量查更深，低质量查更浅）
 4. 质量门控的知识图谱扩展与医学关联增强（各自带缓存）
 5. 分区路由检索（见 kbstore.Router）
 6. 动态加权多信号重排序（语义、医学相关性、KG 覆盖、关联覆盖）

增强环节全部尽力而为：知识图谱或关联挖掘故障只降级为纯语义检索，
不会使请求失败。权重按查询质量与触发的信号动态调整并归一化。
*/
package retrieval
