// Copyright 2025-2026 MedKB Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
Package taxonomy 定义医疗知识库的分类体系与共享错误类型。

# 核心类型

  - Department / DocumentType / DiseaseCategory / EvidenceLevel — 闭合枚举，
    取值与磁盘分区目录名保持稳定
  - Metadata — 文档块的强类型元数据，必填科室与文档类型，扩展字段放入 Extra
  - AliasTable / Resolver — 别名归一：非规范分类字符串在 API 边界统一
    归一到闭合枚举，别名表是可替换的配置数据
  - Classifier — 基于关键词的文档分类器，为未打标文本推断分类与置信度
  - Error / ErrorCode — 全仓库统一的结构化错误
*/
package taxonomy
