// Copyright 2025-2026 MedKB Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package config 提供知识库服务的配置管理功能。
//
// 支持从 YAML 文件和环境变量加载配置，并提供基础的配置校验。
// 优先级: 默认值 → YAML 文件 → 环境变量。
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("MEDKB").
//	    Load()
package config
