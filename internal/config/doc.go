// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for docchat.
//
// Supports TOML and YAML configuration formats, with sensible defaults,
// .env files, environment variable overrides, validation and live reload.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags (applied by the cli package)
//   - Environment variables (DOCCHAT_*), including those from .env
//   - ~/.docchat/config.toml
//   - ~/.docchat/config.yaml
//   - Built-in defaults
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Reload on change:
//
//	w, err := config.Watch(path, func(c *config.Config) { ... }, nil)
//	defer w.Close()
package config
