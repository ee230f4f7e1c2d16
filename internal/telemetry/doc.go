// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics for docchat.
//
// The API client, chat list cache, conversation controller, upload tracker
// and notifier record into a shared *Metrics. A nil *Metrics is valid and
// records nothing, so components work without telemetry configured.
//
// # Usage
//
//	metrics := telemetry.New()
//	go metrics.Serve(ctx, ":9464", logger)
//	metrics.ObserveRequest("list_chats", start, err)
//
// # Privacy
//
// Only counts, sizes and latencies are recorded. Query text, answers and
// document names are never exported.
package telemetry
