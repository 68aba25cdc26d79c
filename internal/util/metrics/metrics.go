// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds shared Prometheus conventions used by the
// various metrics.go files throughout the module.
package metrics

// LatencyBuckets is the shared histogram bucket set (in seconds) used
// for per-operation duration histograms.
var LatencyBuckets = []float64{
	.0005, .001, .002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// NodeLabels is the label set attached to per-node counters and
// histograms.
var NodeLabels = []string{"domain", "node"}

// CommandLabels is the label set attached to per-command control
// metrics (the control-command latency histogram).
var CommandLabels = []string{"command"}
