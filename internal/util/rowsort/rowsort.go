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

// Package rowsort contains utility functions for ordering batches of
// keyed rows before they are chunked, so that replay produces the same
// chunk boundaries across runs even though the underlying State is
// keyed by an unordered map.
package rowsort

import "sort"

// Keys returns the keys of m in a stable, deterministic order. State
// snapshots are taken over Go maps, whose iteration order is randomized
// per-process; sorting the keys before chunking means two replays of
// the same State produce byte-identical chunk boundaries, which the
// replay tests rely on.
//
// This plays the same role that msort.UniqueByKey plays for the
// teacher's mutation batches: a small, allocation-light utility that
// imposes a total order on a key set immediately before it is consumed
// by a downstream batching step.
func Keys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
