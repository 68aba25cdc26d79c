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

// Package faketable provides an in-memory checktable.CheckTable, good
// enough for unit and property tests but not for production use (no
// persistence, no cross-process coordination).
package faketable

import (
	"context"
	"sync"

	"github.com/cockroachdb/viewflow/internal/flow"
)

// Table hands out strictly increasing timestamps per base, protected
// by a single mutex — the same "shared, mutex-guarded" shape spec.md
// §9 describes as acceptable for the real checktable.
type Table struct {
	mu struct {
		sync.Mutex
		next    map[flow.BaseIndex]int64
		aborted map[flow.Token]bool
	}
}

// New returns an empty Table.
func New() *Table {
	t := &Table{}
	t.mu.next = map[flow.BaseIndex]int64{}
	t.mu.aborted = map[flow.Token]bool{}
	return t
}

var _ interface {
	ClaimTimestamp(context.Context, flow.Token, flow.BaseIndex, flow.Records) flow.TransactionResult
} = (*Table)(nil)

// ClaimTimestamp implements checktable.CheckTable.
func (t *Table) ClaimTimestamp(
	_ context.Context, token flow.Token, base flow.BaseIndex, _ flow.Records,
) flow.TransactionResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mu.aborted[token] {
		return flow.TransactionResult{Committed: false}
	}

	t.mu.next[base]++
	return flow.TransactionResult{Committed: true, Ts: t.mu.next[base]}
}

// Abort marks token so that any future claim against it is rejected.
// Intended for tests that want to exercise the Aborted path
// deterministically.
func (t *Table) Abort(token flow.Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mu.aborted[token] = true
}
