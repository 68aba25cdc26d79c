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

// Package domain implements a single shard of the dataflow graph: the
// worker that owns a subset of operator nodes, drives records through
// them, keeps their materialized state, serializes transactional
// updates to a consistent timeline, and participates in online
// migrations. See the package's companion files for the pieces this
// splits into: dispatch.go (operator propagation), transaction.go
// (timestamp buffering), control.go (the Control command set),
// replay.go / replay_sink.go (migration replay), loop.go (the
// cooperative event loop).
package domain

import (
	"github.com/cockroachdb/viewflow/internal/checktable"
	"github.com/cockroachdb/viewflow/internal/flow"
)

// replayCursor is the "buffer updates destined for node X" marker used
// while X is being materialized by a replay in flight. Any streaming
// dispatch whose destination equals target is appended to buf instead
// of being processed (spec §4.1 step 1, §4.7).
type replayCursor struct {
	target flow.NodeAddress
	buf    []*flow.Message
}

// Domain is a single shard of the dataflow graph. It is not safe for
// concurrent use: every exported method here is expected to be called
// only from the single goroutine running the control loop (loop.go).
// That single-threading is the entire concurrency model (spec §5) —
// there is deliberately no locking inside this type.
type Domain struct {
	index flow.Index

	nodes  *flow.NodeTable
	states *flow.StateMap

	// readiness holds nodes that must not receive live dispatch: newly
	// added nodes start here and leave only via Ready or replayDone.
	readiness map[flow.LocalNodeIndex]struct{}

	// replaying, when non-nil, is the single in-flight replay cursor.
	// The spec models at most one outstanding local replay target at a
	// time; a second StartMigration onto a node already being replayed
	// is a coordinator error, not something this package guards.
	replaying *replayCursor

	// buffered is the TransactionBuffer: per-timestamp staging area
	// keyed by the timestamp the entry will be applied at.
	buffered map[int64]bufferedEntry

	// ingressFromBase counts, per base, how many fragments a
	// Transaction(base, ...) must accumulate before it is complete.
	ingressFromBase map[flow.BaseIndex]int

	// ts is the last timestamp applied. It only ever increases, by
	// exactly 1, via apply_transactions consuming ts+1.
	ts int64

	check checktable.CheckTable

	metrics *metrics
}

// New returns an empty Domain identified by index, talking to check
// for transaction-timestamp assignment. ingressFromBase seeds the
// fragment counts in effect before any migration changes them; an
// empty map is valid for a domain with no base tables of its own.
func New(index flow.Index, check checktable.CheckTable, ingressFromBase map[flow.BaseIndex]int) *Domain {
	counts := make(map[flow.BaseIndex]int, len(ingressFromBase))
	for k, v := range ingressFromBase {
		counts[k] = v
	}
	return &Domain{
		index:           index,
		nodes:           flow.NewNodeTable(),
		states:          flow.NewStateMap(),
		readiness:       map[flow.LocalNodeIndex]struct{}{},
		buffered:        map[int64]bufferedEntry{},
		ingressFromBase: counts,
		check:           check,
		metrics:         newMetrics(index),
	}
}

// Index returns the domain's own identity.
func (d *Domain) Index() flow.Index { return d.index }

// Timestamp returns the last timestamp this domain has applied.
func (d *Domain) Timestamp() int64 { return d.ts }

func (d *Domain) isReady(ni flow.LocalNodeIndex) bool {
	_, notReady := d.readiness[ni]
	return !notReady
}

func (d *Domain) markNotReady(ni flow.LocalNodeIndex) {
	d.readiness[ni] = struct{}{}
}

func (d *Domain) clearReady(ni flow.LocalNodeIndex) {
	delete(d.readiness, ni)
}
