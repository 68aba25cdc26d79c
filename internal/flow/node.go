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

package flow

import (
	"github.com/cockroachdb/viewflow/internal/util/notify"
	"github.com/pkg/errors"
)

// Kind enumerates the operator variants a Node can own.
type Kind int

const (
	// KindIngress marks a boundary node that receives messages crossing
	// into this domain from elsewhere in the graph.
	KindIngress Kind = iota
	// KindEgress marks a boundary node that forwards messages out of
	// this domain.
	KindEgress
	// KindBase marks a node representing a base table: the source of
	// transactional timestamps.
	KindBase
	// KindReader marks a terminal node exposing a materialized view via
	// a double-buffered swap.
	KindReader
	// KindTimestampEgress marks a node that propagates timestamp-only
	// announcements downstream, carrying no row data.
	KindTimestampEgress
	// KindInternal marks a node whose behavior is delegated to a
	// pluggable Processor (an operator implementation).
	KindInternal
)

// Processor is the black-box operator interface a Node delegates to
// when its Kind is KindInternal. Operator implementations
// (query-plan compiled code) are out of this repository's scope; only
// the interface the Domain consumes is specified here.
type Processor interface {
	Process(msg *Message, states *StateMap, nodes *NodeTable, enableOutput bool) (*ProcessResult, error)
}

// ReaderView is the double-buffered read surface a Reader node
// exposes. Swap publishes whatever has most recently been written,
// e.g. once a migration replay into the reader's backing state
// completes. Generation tracks how many times Swap has published, so a
// client holding a view can block on Wait instead of polling for the
// next update.
type ReaderView struct {
	pending    bool
	generation notify.Var[int]
}

// MarkPending records that a replay has written new state that has not
// yet been published to readers.
func (v *ReaderView) MarkPending() { v.pending = true }

// Swap publishes pending state, if any. It reports whether a swap
// occurred.
func (v *ReaderView) Swap() bool {
	if !v.pending {
		return false
	}
	v.pending = false
	gen, _ := v.generation.Get()
	v.generation.Set(gen + 1)
	return true
}

// Wait returns the current swap generation and a channel that closes
// the next time Swap publishes. A client that wants to block until the
// view changes again re-fetches with Wait after the channel closes.
func (v *ReaderView) Wait() (int, <-chan struct{}) {
	return v.generation.Get()
}

// Node owns an operator variant, the addresses of its children in the
// local subgraph, and its position in the global graph.
type Node struct {
	Global   GlobalIndex
	Addr     NodeAddress
	Children []NodeAddress

	Kind Kind
	Op   Processor   // consulted only when Kind is KindInternal
	View *ReaderView // set when Kind is KindReader
}

// IsOutput reports whether the node is a dispatch-terminal "output"
// node: a Reader (materialized view) or an Egress (domain-crossing
// forward). Both have no children, and both are the unit that
// transactional_dispatch feeds exactly one combined batch into.
func (n *Node) IsOutput() bool { return n.Kind == KindReader || n.Kind == KindEgress }

// IsIngress reports whether this is a boundary ingress node.
func (n *Node) IsIngress() bool { return n.Kind == KindIngress }

// IsBase reports whether this node represents a base table.
func (n *Node) IsBase() bool { return n.Kind == KindBase }

// IsInternal reports whether this node delegates to an operator.
func (n *Node) IsInternal() bool { return n.Kind == KindInternal }

// Process routes to the node's operator, or implements the fixed
// behavior of boundary/reader/timestamp-egress kinds directly.
func (n *Node) Process(
	msg *Message, states *StateMap, nodes *NodeTable, enableOutput bool,
) (*ProcessResult, error) {
	switch n.Kind {
	case KindIngress, KindEgress, KindBase:
		// Pass data through unchanged; these kinds exist to mark a
		// position in the graph, not to transform records.
		return &ProcessResult{Data: msg.Data, Ts: msg.Ts, Token: msg.Token}, nil

	case KindTimestampEgress:
		if msg.Ts == nil {
			// No timestamp to propagate and no data of our own; this
			// node has nothing to do with a plain streaming message.
			return nil, nil
		}
		return &ProcessResult{Ts: msg.Ts}, nil

	case KindReader:
		state, ok := states.Get(n.Addr.Local)
		if ok {
			for _, rec := range msg.Data {
				if rec.IsPositive() {
					state.Insert(rec.Row)
				} else {
					state.Remove(rec.Row)
				}
			}
		}
		// Terminal: nothing propagates further.
		return nil, nil

	case KindInternal:
		if n.Op == nil {
			return nil, errors.Errorf("node %s: internal node has no operator attached", n.Addr)
		}
		return n.Op.Process(msg, states, nodes, enableOutput)

	default:
		return nil, errors.Errorf("node %s: unknown kind %d", n.Addr, n.Kind)
	}
}

// NodeTable is the set of nodes a Domain owns, keyed by local address.
type NodeTable struct {
	byLocal map[LocalNodeIndex]*Node
	order   []LocalNodeIndex // insertion order, used to iterate deterministically
}

// NewNodeTable returns an empty NodeTable.
func NewNodeTable() *NodeTable {
	return &NodeTable{byLocal: map[LocalNodeIndex]*Node{}}
}

// Get returns the node at ni, if any.
func (t *NodeTable) Get(ni LocalNodeIndex) (*Node, bool) {
	n, ok := t.byLocal[ni]
	return n, ok
}

// Insert adds n to the table under its local address.
func (t *NodeTable) Insert(n *Node) {
	if _, exists := t.byLocal[n.Addr.Local]; !exists {
		t.order = append(t.order, n.Addr.Local)
	}
	t.byLocal[n.Addr.Local] = n
}

// AddChild appends child to the children list of the node at parent.
func (t *NodeTable) AddChild(parent LocalNodeIndex, child NodeAddress) error {
	n, ok := t.byLocal[parent]
	if !ok {
		return errors.Errorf("node table: unknown parent %d", parent)
	}
	n.Children = append(n.Children, child)
	return nil
}

// Range iterates over nodes in insertion order.
func (t *NodeTable) Range(fn func(*Node) error) error {
	for _, ni := range t.order {
		if err := fn(t.byLocal[ni]); err != nil {
			return err
		}
	}
	return nil
}

// Outputs returns the addresses of every output node in the table, in
// insertion order.
func (t *NodeTable) Outputs() []NodeAddress {
	var out []NodeAddress
	_ = t.Range(func(n *Node) error {
		if n.IsOutput() {
			out = append(out, n.Addr)
		}
		return nil
	})
	return out
}
