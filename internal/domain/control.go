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

package domain

import (
	"time"

	"github.com/cockroachdb/viewflow/internal/flow"
)

// Command is the Control command set a Domain accepts on its control
// channel. Commands execute in FIFO order with respect to each other
// (see loop.go); there is exactly one concrete type per row of the
// table in §6.
type Command interface {
	isCommand()
}

// NodeDescriptor is the information AddNode needs to install a new
// node into the NodeTable. Op is consulted only when Kind is
// KindInternal; base nodes always use the fixed passthrough
// Node.Process implements and ignore Op. Reader marks a KindReader node
// as owning a ReaderView.
type NodeDescriptor struct {
	Global flow.GlobalIndex
	Addr   flow.NodeAddress
	Kind   flow.Kind
	Op     flow.Processor
	Reader bool
}

// AddNode inserts n into the NodeTable, marks it not-ready (a
// TimestampEgress is the exception and starts ready), and wires it as
// a child of every node named in Parents. Parents are always
// pre-existing nodes within this same domain.
type AddNode struct {
	Node    NodeDescriptor
	Parents []flow.LocalNodeIndex
}

func (AddNode) isCommand() {}

// Ready optionally materializes ni's state, swaps in any pending
// Reader view, and clears ni from the ReadinessSet. The absence of
// IndexOn does not imply the node is unmaterialized: PrepareState may
// already have created its state earlier.
type Ready struct {
	Node    flow.LocalNodeIndex
	IndexOn *int
	Ack     chan<- struct{}
}

func (Ready) isCommand() {}

// PrepareState creates empty materialized state for ni under the
// given primary-key column. It does not alter readiness.
type PrepareState struct {
	Node flow.LocalNodeIndex
	Col  int
}

func (PrepareState) isCommand() {}

// ReplayCmd drives the producing end of a migration path; see
// replay.go.
type ReplayCmd struct {
	Nodes []flow.LocalNodeIndex
	Tx    chan<- flow.ReplayBatch // nil if the sink is local to this domain
	Ack   chan<- struct{}
}

func (ReplayCmd) isCommand() {}

// ReplayThroughCmd drives the consuming end of a migration path; see
// replay_sink.go.
type ReplayThroughCmd struct {
	Nodes []flow.LocalNodeIndex
	Rx    <-chan flow.ReplayBatch
	Tx    chan<- flow.ReplayBatch // non-nil if this domain only forwards the path onward
	Ack   chan<- struct{}
}

func (ReplayThroughCmd) isCommand() {}

// StartMigrationCmd inserts a migration barrier at Ts into the
// transaction buffer.
type StartMigrationCmd struct {
	Ts  int64
	Ack chan<- struct{}
}

func (StartMigrationCmd) isCommand() {}

// CompleteMigrationCmd installs new ingress_from_base counts,
// effective atomically at Ts.
type CompleteMigrationCmd struct {
	Ts              int64
	IngressFromBase map[flow.BaseIndex]int
}

func (CompleteMigrationCmd) isCommand() {}

// commandLabel names cmd for the domain_control_command_latency_seconds
// metric, matching sharedmetrics.CommandLabels.
func commandLabel(cmd Command) string {
	switch cmd.(type) {
	case AddNode:
		return "add_node"
	case Ready:
		return "ready"
	case PrepareState:
		return "prepare_state"
	case ReplayCmd:
		return "replay"
	case ReplayThroughCmd:
		return "replay_through"
	case StartMigrationCmd:
		return "start_migration"
	case CompleteMigrationCmd:
		return "complete_migration"
	default:
		return "unknown"
	}
}

// HandleControl executes a single Command, in the manner §4.3
// describes for each variant.
func (d *Domain) HandleControl(cmd Command) error {
	start := time.Now()
	defer func() {
		d.metrics.controlLatency.WithLabelValues(commandLabel(cmd)).Observe(time.Since(start).Seconds())
	}()

	switch c := cmd.(type) {
	case AddNode:
		return d.handleAddNode(c)
	case Ready:
		return d.handleReady(c)
	case PrepareState:
		return d.handlePrepareState(c)
	case ReplayCmd:
		return d.handleReplay(c)
	case ReplayThroughCmd:
		return d.handleReplayThrough(c)
	case StartMigrationCmd:
		return d.bufferMigrationStart(c.Ts, c.Ack)
	case CompleteMigrationCmd:
		return d.bufferMigrationEnd(c.Ts, c.IngressFromBase)
	default:
		return NewStateViolation("control: unknown command %T", cmd)
	}
}

func (d *Domain) handleAddNode(c AddNode) error {
	n := &flow.Node{
		Global: c.Node.Global,
		Addr:   c.Node.Addr,
		Kind:   c.Node.Kind,
		Op:     c.Node.Op,
	}
	if c.Node.Reader {
		n.View = &flow.ReaderView{}
	}
	d.nodes.Insert(n)

	// A TimestampEgress carries no materialized state, so there is
	// nothing for a replay to populate before it can see traffic; it
	// is always ready, mirroring the exception Domain::new applies when
	// seeding not_ready for the nodes a domain starts with.
	if n.Kind != flow.KindTimestampEgress {
		d.markNotReady(n.Addr.Local)
	}

	for _, parent := range c.Parents {
		if err := d.nodes.AddChild(parent, n.Addr); err != nil {
			return NewStateViolation("add node: %v", err)
		}
	}
	return nil
}

func (d *Domain) handleReady(c Ready) error {
	n, ok := d.nodes.Get(c.Node)
	if !ok {
		return NewStateViolation("ready: unknown node %d", c.Node)
	}

	if c.IndexOn != nil {
		var st *flow.State
		if n.IsBase() {
			st = flow.NewBaseState()
		} else {
			st = flow.NewState()
		}
		st.SetPkey(*c.IndexOn)
		d.states.Insert(c.Node, st)
	}

	if n.Kind == flow.KindReader && n.View != nil {
		n.View.Swap()
	}

	if err := d.replayDone(n.Addr); err != nil {
		return err
	}

	if c.Ack != nil {
		close(c.Ack)
	}
	return nil
}

func (d *Domain) handlePrepareState(c PrepareState) error {
	st := flow.NewState()
	st.SetPkey(c.Col)
	d.states.Insert(c.Node, st)
	return nil
}
