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

import "github.com/cockroachdb/viewflow/internal/flow"

// replayChunkSize is the number of rows a single replay chunk carries,
// a throughput/latency compromise: large enough to amortize
// per-message overhead, small enough that control work still
// interleaves at human-perceptible frequency.
const replayChunkSize = 1000

// replayDone removes node from the ReadinessSet and, if it is the
// current replay cursor's target, clears the cursor. §9 flags the
// assert-empty postcondition as an open question and recommends the
// draining variant: rather than assert the buffer is empty, dispatch
// whatever accumulated in it through the sink (enableOutput=true)
// before discarding the cursor, so a live update that snuck in during
// replay is not silently lost.
func (d *Domain) replayDone(node flow.NodeAddress) error {
	d.clearReady(node.Local)

	if d.replaying == nil || d.replaying.target != node {
		return nil
	}

	buffered := d.replaying.buf
	d.replaying = nil

	for _, m := range buffered {
		if _, err := d.dispatch(m, true); err != nil {
			return err
		}
	}
	return nil
}

// handleReplay drives the producing end of a migration path
// nodes = [n0, n1, ..., nk], where n0 is materialized in this domain.
func (d *Domain) handleReplay(c ReplayCmd) error {
	if len(c.Nodes) == 0 {
		return NewStateViolation("replay: empty node path")
	}
	n0 := c.Nodes[0]

	src, ok := d.nodes.Get(n0)
	if !ok {
		return NewStateViolation("replay: unknown source node %d", n0)
	}
	state, ok := d.states.Get(n0)
	if !ok {
		return NewStateViolation("replay: source node %d is not materialized", n0)
	}

	// Release the coordinator first: the snapshot below is a point in
	// time, not something the coordinator needs to wait on.
	if c.Ack != nil {
		c.Ack <- struct{}{}
	}

	snapshot := state.Clone()

	if len(c.Nodes) == 1 {
		if c.Tx == nil {
			return NewStateViolation("replay: single-node path requires a destination channel")
		}
		c.Tx <- flow.ReplayBatch{Full: &flow.FullBatch{From: src.Addr, State: snapshot}}
		return nil
	}

	last := c.Nodes[len(c.Nodes)-1]
	lastAddr := flow.NodeAddress{Domain: d.index, Local: last}
	if c.Tx == nil {
		d.replaying = &replayCursor{target: lastAddr}
	}

	rows := snapshot.AllRows()
	for start := 0; start < len(rows); start += replayChunkSize {
		end := start + replayChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		data := make(flow.Records, len(chunk))
		for i, row := range chunk {
			data[i] = flow.Record{Kind: flow.Positive, Row: row}
		}

		next := c.Nodes[1]
		m := &flow.Message{
			From: src.Addr,
			To:   flow.NodeAddress{Domain: d.index, Local: next},
			Data: data,
		}

		absorbed, err := d.pushThroughLocalChain(m, c.Nodes[1:])
		if err != nil {
			return err
		}
		d.metrics.replayRows.Add(float64(len(chunk)))

		if absorbed == nil {
			// A node in the chain dropped the chunk; move on to the
			// next one rather than abandoning the whole replay.
			continue
		}
		if c.Tx != nil {
			c.Tx <- flow.ReplayBatch{Partial: absorbed}
		}
	}

	if c.Tx == nil {
		return d.replayDone(lastAddr)
	}
	return nil
}

// pushThroughLocalChain pushes m sequentially through the nodes named
// by path (all local to this domain), re-addressing from/to between
// each step. It returns the message as it stood after the last node in
// path processed it, or nil if any node along the way returned no
// result (the chunk is abandoned at that point).
func (d *Domain) pushThroughLocalChain(m *flow.Message, path []flow.LocalNodeIndex) (*flow.Message, error) {
	cur := m
	for i, ni := range path {
		n, ok := d.nodes.Get(ni)
		if !ok {
			return nil, NewStateViolation("replay: unknown node %d in path", ni)
		}
		cur.To = n.Addr
		result, err := n.Process(cur, d.states, d.nodes, false)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		next := cur
		if i+1 < len(path) {
			nextN, ok := d.nodes.Get(path[i+1])
			if !ok {
				return nil, NewStateViolation("replay: unknown node %d in path", path[i+1])
			}
			next = &flow.Message{From: n.Addr, To: nextN.Addr}
		}
		next.Data, next.Ts, next.Token = result.Data, result.Ts, result.Token
		cur = next
	}
	return cur, nil
}
