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

// batchedIterator adapts a stream of ReplayBatch into a stream of
// Messages addressed from=source, to=n0 (the first local node in the
// replay path). A Partial batch passes through unchanged; a Full batch
// is absorbed once and then lazily chunked into the same per-row shape
// Partial already uses, which is what lets the sink process both the
// full-snapshot fast path and the incremental path with one loop.
type batchedIterator struct {
	rx <-chan flow.ReplayBatch
	n0 flow.NodeAddress

	pending   []flow.Row
	pendingAt int
	source    flow.NodeAddress
}

func newBatchedIterator(rx <-chan flow.ReplayBatch, n0 flow.NodeAddress) *batchedIterator {
	return &batchedIterator{rx: rx, n0: n0}
}

// next returns the next Message to push through the chain, and
// whether one was available (false once rx is closed and any pending
// Full rows are exhausted).
func (it *batchedIterator) next() (*flow.Message, bool) {
	for {
		if it.pending != nil {
			start := it.pendingAt
			end := start + replayChunkSize
			if end > len(it.pending) {
				end = len(it.pending)
			}
			chunk := it.pending[start:end]
			it.pendingAt = end
			if it.pendingAt >= len(it.pending) {
				it.pending = nil
				it.pendingAt = 0
			}

			data := make(flow.Records, len(chunk))
			for i, row := range chunk {
				data[i] = flow.Record{Kind: flow.Positive, Row: row}
			}
			return &flow.Message{From: it.source, To: it.n0, Data: data}, true
		}

		batch, ok := <-it.rx
		if !ok {
			return nil, false
		}
		if batch.IsPartial() {
			return batch.Partial, true
		}

		it.pending = batch.Full.State.AllRows()
		it.pendingAt = 0
		it.source = batch.Full.From
		if len(it.pending) == 0 {
			it.pending = nil
		}
	}
}

// handleReplayThrough drives the consuming end of a migration path:
// nodes = [n0, ..., nk] are local to this domain, n0 receiving batches
// from rx.
func (d *Domain) handleReplayThrough(c ReplayThroughCmd) error {
	if len(c.Nodes) == 0 {
		return NewStateViolation("replayThrough: empty node path")
	}
	n0 := c.Nodes[0]
	n0Node, ok := d.nodes.Get(n0)
	if !ok {
		return NewStateViolation("replayThrough: unknown node %d", n0)
	}

	if c.Ack != nil {
		c.Ack <- struct{}{}
	}

	if len(c.Nodes) == 1 {
		return d.replayThroughSingleNode(n0Node, c)
	}
	return d.replayThroughChain(c)
}

// replayThroughSingleNode is the fast path: n0 must be an ingress with
// no forwarding tx, and replay batches are applied directly to its
// state.
func (d *Domain) replayThroughSingleNode(n0 *flow.Node, c ReplayThroughCmd) error {
	if !n0.IsIngress() {
		return NewStateViolation("replayThrough: single-node path requires an ingress, got node %s", n0.Addr)
	}
	if c.Tx != nil {
		return NewStateViolation("replayThrough: single-node path must not forward onward")
	}

	for batch := range c.Rx {
		if batch.IsFull() {
			st, ok := d.states.Get(n0.Addr.Local)
			if !ok {
				return NewStateViolation("replayThrough: sink node %s has no pre-provisioned state", n0.Addr)
			}
			if st.GetPkey() != batch.Full.State.GetPkey() {
				return NewStateViolation(
					"replayThrough: primary key mismatch on full replay into %s (have %d, got %d)",
					n0.Addr, st.GetPkey(), batch.Full.State.GetPkey(),
				)
			}
			d.states.Insert(n0.Addr.Local, batch.Full.State)
			d.metrics.replayRows.Add(float64(len(batch.Full.State.AllRows())))
			break
		}

		st, ok := d.states.Get(n0.Addr.Local)
		if !ok {
			return NewStateViolation("replayThrough: sink node %s has no state to apply to", n0.Addr)
		}
		for _, rec := range batch.Partial.Data {
			if rec.IsPositive() {
				st.Insert(rec.Row)
			} else {
				st.Remove(rec.Row)
			}
		}
		d.metrics.replayRows.Add(float64(len(batch.Partial.Data)))
	}

	return d.replayDone(n0.Addr)
}

// replayThroughChain is the multi-node path: batches are adapted by a
// batchedIterator, then pushed sequentially through every local node
// in the path, re-addressing between steps.
func (d *Domain) replayThroughChain(c ReplayThroughCmd) error {
	n0 := c.Nodes[0]
	lastAddr := flow.NodeAddress{Domain: d.index, Local: c.Nodes[len(c.Nodes)-1]}

	if c.Tx == nil {
		d.replaying = &replayCursor{target: lastAddr}
	}

	n0Node, ok := d.nodes.Get(n0)
	if !ok {
		return NewStateViolation("replayThrough: unknown node %d", n0)
	}
	it := newBatchedIterator(c.Rx, n0Node.Addr)

	for {
		m, ok := it.next()
		if !ok {
			break
		}

		absorbed, err := d.pushThroughLocalChain(m, c.Nodes)
		if err != nil {
			return err
		}
		d.metrics.replayRows.Add(float64(len(m.Data)))
		if absorbed == nil {
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
