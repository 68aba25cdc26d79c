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

// bufferedEntry is one slot of the TransactionBuffer, keyed by the
// timestamp it will be applied at. Transactional updates and migration
// barriers share this single buffer deliberately (see design notes):
// splitting them into separate queues would lose migration start/end's
// well-defined position in the transactional timeline.
type bufferedEntry struct {
	transaction    *bufferedTransaction   // set when this slot holds record fragments
	remote         bool                   // a RemoteTransaction: timestamp-only, completes immediately
	migrationStart chan<- struct{}        // ack channel for StartMigration, if this slot is one
	migrationEnd   map[flow.BaseIndex]int // new ingress_from_base, if this slot is a CompleteMigration
	isMigrationEnd bool
}

// bufferedTransaction accumulates the fragments of a Transaction(base,
// messages) until messages.len() reaches ingress_from_base[base].
type bufferedTransaction struct {
	base     flow.BaseIndex
	messages []*flow.Message
}

// transactionalDispatch runs dispatch(enableOutput=false) for each
// message in messages (all sharing ts), concatenates the per-address
// batches dispatch returns, then feeds every ready output node in the
// domain exactly one synthesized message carrying its accumulated batch
// (or an empty Records if it received nothing); output nodes still in
// the ReadinessSet are skipped. Output nodes are terminal,
// so the feed is solely for side effects (materializing a Reader's
// state, forwarding across an Egress).
//
// Preconditions: messages is non-empty and every message shares ts.
func (d *Domain) transactionalDispatch(ts *flow.TimestampMark, messages []*flow.Message) error {
	if len(messages) == 0 {
		return NewStateViolation("transactionalDispatch: called with no messages")
	}

	egress := map[flow.NodeAddress]flow.Records{}
	for _, m := range messages {
		perAddr, err := d.dispatch(m, false)
		if err != nil {
			return err
		}
		for addr, recs := range perAddr {
			egress[addr] = egress[addr].Concat(recs)
		}
	}

	d.metrics.transactionsApplied.Inc()

	for _, addr := range d.nodes.Outputs() {
		if !d.isReady(addr.Local) {
			continue
		}
		n, ok := d.nodes.Get(addr.Local)
		if !ok {
			return NewStateViolation("transactionalDispatch: unknown output node %s", addr)
		}

		data := egress[addr]

		// The spec's own source repository flags this as a TODO: the
		// parent would be more semantically correct than the output
		// node itself, but no implementation consults from, so the
		// choice is purely documentary.
		out := &flow.Message{From: addr, To: addr, Data: data, Ts: ts}

		if n.IsOutput() && len(n.Children) != 0 {
			return NewStateViolation("transactionalDispatch: output node %s unexpectedly has children", addr)
		}
		if _, err := n.Process(out, d.states, d.nodes, true); err != nil {
			return err
		}
	}
	return nil
}

// bufferTransaction places m under key m.Ts.Ts in the transaction
// buffer, and applies everything now eligible if this closed the gap
// at self.ts+1. m.Ts must be non-nil.
func (d *Domain) bufferTransaction(m *flow.Message) error {
	if m.Ts == nil {
		return NewStateViolation("bufferTransaction: message has no timestamp")
	}
	key := m.Ts.Ts

	entry, exists := d.buffered[key]
	if !exists {
		entry = bufferedEntry{transaction: &bufferedTransaction{base: m.Ts.Base}}
	} else if entry.transaction == nil {
		return NewStateViolation("bufferTransaction: timestamp %d already holds a non-transaction entry", key)
	}
	entry.transaction.messages = append(entry.transaction.messages, m)
	d.buffered[key] = entry

	if key == d.ts+1 {
		return d.applyTransactions()
	}
	return nil
}

// bufferRemoteTransaction records a timestamp-only announcement at ts,
// completing immediately once applied.
func (d *Domain) bufferRemoteTransaction(ts int64) error {
	if _, exists := d.buffered[ts]; exists {
		return NewStateViolation("bufferRemoteTransaction: duplicate entry at timestamp %d", ts)
	}
	d.buffered[ts] = bufferedEntry{remote: true}
	if ts == d.ts+1 {
		return d.applyTransactions()
	}
	return nil
}

// bufferMigrationStart inserts a migration barrier at ts. ack receives
// an empty struct, non-blocking, once the barrier is applied.
func (d *Domain) bufferMigrationStart(ts int64, ack chan<- struct{}) error {
	if _, exists := d.buffered[ts]; exists {
		return NewStateViolation("bufferMigrationStart: duplicate entry at timestamp %d", ts)
	}
	d.buffered[ts] = bufferedEntry{migrationStart: ack}
	if ts == d.ts+1 {
		return d.applyTransactions()
	}
	return nil
}

// bufferMigrationEnd inserts the new ingress_from_base counts, to take
// effect atomically at ts.
func (d *Domain) bufferMigrationEnd(ts int64, counts map[flow.BaseIndex]int) error {
	if _, exists := d.buffered[ts]; exists {
		return NewStateViolation("bufferMigrationEnd: duplicate entry at timestamp %d", ts)
	}
	cp := make(map[flow.BaseIndex]int, len(counts))
	for k, v := range counts {
		cp[k] = v
	}
	d.buffered[ts] = bufferedEntry{isMigrationEnd: true, migrationEnd: cp}
	if ts == d.ts+1 {
		return d.applyTransactions()
	}
	return nil
}

// applyTransactions repeatedly inspects the entry at self.ts+1,
// applying it and advancing self.ts when it is complete, until either
// no entry is present or an incomplete Transaction blocks progress.
// This is what guarantees invariant 2 of §8: for any timestamp T,
// transactional_dispatch runs at most once for T, and only after every
// T' < T has been consumed.
func (d *Domain) applyTransactions() error {
	for {
		next := d.ts + 1
		entry, ok := d.buffered[next]
		if !ok {
			return nil
		}

		if entry.transaction != nil {
			need := d.ingressFromBase[entry.transaction.base]
			if len(entry.transaction.messages) < need {
				return nil
			}
		}

		delete(d.buffered, next)

		switch {
		case entry.transaction != nil:
			ts := &flow.TimestampMark{Ts: next, Base: entry.transaction.base}
			if err := d.transactionalDispatch(ts, entry.transaction.messages); err != nil {
				return err
			}

		case entry.remote:
			// Timestamp-only: nothing to dispatch.

		case entry.migrationStart != nil:
			select {
			case entry.migrationStart <- struct{}{}:
			default:
			}

		case entry.isMigrationEnd:
			d.ingressFromBase = entry.migrationEnd
		}

		d.ts = next
		d.metrics.timestamp.Set(float64(d.ts))
	}
}
