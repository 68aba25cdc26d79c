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
	"context"
	"testing"

	"github.com/cockroachdb/viewflow/internal/checktable/faketable"
	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/stretchr/testify/require"
)

// addr is shorthand for building a local NodeAddress in this domain.
func (d *Domain) addr(ni flow.LocalNodeIndex) flow.NodeAddress {
	return flow.NodeAddress{Domain: d.index, Local: ni}
}

// insertChainNode adds a plain passthrough node (Kind=KindInternal with
// no Op means it errors; use KindIngress for a harmless passthrough)
// at ni with children, skipping the ReadinessSet entirely so tests
// that don't care about migration state can dispatch immediately.
func (d *Domain) insertChainNode(ni flow.LocalNodeIndex, kind flow.Kind, children ...flow.LocalNodeIndex) *flow.Node {
	n := &flow.Node{Global: flow.GlobalIndex(ni), Addr: d.addr(ni), Kind: kind}
	for _, c := range children {
		n.Children = append(n.Children, d.addr(c))
	}
	d.nodes.Insert(n)
	return n
}

func newTestDomain(t *testing.T) *Domain {
	t.Helper()
	return New(flow.Index(1), faketable.New(), nil)
}

func TestTransactionalDispatchFeedsEachOutputExactlyOnce(t *testing.T) {
	d := newTestDomain(t)

	// n0 (base) -> n1 (reader, output)
	d.insertChainNode(0, flow.KindBase, 1)
	reader := d.insertChainNode(1, flow.KindReader)
	st := flow.NewState()
	st.SetPkey(0)
	d.states.Insert(1, st)

	m := &flow.Message{
		From: d.addr(0),
		To:   d.addr(0),
		Data: flow.Records{{Kind: flow.Positive, Row: flow.Row{"a", 1}}},
		Ts:   &flow.TimestampMark{Ts: 1, Base: 0},
	}

	err := d.transactionalDispatch(m.Ts, []*flow.Message{m})
	require.NoError(t, err)

	rstate, ok := d.states.Get(reader.Addr.Local)
	require.True(t, ok)
	require.Equal(t, 1, rstate.Len())

	// Len counts distinct keys, so a second feed of the same batch would
	// only show up as a duplicate row under key "a".
	rows, ok := rstate.Get("a")
	require.True(t, ok)
	require.Len(t, rows, 1)
}

func TestDispatchDropsMessagesToNotReadyNodes(t *testing.T) {
	d := newTestDomain(t)
	d.insertChainNode(0, flow.KindIngress)
	d.markNotReady(0)

	out, err := d.dispatch(&flow.Message{To: d.addr(0)}, true)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestScenario2_OutOfOrderTimestampsApplyInOrder(t *testing.T) {
	d := newTestDomain(t)
	d.ts = 5
	d.ingressFromBase[0] = 1

	d.insertChainNode(0, flow.KindBase)

	ack7 := make(chan struct{}, 1)
	require.NoError(t, d.bufferMigrationStart(7, ack7))
	require.Equal(t, int64(5), d.ts, "migration start at 7 must not apply while ts=6 is missing")

	m := &flow.Message{To: d.addr(0), Ts: &flow.TimestampMark{Ts: 6, Base: 0}}
	require.NoError(t, d.bufferTransaction(m))

	require.Equal(t, int64(7), d.ts, "both the gap-filling transaction and the now-unblocked migration barrier must apply")

	select {
	case <-ack7:
	default:
		t.Fatal("ack7 did not fire")
	}
}

func TestScenario5_TokenCommitRewritesTimestampAndBuffers(t *testing.T) {
	d := newTestDomain(t)

	d.insertChainNode(0, flow.KindIngress, 1)
	d.insertChainNode(1, flow.KindBase)
	d.ingressFromBase[1] = 1

	reply := make(chan flow.TransactionResult, 1)
	m := &flow.Message{
		From:  d.addr(0),
		To:    d.addr(0),
		Data:  flow.Records{{Kind: flow.Positive, Row: flow.Row{"x"}}},
		Token: &flow.Token{ID: 42},
		Reply: reply,
	}

	require.NoError(t, d.handleToken(context.Background(), m))

	var got flow.TransactionResult
	select {
	case got = <-reply:
	default:
		t.Fatal("reply channel received nothing")
	}
	require.True(t, got.Committed)
	require.Equal(t, int64(1), d.ts, "the committed transaction should have been applied, advancing ts")
}

func TestScenario6_TokenAbortDropsMessage(t *testing.T) {
	d := newTestDomain(t)

	d.insertChainNode(0, flow.KindIngress, 1)
	d.insertChainNode(1, flow.KindBase)
	d.ingressFromBase[1] = 1

	table := faketable.New()
	tok := flow.Token{ID: 7}
	table.Abort(tok)
	d.check = table

	reply := make(chan flow.TransactionResult, 1)
	m := &flow.Message{
		From:  d.addr(0),
		To:    d.addr(0),
		Data:  flow.Records{{Kind: flow.Positive, Row: flow.Row{"x"}}},
		Token: &tok,
		Reply: reply,
	}

	require.NoError(t, d.handleToken(context.Background(), m))

	var got flow.TransactionResult
	select {
	case got = <-reply:
	default:
		t.Fatal("reply channel received nothing")
	}
	require.False(t, got.Committed)
	require.Equal(t, int64(0), d.ts, "an aborted token must not advance the timestamp")
}
