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
	"testing"

	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/stretchr/testify/require"
)

func TestScenario3_SingleNodeFastReplay(t *testing.T) {
	d := newTestDomain(t)
	n0 := d.insertChainNode(0, flow.KindBase)

	st := flow.NewState()
	st.SetPkey(0)
	st.Insert(flow.Row{"a", 1})
	st.Insert(flow.Row{"b", 2})
	d.states.Insert(0, st)

	ack := make(chan struct{}, 1)
	tx := make(chan flow.ReplayBatch, 1)

	require.NoError(t, d.handleReplay(ReplayCmd{Nodes: []flow.LocalNodeIndex{0}, Tx: tx, Ack: ack}))

	select {
	case <-ack:
	default:
		t.Fatal("ack did not fire")
	}

	var batch flow.ReplayBatch
	select {
	case batch = <-tx:
	default:
		t.Fatal("tx did not receive a batch")
	}
	require.True(t, batch.IsFull())
	require.Equal(t, n0.Addr, batch.Full.From)
	require.Equal(t, st.GetPkey(), batch.Full.State.GetPkey())
	require.ElementsMatch(t, st.AllRows(), batch.Full.State.AllRows())

	// The original state must be untouched by the clone handed to tx.
	require.Equal(t, 2, st.Len())
}

func TestScenario4_ReplayCursorBuffersThenDrainsLiveUpdates(t *testing.T) {
	d := newTestDomain(t)
	d.insertChainNode(0, flow.KindBase, 1)
	d.insertChainNode(1, flow.KindIngress, 2)
	reader := d.insertChainNode(2, flow.KindReader)

	rst := flow.NewState()
	rst.SetPkey(0)
	d.states.Insert(2, rst)
	d.markNotReady(2)

	sinkAddr := reader.Addr
	d.replaying = &replayCursor{target: sinkAddr}

	live := &flow.Message{
		To:   sinkAddr,
		Data: flow.Records{{Kind: flow.Positive, Row: flow.Row{"x", 1}}},
	}
	out, err := d.dispatch(live, true)
	require.NoError(t, err)
	require.Empty(t, out, "a dispatch result while buffering carries no output")
	require.Equal(t, 0, rst.Len(), "the live update must not reach the sink's state while replay is in flight")
	require.Len(t, d.replaying.buf, 1)

	require.NoError(t, d.replayDone(sinkAddr))

	require.Nil(t, d.replaying, "the cursor must be cleared once replay completes")
	require.Equal(t, 1, rst.Len(), "the buffered update must be drained into the sink once replay completes")
}

func TestReplayThroughSingleNodeAppliesPartialBatches(t *testing.T) {
	d := newTestDomain(t)
	n0 := d.insertChainNode(0, flow.KindIngress)
	st := flow.NewState()
	st.SetPkey(0)
	d.states.Insert(0, st)
	d.markNotReady(0)

	rx := make(chan flow.ReplayBatch, 2)
	rx <- flow.ReplayBatch{Partial: &flow.Message{
		To:   n0.Addr,
		Data: flow.Records{{Kind: flow.Positive, Row: flow.Row{"a", 1}}},
	}}
	close(rx)

	ack := make(chan struct{}, 1)
	require.NoError(t, d.handleReplayThrough(ReplayThroughCmd{Nodes: []flow.LocalNodeIndex{0}, Rx: rx, Ack: ack}))

	select {
	case <-ack:
	default:
		t.Fatal("ack did not fire")
	}
	require.Equal(t, 1, st.Len())
	require.True(t, d.isReady(0), "replayDone must clear readiness once batches are exhausted")
}

func TestReplayThroughSingleNodeFastPathInstallsFullSnapshot(t *testing.T) {
	d := newTestDomain(t)
	n0 := d.insertChainNode(0, flow.KindIngress)
	pre := flow.NewState()
	pre.SetPkey(0)
	d.states.Insert(0, pre)

	snapshot := flow.NewState()
	snapshot.SetPkey(0)
	snapshot.Insert(flow.Row{"a", 1})

	rx := make(chan flow.ReplayBatch, 1)
	rx <- flow.ReplayBatch{Full: &flow.FullBatch{From: n0.Addr, State: snapshot}}
	close(rx)

	ack := make(chan struct{}, 1)
	require.NoError(t, d.handleReplayThrough(ReplayThroughCmd{Nodes: []flow.LocalNodeIndex{0}, Rx: rx, Ack: ack}))

	got, ok := d.states.Get(0)
	require.True(t, ok)
	require.Equal(t, 1, got.Len())
}
