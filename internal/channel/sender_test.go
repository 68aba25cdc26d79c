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

package channel_test

import (
	"testing"

	"github.com/cockroachdb/viewflow/internal/channel"
	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/stretchr/testify/require"
)

func TestLocalSendDeliversOnChannel(t *testing.T) {
	ch := make(chan channel.Packet, 1)
	s := channel.NewLocal(ch)

	p := channel.NewMessagePacket(&flow.Message{})
	require.NoError(t, s.Send(p))

	select {
	case got := <-ch:
		require.Equal(t, p.Message, got.Message)
	default:
		t.Fatal("packet was not delivered")
	}
}

func TestLocalSendOnClosedChannelReturnsErrClosed(t *testing.T) {
	ch := make(chan channel.Packet)
	close(ch)
	s := channel.NewLocal(ch)

	err := s.Send(channel.NewMessagePacket(&flow.Message{}))
	require.ErrorIs(t, err, channel.ErrClosed)
}

func TestLocalUnboundedSendNeverBlocks(t *testing.T) {
	q := channel.NewUnboundedQueue()
	s := channel.NewLocalUnbounded(q)

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Send(channel.NewMessagePacket(&flow.Message{})))
	}

	for i := 0; i < 100; i++ {
		_, ok := q.Recv()
		require.True(t, ok)
	}
}

type fakeRemoteClient struct {
	recvPacketCalls          int
	recvInputPacketCalls     int
	recvUnboundedPacketCalls int
	err                      error
}

func (f *fakeRemoteClient) RecvPacket(flow.Index, channel.Packet) error {
	f.recvPacketCalls++
	return f.err
}

func (f *fakeRemoteClient) RecvInputPacket(flow.Index, channel.Packet) error {
	f.recvInputPacketCalls++
	return f.err
}

func (f *fakeRemoteClient) RecvUnboundedPacket(flow.Index, channel.Packet) error {
	f.recvUnboundedPacketCalls++
	return f.err
}

func TestRemoteSendRoutesByBoundedAndInputAxes(t *testing.T) {
	client := &fakeRemoteClient{}
	s := channel.Remote{Domain: 1, Client: client, Bounded: true, Input: false}
	require.NoError(t, s.Send(channel.NewMessagePacket(&flow.Message{})))
	require.Equal(t, 1, client.recvPacketCalls)

	s.Input = true
	require.NoError(t, s.Send(channel.NewMessagePacket(&flow.Message{})))
	require.Equal(t, 1, client.recvInputPacketCalls)

	s.Bounded = false
	require.NoError(t, s.Send(channel.NewMessagePacket(&flow.Message{})))
	require.Equal(t, 1, client.recvUnboundedPacketCalls)
}

func TestRemoteSendWrapsTransportFailure(t *testing.T) {
	client := &fakeRemoteClient{err: require.AnError}
	s := channel.Remote{Domain: 1, Client: client, Bounded: true}

	err := s.Send(channel.NewMessagePacket(&flow.Message{}))
	require.ErrorIs(t, err, channel.ErrTransport)
}

func TestRemoteSendRequestUnboundedTxRepliesWithUnboundedSender(t *testing.T) {
	client := &fakeRemoteClient{}
	s := channel.Remote{Domain: 1, Client: client, Bounded: true, Input: true}

	reply := make(chan channel.Sender, 1)
	require.NoError(t, s.Send(channel.NewUnboundedTxRequest(reply)))

	select {
	case got := <-reply:
		remote, ok := got.(channel.Remote)
		require.True(t, ok)
		require.False(t, remote.Bounded)
		require.False(t, remote.Input)
	default:
		t.Fatal("no reply was sent")
	}
	require.Equal(t, 0, client.recvPacketCalls, "the request itself must not be forwarded to the RPC client")
}

func TestDemuxTableRouteIsCopyIsolated(t *testing.T) {
	routes := map[flow.Index]string{1: "host-a:1234"}
	table := channel.NewDemuxTable(routes)
	routes[1] = "mutated"

	addr, ok := table.Route(1)
	require.True(t, ok)
	require.Equal(t, "host-a:1234", addr)

	_, ok = table.Route(2)
	require.False(t, ok)
}

func TestDemuxTableRouteOnNilTableIsAbsent(t *testing.T) {
	var table *channel.DemuxTable
	_, ok := table.Route(1)
	require.False(t, ok)
}
