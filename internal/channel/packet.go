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

// Package channel implements the cross-domain packet transport: a
// PacketSender that uniformly represents local (same-process) and
// remote (RPC) delivery, bounded and unbounded, input and non-input.
// Domain compilation and the top-level coordinator decide which
// transport connects which pair of domains; this package only
// implements the send-side contract they rely on.
package channel

import "github.com/cockroachdb/viewflow/internal/flow"

// Kind distinguishes the payload a Packet carries.
type Kind int

const (
	// KindMessage carries an ordinary flow.Message.
	KindMessage Kind = iota
	// KindRequestUnboundedTx asks a remote sender to fabricate and
	// return an unbounded clone of itself.
	KindRequestUnboundedTx
)

// Packet is the unit sent over a PacketSender. PacketSender itself
// must never be serialized directly (see Sender's doc comment); a
// Packet is what actually crosses the wire, after a Remote sender has
// passed it through ForWire.
type Packet struct {
	Kind           Kind
	Message        *flow.Message
	UnboundedReply chan<- Sender // valid when Kind == KindRequestUnboundedTx
}

// NewMessagePacket wraps a Message for transport.
func NewMessagePacket(m *flow.Message) Packet {
	return Packet{Kind: KindMessage, Message: m}
}

// NewUnboundedTxRequest builds the distinguished packet that, when sent
// to a Remote sender, causes it to reply on ch with an unbounded clone
// of itself.
func NewUnboundedTxRequest(ch chan<- Sender) Packet {
	return Packet{Kind: KindRequestUnboundedTx, UnboundedReply: ch}
}

// DemuxTable maps a domain's wire-visible index to the address a
// remote souplet should dial or route to. It is shared (read-only,
// after construction) by every Remote sender that talks to a given
// peer process.
type DemuxTable struct {
	routes map[flow.Index]string
}

// NewDemuxTable builds a DemuxTable from a domain-index -> address map.
func NewDemuxTable(routes map[flow.Index]string) *DemuxTable {
	cp := make(map[flow.Index]string, len(routes))
	for k, v := range routes {
		cp[k] = v
	}
	return &DemuxTable{routes: cp}
}

// Route returns the address registered for domain, if any.
func (d *DemuxTable) Route(domain flow.Index) (string, bool) {
	if d == nil {
		return "", false
	}
	addr, ok := d.routes[domain]
	return addr, ok
}

// ForWire is the step a Remote sender applies to a Packet before
// handing it to its RemoteClient, the equivalent of the teacher
// lineage's make_serializable. It leaves the Packet unchanged:
// localAddr and demux are accepted but not used, and no field of the
// Message (Reply included) is rewritten.
func (p *Packet) ForWire(localAddr string, demux *DemuxTable) {
	if p.Message == nil {
		return
	}
	// The From/To NodeAddress values are already wire-safe (Index +
	// LocalNodeIndex are both plain integers); rewriting here is a
	// placeholder for transport-specific concerns such as stamping the
	// packet with the sender's own dial-back address so the remote end
	// can open an unbounded channel on request. Keeping the hook
	// distinct from Send itself mirrors the original split between
	// "prepare for the wire" and "actually send".
	_ = localAddr
	_ = demux
}
