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

package channel

import (
	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/pkg/errors"
)

// ErrClosed is returned by Send when the underlying transport has gone
// away (the receiving end was dropped). Callers must treat this as
// "already cancelled", matching spec.md §5's cancellation contract.
var ErrClosed = errors.New("channel: receiver is gone")

// ErrTransport is the opaque error a Remote sender reports for any RPC
// failure. The spec deliberately leaves the underlying transport
// failure undiagnosed at this layer ("reported as an opaque 'Unknown'
// error to the caller of send"); retry policy belongs to the caller.
var ErrTransport = errors.New("channel: transport failure")

// Sender is the uniform send-side contract every PacketSender variant
// implements. PacketSender values must never be serialized directly —
// attempting to do so is a program error, not a recoverable one, which
// is why there is deliberately no (Un)MarshalJSON on any variant below.
type Sender interface {
	Send(p Packet) error
}

// Local is a bounded, same-process sender backed by a Go channel.
// Sends block if the channel is full; that backpressure is the sole
// cross-domain flow-control mechanism (spec.md §5).
type Local struct {
	ch chan<- Packet
}

var _ Sender = Local{}

// NewLocal wraps ch as a Local sender.
func NewLocal(ch chan<- Packet) Local { return Local{ch: ch} }

// Send implements Sender.
func (s Local) Send(p Packet) (err error) {
	sendTotal.WithLabelValues("local").Inc()
	defer func() {
		if recover() != nil {
			err = ErrClosed
			sendErrors.WithLabelValues("local").Inc()
		}
	}()
	s.ch <- p
	return nil
}

// LocalUnbounded is a same-process sender that never blocks the
// caller, backed by an UnboundedQueue.
type LocalUnbounded struct {
	q *UnboundedQueue
}

var _ Sender = LocalUnbounded{}

// NewLocalUnbounded wraps q as a LocalUnbounded sender.
func NewLocalUnbounded(q *UnboundedQueue) LocalUnbounded { return LocalUnbounded{q: q} }

// Send implements Sender.
func (s LocalUnbounded) Send(p Packet) error {
	sendTotal.WithLabelValues("local_unbounded").Inc()
	if err := s.q.Send(p); err != nil {
		sendErrors.WithLabelValues("local_unbounded").Inc()
		return err
	}
	return nil
}

// RemoteClient is the RPC surface a Remote sender dials through. It is
// an external collaborator (spec.md places cross-domain transport
// layers out of scope); only the shape this package needs is declared
// here.
type RemoteClient interface {
	RecvPacket(domain flow.Index, p Packet) error
	RecvInputPacket(domain flow.Index, p Packet) error
	RecvUnboundedPacket(domain flow.Index, p Packet) error
}

// Remote is a sender that delivers to a peer process over RPC. The
// two boolean axes (bounded/unbounded, input/non-input) select
// which RemoteClient method carries the packet, matching the five
// transports §6 of spec.md names: local bounded, local unbounded,
// remote bounded, remote input, remote unbounded.
type Remote struct {
	Domain     flow.Index
	Client     RemoteClient
	ClientAddr string
	DemuxTable *DemuxTable
	LocalAddr  string
	Input      bool
	Bounded    bool
}

var _ Sender = Remote{}

// Send implements Sender.
func (s Remote) Send(p Packet) error {
	transport := s.label()
	sendTotal.WithLabelValues(transport).Inc()
	if err := s.send(p); err != nil {
		sendErrors.WithLabelValues(transport).Inc()
		return err
	}
	return nil
}

func (s Remote) label() string {
	switch {
	case !s.Bounded:
		return "remote_unbounded"
	case s.Input:
		return "remote_input"
	default:
		return "remote"
	}
}

func (s Remote) send(p Packet) error {
	if p.Kind == KindRequestUnboundedTx {
		unbounded := Remote{
			Domain:     s.Domain,
			Client:     s.Client,
			ClientAddr: s.ClientAddr,
			DemuxTable: s.DemuxTable,
			LocalAddr:  s.LocalAddr,
			Input:      false,
			Bounded:    false,
		}
		p.UnboundedReply <- unbounded
		return nil
	}

	p.ForWire(s.LocalAddr, s.DemuxTable)

	var err error
	switch {
	case !s.Bounded:
		err = s.Client.RecvUnboundedPacket(s.Domain, p)
	case s.Input:
		err = s.Client.RecvInputPacket(s.Domain, p)
	default:
		err = s.Client.RecvPacket(s.Domain, p)
	}
	if err != nil {
		return errors.WithMessage(ErrTransport, err.Error())
	}
	return nil
}
