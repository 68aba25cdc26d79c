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

	"github.com/cockroachdb/viewflow/internal/flow"
	log "github.com/sirupsen/logrus"
)

// ControlCommandCapacity is the buffer size the control channel must
// be created with. Undersizing it risks starving control commands
// under bursty live traffic; the spec fixes it at 16.
const ControlCommandCapacity = 16

// Boot starts the Domain's cooperative event loop on a new goroutine
// and returns control. The loop runs until ctx is cancelled or any one
// of the input channels (live, timestamps, control) is closed,
// whichever happens first. The caller must retain control and close it
// (or cancel ctx) to shut the domain down — Boot itself never closes
// any channel it was not given ownership of.
//
// There is no in-domain parallelism: the loop runs on that single
// goroutine for the lifetime of the Domain, matching the "one OS
// thread per domain" model described in §5. The goroutine this runs on
// should be named "domain<index>" in any place that surfaces goroutine
// identity (e.g. a panic handler or runtime/pprof label), matching the
// boot signature's documented thread name.
func (d *Domain) Boot(
	ctx context.Context, live <-chan *flow.Message, timestamps <-chan int64,
) (control chan Command) {
	control = make(chan Command, ControlCommandCapacity)
	go d.run(ctx, live, timestamps, control)
	return control
}

func (d *Domain) run(
	ctx context.Context, live <-chan *flow.Message, timestamps <-chan int64, control <-chan Command,
) {
	log.WithField("domain", d.index).Debug("domain worker starting")
	defer log.WithField("domain", d.index).Debug("domain worker exiting")

	for {
		select {
		case <-ctx.Done():
			return

		case cmd, ok := <-control:
			if !ok {
				return
			}
			if err := d.HandleControl(cmd); err != nil {
				d.abortOrLog(err, "control command")
				if IsStateViolation(err) {
					return
				}
			}

		case ts, ok := <-timestamps:
			if !ok {
				return
			}
			if err := d.bufferRemoteTransaction(ts); err != nil {
				d.abortOrLog(err, "remote timestamp")
				if IsStateViolation(err) {
					return
				}
			}

		case m, ok := <-live:
			if !ok {
				return
			}
			if err := d.handleLiveMessage(ctx, m); err != nil {
				d.abortOrLog(err, "live message")
				if IsStateViolation(err) {
					return
				}
			}
		}
	}
}

func (d *Domain) abortOrLog(err error, where string) {
	fields := log.Fields{"domain": d.index, "stage": where}
	if IsStateViolation(err) {
		log.WithFields(fields).WithError(err).Error("aborting domain worker")
		return
	}
	log.WithFields(fields).WithError(err).Warn("recoverable error while processing")
}

// handleLiveMessage is the entry point for the live-message input
// stream: a message carrying a Token is resolved against the
// checktable first (§4.8); otherwise, a message already carrying a
// timestamp is transactional and is buffered, and a plain streaming
// message is dispatched immediately with enableOutput=true.
func (d *Domain) handleLiveMessage(ctx context.Context, m *flow.Message) error {
	if m.Token != nil {
		return d.handleToken(ctx, m)
	}
	if m.Ts != nil {
		return d.bufferTransaction(m)
	}
	_, err := d.dispatch(m, true)
	return err
}

// handleToken resolves a live message's Token against the checktable.
// Committed rewrites the message's timestamp and buffers it
// transactionally; Aborted reports the verdict and drops the message.
// base_node is the global index of m.To's first child: the contract
// requires m.To to be an ingress of a base table, whose only child is
// that base node.
func (d *Domain) handleToken(ctx context.Context, m *flow.Message) error {
	toNode, ok := d.nodes.Get(m.To.Local)
	if !ok {
		return NewStateViolation("token: unknown node %s", m.To)
	}
	if len(toNode.Children) == 0 {
		return NewStateViolation("token: node %s has no base child to attribute the transaction to", m.To)
	}
	baseNode, ok := d.nodes.Get(toNode.Children[0].Local)
	if !ok {
		return NewStateViolation("token: unknown base child %s of %s", toNode.Children[0], m.To)
	}
	base := baseNode.Global

	result := d.check.ClaimTimestamp(ctx, *m.Token, base, m.Data)
	sendReply(m.Reply, result)

	if !result.Committed {
		return nil
	}

	committed := &flow.Message{
		From: m.From,
		To:   m.To,
		Data: m.Data,
		Ts:   &flow.TimestampMark{Ts: result.Ts, Base: base},
	}
	return d.bufferTransaction(committed)
}

// sendReply delivers result on reply if one was given, treating a
// nil or already-abandoned reply channel as "the caller no longer
// cares", per §5's cancellation contract.
func sendReply(reply flow.ReplyChannel, result flow.TransactionResult) {
	if reply == nil {
		return
	}
	defer func() { recover() }()
	reply <- result
}
