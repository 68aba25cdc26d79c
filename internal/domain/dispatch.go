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
	"strconv"

	"github.com/cockroachdb/viewflow/internal/flow"
)

// dispatch recursively propagates m through the local subgraph rooted
// at m.To, depth first. It returns a map from output-node address to
// the Records destined for that output, used by transactionalDispatch
// to collect one combined batch per output before feeding them
// (enableOutput=false); streaming dispatch (enableOutput=true) instead
// drives outputs directly as it recurses and this map is discarded by
// its caller.
//
// An iterative, explicit-work-queue version is equivalent and
// preferable if operator fan-out or depth ever risks stack overflow;
// the graphs this ships against are shallow enough that recursion is
// the simpler and more direct reading of the algorithm.
func (d *Domain) dispatch(m *flow.Message, enableOutput bool) (map[flow.NodeAddress]flow.Records, error) {
	out := map[flow.NodeAddress]flow.Records{}
	if err := d.dispatchInto(m, enableOutput, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Domain) dispatchInto(
	m *flow.Message, enableOutput bool, out map[flow.NodeAddress]flow.Records,
) error {
	// Step 1: a replay in flight buffers any streaming update aimed at
	// its target instead of letting it through.
	if d.replaying != nil && m.To == d.replaying.target {
		d.replaying.buf = append(d.replaying.buf, m)
		return nil
	}

	// Step 2: nodes awaiting migration or replay never see live
	// traffic; dropping here is safe because such a node is either not
	// yet wired to any consumer, or its state is mid-replacement.
	if !d.isReady(m.To.Local) {
		return nil
	}

	n, ok := d.nodes.Get(m.To.Local)
	if !ok {
		return NewStateViolation("dispatch: unknown node %s", m.To)
	}
	d.metrics.nodeMessages.WithLabelValues(strconv.FormatUint(uint64(m.To.Local), 10)).Inc()

	result, err := n.Process(m, d.states, d.nodes, true)
	if err != nil {
		return err
	}

	// Step 4: a transactional message must traverse the whole graph
	// even when it produces no rows, so a downstream TimestampEgress
	// can still acknowledge it.
	if result == nil && m.Ts != nil {
		result = &flow.ProcessResult{Ts: m.Ts}
	}

	// Step 5.
	if result == nil {
		return nil
	}

	children := n.Children
	for i, child := range children {
		data := result.Data
		if i != len(children)-1 {
			// Clone for all but the last child so each fan-out path
			// gets an independent Records slice to mutate/extend.
			data = data.Clone()
		}
		childMsg := &flow.Message{
			From:  m.To,
			To:    child,
			Data:  data,
			Ts:    result.Ts,
			Token: result.Token,
		}

		childNode, ok := d.nodes.Get(child.Local)
		if !ok {
			return NewStateViolation("dispatch: unknown child %s", child)
		}

		if childNode.IsOutput() && !enableOutput {
			out[child] = out[child].Concat(childMsg.Data)
			continue
		}

		if err := d.dispatchInto(childMsg, enableOutput, out); err != nil {
			return err
		}
	}
	return nil
}
