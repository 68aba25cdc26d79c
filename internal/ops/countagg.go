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

package ops

import (
	"fmt"

	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/pkg/errors"
)

// CountAgg is a grouped count aggregation: it maintains, in its own
// materialized state, one row per distinct value of GroupCol holding
// the running count of input rows sharing that value. Each Process
// call turns an incoming batch of Positive/Negative input rows into
// the Positive/Negative delta needed to move the count from its old
// value to its new one, the same incremental-view-maintenance shape
// every stateful operator in this family follows.
type CountAgg struct {
	Self     flow.LocalNodeIndex
	GroupCol int
}

var _ flow.Processor = CountAgg{}

// Process implements flow.Processor.
func (c CountAgg) Process(
	msg *flow.Message, states *flow.StateMap, _ *flow.NodeTable, _ bool,
) (*flow.ProcessResult, error) {
	state, ok := states.Get(c.Self)
	if !ok {
		return nil, errors.Errorf("countagg: node %d has no materialized state", c.Self)
	}

	deltas := map[string]int{}
	for _, rec := range msg.Data {
		if c.GroupCol >= len(rec.Row) {
			return nil, errors.Errorf("countagg: group column %d out of range", c.GroupCol)
		}
		key := fmt.Sprint(rec.Row[c.GroupCol])
		if rec.IsPositive() {
			deltas[key]++
		} else {
			deltas[key]--
		}
	}

	if len(deltas) == 0 {
		if msg.Ts == nil {
			return nil, nil
		}
		return &flow.ProcessResult{Ts: msg.Ts}, nil
	}

	var out flow.Records
	for key, delta := range deltas {
		if delta == 0 {
			continue
		}
		var oldCount int
		if rows, ok := state.Get(key); ok && len(rows) > 0 {
			oldCount = rows[0][1].(int)
			out = append(out, flow.Record{Kind: flow.Negative, Row: rows[0]})
			state.Remove(rows[0])
		}
		newCount := oldCount + delta
		newRow := flow.Row{key, newCount}
		state.Insert(newRow)
		out = append(out, flow.Record{Kind: flow.Positive, Row: newRow})
	}

	return &flow.ProcessResult{Data: out, Ts: msg.Ts, Token: msg.Token}, nil
}
