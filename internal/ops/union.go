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

import "github.com/cockroachdb/viewflow/internal/flow"

// Union merges records from any number of parents without
// deduplication, passing each incoming batch straight through. It
// exists to exercise the diamond-graph case dispatch's enable_output
// merging is designed to handle: several parents feeding one Union
// whose own children include a Reader.
type Union struct{}

var _ flow.Processor = Union{}

// Process implements flow.Processor.
func (Union) Process(
	msg *flow.Message, _ *flow.StateMap, _ *flow.NodeTable, _ bool,
) (*flow.ProcessResult, error) {
	if len(msg.Data) == 0 && msg.Ts == nil {
		return nil, nil
	}
	return &flow.ProcessResult{Data: msg.Data, Ts: msg.Ts, Token: msg.Token}, nil
}
