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

// Package ops provides reference operator implementations of
// flow.Processor. Real operator implementations are produced by query
// compilation and are out of this repository's scope (spec.md treats
// process as a black box); these exist so the Domain's own tests have
// something real to dispatch through.
package ops

import "github.com/cockroachdb/viewflow/internal/flow"

// Identity forwards its input unchanged. It is the simplest possible
// internal operator and is useful for exercising multi-hop dispatch
// and replay paths without any transformation logic in the way.
type Identity struct{}

var _ flow.Processor = Identity{}

// Process implements flow.Processor.
func (Identity) Process(
	msg *flow.Message, _ *flow.StateMap, _ *flow.NodeTable, _ bool,
) (*flow.ProcessResult, error) {
	if len(msg.Data) == 0 && msg.Ts == nil {
		return nil, nil
	}
	return &flow.ProcessResult{Data: msg.Data, Ts: msg.Ts, Token: msg.Token}, nil
}
