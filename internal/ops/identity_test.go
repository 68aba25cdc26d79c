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

package ops_test

import (
	"testing"

	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/cockroachdb/viewflow/internal/ops"
	"github.com/stretchr/testify/require"
)

func TestIdentityForwardsDataUnchanged(t *testing.T) {
	msg := &flow.Message{Data: flow.Records{{Kind: flow.Positive, Row: flow.Row{1}}}}
	result, err := ops.Identity{}.Process(msg, nil, nil, true)
	require.NoError(t, err)
	require.Equal(t, msg.Data, result.Data)
}

func TestIdentityReturnsNilForEmptyUntimestampedMessage(t *testing.T) {
	result, err := ops.Identity{}.Process(&flow.Message{}, nil, nil, true)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestIdentityPropagatesTimestampWithNoData(t *testing.T) {
	ts := &flow.TimestampMark{Ts: 9, Base: 0}
	result, err := ops.Identity{}.Process(&flow.Message{Ts: ts}, nil, nil, true)
	require.NoError(t, err)
	require.Equal(t, ts, result.Ts)
}

func TestUnionMergesWithoutDeduplication(t *testing.T) {
	msg := &flow.Message{Data: flow.Records{
		{Kind: flow.Positive, Row: flow.Row{"a"}},
		{Kind: flow.Positive, Row: flow.Row{"a"}},
	}}
	result, err := ops.Union{}.Process(msg, nil, nil, true)
	require.NoError(t, err)
	require.Len(t, result.Data, 2)
}
