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

package chaos_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/viewflow/internal/channel"
	"github.com/cockroachdb/viewflow/internal/chaos"
	"github.com/cockroachdb/viewflow/internal/checktable/faketable"
	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/stretchr/testify/require"
)

func TestWithCheckTableZeroProbabilityNeverAborts(t *testing.T) {
	wrapped := chaos.WithCheckTable(faketable.New(), 0)
	for i := 0; i < 50; i++ {
		result := wrapped.ClaimTimestamp(context.Background(), flow.Token{ID: uint64(i)}, 0, nil)
		require.True(t, result.Committed)
	}
}

func TestWithCheckTableFullProbabilityAlwaysAborts(t *testing.T) {
	wrapped := chaos.WithCheckTable(faketable.New(), 1)
	result := wrapped.ClaimTimestamp(context.Background(), flow.Token{ID: 1}, 0, nil)
	require.False(t, result.Committed)
}

type alwaysOKSender struct{ calls int }

func (s *alwaysOKSender) Send(channel.Packet) error {
	s.calls++
	return nil
}

func TestWithSenderZeroProbabilityAlwaysDelegates(t *testing.T) {
	delegate := &alwaysOKSender{}
	wrapped := chaos.WithSender(delegate, 0)
	require.NoError(t, wrapped.Send(channel.NewMessagePacket(&flow.Message{})))
	require.Equal(t, 1, delegate.calls)
}

func TestWithSenderFullProbabilityAlwaysFails(t *testing.T) {
	delegate := &alwaysOKSender{}
	wrapped := chaos.WithSender(delegate, 1)
	err := wrapped.Send(channel.NewMessagePacket(&flow.Message{}))
	require.ErrorIs(t, err, chaos.ErrChaos)
	require.Equal(t, 0, delegate.calls)
}
