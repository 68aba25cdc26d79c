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

// Package chaos injects synthetic failures into a Domain's external
// collaborators, so tests can exercise the recoverable-error paths
// (§7 of the design this package implements) without needing a real
// failing checktable or transport.
package chaos

import (
	"context"
	"math/rand"

	"github.com/cockroachdb/viewflow/internal/channel"
	"github.com/cockroachdb/viewflow/internal/checktable"
	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/pkg/errors"
)

// ErrChaos is the error injected by every wrapper in this package.
var ErrChaos = errors.New("chaos")

// WithCheckTable returns a checktable.CheckTable that aborts roughly a
// prob fraction of claims instead of delegating to delegate. delegate is
// returned unwrapped if prob is less than or equal to zero.
func WithCheckTable(delegate checktable.CheckTable, prob float32) checktable.CheckTable {
	if prob <= 0 {
		return delegate
	}
	return &chaosCheckTable{delegate: delegate, prob: prob}
}

type chaosCheckTable struct {
	delegate checktable.CheckTable
	prob     float32
}

func (c *chaosCheckTable) ClaimTimestamp(
	ctx context.Context, token flow.Token, base flow.BaseIndex, data flow.Records,
) flow.TransactionResult {
	if rand.Float32() < c.prob {
		return flow.TransactionResult{Committed: false}
	}
	return c.delegate.ClaimTimestamp(ctx, token, base, data)
}

// WithSender returns a channel.Sender that fails roughly a prob
// fraction of sends with ErrChaos instead of delegating to delegate.
// delegate is returned unwrapped if prob is less than or equal to
// zero.
func WithSender(delegate channel.Sender, prob float32) channel.Sender {
	if prob <= 0 {
		return delegate
	}
	return &chaosSender{delegate: delegate, prob: prob}
}

type chaosSender struct {
	delegate channel.Sender
	prob     float32
}

func (c *chaosSender) Send(p channel.Packet) error {
	if rand.Float32() < c.prob {
		return doChaos("Send")
	}
	return c.delegate.Send(p)
}

// doChaos is a convenient place to set a breakpoint.
func doChaos(msg string) error {
	return errors.WithMessage(ErrChaos, msg)
}
