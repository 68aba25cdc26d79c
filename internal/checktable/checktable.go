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

// Package checktable describes the external collaborator that assigns
// transaction timestamps. The checktable itself — shared across all
// domains, linearizable with respect to the timestamp sequence a
// domain expects — is out of this repository's scope; only the
// interface a Domain consumes is specified here, plus a fake
// implementation good enough to drive the Domain's own tests.
package checktable

import (
	"context"

	"github.com/cockroachdb/viewflow/internal/flow"
)

// CheckTable assigns a commit timestamp to a tokenized write, or
// reports that it must be aborted. Implementations must be safe for
// concurrent use across every domain sharing them, and must be
// linearizable with respect to the timestamp order domains expect:
// once ClaimTimestamp returns Committed(i), no prior call may later be
// resolved with a timestamp greater than i for the same base.
type CheckTable interface {
	ClaimTimestamp(ctx context.Context, token flow.Token, base flow.BaseIndex, data flow.Records) flow.TransactionResult
}
