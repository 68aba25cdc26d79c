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
	"fmt"

	"github.com/pkg/errors"
)

// StateViolation reports a detected breach of a Domain invariant: a
// duplicate transaction-buffer key, an unknown node or parent
// referenced by a control command, a primary-key mismatch on the
// fast-path full replay, or a replay requested from a node with no
// materialized state. Every StateViolation is fatal: the worker that
// observes one aborts rather than continuing with state it can no
// longer reason about.
type StateViolation struct {
	msg string
}

func (e *StateViolation) Error() string { return "domain: state violation: " + e.msg }

// NewStateViolation builds a StateViolation with a formatted message,
// preserving a stack trace the way every other error in this package
// does.
func NewStateViolation(format string, args ...any) error {
	return errors.WithStack(&StateViolation{msg: fmt.Sprintf(format, args...)})
}

// IsStateViolation reports whether err is, or wraps, a StateViolation.
func IsStateViolation(err error) bool {
	var sv *StateViolation
	return errors.As(err, &sv)
}
