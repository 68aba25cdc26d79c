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

package flow

// Row is a single materialized row: an ordered tuple of column values.
// Rows are logically immutable once inserted into a State; mutation is
// always by inserting or removing a whole Row, never by editing a
// column in place. This lets Clone share row payloads by reference.
type Row []any

// Equal reports whether two rows have identical column values.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// RecordKind distinguishes an insertion from a deletion.
type RecordKind int

const (
	// Positive records an inserted row.
	Positive RecordKind = iota
	// Negative records a deleted row.
	Negative
)

// Record is a single positive or negative row change.
type Record struct {
	Kind RecordKind
	Row  Row
}

// IsPositive reports whether the record is an insertion.
func (r Record) IsPositive() bool { return r.Kind == Positive }

// Records is an ordered sequence of record changes. Concatenation
// (append) of two Records is associative, which is what lets dispatch
// merge per-address batches from independent fan-out paths without
// reordering anything.
type Records []Record

// Concat appends other to r and returns the combined sequence. It may
// reuse r's backing array.
func (r Records) Concat(other Records) Records {
	if len(other) == 0 {
		return r
	}
	return append(r, other...)
}

// Clone returns a copy of r whose backing array is independent of r's,
// though the Row values themselves (slice headers) are shared. This is
// the "clone for all but the last child" operation dispatch performs
// when fanning a single ProcessResult out to multiple children.
func (r Records) Clone() Records {
	out := make(Records, len(r))
	copy(out, r)
	return out
}
