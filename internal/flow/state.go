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

import (
	"fmt"

	"github.com/cockroachdb/viewflow/internal/util/rowsort"
)

// State is the materialized, key-indexed row set owned by a single
// node. Rows sharing a primary-key value are grouped together, since a
// key is not required to be unique (e.g. a non-deduplicating view).
type State struct {
	pkey int
	base bool
	rows map[string][]Row
}

// NewState returns an empty, non-base State with no primary key column
// configured. Callers must call SetPkey before Insert/Remove.
func NewState() *State {
	return &State{pkey: -1, rows: map[string][]Row{}}
}

// NewBaseState returns an empty State flagged as backing a base table.
// The base flavor exists only to record provenance; it has no
// behavioral difference from a plain State beyond IsBase.
func NewBaseState() *State {
	s := NewState()
	s.base = true
	return s
}

// IsBase reports whether this State backs a base table.
func (s *State) IsBase() bool { return s.base }

// SetPkey configures the column used to compute a row's key.
func (s *State) SetPkey(col int) { s.pkey = col }

// GetPkey returns the configured primary-key column, or -1 if none has
// been set.
func (s *State) GetPkey() int { return s.pkey }

func (s *State) key(row Row) string {
	if s.pkey < 0 || s.pkey >= len(row) {
		panic(fmt.Sprintf("state: primary key column %d out of range for row of length %d", s.pkey, len(row)))
	}
	return fmt.Sprint(row[s.pkey])
}

// Insert adds row to the state under its primary-key value.
func (s *State) Insert(row Row) {
	k := s.key(row)
	s.rows[k] = append(s.rows[k], row)
}

// Remove deletes the first row equal to row from the state. It is a
// no-op if no matching row is present.
func (s *State) Remove(row Row) {
	k := s.key(row)
	bucket := s.rows[k]
	for i, candidate := range bucket {
		if candidate.Equal(row) {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(s.rows, k)
	} else {
		s.rows[k] = bucket
	}
}

// Get returns the rows stored under key, and whether any were found.
func (s *State) Get(key string) ([]Row, bool) {
	rows, ok := s.rows[key]
	return rows, ok
}

// Len returns the number of distinct keys held by the state.
func (s *State) Len() int { return len(s.rows) }

// Clone returns a point-in-time copy of s. The key->rows map is
// duplicated so future Insert/Remove calls on either copy are
// independent, but the Row slice headers (and therefore the row
// payloads) are shared, which is what makes cloning cheap relative to
// the number of rows held.
func (s *State) Clone() *State {
	out := &State{pkey: s.pkey, base: s.base, rows: make(map[string][]Row, len(s.rows))}
	for k, rows := range s.rows {
		cp := make([]Row, len(rows))
		copy(cp, rows)
		out.rows[k] = cp
	}
	return out
}

// Entry pairs a primary-key value with the rows stored under it.
type Entry struct {
	Key  string
	Rows []Row
}

// Entries returns the state's contents as a deterministically ordered
// sequence, suitable for chunking during replay. See rowsort.Keys for
// why the ordering must be imposed explicitly.
func (s *State) Entries() []Entry {
	keys := rowsort.Keys(s.rows)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k, Rows: s.rows[k]}
	}
	return out
}

// AllRows flattens Entries into a single ordered slice of rows, which
// is what replay chunks over.
func (s *State) AllRows() []Row {
	var out []Row
	for _, e := range s.Entries() {
		out = append(out, e.Rows...)
	}
	return out
}

// StateMap is the per-node materialized state owned by a Domain.
type StateMap struct {
	byNode map[LocalNodeIndex]*State
}

// NewStateMap returns an empty StateMap.
func NewStateMap() *StateMap {
	return &StateMap{byNode: map[LocalNodeIndex]*State{}}
}

// Get returns the State for ni, and whether the node is materialized.
func (m *StateMap) Get(ni LocalNodeIndex) (*State, bool) {
	s, ok := m.byNode[ni]
	return s, ok
}

// Insert installs (or replaces) the State for ni.
func (m *StateMap) Insert(ni LocalNodeIndex, s *State) {
	m.byNode[ni] = s
}

// Remove drops any State held for ni.
func (m *StateMap) Remove(ni LocalNodeIndex) {
	delete(m.byNode, ni)
}
