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

package domaind

import (
	"github.com/cockroachdb/viewflow/internal/chaos"
	"github.com/cockroachdb/viewflow/internal/checktable"
	"github.com/cockroachdb/viewflow/internal/domain"
	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/google/wire"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideDomain,
	ProvideDomainIndex,
)

// ProvideDomainIndex extracts this worker's domain identity from its
// preflighted Config.
func ProvideDomainIndex(config *Config) (flow.Index, error) {
	if err := config.Preflight(); err != nil {
		return 0, err
	}
	return flow.Index(config.DomainIndex), nil
}

// ProvideDomain assembles a *domain.Domain, wrapping check in the
// chaos-injection decorator when Config requests it.
func ProvideDomain(
	index flow.Index, config *Config, check checktable.CheckTable,
) *domain.Domain {
	check = chaos.WithCheckTable(check, config.ChaosProbability)
	return domain.New(index, check, nil)
}
