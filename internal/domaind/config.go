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

// Package domaind wires up and runs a single Domain worker process:
// configuration, dependency injection, and the metrics/logging
// surfaces around internal/domain.
package domaind

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config contains the user-visible configuration for running a single
// domain worker.
type Config struct {
	// DomainIndex is this domain's identity within the global dataflow
	// graph; it must be unique across the whole deployment.
	DomainIndex uint64

	// LiveCapacity and TimestampCapacity bound the live-message and
	// remote-timestamp-announcement input channels. The control
	// channel's capacity is not configurable: domain.ControlCommandCapacity
	// fixes it at 16 so control commands cannot be starved out by bursty
	// data traffic.
	LiveCapacity      int
	TimestampCapacity int

	// ChaosProbability makes the checktable abort roughly this fraction
	// of timestamp claims, for fault-injection testing; zero disables it
	// entirely.
	ChaosProbability float32
}

// Bind registers flags for Config.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.Uint64Var(
		&c.DomainIndex,
		"domainIndex",
		0,
		"the domain index this worker owns within the dataflow graph")
	flags.IntVar(
		&c.LiveCapacity,
		"liveCapacity",
		1024,
		"the buffer size of the live-message input channel")
	flags.IntVar(
		&c.TimestampCapacity,
		"timestampCapacity",
		256,
		"the buffer size of the remote-timestamp-announcement input channel")
	flags.Float32Var(
		&c.ChaosProbability,
		"chaosProbability",
		0,
		"inject synthetic failures at roughly this rate, for fault-injection testing")
}

// Preflight validates Config.
func (c *Config) Preflight() error {
	if c.LiveCapacity <= 0 {
		return errors.New("liveCapacity must be positive")
	}
	if c.TimestampCapacity <= 0 {
		return errors.New("timestampCapacity must be positive")
	}
	if c.ChaosProbability < 0 || c.ChaosProbability > 1 {
		return errors.New("chaosProbability must be between 0 and 1")
	}
	return nil
}
