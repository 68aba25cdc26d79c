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
	"github.com/cockroachdb/viewflow/internal/flow"
	sharedmetrics "github.com/cockroachdb/viewflow/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsAppliedVec = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_transactions_applied_total",
		Help: "the number of transactional_dispatch calls executed, by domain",
	}, []string{"domain"})

	timestampVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "domain_timestamp",
		Help: "the last timestamp a domain has applied",
	}, []string{"domain"})

	controlLatencyVec = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "domain_control_command_latency_seconds",
		Help:    "time to execute a single control command, by command and domain",
		Buckets: sharedmetrics.LatencyBuckets,
	}, append([]string{"domain"}, sharedmetrics.CommandLabels...))

	replayRowsVec = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_replay_rows_total",
		Help: "the number of rows streamed through a replay path, by domain",
	}, []string{"domain"})

	nodeMessagesVec = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_node_messages_total",
		Help: "the number of messages dispatch has delivered to a node, by domain and node",
	}, sharedmetrics.NodeLabels)
)

// metrics bundles the per-domain label-bound instruments a Domain
// updates as it runs, so call sites don't thread an Index through
// every Inc/Set/Observe.
type metrics struct {
	transactionsApplied prometheus.Counter
	timestamp           prometheus.Gauge
	controlLatency      prometheus.ObserverVec
	replayRows          prometheus.Counter
	nodeMessages        *prometheus.CounterVec
}

func newMetrics(index flow.Index) *metrics {
	label := index.String()
	return &metrics{
		transactionsApplied: transactionsAppliedVec.WithLabelValues(label),
		timestamp:           timestampVec.WithLabelValues(label),
		controlLatency:      controlLatencyVec.MustCurryWith(prometheus.Labels{"domain": label}),
		replayRows:          replayRowsVec.WithLabelValues(label),
		nodeMessages:        nodeMessagesVec.MustCurryWith(prometheus.Labels{"domain": label}),
	}
}
