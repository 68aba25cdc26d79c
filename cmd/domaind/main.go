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

// Command domaind boots a single Domain worker: it parses flags,
// assembles the Domain via the domaind wiring, exposes Prometheus
// metrics, and runs the control loop until the process is signaled to
// stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/viewflow/internal/checktable/faketable"
	"github.com/cockroachdb/viewflow/internal/domaind"
	"github.com/cockroachdb/viewflow/internal/flow"
	"github.com/cockroachdb/viewflow/internal/util/stopper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// drainTimeout bounds how long Stop waits for the metrics server
// goroutine to exit once shutdown begins.
const drainTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("domaind exiting")
	}
}

func run() error {
	cfg := &domaind.Config{}
	cfg.Bind(pflag.CommandLine)

	metricsAddr := pflag.String("metricsAddr", ":9090", "the address to serve Prometheus metrics on")
	logLevel := pflag.String("logLevel", "info", "the logrus level to log at")
	pflag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if err := cfg.Preflight(); err != nil {
		return err
	}

	// The real checktable is an external collaborator this repository
	// does not implement (see internal/checktable). faketable is a
	// workable in-process stand-in until a real one is wired in.
	check := faketable.New()

	dom, err := domaind.NewDomain(cfg, check)
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx := stopper.WithContext(signalCtx)

	live := make(chan *flow.Message, cfg.LiveCapacity)
	timestamps := make(chan int64, cfg.TimestampCapacity)
	control := dom.Boot(ctx, live, timestamps)
	defer close(control)

	srv := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}
	ctx.Go(func() error {
		log.WithField("addr", *metricsAddr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	log.WithField("domain", dom.Index()).Info("domain worker running")
	select {
	case <-signalCtx.Done():
	case <-ctx.Stopping():
	}
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server did not shut down cleanly")
	}

	if !ctx.Stop(drainTimeout) {
		log.Warn("background goroutines did not drain within the timeout")
	}
	return nil
}
