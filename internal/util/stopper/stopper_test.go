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

package stopper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/viewflow/internal/util/stopper"
	"github.com/stretchr/testify/require"
)

func TestStopCancelsContextAndWaitsForGoroutines(t *testing.T) {
	ctx := stopper.WithContext(context.Background())
	done := make(chan struct{})
	ctx.Go(func() error {
		<-ctx.Done()
		close(done)
		return nil
	})

	require.True(t, ctx.Stop(time.Second))
	select {
	case <-done:
	default:
		t.Fatal("tracked goroutine was not observed to finish before Stop returned")
	}
}

func TestGoErrorTriggersStopping(t *testing.T) {
	ctx := stopper.WithContext(context.Background())
	boom := errors.New("boom")
	ctx.Go(func() error { return boom })

	select {
	case <-ctx.Stopping():
	case <-time.After(time.Second):
		t.Fatal("Stopping channel did not close after a tracked goroutine errored")
	}
}

func TestStoppedClosesOnceGoroutinesFinish(t *testing.T) {
	ctx := stopper.WithContext(context.Background())
	release := make(chan struct{})
	ctx.Go(func() error {
		<-release
		return nil
	})

	select {
	case <-ctx.Stopped():
		t.Fatal("Stopped fired before the goroutine released")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-ctx.Stopped():
	case <-time.After(time.Second):
		t.Fatal("Stopped did not fire after the goroutine finished")
	}
}
