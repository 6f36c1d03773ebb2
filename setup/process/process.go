// Copyright 2024 The Matrix.org Foundation C.I.C.
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

package process

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

type ProcessContext struct {
	wg       *sync.WaitGroup    // used to wait for components to shutdown
	ctx      context.Context    // cancelled when Shutdown is called
	shutdown context.CancelFunc // shut down the engine
	degraded atomic.Error // first cause passed to Degraded
}

func NewProcessContext() *ProcessContext {
	ctx, shutdown := context.WithCancel(context.Background())
	return &ProcessContext{
		ctx:      ctx,
		shutdown: shutdown,
		wg:       &sync.WaitGroup{},
	}
}

func (b *ProcessContext) Context() context.Context {
	return context.WithValue(b.ctx, "scope", "process") // nolint:staticcheck
}

func (b *ProcessContext) ComponentStarted() {
	b.wg.Add(1)
}

func (b *ProcessContext) ComponentFinished() {
	b.wg.Done()
}

func (b *ProcessContext) Shutdown() {
	b.shutdown()
}

func (b *ProcessContext) WaitForShutdown() <-chan struct{} {
	return b.ctx.Done()
}

func (b *ProcessContext) WaitForComponentsToFinish() {
	b.wg.Wait()
}

// Degraded records that the engine lost a component it can run
// without. The JetStream input consumer failing to start and the embedded
// NATS server logging a fatal error both end up here. The internal API
// keeps answering moderation requests, but the health check reports 503
// from now on. Only the first cause is kept and reported.
func (b *ProcessContext) Degraded(err error) {
	if err == nil {
		err = errors.New("unspecified failure")
	}
	if b.degraded.CompareAndSwap(nil, err) {
		logrus.WithError(err).Warn("Moderation engine is running in a degraded state")
		sentry.CaptureException(fmt.Errorf("process is running in a degraded state: %w", err))
	}
}

func (b *ProcessContext) IsDegraded() bool {
	return b.degraded.Load() != nil
}

// DegradedReason returns the error that degraded the process, or nil.
func (b *ProcessContext) DegradedReason() error {
	return b.degraded.Load()
}
