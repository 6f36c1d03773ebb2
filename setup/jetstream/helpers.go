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

package jetstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// fetchErrorBackoff is how long a consumer waits after a failed fetch.
const fetchErrorBackoff = time.Second

var consumerFaults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "moderation",
		Subsystem: "jetstream",
		Name:      "consumer_faults_total",
		Help:      "Failed fetches and acknowledgements, by durable consumer and operation",
	},
	[]string{"durable", "op"},
)

// JetStreamConsumer starts a durable pull consumer on subj. f is called
// with between one and batch messages. If f returns true the batch is
// acknowledged, otherwise it is negatively acknowledged and redelivered.
// Any provided NATS options are passed through to the pull subscription.
// The consumer runs until ctx is done.
func JetStreamConsumer(
	ctx context.Context, js nats.JetStreamContext, subj, durable string, batch int,
	f func(ctx context.Context, msgs []*nats.Msg) bool,
	opts ...nats.SubOpt,
) error {
	// With batches, acknowledging the newest message covers the rest.
	if batch > 1 {
		opts = append(opts, nats.AckAll())
	}

	sub, err := js.PullSubscribe(subj, durable+"Pull", opts...)
	if err != nil {
		sentry.CaptureException(err)
		return fmt.Errorf("nats.PullSubscribe: %w", err)
	}
	c := &pullConsumer{
		sub:     sub,
		durable: durable,
		batch:   batch,
		f:       f,
		log: logrus.WithFields(logrus.Fields{
			"subject": subj,
			"durable": durable,
		}),
	}
	go c.run(ctx)
	return nil
}

type pullConsumer struct {
	sub     *nats.Subscription
	durable string
	batch   int
	f       func(ctx context.Context, msgs []*nats.Msg) bool
	log     *logrus.Entry
}

func (c *pullConsumer) run(ctx context.Context) {
	defer func() {
		if err := c.sub.Unsubscribe(); err != nil {
			c.log.WithError(err).Warn("Failed to unsubscribe")
		}
	}()
	for ctx.Err() == nil {
		msgs, err := c.sub.Fetch(c.batch, nats.Context(ctx))
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
			// Either ctx is done, which ends the loop, or the fetch
			// deadline passed with nothing to deliver.
			continue
		default:
			// e.g. the connection was closed. Back off and let the next
			// fetch try again.
			c.fault("fetch", err)
			select {
			case <-ctx.Done():
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		c.deliver(ctx, msgs)
	}
}

func (c *pullConsumer) deliver(ctx context.Context, msgs []*nats.Msg) {
	msg := msgs[len(msgs)-1] // most recent message, in case of AckAll
	if err := msg.InProgress(nats.Context(ctx)); err != nil {
		c.fault("in_progress", err)
		return
	}
	if c.f(ctx, msgs) {
		if err := msg.AckSync(nats.Context(ctx)); err != nil {
			c.fault("ack", err)
		}
		return
	}
	if err := msg.Nak(nats.Context(ctx)); err != nil {
		c.fault("nak", err)
	}
}

func (c *pullConsumer) fault(op string, err error) {
	consumerFaults.WithLabelValues(c.durable, op).Inc()
	c.log.WithError(err).WithField("op", op).Warn("JetStream consumer fault")
	sentry.CaptureException(fmt.Errorf("jetstream %s on %s: %w", op, c.durable, err))
}
