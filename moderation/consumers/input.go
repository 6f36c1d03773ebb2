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

package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
	"github.com/FapBot-tech/MatrixSetup/setup/jetstream"
	"github.com/FapBot-tech/MatrixSetup/setup/process"
)

var consumedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "moderation",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Moderation requests received over NATS, by source and outcome",
	},
	[]string{"source", "outcome"},
)

// InputModerationConsumer consumes moderation requests from JetStream and
// publishes a decision for each of them. It also answers core NATS
// requests for hosts which need the decision inline.
type InputModerationConsumer struct {
	ctx          context.Context
	jetstream    nats.JetStreamContext
	nats         *nats.Conn
	durable      string
	inputTopic   string
	outputTopic  string
	requestTopic string
	modAPI       api.ModerationInternalAPI
}

// NewInputModerationConsumer creates a new InputModerationConsumer.
// Call Start() to begin consuming.
func NewInputModerationConsumer(
	process *process.ProcessContext,
	cfg *config.JetStream,
	js nats.JetStreamContext,
	nc *nats.Conn,
	modAPI api.ModerationInternalAPI,
) *InputModerationConsumer {
	return &InputModerationConsumer{
		ctx:          process.Context(),
		jetstream:    js,
		nats:         nc,
		durable:      cfg.Durable("ModerationEngineInputConsumer"),
		inputTopic:   cfg.Prefixed(jetstream.InputModerationEvent),
		outputTopic:  cfg.Prefixed(jetstream.OutputModerationDecision),
		requestTopic: cfg.Prefixed(jetstream.RequestModerationDecision),
		modAPI:       modAPI,
	}
}

// Start consuming moderation requests.
func (s *InputModerationConsumer) Start() error {
	// Normal NATS subscription, used by Request/Reply. The queue group
	// spreads requests over every running engine.
	sub, err := s.nats.QueueSubscribe(s.requestTopic, s.durable, s.onRequest)
	if err != nil {
		return fmt.Errorf("nats.QueueSubscribe: %w", err)
	}
	go func() {
		<-s.ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return jetstream.JetStreamConsumer(
		s.ctx, s.jetstream, s.inputTopic, s.durable, 1, s.onMessage,
		nats.DeliverAll(), nats.ManualAck(),
	)
}

func (s *InputModerationConsumer) onMessage(ctx context.Context, msgs []*nats.Msg) bool {
	msg := msgs[0] // Guaranteed to exist if onMessage is called
	log := logrus.WithFields(logrus.Fields{
		"room_id":  msg.Header.Get(jetstream.RoomID),
		"event_id": msg.Header.Get(jetstream.EventID),
	})

	ev, res, err := s.decide(ctx, msg.Data)
	if err != nil {
		// Retrying won't make a malformed request valid, so drop it.
		log.WithError(err).Error("Failed to decide moderation request")
		sentry.CaptureException(err)
		consumedTotal.WithLabelValues("jetstream", "invalid").Inc()
		return true
	}

	out, err := decisionMsg(s.outputTopic, ev, res)
	if err != nil {
		log.WithError(err).Error("Failed to encode moderation decision")
		sentry.CaptureException(err)
		consumedTotal.WithLabelValues("jetstream", "invalid").Inc()
		return true
	}
	if _, err = s.jetstream.PublishMsg(out, nats.Context(ctx)); err != nil {
		// Nak so that the request is redelivered and decided again.
		log.WithError(err).Warn("Failed to publish moderation decision")
		consumedTotal.WithLabelValues("jetstream", "retry").Inc()
		return false
	}
	consumedTotal.WithLabelValues("jetstream", string(res.Decision.Verdict)).Inc()
	return true
}

func (s *InputModerationConsumer) onRequest(msg *nats.Msg) {
	ev, res, err := s.decide(s.ctx, msg.Data)
	if err != nil {
		consumedTotal.WithLabelValues("request", "invalid").Inc()
		m := nats.NewMsg(msg.Reply)
		m.Header.Set(jetstream.Error, err.Error())
		if err = msg.RespondMsg(m); err != nil {
			logrus.WithError(err).Warn("Failed to respond to moderation request")
		}
		return
	}
	out, err := decisionMsg(msg.Reply, ev, res)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode moderation decision")
		return
	}
	if err = msg.RespondMsg(out); err != nil {
		logrus.WithError(err).Warn("Failed to respond to moderation request")
		return
	}
	consumedTotal.WithLabelValues("request", string(res.Decision.Verdict)).Inc()
}

// decide returns the event the request was about along with the decision.
func (s *InputModerationConsumer) decide(ctx context.Context, data []byte) (*api.Event, *api.DecideResponse, error) {
	var req api.DecideRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, nil, fmt.Errorf("json.Unmarshal: %w", err)
	}
	var res api.DecideResponse
	if err := s.modAPI.Decide(ctx, &req, &res); err != nil {
		return nil, nil, err
	}
	return req.Event, &res, nil
}

func decisionMsg(subject string, ev *api.Event, res *api.DecideResponse) (*nats.Msg, error) {
	msg := nats.NewMsg(subject)
	msg.Header.Set(jetstream.DecisionID, res.DecisionID)
	msg.Header.Set(jetstream.Verdict, string(res.Decision.Verdict))
	msg.Header.Set(jetstream.RoomID, ev.RoomID)
	msg.Header.Set(jetstream.EventID, ev.EventID)
	msg.Header.Set(jetstream.Sender, ev.Sender)
	msg.Header.Set(jetstream.EventKind, string(ev.Kind()))
	var err error
	msg.Data, err = json.Marshal(res)
	return msg, err
}
