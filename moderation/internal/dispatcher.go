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

package internal

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/moderation/rules"
)

// Dispatcher runs the rules subscribed to an event's kind, in order.
type Dispatcher struct {
	Rules *rules.RuleSet
}

// Dispatch evaluates rctx.Event and returns the combined decision along
// with the event to deliver. The first block wins. Rewrites accumulate:
// rules which run after a rewrite see the rewritten event. A rule which
// returns an error or panics is treated as allowing the event.
func (d *Dispatcher) Dispatch(ctx context.Context, rctx *roomctx.Context) (api.Decision, *api.Event) {
	kind := rctx.Event.Kind()
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dispatch")
	span.SetTag("kind", string(kind))
	defer span.Finish()

	start := time.Now()
	decision := api.Allow()
	defer func() {
		decisionDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
		decisionsTotal.WithLabelValues(string(kind), string(decision.Verdict)).Inc()
	}()

	for _, rule := range d.Rules.For(kind) {
		result, err := d.evaluate(ctx, rule, rctx)
		if err != nil {
			d.reportFault(ctx, rctx, rule, err)
			continue
		}
		switch result.Verdict {
		case api.VerdictBlock:
			ruleVerdictsTotal.WithLabelValues(rule.Name(), string(result.Verdict)).Inc()
			result.Rule = rule.Name()
			decision = result
			rctx.Logger.WithFields(logrus.Fields{
				"rule":   rule.Name(),
				"reason": result.Reason,
			}).Info("Event blocked")
			return decision, nil
		case api.VerdictRewrite:
			rewritten, err := rctx.Event.WithContent(result.NewContent)
			if err != nil {
				d.reportFault(ctx, rctx, rule, fmt.Errorf("rule %s produced invalid content: %w", rule.Name(), err))
				continue
			}
			ruleVerdictsTotal.WithLabelValues(rule.Name(), string(result.Verdict)).Inc()
			rctx.SetEvent(rewritten)
			decision = api.Rewrite(result.NewContent)
			decision.Rule = rule.Name()
		}
	}
	return decision, rctx.Event
}

var errRulePanicked = errors.New("rule panicked")

func (d *Dispatcher) evaluate(ctx context.Context, rule rules.Rule, rctx *roomctx.Context) (decision api.Decision, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, rule.Name())
	defer span.Finish()
	defer func() {
		if r := recover(); r != nil {
			rctx.Logger.WithField("rule", rule.Name()).Errorf("Rule panicked: %v\n%s", r, debug.Stack())
			decision, err = api.Allow(), fmt.Errorf("%w: %s: %v", errRulePanicked, rule.Name(), r)
		}
	}()
	return rule.Evaluate(ctx, rctx)
}

func (d *Dispatcher) reportFault(ctx context.Context, rctx *roomctx.Context, rule rules.Rule, err error) {
	fault := "error"
	if errors.Is(err, errRulePanicked) {
		fault = "panic"
	}
	ruleFaultsTotal.WithLabelValues(rule.Name(), fault).Inc()
	rctx.Logger.WithError(err).WithFields(logrus.Fields{
		"rule":  rule.Name(),
		"fault": fault,
	}).Warn("Rule could not reach a decision, allowing event")

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub = hub.Clone()
	hub.Scope().SetTag("rule", rule.Name())
	hub.Scope().SetTag("kind", string(rctx.Event.Kind()))
	hub.CaptureException(err)
}
