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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "moderation",
		Name:      "decisions_total",
		Help:      "Number of moderation decisions by event kind and verdict",
	},
	[]string{"kind", "verdict"},
)

var ruleVerdictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "moderation",
		Name:      "rule_verdicts_total",
		Help:      "Number of non-allow verdicts returned by each rule",
	},
	[]string{"rule", "verdict"},
)

// ruleFaultsTotal counts rules which returned an error ("error") or
// panicked ("panic"). Both are treated as allow.
var ruleFaultsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "moderation",
		Name:      "rule_faults_total",
		Help:      "Number of rule evaluations which faulted",
	},
	[]string{"rule", "fault"},
)

var decisionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "moderation",
		Name:      "decision_duration_seconds",
		Help:      "How long it takes to reach a moderation decision",
		Buckets: []float64{
			.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
		},
	},
	[]string{"kind"},
)
