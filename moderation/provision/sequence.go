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

// Package provision configures a room as a public group channel.
package provision

import (
	"context"
	"fmt"

	"github.com/matrix-org/gomatrixserverlib"
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/internal"
	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

const (
	StepPowerLevelTags    = "power_level_tags"
	StepJoinRules         = "join_rules"
	StepPublish           = "publish"
	StepHistoryVisibility = "history_visibility"
)

var stepsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "moderation",
		Subsystem: "provisioning",
		Name:      "steps_total",
		Help:      "Number of provisioning steps run, by step and outcome",
	},
	[]string{"step", "outcome"},
)

// StepResult is the outcome of one provisioning step. EventID is set for
// steps which send a state event.
type StepResult struct {
	Name    string
	EventID string
	Err     error
}

type Result struct {
	RoomID string
	Steps  []StepResult
}

// Failed returns the steps which did not succeed.
func (r *Result) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

type step struct {
	name    string
	success string
	failure string
	run     func(ctx context.Context, roomID string) (string, error)
}

// Sequence applies the channel configuration to a room. Steps run one
// after another; a failing step is reported in the room and does not
// stop the steps after it. Nothing is retried or rolled back.
type Sequence struct {
	mutations api.RoomMutationAPI
	roomLocks *internal.MutexByRoom
	tags      map[string]config.PowerLevelTag
	steps     []step
}

func NewSequence(cfg *config.Provisioning, mutations api.RoomMutationAPI) *Sequence {
	s := &Sequence{
		mutations: mutations,
		roomLocks: internal.NewMutexByRoom(),
		tags:      cfg.Tags,
	}
	if len(s.tags) == 0 {
		s.tags = config.DefaultPowerLevelTags()
	}
	s.steps = []step{
		{
			name:    StepPowerLevelTags,
			success: "Cinny power level tags have been set for this channel.",
			failure: "Failed to set Cinny power level tags: %s",
			run: func(ctx context.Context, roomID string) (string, error) {
				return s.mutations.SubmitStateChange(ctx, roomID, api.MPowerLevelTags, "", s.tags)
			},
		},
		{
			name:    StepJoinRules,
			success: "Room join rule set to public.",
			failure: "Failed to set room join rule: %s",
			run: func(ctx context.Context, roomID string) (string, error) {
				return s.mutations.SubmitStateChange(ctx, roomID, spec.MRoomJoinRules, "", gomatrixserverlib.JoinRuleContent{
					JoinRule: spec.Public,
				})
			},
		},
		{
			name:    StepPublish,
			success: "Room published to the public directory.",
			failure: "Failed to publish room to directory: %s",
			run: func(ctx context.Context, roomID string) (string, error) {
				return "", s.mutations.PublishRoom(ctx, roomID)
			},
		},
		{
			name:    StepHistoryVisibility,
			success: "Room history rule set to public for everyone.",
			failure: "Failed to set room history setting: %s",
			run: func(ctx context.Context, roomID string) (string, error) {
				return s.mutations.SubmitStateChange(ctx, roomID, spec.MRoomHistoryVisibility, "", gomatrixserverlib.HistoryVisibilityContent{
					HistoryVisibility: gomatrixserverlib.HistoryVisibilityShared,
				})
			},
		},
	}
	return s
}

// Run provisions roomID on behalf of sender. Runs for the same room do
// not overlap.
func (s *Sequence) Run(ctx context.Context, roomID, sender string) *Result {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ProvisionRoom")
	defer span.Finish()

	s.roomLocks.Lock(roomID)
	defer s.roomLocks.Unlock(roomID)

	logger := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"sender":  sender,
	})
	res := &Result{RoomID: roomID}
	for _, st := range s.steps {
		eventID, err := st.run(ctx, roomID)
		notice := st.success
		if err != nil {
			notice = fmt.Sprintf(st.failure, err)
			err = &api.MutationFault{Step: st.name, RoomID: roomID, Err: err}
			logger.WithError(err).WithField("step", st.name).Error("Provisioning step failed")
			stepsTotal.WithLabelValues(st.name, "failure").Inc()
		} else {
			logger.WithFields(logrus.Fields{
				"step":     st.name,
				"event_id": eventID,
			}).Info("Provisioning step succeeded")
			stepsTotal.WithLabelValues(st.name, "success").Inc()
		}
		res.Steps = append(res.Steps, StepResult{Name: st.name, EventID: eventID, Err: err})
		if nerr := s.mutations.SubmitNotice(ctx, roomID, notice); nerr != nil {
			logger.WithError(nerr).WithField("step", st.name).Warn("Failed to send provisioning notice")
		}
	}
	return res
}
