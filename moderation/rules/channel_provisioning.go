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

package rules

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

const commandHandledReason = "Channel configuration command handled."

// Redelivered commands are recognised for this long after first being run.
const (
	handledCommandsSize = 4096
	handledCommandsTTL  = time.Hour
)

// ChannelProvisioning runs the provisioning sequence when an admin sends
// the trigger command. Anyone else sending it is ignored and their
// message delivered as normal. A command event is only acted on once,
// however many times it is evaluated.
type ChannelProvisioning struct {
	trigger     string
	suppress    bool
	provisioner Provisioner

	mu      sync.Mutex
	handled *expirable.LRU[string, struct{}]
}

func NewChannelProvisioning(cfg *config.Provisioning, provisioner Provisioner) *ChannelProvisioning {
	return &ChannelProvisioning{
		trigger:     strings.TrimSpace(cfg.TriggerCommand),
		suppress:    cfg.SuppressCommand,
		provisioner: provisioner,
		handled:     expirable.NewLRU[string, struct{}](handledCommandsSize, nil, handledCommandsTTL),
	}
}

// claim records eventID as handled. It returns false if the event was
// already claimed. Events without an ID are always claimed.
func (r *ChannelProvisioning) claim(eventID string) bool {
	if eventID == "" {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handled.Contains(eventID) {
		return false
	}
	r.handled.Add(eventID, struct{}{})
	return true
}

func (r *ChannelProvisioning) Name() string           { return config.RuleChannelProvisioning }
func (r *ChannelProvisioning) Kinds() []api.EventKind { return []api.EventKind{api.KindMessage} }

func (r *ChannelProvisioning) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	msg, ok := rctx.Event.Message()
	if !ok || strings.TrimSpace(msg.Body) != r.trigger {
		return api.Allow(), nil
	}
	isAdmin, err := rctx.IsAdmin(ctx)
	if err != nil {
		return api.Allow(), err
	}
	if !isAdmin {
		rctx.Logger.Info("Ignoring channel configuration command from non-admin")
		return api.Allow(), nil
	}

	if r.claim(rctx.Event.EventID) {
		res := r.provisioner.Run(ctx, rctx.Event.RoomID, rctx.Event.Sender)
		rctx.Logger.WithFields(logrus.Fields{
			"steps":  len(res.Steps),
			"failed": len(res.Failed()),
		}).Info("Channel configuration command handled")
	} else {
		rctx.Logger.Info("Channel configuration command already handled, not running again")
	}

	if !r.suppress {
		return api.Allow(), nil
	}
	d := api.Block(commandHandledReason)
	d.Handled = true
	return d, nil
}
