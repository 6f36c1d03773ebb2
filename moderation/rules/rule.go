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

// Package rules implements the moderation policy rules. Each rule looks
// at one kind of event and returns a Decision. A rule which cannot reach
// a decision returns an error alongside Allow, and the caller lets the
// event through.
package rules

import (
	"context"
	"fmt"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/inspect"
	"github.com/FapBot-tech/MatrixSetup/moderation/provision"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

type Rule interface {
	Name() string
	// Kinds lists the event kinds the rule is evaluated for.
	Kinds() []api.EventKind
	Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error)
}

// Provisioner runs the channel configuration sequence for a room.
type Provisioner interface {
	Run(ctx context.Context, roomID, sender string) *provision.Result
}

// Deps are the collaborators rules need beyond the evaluation context.
type Deps struct {
	Sniffer     api.MIMESniffer
	Provisioner Provisioner
}

// RuleSet holds the enabled rules in evaluation order.
type RuleSet struct {
	rules  []Rule
	byKind map[api.EventKind][]Rule
}

// NewRuleSet builds the rules named in cfg.EnabledRules, in that order.
func NewRuleSet(cfg *config.Moderation, deps Deps) (*RuleSet, error) {
	var rules []Rule
	for _, name := range cfg.EnabledRules {
		var r Rule
		switch name {
		case config.RuleRoomRestriction:
			r = NewRoomRestriction()
		case config.RuleInviteLimiter:
			r = NewInviteLimiter()
		case config.RuleMediaAllowList:
			if deps.Sniffer == nil {
				deps.Sniffer = inspect.NewSniffer()
			}
			r = NewMediaAllowList(cfg.AllowedMediaTypes, deps.Sniffer)
		case config.RuleEditGatekeeper:
			r = NewEditGatekeeper(cfg.RequiredEditPowerLevel)
		case config.RulePrivateMediaBlocker:
			r = NewPrivateMediaBlocker()
		case config.RuleChannelProvisioning:
			if deps.Provisioner == nil {
				return nil, fmt.Errorf("rule %q needs a provisioner", name)
			}
			r = NewChannelProvisioning(&cfg.Provisioning, deps.Provisioner)
		case config.RuleWordFilter:
			r = NewWordFilter(cfg.BlockedWords)
		default:
			return nil, fmt.Errorf("unknown rule %q", name)
		}
		rules = append(rules, r)
	}
	return NewRuleSetFrom(rules...), nil
}

// NewRuleSetFrom builds a rule set from already constructed rules.
func NewRuleSetFrom(rules ...Rule) *RuleSet {
	rs := &RuleSet{
		rules:  rules,
		byKind: make(map[api.EventKind][]Rule),
	}
	for _, r := range rules {
		for _, kind := range r.Kinds() {
			rs.byKind[kind] = append(rs.byKind[kind], r)
		}
	}
	return rs
}

// For returns the rules subscribed to kind, in evaluation order.
func (rs *RuleSet) For(kind api.EventKind) []Rule {
	return rs.byKind[kind]
}

// Names returns the names of all rules in the set.
func (rs *RuleSet) Names() []string {
	names := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		names = append(names, r.Name())
	}
	return names
}
