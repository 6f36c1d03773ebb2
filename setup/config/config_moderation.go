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

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Rule names, in the order the rules run when enabled_rules is not set.
const (
	RuleRoomRestriction     = "room_restriction"
	RuleInviteLimiter       = "invite_limiter"
	RuleMediaAllowList      = "media_allow_list"
	RuleEditGatekeeper      = "edit_gatekeeper"
	RulePrivateMediaBlocker = "private_media_blocker"
	RuleChannelProvisioning = "channel_provisioning"
	RuleWordFilter          = "word_filter"
)

// DefaultEnabledRules lists every known rule in its default order.
var DefaultEnabledRules = []string{
	RuleRoomRestriction,
	RuleInviteLimiter,
	RuleMediaAllowList,
	RuleEditGatekeeper,
	RulePrivateMediaBlocker,
	RuleChannelProvisioning,
	RuleWordFilter,
}

// DefaultAllowedMediaTypes are the media types accepted for upload when
// allowed_media_types is not set.
var DefaultAllowedMediaTypes = []string{
	"video/mp4",
	"audio/mpeg",
	"audio/mp3",
	"image/jpeg",
	"image/png",
	"image/gif",
}

type Moderation struct {
	// The rules to run, in order. Rules not listed are disabled.
	EnabledRules []string `yaml:"enabled_rules"`

	// Media types which may be uploaded. Types are matched after sniffing
	// the uploaded bytes, never against what the client declared.
	AllowedMediaTypes []string `yaml:"allowed_media_types"`

	// Words which are masked out of messages.
	BlockedWords []string `yaml:"blocked_words"`

	// The power level a non-admin needs to edit messages.
	RequiredEditPowerLevel int64 `yaml:"required_edit_power_level"`

	Provisioning Provisioning `yaml:"provisioning"`
}

func (c *Moderation) Defaults(generate bool) {
	c.EnabledRules = append([]string(nil), DefaultEnabledRules...)
	c.AllowedMediaTypes = append([]string(nil), DefaultAllowedMediaTypes...)
	c.BlockedWords = []string{}
	c.RequiredEditPowerLevel = 50
	c.Provisioning.Defaults(generate)
}

func (c *Moderation) Verify(configErrs *ConfigErrors) {
	checkNotZero(configErrs, "moderation.allowed_media_types", int64(len(c.AllowedMediaTypes)))
	checkPositive(configErrs, "moderation.required_edit_power_level", c.RequiredEditPowerLevel)

	known := make(map[string]bool, len(DefaultEnabledRules))
	for _, name := range DefaultEnabledRules {
		known[name] = true
	}
	seen := make(map[string]bool, len(c.EnabledRules))
	for i, name := range c.EnabledRules {
		key := fmt.Sprintf("moderation.enabled_rules[%d]", i)
		switch {
		case !known[name]:
			configErrs.Add(fmt.Sprintf("invalid value for config key %q: unknown rule %q", key, name))
		case seen[name]:
			configErrs.Add(fmt.Sprintf("invalid value for config key %q: rule %q listed twice", key, name))
		}
		seen[name] = true
	}
	for i, t := range c.AllowedMediaTypes {
		if !strings.Contains(t, "/") {
			configErrs.Add(fmt.Sprintf("invalid value for config key %q: %q", fmt.Sprintf("moderation.allowed_media_types[%d]", i), t))
		}
	}

	c.Provisioning.Verify(configErrs)
}

// RuleEnabled reports whether the named rule is in enabled_rules.
func (c *Moderation) RuleEnabled(name string) bool {
	for _, n := range c.EnabledRules {
		if n == name {
			return true
		}
	}
	return false
}

// PowerLevelTagIcon is the icon shown next to a power level tag.
type PowerLevelTagIcon struct {
	Key string `yaml:"key" json:"key"`
}

// PowerLevelTag is the label clients show for users at a power level.
type PowerLevelTag struct {
	Name  string             `yaml:"name" json:"name"`
	Color string             `yaml:"color,omitempty" json:"color,omitempty"`
	Icon  *PowerLevelTagIcon `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// DefaultPowerLevelTags is used when provisioning.tags is not set. It is
// keyed by power level.
func DefaultPowerLevelTags() map[string]PowerLevelTag {
	return map[string]PowerLevelTag{
		"0":   {Name: "Muted", Color: "#ff0000", Icon: &PowerLevelTagIcon{Key: "🤡"}},
		"10":  {Name: "Member", Color: "#ffffff"},
		"50":  {Name: "Moderator", Color: "#1fd81f"},
		"100": {Name: "Admin", Color: "#0088ff"},
		"999": {Name: "Final boss", Color: "#000000"},
	}
}

// Provisioning configures the channel configuration command.
type Provisioning struct {
	// The message body which triggers provisioning of a room.
	TriggerCommand string `yaml:"trigger_command"`
	// Hide the command message from the room once it has been handled.
	SuppressCommand bool `yaml:"suppress_command"`
	// Power level tags to set on the room, keyed by power level.
	Tags map[string]PowerLevelTag `yaml:"tags"`
}

func (c *Provisioning) Defaults(generate bool) {
	c.TriggerCommand = "!channelconfig"
	c.SuppressCommand = true
	if generate {
		c.Tags = DefaultPowerLevelTags()
	}
}

// fillDefaultTags is applied after loading rather than in Defaults, as
// yaml merges configured map keys into an existing map.
func (c *Provisioning) fillDefaultTags() {
	if len(c.Tags) == 0 {
		c.Tags = DefaultPowerLevelTags()
	}
}

func (c *Provisioning) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "moderation.provisioning.trigger_command", strings.TrimSpace(c.TriggerCommand))
	for level, tag := range c.Tags {
		key := fmt.Sprintf("moderation.provisioning.tags[%s]", level)
		if _, err := strconv.ParseInt(level, 10, 64); err != nil {
			configErrs.Add(fmt.Sprintf("invalid value for config key %q: power level must be an integer", key))
		}
		checkNotEmpty(configErrs, key+".name", tag.Name)
	}
}
