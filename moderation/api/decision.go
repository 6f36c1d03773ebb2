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

package api

import "encoding/json"

// Verdict is the outcome class of a Decision.
type Verdict string

const (
	VerdictAllow   Verdict = "allow"
	VerdictBlock   Verdict = "block"
	VerdictRewrite Verdict = "rewrite"
)

// Decision is the result of evaluating one rule, or of the whole
// pipeline for one event.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	// Reason is a short human-readable explanation, set on blocks.
	Reason string `json:"reason,omitempty"`
	// NewContent replaces the event content, set on rewrites.
	NewContent json.RawMessage `json:"new_content,omitempty"`
	// Rule is the name of the rule which produced the decision.
	Rule string `json:"rule,omitempty"`
	// Handled is set when a blocked event was consumed as a command rather
	// than rejected, so the host can drop it silently.
	Handled bool `json:"handled,omitempty"`
}

func Allow() Decision {
	return Decision{Verdict: VerdictAllow}
}

func Block(reason string) Decision {
	return Decision{Verdict: VerdictBlock, Reason: reason}
}

func Rewrite(content json.RawMessage) Decision {
	return Decision{Verdict: VerdictRewrite, NewContent: content}
}

func (d Decision) IsBlock() bool   { return d.Verdict == VerdictBlock }
func (d Decision) IsRewrite() bool { return d.Verdict == VerdictRewrite }

// Allowed returns true if the event may be delivered, either as-is or
// rewritten.
func (d Decision) Allowed() bool {
	return d.Verdict != VerdictBlock
}
