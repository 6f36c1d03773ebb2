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

package moderation

import (
	"fmt"

	"github.com/gorilla/mux"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/internal"
	"github.com/FapBot-tech/MatrixSetup/moderation/inthttp"
	"github.com/FapBot-tech/MatrixSetup/moderation/provision"
	"github.com/FapBot-tech/MatrixSetup/moderation/rules"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

// AddInternalRoutes registers HTTP handlers for the internal API. Invokes functions
// on the given input API.
func AddInternalRoutes(router *mux.Router, intAPI api.ModerationInternalAPI) {
	inthttp.AddRoutes(intAPI, router)
}

// Collaborators are the services the engine relies on but does not own.
type Collaborators struct {
	RoomState api.RoomStateAPI
	Admins    api.AdminAPI
	Mutations api.RoomMutationAPI
	// Sniffer is optional. If nil, uploads are sniffed from their bytes
	// or from disk.
	Sniffer api.MIMESniffer
}

// NewInternalAPI returns a concrete implementation of the internal API. Callers
// can call functions directly on the returned API or via an HTTP interface using AddInternalRoutes.
func NewInternalAPI(cfg *config.Moderation, collab Collaborators) (api.ModerationInternalAPI, error) {
	deps := rules.Deps{Sniffer: collab.Sniffer}
	if cfg.RuleEnabled(config.RuleChannelProvisioning) {
		if collab.Mutations == nil {
			return nil, fmt.Errorf("rule %q needs a room mutation API", config.RuleChannelProvisioning)
		}
		deps.Provisioner = provision.NewSequence(&cfg.Provisioning, collab.Mutations)
	}
	ruleSet, err := rules.NewRuleSet(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("rules.NewRuleSet: %w", err)
	}
	return &internal.ModerationInternalAPI{
		Dispatcher: &internal.Dispatcher{Rules: ruleSet},
		StateAPI:   collab.RoomState,
		AdminAPI:   collab.Admins,
	}, nil
}
