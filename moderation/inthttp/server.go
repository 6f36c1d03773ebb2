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

package inthttp

import (
	"github.com/gorilla/mux"

	"github.com/FapBot-tech/MatrixSetup/internal/httputil"
	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

// HTTP paths for the internal HTTP API
const (
	ModerationDecidePath           = "/moderation/decide"
	ModerationDecideRoomCreatePath = "/moderation/decideRoomCreate"
)

// AddRoutes adds the ModerationInternalAPI handlers to the http.ServeMux.
func AddRoutes(m api.ModerationInternalAPI, internalAPIMux *mux.Router) {
	internalAPIMux.Handle(
		ModerationDecidePath,
		httputil.MakeInternalRPCAPI("decide", m.Decide),
	).Methods("POST")

	internalAPIMux.Handle(
		ModerationDecideRoomCreatePath,
		httputil.MakeInternalRPCAPI("decide_room_create", m.DecideRoomCreate),
	).Methods("POST")
}
