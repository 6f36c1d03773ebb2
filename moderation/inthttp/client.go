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
	"context"
	"errors"
	"net/http"

	"github.com/FapBot-tech/MatrixSetup/internal/httputil"
	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

// NewModerationAPIClient creates a ModerationInternalAPI implemented by talking to a HTTP POST API.
// If httpClient is nil an error is returned
func NewModerationAPIClient(
	apiURL string,
	httpClient *http.Client,
) (api.ModerationInternalAPI, error) {
	if httpClient == nil {
		return nil, errors.New("NewModerationAPIClient: httpClient is <nil>")
	}
	return &httpModerationInternalAPI{
		apiURL:     apiURL,
		httpClient: httpClient,
	}, nil
}

type httpModerationInternalAPI struct {
	apiURL     string
	httpClient *http.Client
}

func (h *httpModerationInternalAPI) Decide(
	ctx context.Context,
	request *api.DecideRequest,
	response *api.DecideResponse,
) error {
	return httputil.CallInternalRPCAPI(
		"Decide", h.apiURL+ModerationDecidePath,
		h.httpClient, ctx, request, response,
	)
}

func (h *httpModerationInternalAPI) DecideRoomCreate(
	ctx context.Context,
	request *api.DecideRoomCreateRequest,
	response *api.DecideRoomCreateResponse,
) error {
	return httputil.CallInternalRPCAPI(
		"DecideRoomCreate", h.apiURL+ModerationDecideRoomCreatePath,
		h.httpClient, ctx, request, response,
	)
}
