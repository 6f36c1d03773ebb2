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

package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// DegradedReporter is satisfied by *process.ProcessContext.
type DegradedReporter interface {
	IsDegraded() bool
	DegradedReason() error
}

// healthResponse is returned on requests to /health
type healthResponse struct {
	Code     int    `json:"code"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// HealthCheckHandler reports whether the process is running normally.
// A degraded process still answers moderation requests but returns 503
// here so that orchestrators can restart it.
func HealthCheckHandler(p DegradedReporter) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		resp := &healthResponse{Code: http.StatusOK}
		if p.IsDegraded() {
			resp.Code = http.StatusServiceUnavailable
			resp.Degraded = true
			if err := p.DegradedReason(); err != nil {
				resp.Reason = err.Error()
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(resp.Code)
		if err := json.NewEncoder(rw).Encode(resp); err != nil {
			logrus.WithError(err).Error("unable to encode health response")
		}
	}
}
