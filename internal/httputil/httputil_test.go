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
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHandlerInBasicAuth(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		auth     BasicAuth
		user     string
		pass     string
		wantCode int
	}{
		{name: "no auth configured", wantCode: http.StatusOK},
		{name: "correct credentials", auth: BasicAuth{Username: "metrics", Password: "secret"}, user: "metrics", pass: "secret", wantCode: http.StatusOK},
		{name: "wrong password", auth: BasicAuth{Username: "metrics", Password: "secret"}, user: "metrics", pass: "nope", wantCode: http.StatusForbidden},
		{name: "no credentials", auth: BasicAuth{Username: "metrics", Password: "secret"}, wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, MetricsPath, nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			WrapHandlerInBasicAuth(h, tt.auth).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

type degraded struct{ reason error }

func (d degraded) IsDegraded() bool      { return d.reason != nil }
func (d degraded) DegradedReason() error { return d.reason }

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler(degraded{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":200,"degraded":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	HealthCheckHandler(degraded{errors.New("consumer failed")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"code":503,"degraded":true,"reason":"consumer failed"}`, rec.Body.String())
}

type echoRequest struct {
	Text string `json:"text"`
}

type echoResponse struct {
	Text string `json:"text"`
}

func TestInternalRPCRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(InternalPathPrefix+"echo", MakeInternalRPCAPI("echo_test", func(ctx context.Context, req *echoRequest, res *echoResponse) error {
		if req.Text == "" {
			return errors.New("nothing to echo")
		}
		res.Text = req.Text
		return nil
	}))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var res echoResponse
	err := CallInternalRPCAPI("Echo", srv.URL+"/echo", srv.Client(), context.Background(), &echoRequest{Text: "hello"}, &res)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)

	err = CallInternalRPCAPI("Echo", srv.URL+"/echo", srv.Client(), context.Background(), &echoRequest{}, &res)
	var apiErr InternalAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "nothing to echo", apiErr.Message)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
}

func TestInternalRPCRejectsBadRequests(t *testing.T) {
	called := false
	h := MakeInternalRPCAPI("bad_request_test", func(ctx context.Context, req *echoRequest, res *echoResponse) error {
		called = true
		return nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, InternalPathPrefix+"echo", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
	assert.Contains(t, rec.Body.String(), `"type":"BadRequest"`)
}

func TestCallInternalRPCAPINonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, InternalPathPrefix+"echo", r.URL.Path)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	var res echoResponse
	err := CallInternalRPCAPI("Echo", srv.URL+"/echo", srv.Client(), context.Background(), &echoRequest{Text: "hi"}, &res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
	var apiErr InternalAPIError
	assert.False(t, errors.As(err, &apiErr))
}
