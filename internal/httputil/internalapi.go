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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/matrix-org/util"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// maxInternalResponseSize bounds how much of a reply is read. Decisions
// carry at most one rewritten event.
const maxInternalResponseSize = 16 * 1024 * 1024

// InternalAPIError is the body of a failed internal API call. Code is the
// HTTP status the call failed with.
type InternalAPIError struct {
	Code    int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e InternalAPIError) Error() string {
	return fmt.Sprintf("internal API returned %q error: %s", e.Type, e.Message)
}

// MakeInternalRPCAPI exposes f as a JSON request/response handler.
// Requests that cannot be decoded are rejected with a 400 before f runs.
func MakeInternalRPCAPI[reqtype, restype any](metricsName string, f func(context.Context, *reqtype, *restype) error) http.Handler {
	return MakeInternalAPI(metricsName, func(req *http.Request) util.JSONResponse {
		var request reqtype
		var response restype
		if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
			return util.JSONResponse{
				Code: http.StatusBadRequest,
				JSON: &InternalAPIError{Type: "BadRequest", Message: err.Error()},
			}
		}
		if err := f(req.Context(), &request, &response); err != nil {
			return util.JSONResponse{
				Code: http.StatusInternalServerError,
				JSON: &InternalAPIError{
					Type:    reflect.TypeOf(err).String(),
					Message: err.Error(),
				},
			}
		}
		return util.JSONResponse{
			Code: http.StatusOK,
			JSON: &response,
		}
	})
}

// CallInternalRPCAPI posts request to the handler at apiURL and decodes the
// reply into response. apiURL is relative to InternalPathPrefix. Errors
// raised by the remote handler are returned as InternalAPIError.
func CallInternalRPCAPI[reqtype, restype any](name, apiURL string, client *http.Client, ctx context.Context, request *reqtype, response *restype) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, name)
	defer span.Finish()
	ext.SpanKindRPCClient.Set(span)

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return err
	}
	u.Path = InternalPathPrefix + strings.TrimLeft(u.Path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	carrier := opentracing.HTTPHeadersCarrier(req.Header)
	if err = opentracing.GlobalTracer().Inject(span.Context(), opentracing.HTTPHeaders, carrier); err != nil {
		return err
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close() // nolint: errcheck
	data, err := io.ReadAll(io.LimitReader(res.Body, maxInternalResponseSize))
	if err != nil {
		return fmt.Errorf("reading reply from %s: %w", u.Path, err)
	}

	if res.StatusCode != http.StatusOK {
		ext.Error.Set(span, true)
		if len(data) == 0 {
			return fmt.Errorf("HTTP %d from %s (no response body)", res.StatusCode, u.Path)
		}
		apiErr := InternalAPIError{Code: res.StatusCode}
		if err = json.Unmarshal(data, &apiErr); err != nil || apiErr.Type == "" {
			return fmt.Errorf("HTTP %d from %s: %s", res.StatusCode, u.Path, bytes.TrimSpace(data))
		}
		return apiErr
	}
	if err = json.Unmarshal(data, response); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return nil
}
