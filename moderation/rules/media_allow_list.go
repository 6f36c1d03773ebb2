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
	"fmt"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/inspect"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

// MediaAllowList rejects uploads whose sniffed media type is not allowed.
// Uploads which cannot be sniffed are classified "unknown/unknown" and
// rejected like any other disallowed type.
type MediaAllowList struct {
	allowed map[string]struct{}
	sniffer api.MIMESniffer
}

func NewMediaAllowList(allowed []string, sniffer api.MIMESniffer) *MediaAllowList {
	r := &MediaAllowList{
		allowed: make(map[string]struct{}, len(allowed)),
		sniffer: sniffer,
	}
	for _, t := range allowed {
		r.allowed[inspect.NormaliseMIMEType(t)] = struct{}{}
	}
	return r
}

func (r *MediaAllowList) Name() string           { return config.RuleMediaAllowList }
func (r *MediaAllowList) Kinds() []api.EventKind { return []api.EventKind{api.KindMediaUpload} }

func (r *MediaAllowList) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	upload, ok := rctx.Event.MediaUpload()
	if !ok || upload.Thumbnail {
		return api.Allow(), nil
	}
	if upload.Path == "" && upload.Data == nil {
		return api.Allow(), nil
	}
	mediaType, err := r.sniffer.SniffMIMEType(ctx, upload)
	if err != nil {
		rctx.Logger.WithError(err).Warn("Failed to sniff media type")
		mediaType = api.SniffUnknown
	}
	if _, ok := r.allowed[mediaType]; !ok {
		rctx.Logger.WithField("media_type", mediaType).Info("Rejecting upload of disallowed media type")
		return api.Block(fmt.Sprintf("File type '%s' is forbidden.", mediaType)), nil
	}
	return api.Allow(), nil
}
