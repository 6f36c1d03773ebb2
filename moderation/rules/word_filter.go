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

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/inspect"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

// WordFilter masks blocked words in message text. It never blocks.
type WordFilter struct {
	masker *inspect.Masker
}

func NewWordFilter(blockedWords []string) *WordFilter {
	return &WordFilter{masker: inspect.NewMasker(blockedWords)}
}

func (r *WordFilter) Name() string           { return config.RuleWordFilter }
func (r *WordFilter) Kinds() []api.EventKind { return []api.EventKind{api.KindMessage} }

func (r *WordFilter) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	msg, ok := rctx.Event.Message()
	if !ok || r.masker.Empty() {
		return api.Allow(), nil
	}
	content, modified, err := r.masker.MaskContent(msg.Content)
	if err != nil {
		return api.Allow(), err
	}
	if !modified {
		return api.Allow(), nil
	}
	return api.Rewrite(content), nil
}
