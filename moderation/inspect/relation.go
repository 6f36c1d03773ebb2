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

package inspect

import (
	"github.com/tidwall/gjson"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

// RelationType returns m.relates_to.rel_type of a message content, or ""
// if the message has no relation.
func RelationType(content []byte) string {
	return gjson.GetBytes(content, `m\.relates_to.rel_type`).String()
}

// IsEdit reports whether the message replaces an earlier one.
func IsEdit(msg *api.Message) bool {
	if msg.Relation != nil {
		return msg.Relation.RelType == api.MRelationReplace
	}
	return RelationType(msg.Content) == api.MRelationReplace
}
