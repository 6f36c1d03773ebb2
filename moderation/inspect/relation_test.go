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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

func TestIsEdit(t *testing.T) {
	parse := func(content string) *api.Message {
		p, err := api.ParsePayload(api.KindMessage, []byte(content))
		if err != nil {
			t.Fatal(err)
		}
		return p.(*api.Message)
	}
	assert.True(t, IsEdit(parse(`{"body":"x","m.relates_to":{"rel_type":"m.replace","event_id":"$a"}}`)))
	assert.False(t, IsEdit(parse(`{"body":"x","m.relates_to":{"rel_type":"m.thread","event_id":"$a"}}`)))
	assert.False(t, IsEdit(parse(`{"body":"x"}`)))
	assert.Equal(t, "m.annotation", RelationType([]byte(`{"m.relates_to":{"rel_type":"m.annotation"}}`)))
	assert.Equal(t, "", RelationType([]byte(`{}`)))
}
