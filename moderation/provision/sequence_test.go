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

package provision

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
	"github.com/FapBot-tech/MatrixSetup/test"
)

func TestSequenceAllStepsSucceed(t *testing.T) {
	mutations := test.NewFakeRoomMutationAPI()
	seq := NewSequence(&config.Provisioning{}, mutations)

	res := seq.Run(context.Background(), "!room:test", "@admin:test")
	require.Len(t, res.Steps, 4)
	assert.Empty(t, res.Failed())
	for _, s := range res.Steps {
		if s.Name == StepPublish {
			assert.Empty(t, s.EventID)
			continue
		}
		assert.NotEmpty(t, s.EventID, s.Name)
	}

	require.Len(t, mutations.StateChanges, 3)
	gotTypes := []string{mutations.StateChanges[0].EventType, mutations.StateChanges[1].EventType, mutations.StateChanges[2].EventType}
	assert.Equal(t, []string{api.MPowerLevelTags, spec.MRoomJoinRules, spec.MRoomHistoryVisibility}, gotTypes)
	assert.Equal(t, []string{"!room:test"}, mutations.Published)

	tags, err := json.Marshal(mutations.StateChanges[0].Content)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"0":{"name":"Muted","color":"#ff0000","icon":{"key":"🤡"}},
		"10":{"name":"Member","color":"#ffffff"},
		"50":{"name":"Moderator","color":"#1fd81f"},
		"100":{"name":"Admin","color":"#0088ff"},
		"999":{"name":"Final boss","color":"#000000"}
	}`, string(tags))
	joinRules, _ := json.Marshal(mutations.StateChanges[1].Content)
	assert.JSONEq(t, `{"join_rule":"public"}`, string(joinRules))
	history, _ := json.Marshal(mutations.StateChanges[2].Content)
	assert.JSONEq(t, `{"history_visibility":"shared"}`, string(history))

	want := []string{
		"Cinny power level tags have been set for this channel.",
		"Room join rule set to public.",
		"Room published to the public directory.",
		"Room history rule set to public for everyone.",
	}
	if diff := cmp.Diff(want, mutations.RecordedNotices()); diff != "" {
		t.Fatalf("unexpected notices (-want +got):\n%s", diff)
	}
}

func TestSequenceContinuesAfterFailure(t *testing.T) {
	mutations := test.NewFakeRoomMutationAPI()
	mutations.FailTypes[spec.MRoomJoinRules] = errors.New("forbidden")
	seq := NewSequence(&config.Provisioning{
		Tags: map[string]config.PowerLevelTag{"0": {Name: "Muted"}},
	}, mutations)

	res := seq.Run(context.Background(), "!room:test", "@admin:test")
	require.Len(t, res.Steps, 4)
	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, StepJoinRules, failed[0].Name)
	var fault *api.MutationFault
	require.ErrorAs(t, failed[0].Err, &fault)
	assert.Equal(t, "!room:test", fault.RoomID)

	want := []string{
		"Cinny power level tags have been set for this channel.",
		"Failed to set room join rule: forbidden",
		"Room published to the public directory.",
		"Room history rule set to public for everyone.",
	}
	if diff := cmp.Diff(want, mutations.RecordedNotices()); diff != "" {
		t.Fatalf("unexpected notices (-want +got):\n%s", diff)
	}
	tags, _ := json.Marshal(mutations.StateChanges[0].Content)
	assert.JSONEq(t, `{"0":{"name":"Muted"}}`, string(tags))
}

func TestSequencePublishFailure(t *testing.T) {
	mutations := test.NewFakeRoomMutationAPI()
	mutations.FailPublish = errors.New("directory unavailable")
	res := NewSequence(&config.Provisioning{}, mutations).Run(context.Background(), "!room:test", "@admin:test")
	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, StepPublish, failed[0].Name)
	assert.Contains(t, mutations.RecordedNotices(), "Failed to publish room to directory: directory unavailable")
	assert.Len(t, mutations.StateChanges, 3)
}

func TestSequenceRunsForOneRoomDoNotInterleave(t *testing.T) {
	mutations := test.NewFakeRoomMutationAPI()
	seq := NewSequence(&config.Provisioning{}, mutations)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq.Run(context.Background(), "!room:test", "@admin:test")
		}()
	}
	wg.Wait()

	notices := mutations.RecordedNotices()
	require.Len(t, notices, 20)
	for i := 4; i < len(notices); i += 4 {
		assert.Equal(t, notices[:4], notices[i:i+4])
	}
}
