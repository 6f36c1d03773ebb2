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

package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/moderation/rules"
	"github.com/FapBot-tech/MatrixSetup/test"
)

type stubRule struct {
	name     string
	kinds    []api.EventKind
	evaluate func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error)
	calls    int
	seen     []string
}

func (r *stubRule) Name() string           { return r.name }
func (r *stubRule) Kinds() []api.EventKind { return r.kinds }
func (r *stubRule) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	r.calls++
	if msg, ok := rctx.Event.Message(); ok {
		r.seen = append(r.seen, msg.Body)
	}
	if r.evaluate == nil {
		return api.Allow(), nil
	}
	return r.evaluate(ctx, rctx)
}

func newStub(name string, f func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error)) *stubRule {
	return &stubRule{name: name, kinds: []api.EventKind{api.KindMessage}, evaluate: f}
}

func dispatch(t *testing.T, ev *api.Event, stateAPI api.RoomStateAPI, rs ...rules.Rule) (api.Decision, *api.Event) {
	t.Helper()
	d := &Dispatcher{Rules: rules.NewRuleSetFrom(rs...)}
	rctx := roomctx.NewContext(ev, nil, stateAPI, test.NewFakeAdminAPI(), nil)
	return d.Dispatch(context.Background(), rctx)
}

func TestDispatchFirstBlockWins(t *testing.T) {
	alice := test.NewUser(t)
	ev := test.NewTextMessage(t, alice, "!room:test", "hello")

	first := newStub("first", nil)
	blocker := newStub("blocker", func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		return api.Block("nope"), nil
	})
	second := newStub("second", func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		return api.Block("should not be reached"), nil
	})

	decision, out := dispatch(t, ev, nil, first, blocker, second)
	assert.Equal(t, api.VerdictBlock, decision.Verdict)
	assert.Equal(t, "nope", decision.Reason)
	assert.Equal(t, "blocker", decision.Rule)
	assert.Nil(t, out)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, blocker.calls)
	assert.Equal(t, 0, second.calls)
}

func TestDispatchNoRulesForKind(t *testing.T) {
	alice := test.NewUser(t)
	ev := test.NewInvite(t, alice, "!room:test", test.NewUser(t))

	msgOnly := newStub("messages", func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		return api.Block("nope"), nil
	})
	decision, out := dispatch(t, ev, nil, msgOnly)
	assert.Equal(t, api.Allow(), decision)
	assert.Same(t, ev, out)
	assert.Equal(t, 0, msgOnly.calls)
}

func TestDispatchRewritesAccumulate(t *testing.T) {
	alice := test.NewUser(t)
	ev := test.NewTextMessage(t, alice, "!room:test", "spam and eggs")
	observer := newStub("observer", nil)

	decision, out := dispatch(t, ev, nil,
		rules.NewWordFilter([]string{"spam"}),
		observer,
		rules.NewWordFilter([]string{"eggs"}),
	)
	require.Equal(t, api.VerdictRewrite, decision.Verdict)
	assert.JSONEq(t, `{"msgtype":"m.text","body":"**** and ****"}`, string(decision.NewContent))

	msg, ok := out.Message()
	require.True(t, ok)
	assert.Equal(t, "**** and ****", msg.Body)
	assert.Equal(t, []string{"**** and eggs"}, observer.seen)

	// The original event is left untouched.
	orig, _ := ev.Message()
	assert.Equal(t, "spam and eggs", orig.Body)
}

func TestDispatchFetchesStateOnce(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	stateAPI := test.NewFakeRoomStateAPI(room)
	ev := test.NewTextMessage(t, alice, room.ID, "hello")

	usesState := func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		_, err := rctx.PowerLevel(ctx)
		return api.Allow(), err
	}
	usesFacts := func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		_, err := rctx.Room(ctx)
		return api.Allow(), err
	}
	decision, _ := dispatch(t, ev, stateAPI,
		newStub("a", usesState), newStub("b", usesFacts), newStub("c", usesState),
	)
	assert.Equal(t, api.Allow(), decision)
	assert.Equal(t, 1, stateAPI.Calls())
}

func TestDispatchFailsOpen(t *testing.T) {
	alice := test.NewUser(t)
	ev := test.NewTextMessage(t, alice, "!room:test", "spam")

	erroring := newStub("erroring", func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		return api.Block("ignored with the error"), errors.New("lookup failed")
	})
	panicking := newStub("panicking", func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		var m map[string]int
		m["boom"]++
		return api.Allow(), nil
	})
	badRewrite := newStub("bad_rewrite", func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		return api.Rewrite(json.RawMessage(`"not an object"`)), nil
	})
	after := newStub("after", nil)

	decision, out := dispatch(t, ev, nil, erroring, panicking, badRewrite, rules.NewWordFilter([]string{"spam"}), after)
	require.Equal(t, api.VerdictRewrite, decision.Verdict)
	assert.Equal(t, "word_filter", decision.Rule)
	msg, _ := out.Message()
	assert.Equal(t, "****", msg.Body)
	assert.Equal(t, 1, after.calls)
}

func TestEvaluateRecoversPanic(t *testing.T) {
	alice := test.NewUser(t)
	ev := test.NewTextMessage(t, alice, "!room:test", "hello")
	rule := newStub("panicking", func(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
		panic("kaboom")
	})
	d := &Dispatcher{Rules: rules.NewRuleSetFrom(rule)}
	decision, err := d.evaluate(context.Background(), rule, roomctx.NewContext(ev, nil, nil, nil, nil))
	assert.Equal(t, api.Allow(), decision)
	assert.ErrorIs(t, err, errRulePanicked)
	assert.ErrorContains(t, err, "kaboom")
}
