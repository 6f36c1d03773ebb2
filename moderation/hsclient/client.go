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

// Package hsclient implements the engine's outbound collaborators on top
// of the homeserver's client-server API and the Synapse admin API.
package hsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/matrix-org/gomatrix"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

const clientPrefix = "/_matrix/client/v3"

// Client talks to the homeserver as the configured moderation user. It
// implements api.AdminAPI, api.RoomStateAPI and api.RoomMutationAPI.
type Client struct {
	cli *gomatrix.Client
}

// NewClient creates a homeserver client from the homeserver config.
func NewClient(cfg *config.Homeserver) (*Client, error) {
	cli, err := gomatrix.NewClient(cfg.BaseURL, cfg.UserID, cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("gomatrix.NewClient: %w", err)
	}
	cli.Prefix = clientPrefix
	cli.Client = &http.Client{Timeout: cfg.RequestTimeout}
	return &Client{cli: cli}, nil
}

// clientEvent is the subset of a client-format event needed to build a
// state snapshot.
type clientEvent struct {
	Type     string          `json:"type"`
	StateKey *string         `json:"state_key"`
	Content  json.RawMessage `json:"content"`
}

func (c *Client) QueryRoomState(ctx context.Context, roomID string) (*api.RoomState, error) {
	span := startSpan(ctx, "hsclient.QueryRoomState")
	defer span.Finish()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []clientEvent
	if err := c.cli.MakeRequest(http.MethodGet, c.cli.BuildURL("rooms", roomID, "state"), nil, &events); err != nil {
		return nil, wrapError("room state", err)
	}
	entries := make([]api.StateEntry, 0, len(events))
	for _, ev := range events {
		if ev.StateKey == nil {
			continue
		}
		entries = append(entries, api.StateEntry{
			Type:     ev.Type,
			StateKey: *ev.StateKey,
			Content:  ev.Content,
		})
	}
	return api.NewRoomState(roomID, entries...), nil
}

type adminResponse struct {
	Admin bool `json:"admin"`
}

// IsAdmin asks the Synapse admin API whether userID is a server admin.
// Users the homeserver does not know are not admins.
func (c *Client) IsAdmin(ctx context.Context, userID string) (bool, error) {
	span := startSpan(ctx, "hsclient.IsAdmin")
	defer span.Finish()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var res adminResponse
	url := c.cli.BuildBaseURL("_synapse", "admin", "v1", "users", userID, "admin")
	if err := c.cli.MakeRequest(http.MethodGet, url, nil, &res); err != nil {
		if httpErr, ok := err.(gomatrix.HTTPError); ok && httpErr.Code == http.StatusNotFound {
			return false, nil
		}
		return false, wrapError("admin status", err)
	}
	return res.Admin, nil
}

func (c *Client) SubmitStateChange(ctx context.Context, roomID, eventType, stateKey string, content interface{}) (string, error) {
	span := startSpan(ctx, "hsclient.SubmitStateChange")
	defer span.Finish()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	res, err := c.cli.SendStateEvent(roomID, eventType, stateKey, content)
	if err != nil {
		return "", wrapError(eventType, err)
	}
	return res.EventID, nil
}

type directoryVisibility struct {
	Visibility string `json:"visibility"`
}

func (c *Client) PublishRoom(ctx context.Context, roomID string) error {
	span := startSpan(ctx, "hsclient.PublishRoom")
	defer span.Finish()
	if err := ctx.Err(); err != nil {
		return err
	}

	url := c.cli.BuildURL("directory", "list", "room", roomID)
	if err := c.cli.MakeRequest(http.MethodPut, url, &directoryVisibility{Visibility: "public"}, nil); err != nil {
		return wrapError("room directory", err)
	}
	return nil
}

func (c *Client) SubmitNotice(ctx context.Context, roomID, text string) error {
	span := startSpan(ctx, "hsclient.SubmitNotice")
	defer span.Finish()
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.cli.SendNotice(roomID, text); err != nil {
		return wrapError("notice", err)
	}
	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
	}).Debug("Sent notice")
	return nil
}

func startSpan(ctx context.Context, name string) opentracing.Span {
	span, _ := opentracing.StartSpanFromContext(ctx, name)
	ext.SpanKindRPCClient.Set(span)
	return span
}

// wrapError turns a gomatrix error into one which reads well in a
// provisioning notice, e.g. "M_FORBIDDEN: You don't have permission".
func wrapError(what string, err error) error {
	httpErr, ok := err.(gomatrix.HTTPError)
	if !ok {
		return fmt.Errorf("%s: %w", what, err)
	}
	if respErr, ok := httpErr.WrappedError.(gomatrix.RespError); ok && respErr.ErrCode != "" {
		return fmt.Errorf("%s: %s (HTTP %d)", respErr.ErrCode, respErr.Err, httpErr.Code)
	}
	return fmt.Errorf("%s: HTTP %d: %w", what, httpErr.Code, err)
}
