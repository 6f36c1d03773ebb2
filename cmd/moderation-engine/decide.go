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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/inthttp"
)

var decideCmd = &cli.Command{
	Name:      "decide",
	Usage:     "evaluate an event against a running engine and print the decision",
	ArgsUsage: "[event.json]",
	Description: "Reads an event as JSON from the named file, or from stdin if no file is given.\n" +
		"The event must carry a \"kind\", e.g.\n" +
		`{"kind":"message","sender":"@alice:example.com","room_id":"!room:example.com","content":{"msgtype":"m.text","body":"hi"}}`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "engine-url",
			Usage:   "base URL of the engine's internal API",
			Value:   "http://127.0.0.1:7780",
			EnvVars: []string{"MODERATION_ENGINE_URL"},
		},
		&cli.StringFlag{
			Name:  "room-state",
			Usage: "optional file holding a room state snapshot to evaluate against",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "how long to wait for the engine",
			Value: time.Second * 30,
		},
	},
	Action: func(cctx *cli.Context) error {
		var in io.Reader = cctx.App.Reader
		if cctx.Args().Len() > 0 {
			f, err := os.Open(cctx.Args().First())
			if err != nil {
				return err
			}
			defer f.Close() // nolint: errcheck
			in = f
		}

		var req api.DecideRequest
		if err := json.NewDecoder(in).Decode(&req.Event); err != nil {
			return fmt.Errorf("failed to parse event: %w", err)
		}
		if path := cctx.String("room-state"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err = json.Unmarshal(b, &req.RoomState); err != nil {
				return fmt.Errorf("failed to parse room state: %w", err)
			}
		}

		client, err := inthttp.NewModerationAPIClient(
			cctx.String("engine-url"), &http.Client{Timeout: cctx.Duration("timeout")},
		)
		if err != nil {
			return err
		}
		var res api.DecideResponse
		if err = client.Decide(cctx.Context, &req, &res); err != nil {
			return fmt.Errorf("decide: %w", err)
		}

		enc := json.NewEncoder(cctx.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(&res)
	},
}
