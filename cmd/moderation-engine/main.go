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
	"errors"
	"fmt"
	"os"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	yaml "gopkg.in/yaml.v2"

	"github.com/FapBot-tech/MatrixSetup/internal"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

func main() {
	if err := run(os.Args); err != nil {
		logrus.WithError(err).Error("exiting")
		os.Exit(1)
	}
}

func run(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "moderation-engine",
		Usage:   "content moderation for a Matrix homeserver",
		Version: internal.VersionString(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML configuration file",
			Value:   "moderation-engine.yaml",
			EnvVars: []string{"MODERATION_ENGINE_CONFIG"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		checkConfigCmd,
		generateConfigCmd,
		decideCmd,
	}

	return app
}

// loadConfig loads and verifies the config file named by the --config flag.
// Every problem found is logged before an error is returned.
func loadConfig(cctx *cli.Context) (*config.ModerationEngine, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err == nil {
		return cfg, nil
	}
	var configErrs config.ConfigErrors
	if errors.As(err, &configErrs) {
		for _, e := range configErrs {
			logrus.Errorf("Configuration error: %s", e)
		}
	}
	return nil, fmt.Errorf("failed to load config %q: %w", cctx.String("config"), err)
}

var checkConfigCmd = &cli.Command{
	Name:  "check-config",
	Usage: "load and verify the configuration file, then exit",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "configuration %q is valid (%d rules enabled)\n",
			cctx.String("config"), len(cfg.Moderation.EnabledRules))
		return nil
	},
}

var generateConfigCmd = &cli.Command{
	Name:  "generate-config",
	Usage: "print a sample configuration file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "server-name",
			Usage: "the server name of the moderated homeserver",
		},
	},
	Action: func(cctx *cli.Context) error {
		var cfg config.ModerationEngine
		cfg.Defaults(true)
		if name := cctx.String("server-name"); name != "" {
			cfg.Global.ServerName = spec.ServerName(name)
		}
		b, err := yaml.Marshal(&cfg)
		if err != nil {
			return fmt.Errorf("yaml.Marshal: %w", err)
		}
		_, err = cctx.App.Writer.Write(b)
		return err
	},
}
