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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/matrix-org/dugong"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

type utcFormatter struct {
	logrus.Formatter
}

func (f utcFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	entry.Time = entry.Time.UTC()
	return f.Formatter.Format(entry)
}

// Logrus hook which wraps another hook and filters log entries according to their level.
// (Note that we cannot use solely logrus.SetLevel, because the engine supports multiple
// levels of logging at the same time.)
type logLevelHook struct {
	level logrus.Level
	logrus.Hook
}

// Levels returns all the levels supported by this hook.
func (h *logLevelHook) Levels() []logrus.Level {
	levels := make([]logrus.Level, 0)

	for _, level := range logrus.AllLevels {
		if level <= h.level {
			levels = append(levels, level)
		}
	}

	return levels
}

// SetupStdLogging configures the logging format to standard output. Typically, it is called when the config is not yet loaded.
func SetupStdLogging() {
	logrus.SetReportCaller(false)
	logrus.SetFormatter(&utcFormatter{
		&logrus.TextFormatter{
			TimestampFormat:  "2006-01-02T15:04:05.000000000Z07:00",
			FullTimestamp:    true,
			DisableColors:    false,
			DisableTimestamp: false,
			QuoteEmptyFields: true,
		},
	})
}

// SetupHookLogging configures the logging hooks defined in the configuration.
// Every hook is checked before any is installed, so a bad hook leaves the
// standard logging in place.
func SetupHookLogging(hooks []config.LogrusHook, componentName string) error {
	if len(hooks) == 0 {
		return nil
	}
	installs := make([]func() error, 0, len(hooks))
	for i, hook := range hooks {
		install, err := prepareHook(hook, componentName)
		if err != nil {
			return fmt.Errorf("logging[%d]: %w", i, err)
		}
		installs = append(installs, install)
	}

	// Everything goes through the hooks from now on, so that each can
	// apply its own level.
	logrus.SetLevel(logrus.TraceLevel)
	logrus.SetOutput(io.Discard)
	for _, install := range installs {
		if err := install(); err != nil {
			return err
		}
	}
	return nil
}

// prepareHook validates hook and returns a function which installs it.
func prepareHook(hook config.LogrusHook, componentName string) (func() error, error) {
	level, err := logrus.ParseLevel(hook.Level)
	if err != nil {
		return nil, fmt.Errorf("unrecognised logging level %q: %w", hook.Level, err)
	}
	switch hook.Type {
	case "std":
		return func() error {
			setupStdLogHook(level)
			return nil
		}, nil
	case "file":
		dir, err := hookParam(hook, "path")
		if err != nil {
			return nil, err
		}
		return func() error {
			return setupFileHook(dir, level, componentName)
		}, nil
	default:
		return preparePlatformHook(hook, level, componentName)
	}
}

// hookParam returns the named string parameter of hook.
func hookParam(hook config.LogrusHook, name string) (string, error) {
	v, ok := hook.Params[name]
	if !ok {
		return "", fmt.Errorf("expecting a parameter %q for logging hook of type %q", name, hook.Type)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q for logging hook of type %q should be a string", name, hook.Type)
	}
	return str, nil
}

// setupFileHook writes componentName.log in dir, rotated daily.
func setupFileHook(dir string, level logrus.Level, componentName string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("couldn't create log directory %s: %w", dir, err)
	}

	logrus.AddHook(&logLevelHook{
		level,
		dugong.NewFSHook(
			filepath.Join(dir, componentName+".log"),
			&utcFormatter{
				&logrus.TextFormatter{
					TimestampFormat:  "2006-01-02T15:04:05.000000000Z07:00",
					DisableColors:    true,
					DisableTimestamp: false,
					DisableSorting:   false,
				},
			},
			&dugong.DailyRotationSchedule{GZip: true},
		),
	})
	return nil
}
