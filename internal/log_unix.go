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

//go:build !windows
// +build !windows

package internal

import (
	"fmt"
	"log/syslog"

	"github.com/MFAshby/stdemuxerhook"
	"github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"

	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

func preparePlatformHook(hook config.LogrusHook, level logrus.Level, componentName string) (func() error, error) {
	if hook.Type != "syslog" {
		return nil, fmt.Errorf("unrecognised logging hook type: %s", hook.Type)
	}
	protocol, err := hookParam(hook, "protocol")
	if err != nil {
		return nil, err
	}
	addr, err := hookParam(hook, "address")
	if err != nil {
		return nil, err
	}
	return func() error {
		syslogHook, err := lSyslog.NewSyslogHook(protocol, addr, syslog.LOG_INFO, componentName)
		if err != nil {
			return fmt.Errorf("failed to connect to syslog at %s://%s: %w", protocol, addr, err)
		}
		logrus.AddHook(&logLevelHook{level, syslogHook})
		return nil
	}, nil
}

func setupStdLogHook(level logrus.Level) {
	logrus.AddHook(&logLevelHook{level, stdemuxerhook.New(logrus.StandardLogger())})
}
