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

//go:build windows
// +build windows

package internal

import (
	"fmt"

	"github.com/MFAshby/stdemuxerhook"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

func preparePlatformHook(hook config.LogrusHook, _ logrus.Level, _ string) (func() error, error) {
	return nil, fmt.Errorf("unsupported logging hook type on windows: %s", hook.Type)
}

func setupStdLogHook(level logrus.Level) {
	logrus.AddHook(&logLevelHook{level, stdemuxerhook.New(logrus.StandardLogger())})
}
