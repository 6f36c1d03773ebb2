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

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	jaegerconfig "github.com/uber/jaeger-client-go/config"
	jaegermetrics "github.com/uber/jaeger-lib/metrics"
	yaml "gopkg.in/yaml.v2"
)

// Version is the current version of the config format.
// This will change whenever we make breaking changes to the config format.
const Version = 1

// ModerationEngine contains all the config used by the moderation engine.
type ModerationEngine struct {
	// The version of the configuration file.
	// If the version in a file doesn't match the current version
	// then we can give a clear error message telling the user
	// to update their config file to the current version.
	Version int `yaml:"version"`

	Global     Global     `yaml:"global"`
	Moderation Moderation `yaml:"moderation"`

	// The config for tracing the engine.
	Tracing struct {
		// Set to true to enable tracer hooks. If false, no tracing is set up.
		Enabled bool `yaml:"enabled"`
		// The config for the jaeger opentracing reporter.
		Jaeger jaegerconfig.Configuration `yaml:"jaeger"`
	} `yaml:"tracing"`

	// The config for logging informations. Each hook will be added to logrus.
	Logging []LogrusHook `yaml:"logging"`
}

// A Path on the filesystem.
type Path string

// An Address to listen on.
type Address string

// LogrusHook represents a single logrus hook. At this point, only parsing and
// verification of the proper values for type and level are done.
// Validity/integrity checks on the parameters are done when configuring logrus.
type LogrusHook struct {
	// The type of hook, currently only "file", "std" and "syslog" are supported.
	Type string `yaml:"type"`

	// The level of the logs to produce. Will output only this level and above.
	Level string `yaml:"level"`

	// The parameters for this hook.
	Params map[string]interface{} `yaml:"params"`
}

// ConfigErrors stores problems encountered when parsing a config file.
// It implements the error interface.
type ConfigErrors []string

// Load a yaml config file.
func Load(configPath string) (*ModerationEngine, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	basePath, err := filepath.Abs(".")
	if err != nil {
		return nil, err
	}
	return loadConfig(basePath, configData)
}

func loadConfig(basePath string, configData []byte) (*ModerationEngine, error) {
	var c ModerationEngine
	c.Defaults(false)

	var err error
	if err = yaml.Unmarshal(configData, &c); err != nil {
		return nil, err
	}
	c.Moderation.Provisioning.fillDefaultTags()

	if err = c.check(); err != nil {
		return nil, err
	}

	for _, hook := range c.Logging {
		if path, ok := hook.Params["path"].(string); ok && hook.Type == "file" {
			hook.Params["path"] = absPath(basePath, Path(path))
		}
	}
	c.Global.JetStream.StoragePath = Path(absPath(basePath, c.Global.JetStream.StoragePath))

	return &c, nil
}

// Defaults sets default config values if they are not explicitly set.
// If generate is true then example values are filled in for the fields
// an operator has to set.
func (c *ModerationEngine) Defaults(generate bool) {
	c.Version = Version
	c.Global.Defaults(generate)
	c.Moderation.Defaults(generate)
	c.Logging = []LogrusHook{
		{
			Type:  "std",
			Level: "info",
		},
	}
}

func (c *ModerationEngine) Verify(configErrs *ConfigErrors) {
	c.Global.Verify(configErrs)
	c.Moderation.Verify(configErrs)
	for i, hook := range c.Logging {
		if _, err := logrus.ParseLevel(hook.Level); err != nil {
			configErrs.Add(fmt.Sprintf("invalid value for config key %q: %q", fmt.Sprintf("logging[%d].level", i), hook.Level))
		}
		switch hook.Type {
		case "file", "std", "syslog":
		default:
			configErrs.Add(fmt.Sprintf("invalid value for config key %q: %q", fmt.Sprintf("logging[%d].type", i), hook.Type))
		}
	}
}

// Add appends an error to the list of errors in this configErrors.
// It is a wrapper to the builtin append and hides pointers from
// the client code.
// This method is safe to use with an uninitialized configErrors because
// if it is nil, it will be properly allocated.
func (errs *ConfigErrors) Add(str string) {
	*errs = append(*errs, str)
}

// Error returns a string detailing how many errors were contained within a
// configErrors type.
func (errs ConfigErrors) Error() string {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Sprintf(
		"%s (and %d other problems)", errs[0], len(errs)-1,
	)
}

// check returns an error type containing all errors found within the config
// file.
func (c *ModerationEngine) check() error {
	var configErrs ConfigErrors

	if c.Version != Version {
		configErrs.Add(fmt.Sprintf(
			"config version is %d, expected %d - this means that the format of the configuration "+
				"file has changed in some significant way, so please revisit the sample config "+
				"and ensure you are not missing any important options that may have been added "+
				"or changed recently!",
			c.Version, Version,
		))
		return configErrs
	}

	c.Verify(&configErrs)

	// Due to how Golang manages its interface types, this condition is not redundant.
	// In order to get the proper behaviour, it is necessary to return an explicit nil
	// and not a nil configErrors.
	// This is because the following equalities hold:
	// error(nil) == nil
	// error(configErrors(nil)) != nil
	if configErrs != nil {
		return configErrs
	}
	return nil
}

// checkNotEmpty verifies the given value is not empty in the configuration.
// If it is, adds an error to the list.
func checkNotEmpty(configErrs *ConfigErrors, key, value string) {
	if value == "" {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

// checkPositive verifies that the given value is positive (zero included)
// in the configuration. If it is not, adds an error to the list.
func checkPositive(configErrs *ConfigErrors, key string, value int64) {
	if value < 0 {
		configErrs.Add(fmt.Sprintf("invalid value for config key %q: %d", key, value))
	}
}

// checkNotZero verifies the given value is not zero in the configuration.
// If it is, adds an error to the list.
func checkNotZero(configErrs *ConfigErrors, key string, value int64) {
	if value == 0 {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

func absPath(dir string, path Path) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(string(path)) {
		// filepath.Join cleans the path so we should clean the absolute paths as well for consistency.
		return filepath.Clean(string(path))
	}
	return filepath.Join(dir, string(path))
}

// SetupTracing configures the opentracing using the supplied configuration.
func (c *ModerationEngine) SetupTracing(serviceName string) (closer io.Closer, err error) {
	if !c.Tracing.Enabled {
		return io.NopCloser(bytes.NewReader([]byte{})), nil
	}
	return c.Tracing.Jaeger.InitGlobalTracer(
		serviceName,
		jaegerconfig.Logger(logrusLogger{logrus.StandardLogger()}),
		jaegerconfig.Metrics(jaegermetrics.NullFactory),
	)
}

// logrusLogger is a small wrapper that implements jaeger.Logger using logrus.
type logrusLogger struct {
	l *logrus.Logger
}

func (l logrusLogger) Error(msg string) {
	l.l.Error(msg)
}

func (l logrusLogger) Infof(msg string, args ...interface{}) {
	l.l.Infof(msg, args...)
}
