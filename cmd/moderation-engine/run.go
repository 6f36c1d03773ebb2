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
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/mux"
	"github.com/kardianos/minwinsvc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/FapBot-tech/MatrixSetup/internal"
	"github.com/FapBot-tech/MatrixSetup/internal/caching"
	"github.com/FapBot-tech/MatrixSetup/internal/httputil"
	"github.com/FapBot-tech/MatrixSetup/moderation"
	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/consumers"
	"github.com/FapBot-tech/MatrixSetup/moderation/hsclient"
	"github.com/FapBot-tech/MatrixSetup/moderation/inspect"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
	"github.com/FapBot-tech/MatrixSetup/setup/jetstream"
	"github.com/FapBot-tech/MatrixSetup/setup/process"
)

const componentName = "moderation-engine"

// HTTPServerTimeout is the write timeout of the internal API listener.
const HTTPServerTimeout = time.Minute * 5

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation engine",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "IP or address, and port, to listen on for the internal API (overrides global.listen)",
			EnvVars: []string{"MODERATION_ENGINE_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		if addr := cctx.String("listen"); addr != "" {
			cfg.Global.Listen = config.Address(addr)
		}
		return runEngine(cfg)
	},
}

func runEngine(cfg *config.ModerationEngine) error {
	processCtx := process.NewProcessContext()
	internal.SetupStdLogging()
	if err := internal.SetupHookLogging(cfg.Logging, componentName); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	logrus.Infof("Moderation engine version %s", internal.VersionString())

	// setup tracing
	closer, err := cfg.SetupTracing(componentName)
	if err != nil {
		return fmt.Errorf("failed to start opentracing: %w", err)
	}
	defer closer.Close() // nolint: errcheck

	// setup sentry
	if cfg.Global.Sentry.Enabled {
		logrus.Info("Setting up Sentry for debugging...")
		err = sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Global.Sentry.DSN,
			Environment:      cfg.Global.Sentry.Environment,
			Debug:            true,
			ServerName:       string(cfg.Global.ServerName),
			Release:          componentName + "@" + internal.VersionString(),
			AttachStacktrace: true,
		})
		if err != nil {
			return fmt.Errorf("failed to start Sentry: %w", err)
		}
		go func() {
			processCtx.ComponentStarted()
			<-processCtx.WaitForShutdown()
			if !sentry.Flush(time.Second * 5) {
				logrus.Warnf("failed to flush all Sentry events!")
			}
			processCtx.ComponentFinished()
		}()
	}

	hs, err := hsclient.NewClient(&cfg.Global.Homeserver)
	if err != nil {
		return fmt.Errorf("hsclient.NewClient: %w", err)
	}
	caches, err := caching.NewCaches(&cfg.Global.AdminCache, cfg.Global.Metrics.Enabled)
	if err != nil {
		return fmt.Errorf("caching.NewCaches: %w", err)
	}

	modAPI, err := moderation.NewInternalAPI(&cfg.Moderation, moderation.Collaborators{
		RoomState: hs,
		Admins:    caching.NewAdminStatusCache(hs, caches.AdminStatus),
		Mutations: hs,
		Sniffer:   inspect.NewSniffer(),
	})
	if err != nil {
		return fmt.Errorf("moderation.NewInternalAPI: %w", err)
	}

	if cfg.Global.JetStream.Enabled {
		js, nc, err := jetstream.Prepare(processCtx, &cfg.Global.JetStream)
		if err != nil {
			return fmt.Errorf("jetstream.Prepare: %w", err)
		}
		// The internal API keeps serving without the consumer.
		consumer := consumers.NewInputModerationConsumer(processCtx, &cfg.Global.JetStream, js, nc, modAPI)
		if err = consumer.Start(); err != nil {
			processCtx.Degraded(fmt.Errorf("failed to start moderation input consumer: %w", err))
		}
	}

	upCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moderation",
		Name:      "up",
		ConstLabels: map[string]string{
			"version": internal.VersionString(),
		},
	})
	upCounter.Add(1)
	prometheus.MustRegister(upCounter)

	serveHTTP(processCtx, string(cfg.Global.Listen), newRouter(cfg, processCtx, modAPI))

	waitForShutdown(processCtx)
	return nil
}

// newRouter builds the HTTP routes served by the engine.
func newRouter(cfg *config.ModerationEngine, processCtx *process.ProcessContext, modAPI api.ModerationInternalAPI) *mux.Router {
	router := mux.NewRouter().SkipClean(true).UseEncodedPath()
	moderation.AddInternalRoutes(router.PathPrefix(httputil.InternalPathPrefix).Subrouter(), modAPI)
	router.Handle(httputil.HealthPath, httputil.HealthCheckHandler(processCtx)).Methods(http.MethodGet)
	if cfg.Global.Metrics.Enabled {
		router.Handle(httputil.MetricsPath, httputil.WrapHandlerInBasicAuth(
			promhttp.Handler(), httputil.BasicAuth(cfg.Global.Metrics.BasicAuth),
		))
	}
	return router
}

// serveHTTP starts listening in the background. The listener is stopped
// when the process shuts down.
func serveHTTP(processCtx *process.ProcessContext, addr string, handler http.Handler) {
	serv := &http.Server{
		Addr:         addr,
		WriteTimeout: HTTPServerTimeout,
		Handler:      handler,
		BaseContext: func(_ net.Listener) context.Context {
			return processCtx.Context()
		},
	}

	processCtx.ComponentStarted()
	go func() {
		<-processCtx.WaitForShutdown()
		logrus.Infof("Stopping HTTP listener")
		_ = serv.Shutdown(context.Background())
		processCtx.ComponentFinished()
	}()

	go func() {
		logrus.Infof("Starting %s listener on %s", componentName, serv.Addr)
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("failed to serve HTTP")
		}
		logrus.Infof("Stopped %s listener on %s", componentName, serv.Addr)
	}()
}

func waitForShutdown(processCtx *process.ProcessContext) {
	minwinsvc.SetOnExit(processCtx.Shutdown)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
	case <-processCtx.WaitForShutdown():
	}
	signal.Reset(syscall.SIGINT, syscall.SIGTERM)

	logrus.Warnf("Shutdown signal received")

	processCtx.Shutdown()
	processCtx.WaitForComponentsToFinish()

	logrus.Warnf("Moderation engine is exiting now")
}
