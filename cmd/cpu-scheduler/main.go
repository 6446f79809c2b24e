/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/policy"
	"github.com/sergelogvinov/cpu-scheduler/pkg/scheduler/settings"
	"github.com/sergelogvinov/cpu-scheduler/pkg/utils/reconciler"

	"sigs.k8s.io/karpenter/pkg/utils/env"
)

const (
	verbosityEnvVarName = "VERBOSITY"
	verbosityFlagName   = "verbosity"

	watchPathEnvVarName = "WATCH_PATH"
	watchPathFlagName   = "watch-path"

	tickDurationEnvVarName = "TICK_DURATION"
	tickDurationFlagName   = "tick-duration"

	settingsFileEnvVarName = "SETTINGS_FILE"
	settingsFileFlagName   = "settings-file"

	schedPolicyEnvVarName = "SCHED_POLICY"
	schedPolicyFlagName   = "sched-policy"

	maxRetriesEnvVarName = "MAX_RETRIES"
	maxRetriesFlagName   = "max-retries"

	featureFlagsEnvVarName = "CPU_SCHEDULER_FEATURE_FLAGS"
)

var (
	// Version of the cpu-scheduler
	Version = "edge"

	showVersion = pflag.Bool("version", false, "Print the version and exit.")

	verbosity    = pflag.IntP(verbosityFlagName, "v", env.WithDefaultInt(verbosityEnvVarName, 0), "Verbosity level (0=info, 1=debug, 2=trace, -1=errors only)")
	watchPath    = pflag.String(watchPathFlagName, env.WithDefaultString(watchPathEnvVarName, "/run/cpu-scheduler"), "Path to watch of process pid and share files")
	tickDuration = pflag.Duration(tickDurationFlagName, env.WithDefaultDuration(tickDurationEnvVarName, 100*time.Millisecond), "Duration of one timer tick")
	settingsFile = pflag.String(settingsFileFlagName, env.WithDefaultString(settingsFileEnvVarName, ""), "Path to the scheduler settings file")
	schedPolicy  = pflag.String(schedPolicyFlagName, env.WithDefaultString(schedPolicyEnvVarName, ""), "Scheduling policy selected by the host, empty to use the settings")
	maxRetries   = pflag.Int(maxRetriesFlagName, env.WithDefaultInt(maxRetriesEnvVarName, 5), "Maximum number of retry attempts")
)

func main() {
	pflag.Parse()

	logger := setupLogger(*verbosity)
	logger.Info("CPU scheduler", "version", Version, "verbosity", *verbosity)

	if *showVersion {
		os.Exit(0)
	}

	featureFlags := parseFeatureFlags(os.Getenv(featureFlagsEnvVarName))
	logger.Info("Feature flags configured", "featureFlags", featureFlags)

	host, err := os.Hostname()
	if err != nil {
		logger.Error(err, "Failed to get hostname")
		os.Exit(1)
	}

	s, err := settings.LoadSettingsFromFile(*settingsFile, host)
	if err != nil {
		logger.Error(err, "Failed to load scheduler settings")
		os.Exit(1)
	}

	if s == nil {
		s = &settings.Settings{}
	}

	showSettings(logger, host, *s)

	handler, err := NewHandler(logger, *s, policy.Name(*schedPolicy), *tickDuration, featureFlags)
	if err != nil {
		logger.Error(err, "Failed to create scheduler")
		os.Exit(1)
	}

	if err := scheduler(handler, logger); err != nil {
		logger.Error(err, "Reconciler encountered an error")
		os.Exit(1)
	}
}

func scheduler(handler *SchedulerHandler, logger logr.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	config := reconciler.DefaultConfig(logger)
	config.MaxRetries = *maxRetries
	config.WatchPath = *watchPath

	rec, err := reconciler.NewReconciler(config, handler)
	if err != nil {
		logger.Error(err, "Failed to create reconciler")

		return err
	}

	if err := handler.Init(rec.Rearm); err != nil {
		logger.Error(err, "Failed to initialize scheduler")

		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- rec.Run(ctx)
	}()

	logger.Info("Reconciler started successfully")

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down gracefully", "signal", sig)
	case err := <-done:
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case err := <-done:
		logger.Info("Reconciler stopped gracefully", "status", handler.Status())

		return err
	case <-shutdownCtx.Done():
		logger.Info("Shutdown timeout exceeded, forcing exit")
	}

	return nil
}
