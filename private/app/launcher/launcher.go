// Copyright 2025 The OpenBACnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package launcher is the shell of a server application: command line,
// configuration loading, logging setup and signal handling.
package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
	libconfig "github.com/openbacnet/openbacnet/private/config"
)

// Configuration keys the launcher reads from the config file.
const (
	cfgConfigFile                = "config"
	cfgGeneralID                 = "general.id"
	cfgLogConsoleLevel           = "log.console.level"
	cfgLogConsoleFormat          = "log.console.format"
	cfgLogConsoleStacktraceLevel = "log.console.stacktrace_level"
)

// Application models a server application.
type Application struct {
	// TOMLConfig holds the Go data structure for the application-specific
	// TOML configuration.
	TOMLConfig libconfig.Config

	// ShortName is the short name of the application. If empty, the
	// executable name is used.
	ShortName string

	// Main is the custom logic of the application. If nil, no custom logic
	// is executed (and only the setup/teardown harness runs). If Main
	// returns an error, Run exits with a non-zero exit code.
	Main func(ctx context.Context) error

	// ErrorWriter specifies where error output should be printed. If nil,
	// os.Stderr is used.
	ErrorWriter io.Writer

	// cmd is the Cobra command for the application.
	cmd *cobra.Command

	// config contains the Viper configuration KV store.
	config *viper.Viper
}

// Run sets up the common server harness, and then passes control to the Main
// function (if one exists).
//
// Run uses the following globals:
//
//	os.Args
//
// Run will exit the application if it encounters a fatal error.
func (a *Application) Run() {
	if err := a.run(); err != nil {
		fmt.Fprintf(a.getErrorWriter(), "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func (a *Application) run() error {
	executable := filepath.Base(os.Args[0])
	shortName := a.getShortName(executable)

	a.cmd = newCommandTemplate(executable, shortName, a.TOMLConfig)
	a.cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.executeCommand(cmd.Context(), shortName)
	}
	a.config = viper.New()
	a.config.SetDefault(cfgLogConsoleLevel, log.DefaultConsoleLevel)
	a.config.SetDefault(cfgLogConsoleFormat, "human")
	a.config.SetDefault(cfgLogConsoleStacktraceLevel, log.DefaultStacktraceLevel)
	a.config.SetDefault(cfgGeneralID, executable)
	// The configuration file location is specified through command-line
	// flags. Once the command-line flags are parsed, we register the location
	// of the config file with the viper config.
	if err := a.config.BindPFlag(cfgConfigFile, a.cmd.Flags().Lookup(cfgConfigFile)); err != nil {
		return err
	}
	return a.cmd.Execute()
}

func (a *Application) getShortName(executable string) string {
	if a.ShortName != "" {
		return a.ShortName
	}
	return executable
}

func (a *Application) executeCommand(ctx context.Context, shortName string) error {
	os.Setenv("TZ", "UTC")

	// Load launcher configurations from the same config file as the custom
	// application configuration.
	a.config.SetConfigType("toml")
	a.config.SetConfigFile(a.config.GetString(cfgConfigFile))
	if err := a.config.ReadInConfig(); err != nil {
		return serrors.Wrap("loading generic server config from file", err,
			"file", a.config.GetString(cfgConfigFile))
	}

	if err := libconfig.LoadFile(a.config.GetString(cfgConfigFile), a.TOMLConfig); err != nil {
		return serrors.Wrap("loading config from file", err,
			"file", a.config.GetString(cfgConfigFile))
	}
	a.TOMLConfig.InitDefaults()

	logEntriesTotal := promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lib_log_emitted_entries_total",
			Help: "Total number of log entries emitted.",
		},
		[]string{"level"},
	)
	opt := log.WithEntriesCounter(log.EntriesCounter{
		Debug: logEntriesTotal.With(prometheus.Labels{"level": "debug"}),
		Info:  logEntriesTotal.With(prometheus.Labels{"level": "info"}),
		Error: logEntriesTotal.With(prometheus.Labels{"level": "error"}),
	})

	if err := log.Setup(a.getLogging(), opt); err != nil {
		return serrors.Wrap("initialize logging", err)
	}
	defer log.Flush()
	defer log.HandlePanic()

	log.Info("Application started", "short_name", shortName,
		"id", a.config.GetString(cfgGeneralID))
	defer log.Info("Application stopped", "id", a.config.GetString(cfgGeneralID))

	if err := a.TOMLConfig.Validate(); err != nil {
		return serrors.Wrap("validate config", err)
	}

	if a.Main == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		defer log.HandlePanic()
		s := <-sig
		log.Info("Received signal, shutting down", "signal", s)
		cancel()
		// A second signal aborts without waiting for cleanup.
		s = <-sig
		log.Error("Received second signal, aborting", "signal", s)
		log.Flush()
		os.Exit(1)
	}()
	return a.Main(ctx)
}

func (a *Application) getLogging() log.Config {
	return log.Config{
		Console: log.ConsoleConfig{
			Level:           a.config.GetString(cfgLogConsoleLevel),
			Format:          a.config.GetString(cfgLogConsoleFormat),
			StacktraceLevel: a.config.GetString(cfgLogConsoleStacktraceLevel),
		},
	}
}

func (a *Application) getErrorWriter() io.Writer {
	if a.ErrorWriter != nil {
		return a.ErrorWriter
	}
	return os.Stderr
}

func newCommandTemplate(executable, shortName string, cfg libconfig.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           executable,
		Short:         shortName,
		Example:       fmt.Sprintf("  %s --config %s", executable, "config.toml"),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(newSampleCommand(cfg))
	cmd.AddCommand(newVersionCommand())
	addConfigFlag(cmd.Flags())
	cmd.MarkFlagRequired(cfgConfigFile)
	return cmd
}

func addConfigFlag(fs *pflag.FlagSet) {
	fs.String(cfgConfigFile, "", "Configuration file (required)")
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the version information",
		Run: func(cmd *cobra.Command, args []string) {
			version := "unknown"
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				version = info.Main.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s/%s (%s)\n",
				cmd.Root().Use, version, runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}

func newSampleCommand(cfg libconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Display a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Sample(cmd.OutOrStdout(), nil, nil)
			return nil
		},
	}
}
