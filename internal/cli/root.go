// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/app"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// =============================================================================
// RUNTIME
// =============================================================================

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath  string
	envFiles    []string
	baseURL     string
	logLevel    string
	logFile     string
	metricsAddr string
}

// runtime is what every command needs once flags are parsed.
type runtime struct {
	opts globalOptions

	cfg     *config.Config
	cfgPath string
	logger  *zap.Logger
	metrics *telemetry.Metrics
	client  *api.Client

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	stopMetrics context.CancelFunc
}

// setup loads configuration, applies flags and builds the logger, metrics
// and backend client.
func (rt *runtime) setup(cmd *cobra.Command) error {
	rt.bindStreams(cmd)

	if err := config.LoadDotEnv(rt.opts.envFiles...); err != nil {
		return err
	}
	cfg, path, err := loadConfig(rt.opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Server.BaseURL = rt.opts.baseURL
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = rt.opts.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = rt.opts.logFile
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = rt.opts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		return err
	}

	rt.cfg = cfg
	rt.cfgPath = path
	rt.logger = logger.With(zap.String("command", cmd.Name()))
	rt.metrics = telemetry.New()
	rt.client = api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:           cfg.Server.BaseURL,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
		Logger:            rt.logger,
		Metrics:           rt.metrics,
	})

	if cfg.Metrics.Addr != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		rt.stopMetrics = cancel
		go func() {
			if err := rt.metrics.Serve(ctx, cfg.Metrics.Addr, rt.logger); err != nil {
				fmt.Fprintf(rt.errOut, "metrics endpoint: %v\n", err)
			}
		}()
	}

	rt.logger.Debug("command_started", zap.String("base_url", cfg.Server.BaseURL), zap.String("config", path))
	return nil
}

// bindStreams takes the command's input and output.
func (rt *runtime) bindStreams(cmd *cobra.Command) {
	rt.in = cmd.InOrStdin()
	rt.out = cmd.OutOrStdout()
	rt.errOut = cmd.ErrOrStderr()
}

// close releases what setup created.
func (rt *runtime) close() {
	if rt.stopMetrics != nil {
		rt.stopMetrics()
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

// headlessWorkspace builds a workspace that prints notifications to
// stderr instead of showing toasts.
func (rt *runtime) headlessWorkspace(quiet bool) *app.Workspace {
	return app.New(rt.client, app.Options{
		StaleAfter: rt.cfg.StaleAfter(),
		Logger:     rt.logger,
		Metrics:    rt.metrics,
		Notifier:   notify.NewWriter(rt.errOut, rt.logger, quiet),
	})
}

// loadConfig reads the config at path, or the default location when path
// is empty. It returns the file actually read ("" for none).
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.LoadFromPath(path)
		return cfg, path, err
	}
	cfg, err := config.Load()
	return cfg, config.Locate(), err
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "docchat",
		Short: "Chat with your PDF documents from the terminal",
		Long: `docchat is a terminal client for a document question-answering service.

Create conversations, upload PDF documents to them and ask questions; answers
stream in as they are generated and cite the documents they came from.

Run without a subcommand to start the interactive UI.`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), rt)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&rt.opts.configPath, "config", "c", "", "config file path (default is ~/.docchat/config.toml)")
	pf.StringSliceVar(&rt.opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	pf.StringVar(&rt.opts.baseURL, "base-url", "", "backend base URL")
	pf.StringVar(&rt.opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&rt.opts.logFile, "log-file", "", "write JSON logs to this file")
	pf.StringVar(&rt.opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newTUICmd(rt),
		newAskCmd(rt),
		newChatsCmd(rt),
		newUploadCmd(rt),
		newReplCmd(rt),
		newDevServerCmd(rt),
		newConfigCmd(rt),
	)
	return root
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
