// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/app"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/ui/chat"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// ErrNoTerminal is returned when the interactive UI is started without a
// terminal.
var ErrNoTerminal = errors.New("the interactive UI needs a terminal; use 'docchat ask' or 'docchat repl' instead")

func newTUICmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), rt)
		},
	}
}

// runTUI runs the Bubble Tea program until the user quits.
func runTUI(ctx context.Context, rt *runtime) error {
	if !isTerminal(rt.in) || !isTerminal(rt.out) {
		return ErrNoTerminal
	}

	theme := styles.NewTheme(rt.cfg.UI.Theme)
	toasts := notify.NewToastManager(
		notify.WithBaseDuration(rt.cfg.ToastDuration()),
		notify.WithMetrics(rt.metrics),
	)
	bridge := chat.NewBridge()
	defer bridge.Close()

	ws := app.New(rt.client, app.Options{
		StaleAfter:     rt.cfg.StaleAfter(),
		Logger:         rt.logger,
		Metrics:        rt.metrics,
		Notifier:       toasts,
		Navigator:      bridge,
		OnUploadStatus: bridge.UploadStatus,
	})
	defer ws.Close()

	m := chat.New(chat.Options{
		Context:      ctx,
		Workspace:    ws,
		Bridge:       bridge,
		Toasts:       toasts,
		Theme:        theme,
		PreviewWidth: rt.cfg.UI.PreviewWidth,
		Logger:       rt.logger,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(rt.in),
		tea.WithOutput(rt.out),
	)
	bridge.Attach(p)

	if rt.cfgPath != "" {
		w, err := config.Watch(rt.cfgPath,
			func(cfg *config.Config) { bridge.Send(chat.ConfigChangedMsg{Config: cfg}) },
			func(err error) {
				rt.logger.Warn("config_reload_failed", zap.Error(err))
				toasts.AddError("Config reload failed: " + err.Error())
			},
		)
		if err != nil {
			rt.logger.Warn("config_watch_failed", zap.String("path", rt.cfgPath), zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	rt.logger.Info("tui_started", zap.String("base_url", rt.cfg.Server.BaseURL))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
