// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/fakeserver"
)

const shutdownTimeout = 5 * time.Second

type devServerOptions struct {
	addr          string
	fragmentDelay time.Duration
	seed          []string
}

func newDevServerCmd(rt *runtime) *cobra.Command {
	opts := &devServerOptions{}
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run an in-memory backend for trying the client",
		Long: `Serve an in-memory stand-in for the document chat backend. Answers echo
the question word by word and cite the conversation's documents. Nothing is
persisted.`,
		Example: `  docchat dev-server --addr 127.0.0.1:8000
  docchat --base-url http://127.0.0.1:8000 tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevServer(cmd.Context(), rt, opts, nil)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().DurationVar(&opts.fragmentDelay, "fragment-delay", 40*time.Millisecond, "pause between streamed answer fragments")
	cmd.Flags().StringSliceVar(&opts.seed, "seed", nil, "create conversations with these ids at startup")
	return cmd
}

// runDevServer serves until ctx is cancelled. ready, when non-nil, receives
// the bound address once the listener is open.
func runDevServer(ctx context.Context, rt *runtime, opts *devServerOptions, ready chan<- string) error {
	srv := fakeserver.New(fakeserver.Options{
		Logger:        rt.logger,
		FragmentDelay: opts.fragmentDelay,
	})
	for _, id := range opts.seed {
		srv.Seed(id)
	}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.addr, err)
	}
	addr := ln.Addr().String()

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	fmt.Fprintf(rt.out, "Serving in-memory backend on http://%s\n", addr)
	rt.logger.Info("dev_server_started", zap.String("addr", addr))
	if ready != nil {
		ready <- addr
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	rt.logger.Info("dev_server_stopped")
	return nil
}
