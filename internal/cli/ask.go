// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/app"
	"github.com/jeranaias/docchat-tui/internal/conversation"
	"github.com/jeranaias/docchat-tui/internal/model"
)

// ErrEmptyQuestion is returned when ask has nothing to send.
var ErrEmptyQuestion = errors.New("no question given")

type askOptions struct {
	chatID string
	render bool
	json   bool
}

// askResult is the --json payload of ask.
type askResult struct {
	ChatID    string         `json:"chat_id"`
	Created   bool           `json:"created"`
	Answer    string         `json:"answer"`
	Sources   []model.Source `json:"sources"`
	Fragments int            `json:"fragments"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

func newAskCmd(rt *runtime) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and stream the answer",
		Long: `Ask one question in a conversation and stream the answer to stdout.

Without --chat a new conversation is created. When no question is given on
the command line it is read from stdin.`,
		Example: `  docchat ask --chat 3f2a... "What does the report conclude?"
  echo "Summarise the appendix" | docchat ask --chat 3f2a...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := readQuestion(args, rt.in)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), rt, opts, question)
		},
	}
	cmd.Flags().StringVar(&opts.chatID, "chat", "", "conversation id (default: create a new one)")
	cmd.Flags().BoolVar(&opts.render, "render", false, "render the answer as markdown once it is complete")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the result as JSON")
	return cmd
}

// readQuestion joins args, or reads stdin when there are none.
func readQuestion(args []string, in io.Reader) (string, error) {
	question := strings.Join(args, " ")
	if question == "" && in != nil && !isTerminal(in) {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("read question: %w", err)
		}
		question = string(data)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	return question, nil
}

func runAsk(ctx context.Context, rt *runtime, opts *askOptions, question string) error {
	ws := rt.headlessWorkspace(true)
	defer ws.Close()
	p := newPrinter(rt.out)

	ctrl, created, err := openOrCreate(ctx, ws, opts.chatID)
	if err != nil {
		return err
	}
	if created && !opts.json {
		fmt.Fprintf(rt.errOut, "Created chat %s\n", ctrl.ChatID())
	}

	live := !opts.json && !opts.render
	if live {
		unsubscribe := ctrl.Subscribe(func(e conversation.Event) {
			if e.Kind == conversation.EventFragment {
				fmt.Fprint(rt.out, e.Fragment)
			}
		})
		defer unsubscribe()
	}

	res, err := ws.Submit(ctx, question)
	if err != nil {
		if opts.json {
			_ = NewJSONErrorResponse("ask", err).Write(rt.out)
		}
		return err
	}
	rt.logger.Info("ask_completed",
		zap.String("chat_id", ctrl.ChatID()),
		zap.Int("fragments", res.Fragments),
		zap.Duration("elapsed", res.Elapsed),
	)

	if opts.json {
		sources := res.Sources
		if sources == nil {
			sources = []model.Source{}
		}
		return NewJSONResponse("ask", askResult{
			ChatID:    ctrl.ChatID(),
			Created:   created,
			Answer:    res.Answer,
			Sources:   sources,
			Fragments: res.Fragments,
			ElapsedMS: res.Elapsed.Milliseconds(),
		}).Write(rt.out)
	}

	if live {
		fmt.Fprintln(rt.out)
	} else {
		fmt.Fprintln(rt.out, renderMarkdown(res.Answer, p.width, p.dark))
	}
	if len(res.Sources) > 0 {
		fmt.Fprintln(rt.out)
		p.printSources(res.Sources)
	}
	if p.tty {
		fmt.Fprintln(rt.errOut, p.muted.Render(fmt.Sprintf("(%d fragments in %s)", res.Fragments, res.Elapsed.Round(time.Millisecond))))
	}
	return nil
}

// openOrCreate opens chatID, or creates a conversation when it is empty.
func openOrCreate(ctx context.Context, ws *app.Workspace, chatID string) (*conversation.Controller, bool, error) {
	if chatID == "" {
		ctrl, err := ws.NewChat(ctx)
		return ctrl, true, err
	}
	ctrl, err := ws.OpenChat(ctx, chatID)
	return ctrl, false, err
}
