// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/app"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conversation"
)

// replHelp lists the slash commands.
const replHelp = `Commands:
  /new               create a conversation and open it
  /open <chat-id>    open a conversation
  /list              list conversations
  /history           print the open conversation
  /upload <file>     attach a PDF to the open conversation
  /attachments       list the open conversation's documents
  /delete [chat-id]  delete a conversation (default: the open one)
  /help              show this help
  /quit              leave

Anything else is sent as a question. Ctrl+C stops an answer; at the
prompt it exits.`

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of input per prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// historyReader is a liner session with history kept on disk.
type historyReader struct {
	state *liner.State
	path  string
}

func newHistoryReader(path string) *historyReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	r := &historyReader{state: state, path: path}
	if f, err := os.Open(path); err == nil {
		_, _ = state.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *historyReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

// Close writes the history file with owner-only permissions and restores
// the terminal.
func (r *historyReader) Close() error {
	if r.path != "" {
		if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err == nil {
			if f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = r.state.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.state.Close()
}

// scanReader reads lines from a pipe without prompting.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) Close() error { return nil }

// newLineReader uses liner on a terminal and a plain scanner otherwise.
func newLineReader(rt *runtime) lineReader {
	if isTerminal(rt.in) && isTerminal(rt.out) {
		path, err := config.HistoryPath()
		if err != nil {
			path = ""
		}
		return newHistoryReader(path)
	}
	return &scanReader{scanner: bufio.NewScanner(rt.in)}
}

// =============================================================================
// SESSION
// =============================================================================

// replSession is one interactive session over a workspace.
type replSession struct {
	rt *runtime
	ws *app.Workspace
	p  *printer
}

func newReplCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat line by line without the full-screen UI",
		Long: `Start a line-based chat session. Answers stream as they arrive and input
history is kept in ~/.docchat/history.

` + replHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd.Context(), rt, newLineReader(rt))
		},
	}
}

// runRepl reads lines until /quit, EOF or Ctrl+C at the prompt.
func runRepl(ctx context.Context, rt *runtime, in lineReader) error {
	defer in.Close()

	ws := rt.headlessWorkspace(true)
	defer ws.Close()

	s := &replSession{rt: rt, ws: ws, p: newPrinter(rt.out)}
	if s.p.tty {
		fmt.Fprintln(rt.out, s.p.muted.Render("Type /help for commands."))
	}

	// Interrupts are handled per query; the session itself only ends on
	// /quit, EOF or an aborted prompt.
	base := context.WithoutCancel(ctx)
	for {
		line, err := in.Prompt(s.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				if s.p.tty {
					fmt.Fprintln(rt.out)
				}
				return nil
			}
			return err
		}
		more, err := s.handleLine(base, line)
		if err != nil {
			fmt.Fprintf(rt.errOut, "Error: %v\n", err)
		}
		if !more {
			return nil
		}
	}
}

func (s *replSession) prompt() string {
	if ctrl := s.ws.Controller(); ctrl != nil {
		return fmt.Sprintf("docchat [%s]> ", shortID(ctrl.ChatID()))
	}
	return "docchat> "
}

// handleLine runs one line of input. It returns false when the session
// should end.
func (s *replSession) handleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}
	if !strings.HasPrefix(line, "/") {
		return true, s.ask(ctx, line)
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return false, nil
	case "/help", "/?":
		fmt.Fprintln(s.rt.out, replHelp)
		return true, nil
	case "/new":
		ctrl, err := s.ws.NewChat(ctx)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(s.rt.out, "Opened new chat %s\n", ctrl.ChatID())
		return true, nil
	case "/open":
		if arg == "" {
			return true, errors.New("usage: /open <chat-id>")
		}
		ctrl, err := s.ws.OpenChat(ctx, arg)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(s.rt.out, "Opened chat %s (%d messages)\n", ctrl.ChatID(), len(ctrl.Messages()))
		return true, nil
	case "/list", "/ls":
		return true, s.list(ctx)
	case "/history":
		return true, s.history()
	case "/upload":
		return true, s.upload(ctx, arg)
	case "/attachments", "/docs":
		return true, s.attachments()
	case "/delete", "/rm":
		return true, s.delete(ctx, arg)
	default:
		return true, fmt.Errorf("unknown command %s (try /help)", name)
	}
}

// ask streams an answer to the open conversation. Ctrl+C cancels it.
func (s *replSession) ask(ctx context.Context, question string) error {
	ctrl := s.ws.Controller()
	if ctrl == nil {
		return fmt.Errorf("%w; use /new or /open <chat-id>", app.ErrNoActiveChat)
	}

	qctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	unsubscribe := ctrl.Subscribe(func(e conversation.Event) {
		if e.Kind == conversation.EventFragment {
			fmt.Fprint(s.rt.out, e.Fragment)
		}
	})
	defer unsubscribe()

	res, err := s.ws.Submit(qctx, question)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			fmt.Fprintln(s.rt.out)
			fmt.Fprintln(s.rt.errOut, s.p.muted.Render("Answer stopped"))
			return nil
		}
		return err
	}
	fmt.Fprintln(s.rt.out)
	s.p.printSources(res.Sources)
	s.rt.logger.Debug("repl_answer",
		zap.String("chat_id", ctrl.ChatID()),
		zap.Int("fragments", res.Fragments),
	)
	return nil
}

func (s *replSession) list(ctx context.Context) error {
	chats, err := s.ws.Chats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Fprintln(s.rt.out, s.p.muted.Render("No chats yet"))
		return nil
	}
	active := s.ws.Active()
	for _, c := range chats {
		marker := "  "
		if c.ID == active {
			marker = "* "
		}
		fmt.Fprintf(s.rt.out, "%s%s  %s\n", marker, c.ID, c.Preview(s.rt.cfg.UI.PreviewWidth))
	}
	return nil
}

func (s *replSession) history() error {
	ctrl := s.ws.Controller()
	if ctrl == nil {
		return app.ErrNoActiveChat
	}
	msgs := ctrl.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(s.rt.out, s.p.muted.Render("No messages yet"))
		return nil
	}
	for _, msg := range msgs {
		s.p.printMessage(msg, false)
	}
	return nil
}

func (s *replSession) upload(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("usage: /upload <file.pdf>")
	}
	res, err := s.ws.Upload(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.rt.out, "%s %s (%d chunks)\n", s.p.success.Render("Uploaded"), res.FileName, res.Chunks)
	return nil
}

func (s *replSession) attachments() error {
	ctrl := s.ws.Controller()
	if ctrl == nil {
		return app.ErrNoActiveChat
	}
	docs := ctrl.Attachments()
	if len(docs) == 0 {
		fmt.Fprintln(s.rt.out, s.p.muted.Render("No documents attached"))
		return nil
	}
	for _, d := range docs {
		fmt.Fprintln(s.rt.out, "- "+d)
	}
	return nil
}

func (s *replSession) delete(ctx context.Context, id string) error {
	if id == "" {
		id = s.ws.Active()
	}
	if id == "" {
		return errors.New("usage: /delete <chat-id>")
	}
	closed, err := s.ws.DeleteChat(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.rt.out, "Deleted %s\n", id)
	if closed {
		fmt.Fprintln(s.rt.out, s.p.muted.Render("The open chat was deleted; use /new or /open <chat-id>."))
	}
	return nil
}

// shortID returns the first eight characters of id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
