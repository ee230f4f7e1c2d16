// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
)

// ErrConfirmationRequired is returned by chats rm without --yes when no
// terminal is available to ask.
var ErrConfirmationRequired = errors.New("refusing to delete without confirmation; pass --yes")

func newChatsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"chat"},
		Short:   "List, create, show and delete conversations",
	}
	cmd.AddCommand(
		newChatsListCmd(rt),
		newChatsNewCmd(rt),
		newChatsShowCmd(rt),
		newChatsRmCmd(rt),
	)
	return cmd
}

// =============================================================================
// LIST
// =============================================================================

func newChatsListCmd(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := rt.headlessWorkspace(true)
			defer ws.Close()

			chats, err := ws.Chats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				out := make([]conversationJSON, 0, len(chats))
				for _, c := range chats {
					out = append(out, toJSON(c))
				}
				return NewJSONResponse("chats list", out).Write(rt.out)
			}

			p := newPrinter(rt.out)
			if len(chats) == 0 {
				fmt.Fprintln(rt.out, p.muted.Render("No chats yet"))
				return nil
			}
			for _, c := range chats {
				fmt.Fprintf(rt.out, "%s  %s  %s\n",
					c.ID,
					p.title.Render(c.Preview(rt.cfg.UI.PreviewWidth)),
					p.muted.Render(english.Plural(len(c.Messages), "message", "")+", "+english.Plural(len(c.Attachments), "document", "")),
				)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// =============================================================================
// NEW
// =============================================================================

func newChatsNewCmd(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a conversation and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := rt.headlessWorkspace(true)
			defer ws.Close()

			conv, err := ws.Cache().Create(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return NewJSONResponse("chats new", map[string]string{"chat_id": conv.ID}).Write(rt.out)
			}
			fmt.Fprintln(rt.out, conv.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// =============================================================================
// SHOW
// =============================================================================

func newChatsShowCmd(rt *runtime) *cobra.Command {
	var asJSON, render bool
	cmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print a conversation with its attachments and sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := rt.headlessWorkspace(true)
			defer ws.Close()

			conv, err := ws.Cache().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return NewJSONResponse("chats show", toJSON(conv)).Write(rt.out)
			}

			p := newPrinter(rt.out)
			fmt.Fprintln(rt.out, p.title.Render("Chat "+conv.ShortID()+"..."))
			if summary := conv.AttachmentSummary(); summary != "" {
				fmt.Fprintf(rt.out, "%s %s\n", p.muted.Render(summary+":"), strings.Join(conv.Attachments, ", "))
			}
			fmt.Fprintln(rt.out)
			if conv.IsEmpty() {
				fmt.Fprintln(rt.out, p.muted.Render("No messages yet"))
				return nil
			}
			for _, msg := range conv.Messages {
				p.printMessage(msg, render)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().BoolVar(&render, "render", false, "render answers as markdown")
	return cmd
}

// =============================================================================
// RM
// =============================================================================

func newChatsRmCmd(rt *runtime) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm <chat-id>...",
		Aliases: []string{"delete"},
		Short:   "Delete conversations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm(rt, fmt.Sprintf("Delete %s? [y/N] ", english.Plural(len(args), "conversation", "")))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(rt.errOut, "Cancelled")
					return nil
				}
			}

			ws := rt.headlessWorkspace(false)
			defer ws.Close()

			var errs []error
			for _, id := range args {
				if _, err := ws.DeleteChat(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(rt.out, "Deleted %s\n", id)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on the terminal.
func confirm(rt *runtime, prompt string) (bool, error) {
	if !isTerminal(rt.in) {
		return false, ErrConfirmationRequired
	}
	fmt.Fprint(rt.errOut, prompt)
	line, err := bufio.NewReader(rt.in).ReadString('\n')
	if err != nil {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
