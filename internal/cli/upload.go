// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// uploadJSON is the --json shape of one upload.
type uploadJSON struct {
	File      string `json:"file"`
	Size      int64  `json:"size"`
	Chunks    int    `json:"chunks,omitempty"`
	Status    string `json:"status,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newUploadCmd(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "upload <chat-id> <file.pdf>...",
		Short: "Attach PDF documents to a conversation",
		Long: `Upload one or more PDF documents to a conversation. Files are sent one
after another; a failed upload does not stop the rest.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws := rt.headlessWorkspace(asJSON)
			defer ws.Close()

			if _, err := ws.OpenChat(ctx, args[0]); err != nil {
				return err
			}

			p := newPrinter(rt.out)
			results := make([]uploadJSON, 0, len(args)-1)
			var errs []error
			for _, path := range args[1:] {
				res, err := ws.Upload(ctx, path)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
					results = append(results, uploadJSON{File: filepath.Base(path), Error: err.Error()})
					continue
				}
				results = append(results, uploadJSON{
					File:      res.FileName,
					Size:      res.Size,
					Chunks:    res.Chunks,
					Status:    res.Status,
					ElapsedMS: res.Elapsed.Milliseconds(),
				})
				if !asJSON {
					fmt.Fprintf(rt.out, "%s %s (%s, %d chunks, %s)\n",
						p.success.Render("Uploaded"),
						res.FileName,
						humanize.Bytes(uint64(res.Size)),
						res.Chunks,
						res.Elapsed.Round(time.Millisecond),
					)
				}
			}

			if asJSON {
				resp := NewJSONResponse("upload", results)
				if err := errors.Join(errs...); err != nil {
					msg := err.Error()
					resp.Success = false
					resp.Error = &msg
				}
				if werr := resp.Write(rt.out); werr != nil {
					return werr
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}
