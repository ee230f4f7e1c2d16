// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the docchat backend.
//
// The backend exposes a small JSON API for conversations and an unframed
// text stream for query answers. Citation metadata never appears in the
// stream; it is only visible on a later conversation fetch.
//
// # Key Types
//
//   - Client: list, create, delete, fetch, upload and query operations
//   - Stream: lazy fragment reader over a query response body
//   - ClientError: typed failure (transport, server, stream interrupted)
//
// # Usage
//
//	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: url})
//	stream, err := client.Query(ctx, chatID, "What is X?")
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    frag, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err // api.IsStreamInterrupted(err)
//	    }
//	    fmt.Print(frag)
//	}
//
// # Rate Limiting
//
// Every request waits on a token bucket (golang.org/x/time/rate) and carries
// an X-Request-ID header for log correlation.
package api
