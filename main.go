// docchat - A terminal client for chatting with your PDF documents.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/jeranaias/docchat-tui/internal/cli"

func main() {
	cli.Execute()
}
