// Tencent is pleased to support the open source community by making trpc-dashfetch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dashfetch-go is licensed under the Apache License Version 2.0.

// Command dashfetch is a command line client for the monitoring dashboard.
package main

import (
	"os"

	"trpc.group/trpc-go/trpc-dashfetch-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
