// SPDX-FileCopyrightText: Copyright 2026 The MPD Authors
// SPDX-License-Identifier: Apache-2.0

// Command mpd runs the link authentication and accounting daemon.
package main

import (
	"os"

	"github.com/mpd-project/mpd/cmd/mpd/app"
	"github.com/mpd-project/mpd/pkg/logger"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("mpd: %v", err)
		os.Exit(1)
	}
}
