// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main implements a minimal optplug extension used as a
// reference for plugin authors. Build it, zip the binary together with
// plugin.yaml into greeter.hpk, and drop the archive into a source
// directory.
package main

import (
	"log/slog"

	"github.com/holomush/optplug/pkg/sdk"
)

const version = "1.0.0"

type greeter struct{}

func (greeter) Describe() (sdk.Info, error) {
	return sdk.Info{Name: "greeter", Version: version}, nil
}

func (greeter) Activate() error {
	slog.Info("greeter extension activated", "version", version)
	return nil
}

func main() {
	sdk.Serve(greeter{})
}
