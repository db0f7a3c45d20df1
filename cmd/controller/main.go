package main

import (
	"log/slog"
	"os"

	"github.com/document-crunch/streamlit-operator/cmd/controller/cmd"
)

//nolint:gochecknoglobals // set by ldflags at build time
var (
	Version = "development"
	Gitsha  = "development"
)

//nolint:noinlineerr // inline error handling is standard for main
func main() {
	cmd.SetVersion(Version, Gitsha)

	if err := cmd.Execute(); err != nil {
		slog.Error("streamlit-operator exited", "error", err)
		os.Exit(1)
	}
}
