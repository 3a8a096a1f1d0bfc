package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sarawakflora/fieldwatch/cmd"
	"github.com/sarawakflora/fieldwatch/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   string
	buildDate string
)

func main() {
	build := buildinfo.NewContext(version, buildDate, "")

	rootCmd := cmd.RootCommand(build)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
