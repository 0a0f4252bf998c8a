package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/zatile/internal/hostinfo"
	"github.com/samcharles93/zatile/internal/version"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version and host information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("version: %s\n", version.String())
			fmt.Printf("go:      %s\n", runtime.Version())
			fmt.Printf("cpu:     %s\n", hostinfo.Detect())
			return nil
		},
	}
}
