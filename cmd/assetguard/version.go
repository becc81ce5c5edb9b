package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"assetguard/internal/app"
	"assetguard/internal/config"
)

func newVersionCmd(_ func() (*app.Service, error), jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version": config.Version,
				"commit":  config.Commit,
				"date":    config.Date,
				"go":      runtime.Version(),
			}
			if *jsonOutput {
				return print(true, info, "")
			}
			fmt.Printf("assetguard %s (%s)\ncommit: %s\nbuilt at: %s\n", config.Version, runtime.Version(), config.Commit, config.Date)
			return nil
		},
	}
}
