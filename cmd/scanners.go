package cmd

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/user/compliance-radar/pkg/config"
	"github.com/user/compliance-radar/pkg/scanners"
)

var scannersCmd = &cobra.Command{
	Use:   "scanners",
	Short: "List supported scanners, their binaries and versions",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		for _, kind := range scanners.Kinds() {
			opts := cfg.ScannerOptions(kind)
			adapter, err := scanners.New(kind, opts)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}

			status := "found"
			if _, err := exec.LookPath(opts.Path); err != nil {
				status = "not found"
			}
			fmt.Printf("%-11s %-8s %-10s %s\n", kind, adapter.Version(ctx), status, opts.Path)
		}
	},
}

func init() {
	rootCmd.AddCommand(scannersCmd)
}
