package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/compliance-radar/pkg/config"
	"github.com/user/compliance-radar/pkg/scanners"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (scanner paths, timeouts)",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Printf("Error encoding config: %v\n", err)
			return
		}
		fmt.Print(string(data))

		for _, kind := range scanners.Kinds() {
			if path := cfg.ScannerOptions(kind).Path; path != cfg.Scanners[string(kind)].Path {
				fmt.Printf("# %s overridden by %s=%s\n", kind, config.EnvVar(kind), path)
			}
		}
	},
}

var setPathCmd = &cobra.Command{
	Use:   "set-path",
	Short: "Set the binary path of a scanner",
	Run: func(cmd *cobra.Command, args []string) {
		scanner, _ := cmd.Flags().GetString("scanner")
		path, _ := cmd.Flags().GetString("path")

		if scanner == "" || path == "" {
			fmt.Println("Error: --scanner and --path are required")
			return
		}

		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		if err := cfg.SetScannerPath(strings.ToLower(scanner), path); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if err := config.SaveConfig(ConfigPath, cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Path saved for scanner: %s\n", scanner)
	},
}

var setTimeoutCmd = &cobra.Command{
	Use:   "set-timeout",
	Short: "Set the scan or version-probe timeout",
	Run: func(cmd *cobra.Command, args []string) {
		scan, _ := cmd.Flags().GetDuration("scan")
		version, _ := cmd.Flags().GetDuration("version")

		if scan == 0 && version == 0 {
			fmt.Println("Error: --scan or --version is required")
			return
		}

		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		for which, d := range map[string]time.Duration{"scan": scan, "version": version} {
			if d == 0 {
				continue
			}
			if err := cfg.SetTimeout(which, d); err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
		}
		if err := config.SaveConfig(ConfigPath, cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}
		fmt.Printf("Timeouts updated: Scan=%s, Version=%s\n", cfg.ScanTimeout, cfg.VersionTimeout)
	},
}

func init() {
	setPathCmd.Flags().StringP("scanner", "s", "", "Scanner (kube-bench, prowler, trivy)")
	setPathCmd.Flags().StringP("path", "p", "", "Binary path or name on PATH")

	setTimeoutCmd.Flags().Duration("scan", 0, "Scan timeout (e.g. 45m)")
	setTimeoutCmd.Flags().Duration("version", 0, "Version probe timeout (e.g. 10s)")

	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setPathCmd)
	configCmd.AddCommand(setTimeoutCmd)
	rootCmd.AddCommand(configCmd)
}
