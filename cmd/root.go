package cmd

import (
	"github.com/spf13/cobra"

	"github.com/user/compliance-radar/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "compliance-radar",
	Short: "Run security scanners and normalize their findings",
	Long: `compliance-radar runs kube-bench, prowler and trivy side by side, turns their
native reports into one normalized finding list and maps it onto regulation controls.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(DebugMode)
	},
}

var (
	DebugMode  bool
	ConfigPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default ~/.compliance-radar/config.yaml)")
}
