package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/compliance-radar/pkg/compliance"
	"github.com/user/compliance-radar/pkg/config"
	"github.com/user/compliance-radar/pkg/engine"
	"github.com/user/compliance-radar/pkg/logging"
	"github.com/user/compliance-radar/pkg/orchestrator"
)

// scanResult is the JSON document written by `scan -o json`.
type scanResult struct {
	Report       *engine.ScanReport   `json:"report"`
	Summary      engine.Summary       `json:"summary"`
	Versions     map[string]string    `json:"scanner_versions"`
	Mappings     []compliance.Mapping `json:"mappings"`
	Conformity   map[string]float64   `json:"conformity_scores"`
	Regulations  map[string]string    `json:"regulations"`
	OverallScore float64              `json:"overall_score"`
	Diff         *engine.Diff         `json:"diff,omitempty"`
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the scanners listed in a request file",
	Example: `  compliance-radar scan -f scan.yaml
  compliance-radar scan -f scan.yaml -o json --out report.json --fail-on high
  compliance-radar scan -f scan.yaml --save baseline.json
  compliance-radar scan -f scan.yaml --baseline baseline.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		env, _ := cmd.Flags().GetString("env")
		format, _ := cmd.Flags().GetString("output")
		outPath, _ := cmd.Flags().GetString("out")
		savePath, _ := cmd.Flags().GetString("save")
		baselinePath, _ := cmd.Flags().GetString("baseline")
		profilesDir, _ := cmd.Flags().GetString("profiles")
		failOn, _ := cmd.Flags().GetString("fail-on")

		if format != "text" && format != "json" {
			return fmt.Errorf("unknown output format %q (want text or json)", format)
		}
		var threshold engine.Severity
		if failOn != "" {
			sev, err := engine.ParseSeverity(failOn)
			if err != nil {
				return err
			}
			threshold = sev
		}

		cfg, err := config.LoadConfig(ConfigPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		rf, err := orchestrator.LoadRequestFile(file)
		if err != nil {
			return fmt.Errorf("loading request file: %w", err)
		}
		if env != "" {
			rf.Environment = env
		}

		regs, err := loadRegulations(profilesDir, cfg.ProfilesDir)
		if err != nil {
			return err
		}

		orch, err := orchestrator.NewDefault(cfg.ScannerOptions)
		if err != nil {
			return err
		}
		orch.MaxParallel = cfg.MaxParallel
		orch.Logger = slog.Default()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := orch.RunScan(ctx, rf.Environment, rf.Scans)
		if err != nil {
			return err
		}

		findings := report.Findings()
		conformity := regs.Conformity(findings)
		result := scanResult{
			Report:       report,
			Summary:      report.Summary(),
			Versions:     report.ScannerVersions(),
			Mappings:     regs.Map(findings),
			Conformity:   conformity,
			Regulations:  regulationNames(regs, conformity),
			OverallScore: regs.OverallScore(findings),
		}

		if baselinePath != "" {
			baseline, err := engine.LoadReport(baselinePath)
			if err != nil {
				return fmt.Errorf("loading baseline: %w", err)
			}
			d := engine.CompareReports(baseline, report)
			result.Diff = &d
		}

		if savePath != "" {
			if err := engine.SaveReport(savePath, report); err != nil {
				return fmt.Errorf("saving report: %w", err)
			}
			logging.Debugf("Saved report %s to %s", report.ID, savePath)
		}

		if outPath != "" {
			if err := writeResultFile(outPath, format, result); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
		} else if err := writeResult(cmd.OutOrStdout(), format, result); err != nil {
			return err
		}

		if threshold != "" {
			if n := report.CountAtOrAbove(threshold); n > 0 {
				return fmt.Errorf("%d findings at or above %s", n, threshold)
			}
		}
		return nil
	},
}

func loadRegulations(flagDir, configDir string) (*compliance.Engine, error) {
	regs := compliance.NewEngine()
	if err := regs.LoadBuiltin(); err != nil {
		return nil, fmt.Errorf("loading builtin profiles: %w", err)
	}
	dir := flagDir
	if dir == "" {
		dir = configDir
	}
	if dir != "" {
		if err := regs.LoadProfiles(dir); err != nil {
			return nil, fmt.Errorf("loading profiles from %s: %w", dir, err)
		}
	}
	return regs, nil
}

// regulationNames resolves each scored regulation code to its profile name.
func regulationNames(regs *compliance.Engine, conformity map[string]float64) map[string]string {
	names := make(map[string]string, len(conformity))
	for code := range conformity {
		if p, ok := regs.GetProfile(code); ok && p.Name != "" {
			names[code] = p.Name
		}
	}
	return names
}

// writeResultFile writes the result to path. A failed close is reported
// because it can lose buffered output.
func writeResultFile(path, format string, res scanResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeResult(f, format, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeResult(w io.Writer, format string, res scanResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if err := res.Report.WriteText(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nCOMPLIANCE\n")
	fmt.Fprintf(w, "Overall score: %.0f%%\n", res.OverallScore*100)
	for _, code := range sortedKeys(res.Conformity) {
		fmt.Fprintf(w, "  %-10s %4.0f%%", code, res.Conformity[code]*100)
		if name := res.Regulations[code]; name != "" {
			fmt.Fprintf(w, "  %s", name)
		}
		fmt.Fprintln(w)
	}
	if res.Diff != nil {
		writeDiff(w, *res.Diff)
	}
	return nil
}

func init() {
	scanCmd.Flags().StringP("file", "f", "", "Scan request file (YAML or JSON)")
	scanCmd.Flags().StringP("env", "e", "", "Environment name (overrides the request file)")
	scanCmd.Flags().StringP("output", "o", "text", "Output format: text or json")
	scanCmd.Flags().String("out", "", "Write output to a file instead of stdout")
	scanCmd.Flags().String("save", "", "Save the report as a baseline snapshot")
	scanCmd.Flags().String("baseline", "", "Compare against a saved baseline snapshot")
	scanCmd.Flags().String("profiles", "", "Directory of additional regulation profiles")
	scanCmd.Flags().String("fail-on", "", "Exit non-zero if any finding is at or above this severity")
	_ = scanCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(scanCmd)
}
