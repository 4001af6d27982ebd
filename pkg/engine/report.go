package engine

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ScanOutcome is one adapter's complete result for one invocation.
type ScanOutcome struct {
	Scanner    string    `json:"scanner"`
	Version    string    `json:"version"`
	TargetKind string    `json:"target_kind,omitempty"`
	Findings   []Finding `json:"findings"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	SkipReason string    `json:"skip_reason,omitempty"`
}

// Failed reports whether the scanner could not produce real findings.
func (o ScanOutcome) Failed() bool {
	return o.Error != ""
}

// ScanReport aggregates the outcomes of one orchestrated scan, in request order.
type ScanReport struct {
	ID          string        `json:"id"`
	Environment string        `json:"environment"`
	Outcomes    []ScanOutcome `json:"outcomes"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Findings flattens all outcome findings, outcome by outcome. Nothing is deduplicated.
func (r *ScanReport) Findings() []Finding {
	var out []Finding
	for _, o := range r.Outcomes {
		out = append(out, o.Findings...)
	}
	return out
}

// ScannerVersions returns the tool version reported by each dispatched scanner.
func (r *ScanReport) ScannerVersions() map[string]string {
	versions := make(map[string]string)
	for _, o := range r.Outcomes {
		if o.Skipped || o.Version == "" {
			continue
		}
		versions[o.Scanner] = o.Version
	}
	return versions
}

// Summary holds the aggregate counts of a report.
type Summary struct {
	TotalChecks     int              `json:"total_checks"`
	BySeverity      map[Severity]int `json:"by_severity"`
	FailedScanners  int              `json:"failed_scanners"`
	SkippedScanners int              `json:"skipped_scanners"`
	DurationMs      int64            `json:"duration_ms"`
}

// Summary counts findings by severity and scanners by state.
func (r *ScanReport) Summary() Summary {
	s := Summary{BySeverity: make(map[Severity]int, len(Severities))}
	for _, sev := range Severities {
		s.BySeverity[sev] = 0
	}
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			s.SkippedScanners++
		case o.Failed():
			s.FailedScanners++
		}
		for _, f := range o.Findings {
			s.TotalChecks++
			s.BySeverity[f.Severity]++
		}
	}
	if !r.CompletedAt.IsZero() {
		s.DurationMs = r.CompletedAt.Sub(r.StartedAt).Milliseconds()
	}
	return s
}

// WorstSeverity returns the most severe level present, and false when there are no findings.
func (r *ScanReport) WorstSeverity() (Severity, bool) {
	var worst Severity
	found := false
	for _, f := range r.Findings() {
		if !found || f.Severity.Rank() > worst.Rank() {
			worst = f.Severity
			found = true
		}
	}
	return worst, found
}

// CountAtOrAbove counts real findings at least as severe as threshold.
func (r *ScanReport) CountAtOrAbove(threshold Severity) int {
	n := 0
	for _, f := range r.Findings() {
		if !f.IsError() && f.Severity.Rank() >= threshold.Rank() {
			n++
		}
	}
	return n
}

// WriteText renders a human-readable report.
func (r *ScanReport) WriteText(w io.Writer) error {
	var sb strings.Builder
	sum := r.Summary()

	sb.WriteString(fmt.Sprintf("Scan %s (environment: %s)\n", r.ID, r.Environment))
	sb.WriteString("--------------------------------------------------\n")
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			sb.WriteString(fmt.Sprintf("%s: skipped (%s)\n", o.Scanner, o.SkipReason))
			continue
		case o.Failed():
			sb.WriteString(fmt.Sprintf("%s %s: FAILED after %dms: %s\n", o.Scanner, o.Version, o.DurationMs, o.Error))
		default:
			sb.WriteString(fmt.Sprintf("%s %s: %d findings in %dms\n", o.Scanner, o.Version, len(o.Findings), o.DurationMs))
		}
		for _, f := range o.Findings {
			if f.IsError() {
				continue
			}
			sb.WriteString(fmt.Sprintf("  [%s] %s %s\n", f.Severity, f.CheckID, f.Title))
			if f.ResourceID != "" {
				sb.WriteString(fmt.Sprintf("    Resource: %s %s", f.ResourceType, f.ResourceID))
				if f.ResourceRegion != "" {
					sb.WriteString(" (" + f.ResourceRegion + ")")
				}
				sb.WriteString("\n")
			}
			if f.Remediation != "" {
				sb.WriteString(fmt.Sprintf("    Fix: %s\n", f.Remediation))
			}
		}
	}

	sb.WriteString("\nSUMMARY\n")
	sb.WriteString(fmt.Sprintf("Total findings: %d\n", sum.TotalChecks))
	if worst, ok := r.WorstSeverity(); ok {
		sb.WriteString(fmt.Sprintf("Worst severity: %s\n", worst))
	}
	for _, sev := range Severities {
		sb.WriteString(fmt.Sprintf("  %-8s %d\n", sev, sum.BySeverity[sev]))
	}
	if sum.FailedScanners > 0 {
		sb.WriteString(fmt.Sprintf("Failed scanners: %d\n", sum.FailedScanners))
	}
	if sum.SkippedScanners > 0 {
		sb.WriteString(fmt.Sprintf("Skipped scanners: %d\n", sum.SkippedScanners))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
