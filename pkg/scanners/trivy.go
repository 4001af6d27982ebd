package scanners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/compliance-radar/pkg/engine"
)

const trivyFallbackVersion = "0.50.0"

var trivyDefaultSeverities = []string{"CRITICAL", "HIGH", "MEDIUM"}

// trivyScanTypes maps target kinds onto trivy subcommands.
var trivyScanTypes = map[string]string{
	"container-image": "image",
	"image":           "image",
	"filesystem":      "fs",
	"fs":              "fs",
	"config":          "config",
	"repository":      "repo",
	"repo":            "repo",
	"rootfs":          "rootfs",
}

// Trivy scans images, filesystems and IaC configuration with trivy.
type Trivy struct {
	opts Options
}

// NewTrivy creates a trivy adapter.
func NewTrivy(opts Options) *Trivy {
	return &Trivy{opts: opts.withDefaults(string(KindTrivy))}
}

func (t *Trivy) Name() Kind {
	return KindTrivy
}

func (t *Trivy) Version(ctx context.Context) string {
	return probeVersion(ctx, t.opts.VersionTimeout, t.opts.Path, trivyFallbackVersion, "--version")
}

func (t *Trivy) CanRun(target Target) bool {
	if target.Kind == "" {
		return true
	}
	_, ok := trivyScanTypes[target.Kind]
	return ok
}

// Run executes trivy and reports every vulnerability and failing misconfiguration.
//
// Parameters: target (required, alias image), scan_type (default from the target kind,
// else image) and severity (default CRITICAL,HIGH,MEDIUM).
func (t *Trivy) Run(ctx context.Context, target Target) []engine.Finding {
	return guard(KindTrivy, "Trivy", func() ([]engine.Finding, error) {
		args, scanTarget, err := trivyArgs(target)
		if err != nil {
			return nil, err
		}

		out, err := runTool(ctx, t.opts.ScanTimeout, t.opts.Path, args...)
		if err != nil {
			return nil, err
		}
		if out.unusable() {
			return nil, out.executionError()
		}
		return parseTrivy(out.Stdout, scanTarget)
	})
}

func trivyArgs(target Target) ([]string, string, error) {
	scanTarget := target.stringParam("", "target", "image")
	if scanTarget == "" {
		return nil, "", fmt.Errorf("%w: trivy requires a target", ErrInvalidTarget)
	}

	scanType := target.stringParam("", "scan_type")
	if scanType == "" {
		scanType = trivyScanTypes[target.Kind]
	}
	if scanType == "" {
		scanType = "image"
	}

	severities := target.listParam("severity")
	if len(severities) == 0 {
		severities = trivyDefaultSeverities
	}
	upper := make([]string, len(severities))
	for i, s := range severities {
		upper[i] = strings.ToUpper(s)
	}

	return []string{
		scanType,
		"--format", "json",
		"--severity", strings.Join(upper, ","),
		scanTarget,
	}, scanTarget, nil
}

type trivyReport struct {
	Results []trivyResult `json:"Results"`
}

type trivyResult struct {
	Target            *string           `json:"Target"`
	Vulnerabilities   []json.RawMessage `json:"Vulnerabilities"`
	Misconfigurations []json.RawMessage `json:"Misconfigurations"`
}

type trivyVulnerability struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	FixedVersion     string `json:"FixedVersion"`
	Title            string `json:"Title"`
	Description      string `json:"Description"`
	Severity         string `json:"Severity"`
}

type trivyMisconfiguration struct {
	ID          string `json:"ID"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Resolution  string `json:"Resolution"`
	Severity    string `json:"Severity"`
	Status      string `json:"Status"`
}

// parseTrivy accepts the Report document and the bare result array of older releases.
// Within a result, vulnerabilities come before misconfigurations.
func parseTrivy(data []byte, scanTarget string) ([]engine.Finding, error) {
	var report trivyReport
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &report.Results); err != nil {
			return nil, fmt.Errorf("%w: trivy: %v", ErrOutputParse, err)
		}
	} else if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, fmt.Errorf("%w: trivy: %v", ErrOutputParse, err)
	}

	findings := []engine.Finding{}
	for _, result := range report.Results {
		// Only a missing Target falls back; an explicit "" is kept.
		targetName := scanTarget
		if result.Target != nil {
			targetName = *result.Target
		}

		for _, raw := range result.Vulnerabilities {
			var v trivyVulnerability
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("%w: trivy vulnerability: %v", ErrOutputParse, err)
			}
			remediation := "No fix available"
			if v.FixedVersion != "" {
				remediation = "Upgrade to version " + v.FixedVersion
			}
			findings = append(findings, engine.NewFinding(engine.FindingSpec{
				Scanner:      string(KindTrivy),
				CheckID:      orDefault(v.VulnerabilityID, "unknown"),
				Title:        orDefault(v.PkgName, "Unknown") + " - " + v.VulnerabilityID,
				Description:  orDefault(v.Description, v.Title),
				Severity:     orDefault(v.Severity, "medium"),
				ResourceType: "Package",
				ResourceID:   v.PkgName + "@" + v.InstalledVersion,
				Remediation:  remediation,
				RawData:      rawRecord(raw),
			}))
		}

		for _, raw := range result.Misconfigurations {
			var m trivyMisconfiguration
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, fmt.Errorf("%w: trivy misconfiguration: %v", ErrOutputParse, err)
			}
			switch strings.ToUpper(m.Status) {
			case "PASS", "EXCEPTION":
				continue
			}
			findings = append(findings, engine.NewFinding(engine.FindingSpec{
				Scanner:      string(KindTrivy),
				CheckID:      orDefault(m.ID, "unknown"),
				Title:        orDefault(m.Title, "Unknown misconfiguration"),
				Description:  m.Description,
				Severity:     orDefault(m.Severity, "medium"),
				ResourceType: "Configuration",
				ResourceID:   targetName,
				Remediation:  m.Resolution,
				RawData:      rawRecord(raw),
			}))
		}
	}
	return findings, nil
}
