package scanners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/compliance-radar/pkg/engine"
)

const (
	prowlerFallbackVersion = "4.0.0"
	prowlerOutputName      = "prowler-output"
)

// Prowler audits an AWS account with prowler.
type Prowler struct {
	opts Options
}

// NewProwler creates a prowler adapter.
func NewProwler(opts Options) *Prowler {
	return &Prowler{opts: opts.withDefaults(string(KindProwler))}
}

func (p *Prowler) Name() Kind {
	return KindProwler
}

func (p *Prowler) Version(ctx context.Context) string {
	return probeVersion(ctx, p.opts.VersionTimeout, p.opts.Path, prowlerFallbackVersion, "--version")
}

func (p *Prowler) CanRun(target Target) bool {
	return kindIn(target.Kind, "aws")
}

// Run executes prowler into a scratch directory and reports every FAIL check.
// The directory is removed before Run returns.
func (p *Prowler) Run(ctx context.Context, target Target) []engine.Finding {
	return guard(KindProwler, "Prowler", func() ([]engine.Finding, error) {
		dir, err := os.MkdirTemp("", "prowler-*")
		if err != nil {
			return nil, fmt.Errorf("%w: create output directory: %v", ErrExecution, err)
		}
		defer os.RemoveAll(dir)

		out, err := runTool(ctx, p.opts.ScanTimeout, p.opts.Path, prowlerArgs(target, dir)...)
		if err != nil {
			return nil, err
		}

		// prowler exits non-zero whenever a check fails, so the report file decides.
		reportPath, ok := findProwlerReport(dir)
		if !ok {
			if out.ExitCode != 0 {
				return nil, out.executionError()
			}
			return nil, fmt.Errorf("%w: no output file generated", ErrExecution)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrOutputParse, filepath.Base(reportPath), err)
		}
		// An empty report is a clean run only when prowler also exited 0.
		if len(bytes.TrimSpace(data)) == 0 && out.ExitCode != 0 {
			return nil, out.executionError()
		}
		return parseProwler(data)
	})
}

func prowlerArgs(target Target, dir string) []string {
	args := []string{
		"aws",
		"--output-modes", "json",
		"--output-filename", prowlerOutputName,
		"--output-directory", dir,
		"--profile", target.stringParam("default", "profile"),
	}
	if regions := target.listParam("regions"); len(regions) > 0 {
		args = append(append(args, "--regions"), regions...)
	}
	if services := target.listParam("services"); len(services) > 0 {
		args = append(append(args, "--services"), services...)
	}
	if severities := target.listParam("severity"); len(severities) > 0 {
		for i, s := range severities {
			severities[i] = strings.ToLower(s)
		}
		args = append(append(args, "--severity"), severities...)
	}
	return append(args, "--no-banner")
}

func findProwlerReport(dir string) (string, bool) {
	expected := filepath.Join(dir, prowlerOutputName+".json")
	if _, err := os.Stat(expected); err == nil {
		return expected, true
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(matches) > 0 {
		return matches[0], true
	}
	return "", false
}

type prowlerCheck struct {
	Status       string             `json:"Status"`
	CheckID      string             `json:"CheckID"`
	CheckTitle   string             `json:"CheckTitle"`
	Description  string             `json:"Description"`
	Severity     string             `json:"Severity"`
	ResourceType string             `json:"ResourceType"`
	ResourceID   string             `json:"ResourceId"`
	Region       string             `json:"Region"`
	Remediation  prowlerRemediation `json:"Remediation"`
}

type prowlerRemediation struct {
	Recommendation json.RawMessage `json:"Recommendation"`
}

// text returns the recommendation, which is a plain string in some releases and an
// object with a Text field in others.
func (r prowlerRemediation) text() string {
	if len(r.Recommendation) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Recommendation, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"Text"`
		URL  string `json:"Url"`
	}
	if err := json.Unmarshal(r.Recommendation, &obj); err == nil {
		return obj.Text
	}
	return ""
}

func parseProwler(data []byte) ([]engine.Finding, error) {
	findings := []engine.Finding{}
	if len(bytes.TrimSpace(data)) == 0 {
		return findings, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: prowler: %v", ErrOutputParse, err)
	}

	for _, raw := range records {
		var check prowlerCheck
		if err := json.Unmarshal(raw, &check); err != nil {
			return nil, fmt.Errorf("%w: prowler check: %v", ErrOutputParse, err)
		}
		if !strings.EqualFold(check.Status, "FAIL") {
			continue
		}
		findings = append(findings, engine.NewFinding(engine.FindingSpec{
			Scanner:        string(KindProwler),
			CheckID:        orDefault(check.CheckID, "unknown"),
			Title:          orDefault(check.CheckTitle, "Unknown check"),
			Description:    check.Description,
			Severity:       orDefault(check.Severity, "medium"),
			ResourceType:   orDefault(check.ResourceType, "AWS"),
			ResourceID:     check.ResourceID,
			ResourceRegion: check.Region,
			Remediation:    check.Remediation.text(),
			RawData:        rawRecord(raw),
		}))
	}
	return findings, nil
}
