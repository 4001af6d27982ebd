package scanners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/compliance-radar/pkg/engine"
)

const (
	kubeBenchFallbackVersion = "0.7.0"
	kubeBenchDefaultBench    = "cis-1.8"
)

// KubeBench runs the CIS Kubernetes benchmark through kube-bench.
type KubeBench struct {
	opts Options
}

// NewKubeBench creates a kube-bench adapter.
func NewKubeBench(opts Options) *KubeBench {
	return &KubeBench{opts: opts.withDefaults(string(KindKubeBench))}
}

func (k *KubeBench) Name() Kind {
	return KindKubeBench
}

func (k *KubeBench) Version(ctx context.Context) string {
	return probeVersion(ctx, k.opts.VersionTimeout, k.opts.Path, kubeBenchFallbackVersion, "version")
}

func (k *KubeBench) CanRun(target Target) bool {
	return kindIn(target.Kind, "kubernetes", "k8s")
}

// Run executes kube-bench and reports every FAIL result.
//
// Parameters: context (kubectl context), benchmark (default cis-1.8), version
// (Kubernetes version, used instead of the default benchmark) and targets.
func (k *KubeBench) Run(ctx context.Context, target Target) []engine.Finding {
	return guard(KindKubeBench, "kube-bench", func() ([]engine.Finding, error) {
		kubeContext := target.stringParam("", "context")

		out, err := runTool(ctx, k.opts.ScanTimeout, k.opts.Path, kubeBenchArgs(target)...)
		if err != nil {
			return nil, err
		}
		if out.unusable() {
			return nil, out.executionError()
		}
		return parseKubeBench(out.Stdout, kubeContext)
	})
}

func kubeBenchArgs(target Target) []string {
	args := []string{"run", "--json"}
	if c := target.stringParam("", "context"); c != "" {
		args = append(args, "--context", c)
	}

	benchmark := target.stringParam("", "benchmark")
	version := target.stringParam("", "version")
	switch {
	case benchmark != "":
		args = append(args, "--benchmark", benchmark)
	case version != "":
		args = append(args, "--version", version)
	default:
		args = append(args, "--benchmark", kubeBenchDefaultBench)
	}

	if targets := target.listParam("targets"); len(targets) > 0 {
		args = append(args, "--targets", strings.Join(targets, ","))
	}
	return args
}

type kubeBenchReport struct {
	Controls []kubeBenchControl `json:"Controls"`
}

type kubeBenchControl struct {
	ID    string          `json:"id"`
	Text  string          `json:"text"`
	Tests []kubeBenchTest `json:"tests"`
}

type kubeBenchTest struct {
	Section string            `json:"section"`
	Desc    string            `json:"desc"`
	Results []json.RawMessage `json:"results"`
}

type kubeBenchResult struct {
	TestNumber  string `json:"test_number"`
	TestDesc    string `json:"test_desc"`
	Reason      string `json:"reason"`
	Remediation string `json:"remediation"`
	Status      string `json:"status"`
	Scored      *bool  `json:"scored"`
}

// parseKubeBench accepts both the {"Controls": [...]} document and the bare control array
// printed by older releases.
func parseKubeBench(data []byte, kubeContext string) ([]engine.Finding, error) {
	var report kubeBenchReport
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &report.Controls); err != nil {
			return nil, fmt.Errorf("%w: kube-bench: %v", ErrOutputParse, err)
		}
	} else if err := json.Unmarshal(trimmed, &report); err != nil {
		return nil, fmt.Errorf("%w: kube-bench: %v", ErrOutputParse, err)
	}

	resourceID := kubeContext
	if resourceID == "" {
		resourceID = "default"
	}

	findings := []engine.Finding{}
	for _, control := range report.Controls {
		for _, test := range control.Tests {
			for _, raw := range test.Results {
				var res kubeBenchResult
				if err := json.Unmarshal(raw, &res); err != nil {
					return nil, fmt.Errorf("%w: kube-bench result: %v", ErrOutputParse, err)
				}
				if !strings.EqualFold(res.Status, "FAIL") {
					continue
				}
				findings = append(findings, engine.NewFinding(engine.FindingSpec{
					Scanner:      string(KindKubeBench),
					CheckID:      orDefault(res.TestNumber, "unknown"),
					Title:        orDefault(res.TestDesc, "Unknown check"),
					Description:  orDefault(res.Reason, "Check failed"),
					Severity:     string(kubeBenchSeverity(res.Scored)),
					ResourceType: "Kubernetes",
					ResourceID:   resourceID,
					Remediation:  res.Remediation,
					RawData:      rawRecord(raw),
				}))
			}
		}
	}
	return findings, nil
}

// kubeBenchSeverity maps the scored flag: scored checks are high, unscored medium.
// A missing flag counts as scored.
func kubeBenchSeverity(scored *bool) engine.Severity {
	if scored == nil || *scored {
		return engine.SeverityHigh
	}
	return engine.SeverityMedium
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// rawRecord keeps the native record as a generic map.
func rawRecord(raw json.RawMessage) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return m
}
