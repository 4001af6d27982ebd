package scanners

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/user/compliance-radar/pkg/engine"
)

const kubeBenchOutput = `{
  "Controls": [
    {
      "id": "1",
      "text": "Control Plane Security Configuration",
      "tests": [
        {
          "section": "1.1",
          "desc": "Control Plane Node Configuration Files",
          "results": [
            {"test_number": "1.1.1", "test_desc": "Ensure that the API server pod specification file permissions are set to 600 or more restrictive", "status": "FAIL", "scored": true, "reason": "permissions are 644", "remediation": "chmod 600 /etc/kubernetes/manifests/kube-apiserver.yaml"},
            {"test_number": "1.1.2", "test_desc": "Ensure that the API server pod specification file ownership is set to root:root", "status": "PASS", "scored": true}
          ]
        },
        {
          "section": "1.2",
          "desc": "API Server",
          "results": [
            {"test_number": "1.2.1", "test_desc": "Ensure that the --anonymous-auth argument is set to false", "status": "FAIL", "scored": false, "remediation": "Set --anonymous-auth=false"},
            {"test_number": "1.2.2", "test_desc": "Ensure that the --token-auth-file parameter is not set", "status": "PASS", "scored": true},
            {"test_number": "1.2.6", "test_desc": "Ensure that the --authorization-mode argument is not set to AlwaysAllow", "status": "FAIL"}
          ]
        }
      ]
    }
  ],
  "Totals": {"total_pass": 2, "total_fail": 3}
}`

func TestKubeBenchReportsOnlyFailingResults(t *testing.T) {
	kb := NewKubeBench(testOptions(catTool(t, "kube-bench", kubeBenchOutput, 0)))
	target := Target{Kind: "kubernetes", Parameters: map[string]any{"context": "kind-vulnerable"}}

	findings := kb.Run(context.Background(), target)
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d: %+v", len(findings), findings)
	}

	wantIDs := []string{"1.1.1", "1.2.1", "1.2.6"}
	wantSev := []engine.Severity{engine.SeverityHigh, engine.SeverityMedium, engine.SeverityHigh}
	for i, f := range findings {
		if f.Scanner != "kube-bench" {
			t.Errorf("finding %d: scanner %q", i, f.Scanner)
		}
		if f.CheckID != wantIDs[i] {
			t.Errorf("finding %d: check id %q, want %q", i, f.CheckID, wantIDs[i])
		}
		if f.Severity != wantSev[i] {
			t.Errorf("finding %d: severity %q, want %q", i, f.Severity, wantSev[i])
		}
		if f.ResourceType != "Kubernetes" || f.ResourceID != "kind-vulnerable" {
			t.Errorf("finding %d: resource %q/%q", i, f.ResourceType, f.ResourceID)
		}
		if f.RawData["test_number"] != wantIDs[i] {
			t.Errorf("finding %d: raw data not retained: %v", i, f.RawData)
		}
	}
	if findings[0].Description != "permissions are 644" {
		t.Errorf("unexpected description %q", findings[0].Description)
	}
	if findings[1].Description != "Check failed" {
		t.Errorf("expected default description, got %q", findings[1].Description)
	}
	again := kb.Run(context.Background(), target)
	if !reflect.DeepEqual(hashes(findings), hashes(again)) {
		t.Errorf("hashes differ between identical runs")
	}
}

func TestKubeBenchDefaultResourceID(t *testing.T) {
	kb := NewKubeBench(testOptions(catTool(t, "kube-bench", kubeBenchOutput, 0)))
	findings := kb.Run(context.Background(), Target{Kind: "kubernetes"})
	if len(findings) == 0 {
		t.Fatal("expected findings")
	}
	if findings[0].ResourceID != "default" {
		t.Errorf("expected resource id default, got %q", findings[0].ResourceID)
	}
	// sha256("kube-bench:1.1.1:default:<title>")
	want := "0e6a72bffbb17e66440e27f3b7ebed7606846fe70e60486d6ebf46b8482d2b1c"
	if findings[0].FindingHash != want {
		t.Errorf("hash = %s, want %s", findings[0].FindingHash, want)
	}
}

func TestParseKubeBenchLegacyArray(t *testing.T) {
	legacy := `[{"id":"4","tests":[{"section":"4.1","results":[{"test_number":"4.1.1","test_desc":"kubelet service file permissions","status":"FAIL","scored":true},{"test_number":"4.1.2","status":"WARN","scored":false}]}]}]`
	findings, err := parseKubeBench([]byte(legacy), "")
	if err != nil {
		t.Fatalf("parseKubeBench: %v", err)
	}
	if len(findings) != 1 || findings[0].CheckID != "4.1.1" {
		t.Fatalf("unexpected findings: %+v", findings)
	}
}

func TestParseKubeBenchMalformed(t *testing.T) {
	if _, err := parseKubeBench([]byte("kube-bench: unknown flag --context"), ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestKubeBenchArgs(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]any
		want   []string
	}{
		{"defaults", nil, []string{"run", "--json", "--benchmark", "cis-1.8"}},
		{"context and benchmark", map[string]any{"context": "prod", "benchmark": "eks-1.2.0"},
			[]string{"run", "--json", "--context", "prod", "--benchmark", "eks-1.2.0"}},
		{"kubernetes version", map[string]any{"version": "1.27"}, []string{"run", "--json", "--version", "1.27"}},
		{"targets list", map[string]any{"targets": []any{"master", "node"}},
			[]string{"run", "--json", "--benchmark", "cis-1.8", "--targets", "master,node"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := kubeBenchArgs(Target{Kind: "kubernetes", Parameters: tc.params})
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("args = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestKubeBenchNonZeroExitWithoutOutput(t *testing.T) {
	path := writeTool(t, "kube-bench", "echo 'unable to determine benchmark version' >&2\nexit 1\n")
	findings := NewKubeBench(testOptions(path)).Run(context.Background(), Target{Kind: "kubernetes"})
	f := requireSingleError(t, findings, "kube-bench")
	if !strings.Contains(f.ErrorMessage(), "unable to determine benchmark version") {
		t.Errorf("stderr not carried: %q", f.ErrorMessage())
	}
}

func TestKubeBenchNonZeroExitWithOutputIsParsed(t *testing.T) {
	kb := NewKubeBench(testOptions(catTool(t, "kube-bench", kubeBenchOutput, 2)))
	if n := len(kb.Run(context.Background(), Target{})); n != 3 {
		t.Errorf("expected 3 findings, got %d", n)
	}
}

func TestKubeBenchCanRun(t *testing.T) {
	kb := NewKubeBench(Options{})
	if !kb.CanRun(Target{Kind: "kubernetes"}) || !kb.CanRun(Target{}) {
		t.Error("expected kubernetes and empty kinds to be accepted")
	}
	if kb.CanRun(Target{Kind: "aws"}) {
		t.Error("expected aws to be rejected")
	}
}

func TestKubeBenchVersion(t *testing.T) {
	kb := NewKubeBench(testOptions(writeTool(t, "kube-bench", "echo 0.8.0\n")))
	if v := kb.Version(context.Background()); v != "0.8.0" {
		t.Errorf("version = %q", v)
	}
	missing := NewKubeBench(testOptions("/nonexistent/kube-bench"))
	if v := missing.Version(context.Background()); v != "0.7.0" {
		t.Errorf("fallback version = %q", v)
	}
}

func hashes(findings []engine.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.FindingHash
	}
	return out
}
