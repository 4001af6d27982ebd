package scanners

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/user/compliance-radar/pkg/engine"
)

const trivyOutput = `{
  "SchemaVersion": 2,
  "ArtifactName": "nginx:1.21",
  "ArtifactType": "container_image",
  "Results": [
    {
      "Target": "nginx:1.21 (debian 11.2)",
      "Class": "os-pkgs",
      "Vulnerabilities": [
        {"VulnerabilityID": "CVE-2022-1292", "PkgName": "openssl", "InstalledVersion": "1.1.1k", "FixedVersion": "1.1.1o", "Title": "openssl: c_rehash script allows command injection", "Description": "The c_rehash script does not properly sanitise shell metacharacters.", "Severity": "CRITICAL"},
        {"VulnerabilityID": "CVE-2021-3997", "PkgName": "libsystemd0", "InstalledVersion": "247.3-6", "Title": "systemd: uncontrolled recursion in systemd-tmpfiles", "Severity": "LOW"}
      ]
    },
    {
      "Target": "Dockerfile",
      "Class": "config",
      "Misconfigurations": [
        {"ID": "DS002", "Title": "Image user should not be 'root'", "Description": "Running containers as root is discouraged.", "Resolution": "Add 'USER <non root user name>' line to the Dockerfile", "Severity": "MEDIUM", "Status": "FAIL"},
        {"ID": "DS026", "Title": "No HEALTHCHECK defined", "Severity": "LOW", "Status": "PASS"}
      ]
    }
  ]
}`

func TestTrivyMapsVulnerabilitiesAndMisconfigurations(t *testing.T) {
	tool := NewTrivy(testOptions(catTool(t, "trivy", trivyOutput, 0)))
	target := Target{Kind: "container-image", Parameters: map[string]any{"target": "nginx:1.21"}}

	findings := tool.Run(context.Background(), target)
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d: %+v", len(findings), findings)
	}

	wantSev := []engine.Severity{engine.SeverityCritical, engine.SeverityLow, engine.SeverityMedium}
	wantType := []string{"Package", "Package", "Configuration"}
	for i, f := range findings {
		if f.Scanner != "trivy" {
			t.Errorf("finding %d: scanner %q", i, f.Scanner)
		}
		if f.Severity != wantSev[i] {
			t.Errorf("finding %d: severity %q, want %q", i, f.Severity, wantSev[i])
		}
		if f.ResourceType != wantType[i] {
			t.Errorf("finding %d: resource type %q, want %q", i, f.ResourceType, wantType[i])
		}
	}

	vuln := findings[0]
	if vuln.CheckID != "CVE-2022-1292" || vuln.Title != "openssl - CVE-2022-1292" {
		t.Errorf("unexpected vulnerability identity: %q / %q", vuln.CheckID, vuln.Title)
	}
	if vuln.ResourceID != "openssl@1.1.1k" || vuln.Remediation != "Upgrade to version 1.1.1o" {
		t.Errorf("unexpected vulnerability resource: %q / %q", vuln.ResourceID, vuln.Remediation)
	}
	if findings[1].Remediation != "No fix available" {
		t.Errorf("remediation without fix = %q", findings[1].Remediation)
	}
	if findings[1].Description != "systemd: uncontrolled recursion in systemd-tmpfiles" {
		t.Errorf("description should fall back to title, got %q", findings[1].Description)
	}

	misconfig := findings[2]
	if misconfig.CheckID != "DS002" || misconfig.ResourceID != "Dockerfile" {
		t.Errorf("unexpected misconfiguration: %+v", misconfig)
	}
	if misconfig.RawData["Status"] != "FAIL" {
		t.Errorf("raw data not retained: %v", misconfig.RawData)
	}
}

func TestTrivyMissingTarget(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "spawned")
	path := writeTool(t, "trivy", "touch '"+marker+"'\necho '{}'\n")

	findings := NewTrivy(testOptions(path)).Run(context.Background(), Target{Kind: "container-image"})
	requireSingleError(t, findings, "trivy")
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("trivy was spawned without a target")
	}

	if _, _, err := trivyArgs(Target{}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("trivyArgs error = %v, want ErrInvalidTarget", err)
	}
}

func TestTrivyArgs(t *testing.T) {
	cases := []struct {
		name   string
		target Target
		want   []string
	}{
		{"image defaults", Target{Kind: "container-image", Parameters: map[string]any{"image": "alpine:3.19"}},
			[]string{"image", "--format", "json", "--severity", "CRITICAL,HIGH,MEDIUM", "alpine:3.19"}},
		{"filesystem kind", Target{Kind: "filesystem", Parameters: map[string]any{"target": "/srv/app"}},
			[]string{"fs", "--format", "json", "--severity", "CRITICAL,HIGH,MEDIUM", "/srv/app"}},
		{"explicit scan type and severity", Target{Kind: "image", Parameters: map[string]any{
			"target": "./infra", "scan_type": "config", "severity": []any{"high", "critical"}}},
			[]string{"config", "--format", "json", "--severity", "HIGH,CRITICAL", "./infra"}},
		{"no kind", Target{Parameters: map[string]any{"target": "redis"}},
			[]string{"image", "--format", "json", "--severity", "CRITICAL,HIGH,MEDIUM", "redis"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := trivyArgs(tc.target)
			if err != nil {
				t.Fatalf("trivyArgs: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("args = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseTrivyLegacyArray(t *testing.T) {
	legacy := `[{"Target":"alpine:3.10","Vulnerabilities":[{"VulnerabilityID":"CVE-2019-14697","PkgName":"musl","InstalledVersion":"1.1.22-r2","FixedVersion":"1.1.22-r3","Severity":"HIGH"}]}]`
	findings, err := parseTrivy([]byte(legacy), "alpine:3.10")
	if err != nil {
		t.Fatalf("parseTrivy: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != engine.SeverityHigh {
		t.Fatalf("unexpected findings: %+v", findings)
	}
}

func TestParseTrivyNoResults(t *testing.T) {
	findings, err := parseTrivy([]byte(`{"SchemaVersion":2,"ArtifactName":"scratch"}`), "scratch")
	if err != nil {
		t.Fatalf("parseTrivy: %v", err)
	}
	if findings == nil || len(findings) != 0 {
		t.Errorf("expected empty slice, got %#v", findings)
	}
}

func TestTrivyMalformedOutput(t *testing.T) {
	path := catTool(t, "trivy", "FATAL image scan error: unable to find the specified image", 0)
	findings := NewTrivy(testOptions(path)).Run(context.Background(), Target{Parameters: map[string]any{"target": "missing:latest"}})
	requireSingleError(t, findings, "trivy")
}

func TestTrivyCanRun(t *testing.T) {
	tool := NewTrivy(Options{})
	for _, kind := range []string{"", "container-image", "image", "filesystem", "fs", "config", "repository", "repo", "rootfs"} {
		if !tool.CanRun(Target{Kind: kind}) {
			t.Errorf("kind %q should be accepted", kind)
		}
	}
	if tool.CanRun(Target{Kind: "aws"}) {
		t.Error("aws should be rejected")
	}
}

func TestTrivyVersion(t *testing.T) {
	path := writeTool(t, "trivy", "echo 'Version: 0.51.1'\necho 'Vulnerability DB:'\necho '  Version: 2'\n")
	if v := NewTrivy(testOptions(path)).Version(context.Background()); v != "0.51.1" {
		t.Errorf("version = %q", v)
	}

	failing := writeTool(t, "trivy", "exit 1\n")
	if v := NewTrivy(testOptions(failing)).Version(context.Background()); v != "0.50.0" {
		t.Errorf("fallback version = %q", v)
	}
}

func TestParseTrivyMisconfigurationResourceID(t *testing.T) {
	cases := []struct {
		name   string
		result string
		want   string
	}{
		{"named target", `{"Target": "deploy.yaml"`, "deploy.yaml"},
		{"empty target", `{"Target": ""`, ""},
		{"missing target", `{"Class": "config"`, "./k8s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := `{"Results": [` + tc.result + `, "Misconfigurations": [{"ID": "KSV001", "Title": "Process can elevate its own privileges", "Severity": "MEDIUM", "Status": "FAIL"}]}]}`
			findings, err := parseTrivy([]byte(doc), "./k8s")
			if err != nil {
				t.Fatalf("parseTrivy: %v", err)
			}
			if len(findings) != 1 {
				t.Fatalf("expected 1 finding, got %+v", findings)
			}
			if findings[0].ResourceID != tc.want {
				t.Errorf("resource id = %q, want %q", findings[0].ResourceID, tc.want)
			}
			want := engine.FindingHash("trivy", "KSV001", tc.want, "Process can elevate its own privileges")
			if findings[0].FindingHash != want {
				t.Errorf("hash = %s, want %s", findings[0].FindingHash, want)
			}
		})
	}
}
