package scanners

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/user/compliance-radar/pkg/engine"
)

// writeTool writes an executable shell script standing in for a scanner binary.
func writeTool(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake scanner binaries are shell scripts")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

// catTool returns a script printing stdout verbatim and exiting with code.
func catTool(t *testing.T, name, stdout string, code int) string {
	t.Helper()
	body := "cat <<'EOF'\n" + stdout + "\nEOF\nexit " + strconv.Itoa(code) + "\n"
	return writeTool(t, name, body)
}

func testOptions(path string) Options {
	return Options{Path: path, ScanTimeout: 10 * time.Second, VersionTimeout: 5 * time.Second}
}

func requireSingleError(t *testing.T, findings []engine.Finding, scanner string) engine.Finding {
	t.Helper()
	if len(findings) != 1 {
		t.Fatalf("expected exactly one error finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.CheckID != "ERROR" || f.Severity != engine.SeverityHigh || f.Scanner != scanner {
		t.Fatalf("unexpected error finding: %+v", f)
	}
	if f.ErrorMessage() == "" {
		t.Fatalf("error finding carries no message: %+v", f)
	}
	return f
}
