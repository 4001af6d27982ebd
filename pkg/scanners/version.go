package scanners

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"
)

var semverPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?)`)

// probeVersion runs a version query and never fails: any problem yields fallback.
func probeVersion(ctx context.Context, timeout time.Duration, bin, fallback string, args ...string) string {
	out, err := runTool(ctx, timeout, bin, args...)
	if err != nil || out.ExitCode != 0 {
		return fallback
	}
	return parseVersion(out.Stdout, fallback)
}

// parseVersion prefers a "Version: x" line, then the first semantic version in the text.
func parseVersion(stdout []byte, fallback string) string {
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Version:") {
			if v := strings.TrimSpace(strings.TrimPrefix(line, "Version:")); v != "" {
				return v
			}
		}
	}
	if m := semverPattern.FindSubmatch(stdout); m != nil {
		return string(m[1])
	}
	if line := firstLine(stdout); line != "" {
		return line
	}
	return fallback
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
