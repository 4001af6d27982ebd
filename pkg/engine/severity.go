package engine

import (
	"fmt"
	"strings"
)

var severityMap = map[string]Severity{
	"critical":      SeverityCritical,
	"high":          SeverityHigh,
	"error":         SeverityHigh,
	"medium":        SeverityMedium,
	"moderate":      SeverityMedium,
	"warning":       SeverityMedium,
	"warn":          SeverityMedium,
	"low":           SeverityLow,
	"info":          SeverityInfo,
	"informational": SeverityInfo,
	"none":          SeverityInfo,
	"negligible":    SeverityInfo,
}

// NormalizeSeverity maps a scanner's native severity onto the canonical taxonomy.
// Unknown or empty input is treated as medium.
func NormalizeSeverity(native string) Severity {
	if s, ok := severityMap[strings.ToLower(strings.TrimSpace(native))]; ok {
		return s
	}
	return SeverityMedium
}

// ParseSeverity accepts only canonical level names, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	want := Severity(strings.ToLower(strings.TrimSpace(s)))
	for _, sev := range Severities {
		if sev == want {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}
