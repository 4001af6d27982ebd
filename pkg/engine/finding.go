package engine

// Severity is one of the five canonical levels shared by every scanner.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists the canonical levels from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank orders severities; higher is worse. Unknown values rank as medium.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityLow:
		return 1
	case SeverityInfo:
		return 0
	default:
		return 2
	}
}

// ErrorCheckID marks the synthetic finding an adapter emits when its tool could not run.
const ErrorCheckID = "ERROR"

// Finding represents a normalized security finding from any scanner
type Finding struct {
	Scanner        string         `json:"scanner" yaml:"scanner"`
	CheckID        string         `json:"check_id" yaml:"check_id"`
	Title          string         `json:"title" yaml:"title"`
	Description    string         `json:"description" yaml:"description"`
	Severity       Severity       `json:"severity" yaml:"severity"`
	ResourceType   string         `json:"resource_type,omitempty" yaml:"resource_type,omitempty"`
	ResourceID     string         `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	ResourceRegion string         `json:"resource_region,omitempty" yaml:"resource_region,omitempty"`
	Remediation    string         `json:"remediation,omitempty" yaml:"remediation,omitempty"`
	FindingHash    string         `json:"finding_hash" yaml:"finding_hash"`
	RawData        map[string]any `json:"raw_data,omitempty" yaml:"raw_data,omitempty"`
}

// FindingSpec carries the fields an adapter copies out of a native record.
// Severity is the native value; NewFinding normalizes it.
type FindingSpec struct {
	Scanner        string
	CheckID        string
	Title          string
	Description    string
	Severity       string
	ResourceType   string
	ResourceID     string
	ResourceRegion string
	Remediation    string
	RawData        map[string]any
}

// NewFinding builds a Finding, normalizing the severity and computing its identity.
func NewFinding(s FindingSpec) Finding {
	return Finding{
		Scanner:        s.Scanner,
		CheckID:        s.CheckID,
		Title:          s.Title,
		Description:    s.Description,
		Severity:       NormalizeSeverity(s.Severity),
		ResourceType:   s.ResourceType,
		ResourceID:     s.ResourceID,
		ResourceRegion: s.ResourceRegion,
		Remediation:    s.Remediation,
		FindingHash:    FindingHash(s.Scanner, s.CheckID, s.ResourceID, s.Title),
		RawData:        s.RawData,
	}
}

// NewErrorFinding returns the single finding that stands in for a scanner which failed to run.
func NewErrorFinding(scanner, tool string, err error) Finding {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return NewFinding(FindingSpec{
		Scanner:     scanner,
		CheckID:     ErrorCheckID,
		Title:       "Scanner execution failed",
		Description: "Error running " + tool + ": " + msg,
		Severity:    string(SeverityHigh),
		RawData:     map[string]any{"error": msg},
	})
}

// IsError reports whether f is a synthetic scanner-failure finding.
func (f Finding) IsError() bool {
	return f.CheckID == ErrorCheckID
}

// ErrorMessage returns the failure text carried by an error finding.
func (f Finding) ErrorMessage() string {
	if !f.IsError() {
		return ""
	}
	if msg, ok := f.RawData["error"].(string); ok {
		return msg
	}
	return f.Description
}
