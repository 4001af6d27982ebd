package engine

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveReport writes the report as indented JSON so it can serve as a future baseline.
func SaveReport(path string, r *ScanReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadReport reads a report previously written by SaveReport.
func LoadReport(path string) (*ScanReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r ScanReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

// Diff classifies findings of two reports by their identity.
type Diff struct {
	New       []Finding `json:"new"`
	Fixed     []Finding `json:"fixed"`
	Unchanged []Finding `json:"unchanged"`
}

// CompareReports matches findings on FindingHash. Scanner-failure findings are ignored,
// and a hash repeated inside one report counts once.
func CompareReports(baseline, current *ScanReport) Diff {
	var d Diff
	base := indexByHash(baseline)
	cur := indexByHash(current)

	for _, f := range uniqueFindings(current) {
		if _, ok := base[f.FindingHash]; ok {
			d.Unchanged = append(d.Unchanged, f)
		} else {
			d.New = append(d.New, f)
		}
	}
	for _, f := range uniqueFindings(baseline) {
		if _, ok := cur[f.FindingHash]; !ok {
			d.Fixed = append(d.Fixed, f)
		}
	}
	return d
}

func uniqueFindings(r *ScanReport) []Finding {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []Finding
	for _, f := range r.Findings() {
		if f.IsError() || seen[f.FindingHash] {
			continue
		}
		seen[f.FindingHash] = true
		out = append(out, f)
	}
	return out
}

func indexByHash(r *ScanReport) map[string]Finding {
	idx := make(map[string]Finding)
	for _, f := range uniqueFindings(r) {
		idx[f.FindingHash] = f
	}
	return idx
}
