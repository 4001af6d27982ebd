package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RequestFile is the on-disk form of a scan: an environment and its request list.
// JSON documents are accepted as well since they parse as YAML.
type RequestFile struct {
	Environment string    `yaml:"environment" json:"environment"`
	Scans       []Request `yaml:"scans" json:"scans"`
}

// LoadRequestFile reads and decodes a request file. It does not validate scanner names;
// RunScan does that against the registered adapters.
func LoadRequestFile(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rf RequestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if rf.Environment == "" {
		rf.Environment = "default"
	}
	return &rf, nil
}
