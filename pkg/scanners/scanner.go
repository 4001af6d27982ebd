package scanners

import (
	"context"
	"fmt"
	"time"

	"github.com/user/compliance-radar/pkg/engine"
)

// Kind selects a scanner adapter. Its value is also the scanner identifier stamped on findings.
type Kind string

const (
	KindKubeBench Kind = "kube-bench"
	KindProwler   Kind = "prowler"
	KindTrivy     Kind = "trivy"
)

// Kinds lists every supported adapter.
func Kinds() []Kind {
	return []Kind{KindKubeBench, KindProwler, KindTrivy}
}

// Target describes what to scan. Parameters are interpreted only by the selected adapter.
type Target struct {
	Kind       string         `json:"kind" yaml:"kind"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Adapter runs one external scanning tool and normalizes its output.
type Adapter interface {
	Name() Kind
	// Version is best effort and falls back to a fixed string on any failure.
	Version(ctx context.Context) string
	// CanRun is a cheap compatibility check made before any process is spawned.
	CanRun(target Target) bool
	// Run never fails: a tool failure comes back as a single error finding.
	Run(ctx context.Context, target Target) []engine.Finding
}

const (
	DefaultScanTimeout    = 30 * time.Minute
	DefaultVersionTimeout = 10 * time.Second
)

// Options configures how an adapter reaches its binary.
type Options struct {
	// Path is an absolute path or a name resolved through PATH. Empty uses the tool's name.
	Path           string
	ScanTimeout    time.Duration
	VersionTimeout time.Duration
}

func (o Options) withDefaults(bin string) Options {
	if o.Path == "" {
		o.Path = bin
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = DefaultScanTimeout
	}
	if o.VersionTimeout <= 0 {
		o.VersionTimeout = DefaultVersionTimeout
	}
	return o
}

// New returns the adapter selected by kind.
func New(kind Kind, opts Options) (Adapter, error) {
	switch kind {
	case KindKubeBench:
		return NewKubeBench(opts), nil
	case KindProwler:
		return NewProwler(opts), nil
	case KindTrivy:
		return NewTrivy(opts), nil
	default:
		return nil, fmt.Errorf("unknown scanner: %s", kind)
	}
}

// guard turns a scan error or panic into the single error finding.
func guard(kind Kind, tool string, scan func() ([]engine.Finding, error)) (findings []engine.Finding) {
	defer func() {
		if r := recover(); r != nil {
			findings = []engine.Finding{engine.NewErrorFinding(string(kind), tool, fmt.Errorf("panic: %v", r))}
		}
	}()

	out, err := scan()
	if err != nil {
		return []engine.Finding{engine.NewErrorFinding(string(kind), tool, err)}
	}
	if out == nil {
		out = []engine.Finding{}
	}
	return out
}

func kindIn(kind string, accepted ...string) bool {
	if kind == "" {
		return true
	}
	for _, k := range accepted {
		if k == kind {
			return true
		}
	}
	return false
}
