package compliance

import (
	"embed"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/user/compliance-radar/pkg/engine"
	"github.com/user/compliance-radar/pkg/logging"
)

//go:embed profiles/*.yaml
var builtinProfiles embed.FS

// CheckRef selects findings by scanner and a glob over the check ID.
type CheckRef struct {
	Scanner    string  `yaml:"scanner"`
	CheckID    string  `yaml:"check_id"`
	Confidence float64 `yaml:"confidence"`
}

// Control represents a single requirement of a regulation
type Control struct {
	ID       string     `yaml:"id"`
	Title    string     `yaml:"title"`
	Category string     `yaml:"category"`
	Priority string     `yaml:"priority"`
	Checks   []CheckRef `yaml:"checks"`
}

// Profile represents a regulation (e.g., NIS2)
type Profile struct {
	Code        string    `yaml:"code"`
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version"`
	Description string    `yaml:"description"`
	Controls    []Control `yaml:"controls"`
}

// Mapping links one finding to one control. A finding may map to many controls.
type Mapping struct {
	FindingHash string  `json:"finding_hash"`
	Regulation  string  `json:"regulation"`
	ControlID   string  `json:"control_id"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
}

const sourceRules = "rules"

// severityWeights score findings when no regulation profile is loaded.
var severityWeights = map[engine.Severity]float64{
	engine.SeverityCritical: 10,
	engine.SeverityHigh:     5,
	engine.SeverityMedium:   2,
	engine.SeverityLow:      1,
	engine.SeverityInfo:     0,
}

// Engine manages regulation profiles
type Engine struct {
	Profiles map[string]Profile
}

// NewEngine creates an engine with no profiles loaded
func NewEngine() *Engine {
	return &Engine{
		Profiles: make(map[string]Profile),
	}
}

// LoadBuiltin loads the profiles shipped with the binary.
func (e *Engine) LoadBuiltin() error {
	return e.loadFS(builtinProfiles, "profiles")
}

// LoadProfiles reads YAML profiles from a directory. A profile replaces a loaded one with the same code.
func (e *Engine) LoadProfiles(dir string) error {
	return e.loadFS(os.DirFS(dir), ".")
}

func (e *Engine) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
		e.Profiles[p.Code] = p
		logging.Debugf("Loaded regulation profile: %s (%d controls)", p.Code, len(p.Controls))
	}
	return nil
}

func (p Profile) validate() error {
	if p.Code == "" {
		return fmt.Errorf("profile has no code")
	}
	for _, c := range p.Controls {
		if c.ID == "" {
			return fmt.Errorf("profile %s: control without id", p.Code)
		}
		for _, ref := range c.Checks {
			if _, err := path.Match(ref.CheckID, ""); err != nil {
				return fmt.Errorf("profile %s: control %s: bad check pattern %q: %w", p.Code, c.ID, ref.CheckID, err)
			}
			if ref.Confidence < 0 || ref.Confidence > 1 {
				return fmt.Errorf("profile %s: control %s: confidence %v out of range", p.Code, c.ID, ref.Confidence)
			}
		}
	}
	return nil
}

// ListRegulations returns the codes of loaded profiles, sorted
func (e *Engine) ListRegulations() []string {
	keys := make([]string, 0, len(e.Profiles))
	for k := range e.Profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetProfile retrieves a profile by code
func (e *Engine) GetProfile(code string) (Profile, bool) {
	p, ok := e.Profiles[code]
	return p, ok
}

// match returns the confidence of the best matching check, or false.
func (c Control) match(f engine.Finding) (float64, bool) {
	best, found := 0.0, false
	for _, ref := range c.Checks {
		if ref.Scanner != "" && ref.Scanner != f.Scanner {
			continue
		}
		if ok, _ := path.Match(ref.CheckID, f.CheckID); !ok {
			continue
		}
		conf := ref.Confidence
		if conf == 0 {
			conf = 1
		}
		if !found || conf > best {
			best, found = conf, true
		}
	}
	return best, found
}

// Map links findings to the controls of every loaded regulation.
// Output is ordered by finding, then regulation code, then control order in the profile.
func (e *Engine) Map(findings []engine.Finding) []Mapping {
	var out []Mapping
	codes := e.ListRegulations()
	for _, f := range findings {
		if f.IsError() {
			continue
		}
		for _, code := range codes {
			for _, c := range e.Profiles[code].Controls {
				conf, ok := c.match(f)
				if !ok {
					continue
				}
				out = append(out, Mapping{
					FindingHash: f.FindingHash,
					Regulation:  code,
					ControlID:   c.ID,
					Confidence:  conf,
					Source:      sourceRules,
				})
			}
		}
	}
	return out
}

// Conformity returns, per regulation, the fraction of controls no finding maps to.
func (e *Engine) Conformity(findings []engine.Finding) map[string]float64 {
	failing := make(map[string]map[string]bool)
	for _, m := range e.Map(findings) {
		if failing[m.Regulation] == nil {
			failing[m.Regulation] = make(map[string]bool)
		}
		failing[m.Regulation][m.ControlID] = true
	}

	scores := make(map[string]float64, len(e.Profiles))
	for code, p := range e.Profiles {
		if len(p.Controls) == 0 {
			scores[code] = 1
			continue
		}
		passed := 0
		for _, c := range p.Controls {
			if !failing[code][c.ID] {
				passed++
			}
		}
		scores[code] = round(float64(passed) / float64(len(p.Controls)))
	}
	return scores
}

// OverallScore is the mean conformity over loaded regulations. Without profiles
// it falls back to a severity-weighted penalty.
func (e *Engine) OverallScore(findings []engine.Finding) float64 {
	if len(e.Profiles) == 0 {
		return SeverityScore(findings)
	}
	total := 0.0
	conformity := e.Conformity(findings)
	for _, s := range conformity {
		total += s
	}
	return round(total / float64(len(conformity)))
}

// SeverityScore is max(0, 1 - sum(weight)/100) over non-error findings.
func SeverityScore(findings []engine.Finding) float64 {
	penalty := 0.0
	for _, f := range findings {
		if f.IsError() {
			continue
		}
		penalty += severityWeights[f.Severity]
	}
	return round(math.Max(0, 1-penalty/100))
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
