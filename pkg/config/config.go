package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/compliance-radar/pkg/scanners"
)

// ScannerConfig locates one scanner binary.
type ScannerConfig struct {
	Path string `yaml:"path,omitempty"`
}

type Config struct {
	Scanners       map[string]ScannerConfig `yaml:"scanners"`
	ScanTimeout    time.Duration            `yaml:"scan_timeout"`
	VersionTimeout time.Duration            `yaml:"version_timeout"`
	MaxParallel    int                      `yaml:"max_parallel"`
	ProfilesDir    string                   `yaml:"profiles_dir,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{
		Scanners:       make(map[string]ScannerConfig),
		ScanTimeout:    scanners.DefaultScanTimeout,
		VersionTimeout: scanners.DefaultVersionTimeout,
	}
	for _, kind := range scanners.Kinds() {
		cfg.Scanners[string(kind)] = ScannerConfig{Path: string(kind)}
	}
	return cfg
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".compliance-radar")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// LoadConfig reads the config file at path, or the default location when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.fill()
	return cfg, nil
}

// SaveConfig writes cfg to path, or the default location when path is empty.
func SaveConfig(path string, cfg *Config) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// fill restores defaults for values a partial file left empty or invalid.
func (c *Config) fill() {
	if c.Scanners == nil {
		c.Scanners = make(map[string]ScannerConfig)
	}
	for _, kind := range scanners.Kinds() {
		if strings.TrimSpace(c.Scanners[string(kind)].Path) == "" {
			c.Scanners[string(kind)] = ScannerConfig{Path: string(kind)}
		}
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = scanners.DefaultScanTimeout
	}
	if c.VersionTimeout <= 0 {
		c.VersionTimeout = scanners.DefaultVersionTimeout
	}
	if c.MaxParallel < 0 {
		c.MaxParallel = 0
	}
}

// SetScannerPath records the binary location for a known scanner.
func (c *Config) SetScannerPath(kind, path string) error {
	if _, err := scanners.New(scanners.Kind(kind), scanners.Options{}); err != nil {
		return err
	}
	if c.Scanners == nil {
		c.Scanners = make(map[string]ScannerConfig)
	}
	c.Scanners[kind] = ScannerConfig{Path: path}
	return nil
}

// SetTimeout updates "scan" or "version" timeout.
func (c *Config) SetTimeout(which string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", d)
	}
	switch which {
	case "scan":
		c.ScanTimeout = d
	case "version":
		c.VersionTimeout = d
	default:
		return fmt.Errorf("unknown timeout %q (want scan or version)", which)
	}
	return nil
}

// EnvVar names the environment variable that overrides a scanner's path, e.g. KUBE_BENCH_PATH.
func EnvVar(kind scanners.Kind) string {
	return strings.ToUpper(strings.ReplaceAll(string(kind), "-", "_")) + "_PATH"
}

// ScannerOptions resolves adapter options for kind. The environment wins over the file.
func (c *Config) ScannerOptions(kind scanners.Kind) scanners.Options {
	path := c.Scanners[string(kind)].Path
	if env := strings.TrimSpace(os.Getenv(EnvVar(kind))); env != "" {
		path = env
	}
	return scanners.Options{
		Path:           path,
		ScanTimeout:    c.ScanTimeout,
		VersionTimeout: c.VersionTimeout,
	}
}
