package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// VerifierStatic accepts every well-formed proof. Development only.
	VerifierStatic = "static"
	// VerifierGroth16 verifies Groth16 proofs against a verifying key file.
	VerifierGroth16 = "groth16"
)

type Config struct {
	ListenAddress    string   `toml:"ListenAddress"`
	DataDir          string   `toml:"DataDir"`
	Environment      string   `toml:"Environment"`
	VerifierMode     string   `toml:"VerifierMode"`
	VerifyingKeyPath string   `toml:"VerifyingKeyPath"`
	LoanDuration     int64    `toml:"LoanDurationSeconds"`
	PausedModules    []string `toml:"PausedModules"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults so a fresh node starts without manual setup.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if strings.TrimSpace(c.VerifierMode) == "" {
		c.VerifierMode = VerifierStatic
	}
	if c.PausedModules == nil {
		c.PausedModules = []string{}
	}
}

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	switch c.VerifierMode {
	case VerifierStatic:
	case VerifierGroth16:
		if strings.TrimSpace(c.VerifyingKeyPath) == "" {
			return fmt.Errorf("config: VerifierMode %q requires VerifyingKeyPath", c.VerifierMode)
		}
	default:
		return fmt.Errorf("config: unknown VerifierMode %q", c.VerifierMode)
	}
	if c.LoanDuration < 0 {
		return fmt.Errorf("config: LoanDurationSeconds must not be negative")
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:    ":8080",
		DataDir:          "./privscore-data",
		Environment:      "local",
		VerifierMode:     VerifierStatic,
		VerifyingKeyPath: "",
		PausedModules:    []string{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
