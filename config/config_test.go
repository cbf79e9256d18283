package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8080" {
		t.Fatalf("listen address %q", cfg.ListenAddress)
	}
	if cfg.VerifierMode != VerifierStatic {
		t.Fatalf("verifier mode %q", cfg.VerifierMode)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}
	// Reload parses the file it just wrote.
	if _, err := Load(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestLoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `ListenAddress = ":9090"
DataDir = "/tmp/privscore"
Environment = "staging"
VerifierMode = "groth16"
VerifyingKeyPath = "/etc/privscore/vk.bin"
LoanDurationSeconds = 2592000
PausedModules = ["lending"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9090" || cfg.Environment != "staging" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.VerifierMode != VerifierGroth16 || cfg.VerifyingKeyPath == "" {
		t.Fatalf("verifier config %+v", cfg)
	}
	if cfg.LoanDuration != 2592000 {
		t.Fatalf("loan duration %d", cfg.LoanDuration)
	}
	if len(cfg.PausedModules) != 1 || cfg.PausedModules[0] != "lending" {
		t.Fatalf("paused modules %v", cfg.PausedModules)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{VerifierMode: VerifierGroth16}
	if err := cfg.Validate(); err == nil {
		t.Fatal("groth16 without key path accepted")
	}
	cfg = &Config{VerifierMode: "bogus"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown verifier mode accepted")
	}
	cfg = &Config{VerifierMode: VerifierStatic, LoanDuration: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative loan duration accepted")
	}
	cfg = &Config{VerifierMode: VerifierStatic}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
