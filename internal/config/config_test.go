package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func applyFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("apply", pflag.ContinueOnError)
	flags.String("ops", "", "")
	flags.Uint64("batch-size", 500, "")
	flags.Duration("retry-backoff", 500*time.Millisecond, "")
	flags.StringSlice("alias", nil, "")
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func TestLoadApplyPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "soulsdex.yaml")
	if err := os.WriteFile(cfgFile, []byte("ops: from-file.jsonl\nresults: file-results.jsonl\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SOULSDEX_RESULTS", "env-results.jsonl")
	t.Setenv("DEX_ADDRESS", "0x0000000000000000000000000000000000000abc")

	flags := applyFlags(t, "--ops", "flag.jsonl", "--batch-size", "7", "--alias", "alice=0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	cfg, err := LoadApply(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ops != "flag.jsonl" {
		t.Fatalf("flag should win, got %q", cfg.Ops)
	}
	if cfg.Results != "env-results.jsonl" {
		t.Fatalf("env should beat file, got %q", cfg.Results)
	}
	if cfg.BatchSize != 7 {
		t.Fatalf("batch size = %d", cfg.BatchSize)
	}
	if cfg.RetryBackoff != 500*time.Millisecond || cfg.MaxRetries != 5 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PoolAddress != "0x0000000000000000000000000000000000000abc" {
		t.Fatalf("deployment env not bound, got %q", cfg.PoolAddress)
	}
	if cfg.Aliases["alice"] != "0x70997970C51812dc3A010C7d01b50e0d17dc79C8" {
		t.Fatalf("aliases = %v", cfg.Aliases)
	}
}

func TestLoadApplyLegacyTokenEnv(t *testing.T) {
	t.Setenv("INTELLIGENCE_ADDRESS", "0x00000000000000000000000000000000000000aa")
	cfg, err := LoadApply(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatalf("expected missing explicit config file to fail")
	}
	cfg, err = LoadApply("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenAAddress != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("token a = %q", cfg.TokenAAddress)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SOULSDEX_TEST_ENV_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SOULSDEX_TEST_ENV_VALUE", "")
	os.Unsetenv("SOULSDEX_TEST_ENV_VALUE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("SOULSDEX_TEST_ENV_VALUE"); got != "from-file" {
		t.Fatalf("env value = %q", got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]uint64{
		"":                     0,
		"1700000000":           1700000000,
		"2024-01-01T00:00:00Z": 1704067200,
	}
	for input, want := range cases {
		got, err := ParseTimestamp(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q = %d, want %d", input, got, want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
