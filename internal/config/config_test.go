package config

import (
	"flag"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Verify critical defaults
	if cfg.Clients != 4 {
		t.Errorf("Clients = %d, want 4", cfg.Clients)
	}
	if cfg.Repetitions != 3 {
		t.Errorf("Repetitions = %d, want 3", cfg.Repetitions)
	}
	if cfg.Port != 5555 {
		t.Errorf("Port = %d, want 5555", cfg.Port)
	}
	if cfg.Interface != "lo" {
		t.Errorf("Interface = %q, want %q", cfg.Interface, "lo")
	}
	if cfg.ServerAddr != "127.0.0.1" {
		t.Errorf("ServerAddr = %q, want 127.0.0.1", cfg.ServerAddr)
	}
	if cfg.ResultsDir != "test_results" {
		t.Errorf("ResultsDir = %q, want test_results", cfg.ResultsDir)
	}
	if cfg.Stagger != 1500*time.Millisecond {
		t.Errorf("Stagger = %v, want 1.5s", cfg.Stagger)
	}
	if cfg.Cooldown != 5*time.Second {
		t.Errorf("Cooldown = %v, want 5s", cfg.Cooldown)
	}
	if cfg.TUIEnabled {
		t.Error("TUIEnabled should be false by default")
	}
	if cfg.NoCapture {
		t.Error("NoCapture should be false by default")
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-clients", "8",
		"-repetitions", "1",
		"-scenario", "baseline",
		"-port", "6000",
		"-no-capture",
		"-cooldown", "1s",
		"-log-format", "text",
	}, flag.ContinueOnError)
	if err != nil {
		t.Fatalf("parseFlags returned error: %v", err)
	}

	if cfg.Clients != 8 {
		t.Errorf("Clients = %d, want 8", cfg.Clients)
	}
	if cfg.Repetitions != 1 {
		t.Errorf("Repetitions = %d, want 1", cfg.Repetitions)
	}
	if cfg.Scenario != "baseline" {
		t.Errorf("Scenario = %q, want baseline", cfg.Scenario)
	}
	if cfg.Port != 6000 {
		t.Errorf("Port = %d, want 6000", cfg.Port)
	}
	if !cfg.NoCapture {
		t.Error("NoCapture should be set")
	}
	if cfg.Cooldown != time.Second {
		t.Errorf("Cooldown = %v, want 1s", cfg.Cooldown)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := parseFlags(nil, flag.ContinueOnError)
	if err != nil {
		t.Fatalf("parseFlags returned error: %v", err)
	}
	if cfg.Clients != DefaultConfig().Clients {
		t.Errorf("Clients = %d, want default %d", cfg.Clients, DefaultConfig().Clients)
	}
}

func TestParseFlags_PositionalArg(t *testing.T) {
	_, err := parseFlags([]string{"baseline"}, flag.ContinueOnError)
	if err == nil {
		t.Fatal("positional argument should be a usage error")
	}
	if !strings.Contains(err.Error(), "baseline") {
		t.Errorf("error should name the offending argument: %v", err)
	}
}

func TestParseFlags_UnknownFlag(t *testing.T) {
	if _, err := parseFlags([]string{"-bogus"}, flag.ContinueOnError); err == nil {
		t.Fatal("unknown flag should be an error")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"zero clients", func(c *Config) { c.Clients = 0 }, "clients"},
		{"zero repetitions", func(c *Config) { c.Repetitions = 0 }, "repetitions"},
		{"empty server cmd", func(c *Config) { c.ServerCmd = "" }, "server-cmd"},
		{"empty client cmd", func(c *Config) { c.ClientCmd = "" }, "client-cmd"},
		{"port too low", func(c *Config) { c.Port = 0 }, "port"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port"},
		{"empty interface", func(c *Config) { c.Interface = "" }, "interface"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log-format"},
		{"negative stagger", func(c *Config) { c.Stagger = -time.Second }, "stagger"},
		{"zero startup timeout", func(c *Config) { c.StartupTimeout = 0 }, "startup-timeout"},
		{"zero stop grace", func(c *Config) { c.StopGrace = 0 }, "stop-grace"},
		{"negative cooldown", func(c *Config) { c.Cooldown = -time.Second }, "cooldown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate returned unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate should have returned an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q should mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clients = 0
	cfg.Port = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "clients") || !strings.Contains(msg, "port") {
		t.Errorf("joined error should report every problem: %v", err)
	}
}
