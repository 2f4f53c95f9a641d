package config

import "testing"

func TestEnvOr(t *testing.T) {
	t.Setenv("CONFIG_TEST_KEY", "set")
	if got := envOr("CONFIG_TEST_KEY", "def"); got != "set" {
		t.Errorf("envOr = %q, want %q", got, "set")
	}
	if got := envOr("CONFIG_TEST_MISSING", "def"); got != "def" {
		t.Errorf("envOr = %q, want default", got)
	}
}

func TestEnvIntOr(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "42")
	if got := envIntOr("CONFIG_TEST_INT", 7); got != 42 {
		t.Errorf("envIntOr = %d, want 42", got)
	}

	t.Setenv("CONFIG_TEST_BAD", "not-a-number")
	if got := envIntOr("CONFIG_TEST_BAD", 7); got != 7 {
		t.Errorf("envIntOr = %d, want default 7", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port == "" {
		t.Error("Port default should not be empty")
	}
	if cfg.StreakScanDays <= 0 {
		t.Errorf("StreakScanDays = %d, want positive default", cfg.StreakScanDays)
	}
}
