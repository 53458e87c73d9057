package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_URL", "https://support.example.com/")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Model != "anthropic/claude-3.5-sonnet" {
		t.Errorf("model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.7 || cfg.AI.MaxTokens != 1000 || cfg.AI.TopP != 1 {
		t.Errorf("sampling defaults = %v/%d/%v", cfg.AI.Temperature, cfg.AI.MaxTokens, cfg.AI.TopP)
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.AI.Timeout)
	}
	if cfg.App.URL != "https://support.example.com" {
		t.Errorf("app url = %q", cfg.App.URL)
	}
	if cfg.AI.Referer != cfg.App.URL {
		t.Errorf("referer = %q, want app url", cfg.AI.Referer)
	}
	if cfg.AI.Configured() {
		t.Error("empty key must not count as configured")
	}
}

func TestAIConfigured(t *testing.T) {
	tests := map[string]bool{
		"":                false,
		"   ":             false,
		PlaceholderAIKey:  false,
		"sk-or-v1-abc123": true,
	}
	for key, want := range tests {
		if got := (AIConfig{APIKey: key}).Configured(); got != want {
			t.Errorf("Configured(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestLoadRejectsBadSampling(t *testing.T) {
	t.Setenv("AI_TEMPERATURE", "3.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range temperature")
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("SLA_SWEEP_INTERVAL", "5m")
	t.Setenv("AI_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SLA.SweepInterval != 5*time.Minute {
		t.Errorf("sweep interval = %v", cfg.SLA.SweepInterval)
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("malformed duration should fall back, got %v", cfg.AI.Timeout)
	}
}
