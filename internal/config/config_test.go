package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadComposerDefaults(t *testing.T) {
	t.Setenv("CONTEXT_CONFIG_FILE", "")

	cfg := Load()
	if cfg.Composer.TauDays != 7.0 {
		t.Fatalf("expected default tau 7.0, got %f", cfg.Composer.TauDays)
	}
	if cfg.Composer.SemanticWeight != 0.6 || cfg.Composer.RecencyWeight != 0.3 || cfg.Composer.LexicalWeight != 0.1 {
		t.Fatalf("unexpected default weights %+v", cfg.Composer)
	}
	if cfg.Composer.Normalization != "minmax" {
		t.Fatalf("expected default normalization minmax, got %q", cfg.Composer.Normalization)
	}
	if cfg.Composer.HistoryCapFraction != 0.6 {
		t.Fatalf("expected default history cap 0.6, got %f", cfg.Composer.HistoryCapFraction)
	}
}

func TestLoadOverlaysComposerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "composer.yaml")
	body := []byte("tau_days: 14\nmmr_lambda: 0.5\nnormalization: fixed\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write composer config: %v", err)
	}
	t.Setenv("CONTEXT_CONFIG_FILE", path)

	cfg := Load()
	if cfg.Composer.TauDays != 14 {
		t.Fatalf("expected tau overlay 14, got %f", cfg.Composer.TauDays)
	}
	if cfg.Composer.MMRLambda != 0.5 {
		t.Fatalf("expected mmr lambda overlay 0.5, got %f", cfg.Composer.MMRLambda)
	}
	if cfg.Composer.Normalization != "fixed" {
		t.Fatalf("expected normalization overlay, got %q", cfg.Composer.Normalization)
	}
	// Untouched keys keep defaults.
	if cfg.Composer.ScoreThreshold != 0.25 {
		t.Fatalf("expected default threshold preserved, got %f", cfg.Composer.ScoreThreshold)
	}
}

func TestLoadIgnoresUnreadableComposerFile(t *testing.T) {
	t.Setenv("CONTEXT_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.Composer.TauDays != 7.0 {
		t.Fatalf("expected defaults when overlay is unreadable, got %f", cfg.Composer.TauDays)
	}
}

func TestLoadParsesTrafficControlOverrides(t *testing.T) {
	t.Setenv("API_RATE_LIMIT_RPS", "5")
	t.Setenv("API_RATE_LIMIT_BURST", "10")
	t.Setenv("API_MAX_IN_FLIGHT", "3")
	t.Setenv("TRACE_PUBLISH_ENABLED", "false")

	cfg := Load()
	if cfg.APIRateLimitRPS != 5 || cfg.APIRateLimitBurst != 10 || cfg.APIMaxInFlight != 3 {
		t.Fatalf("unexpected traffic control config %+v", cfg)
	}
	if cfg.TracePublishEnabled {
		t.Fatalf("expected trace publishing disabled")
	}
}
