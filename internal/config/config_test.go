package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "API_BASE_URL", "SHOP_ID", "REFRESH_MS", "ALLOW_READY_PARTIAL", "STATE_PATH", "CORS_ORIGINS", "LOG_LEVEL", "NOTIFY_TTL_MS"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != "8082" {
		t.Errorf("Port: got %q, want 8082", cfg.Port)
	}
	if cfg.ShopID != 1 {
		t.Errorf("ShopID: got %d, want 1", cfg.ShopID)
	}
	if cfg.RefreshInterval != 0 {
		t.Errorf("RefreshInterval: got %v, want 0 (disabled)", cfg.RefreshInterval)
	}
	if cfg.AllowReadyPartial {
		t.Error("AllowReadyPartial: got true, want false")
	}
	if cfg.NotifyTTL != 4*time.Second {
		t.Errorf("NotifyTTL: got %v, want 4s", cfg.NotifyTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("AllowedOrigins: got %v", cfg.AllowedOrigins)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://shop.example.com")
	t.Setenv("SHOP_ID", "42")
	t.Setenv("REFRESH_MS", "10000")
	t.Setenv("ALLOW_READY_PARTIAL", "1")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg := Load()

	if cfg.APIBaseURL != "https://shop.example.com" {
		t.Errorf("APIBaseURL: got %q", cfg.APIBaseURL)
	}
	if cfg.ShopID != 42 {
		t.Errorf("ShopID: got %d, want 42", cfg.ShopID)
	}
	if cfg.RefreshInterval != 10*time.Second {
		t.Errorf("RefreshInterval: got %v, want 10s", cfg.RefreshInterval)
	}
	if !cfg.AllowReadyPartial {
		t.Error("AllowReadyPartial: got false, want true")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins: got %v", cfg.AllowedOrigins)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SHOP_ID", "abc")
	t.Setenv("REFRESH_MS", "-5")
	t.Setenv("ALLOW_READY_PARTIAL", "0")

	cfg := Load()

	if cfg.ShopID != 1 {
		t.Errorf("ShopID: got %d, want 1", cfg.ShopID)
	}
	if cfg.RefreshInterval != 0 {
		t.Errorf("RefreshInterval: got %v, want 0", cfg.RefreshInterval)
	}
	if cfg.AllowReadyPartial {
		t.Error("AllowReadyPartial: got true, want false")
	}
}
