package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "test-client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "test-client-secret")
	t.Setenv("GOOGLE_REDIRECT_URL", "http://localhost:5173/auth/google/callback")
	t.Setenv("SESSION_SECRET", "test-session-secret-32bytes-long!")
	t.Setenv("CLIENT_URL", "http://localhost:5173")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.GoogleClientID != "test-client-id" {
		t.Errorf("GoogleClientID = %q, want %q", cfg.GoogleClientID, "test-client-id")
	}
	if cfg.GoogleClientSecret != "test-client-secret" {
		t.Errorf("GoogleClientSecret = %q, want %q", cfg.GoogleClientSecret, "test-client-secret")
	}
	if cfg.GoogleRedirectURL != "http://localhost:5173/auth/google/callback" {
		t.Errorf("GoogleRedirectURL = %q, want %q", cfg.GoogleRedirectURL, "http://localhost:5173/auth/google/callback")
	}
	if cfg.SessionSecret != "test-session-secret-32bytes-long!" {
		t.Errorf("SessionSecret = %q, want %q", cfg.SessionSecret, "test-session-secret-32bytes-long!")
	}
	if err := cfg.ValidateGateway(); err != nil {
		t.Errorf("ValidateGateway() = %v, want nil", err)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Session defaults
	if cfg.SessionMaxAge != 86400 {
		t.Errorf("SessionMaxAge = %d, want %d", cfg.SessionMaxAge, 86400)
	}
	if cfg.SessionTTL() != 24*time.Hour {
		t.Errorf("SessionTTL() = %v, want %v", cfg.SessionTTL(), 24*time.Hour)
	}
	if cfg.SessionStore != StoreRedis {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, StoreRedis)
	}
	if cfg.WhitelistStore != StoreMongo {
		t.Errorf("WhitelistStore = %q, want %q", cfg.WhitelistStore, StoreMongo)
	}

	// Outbound defaults
	if cfg.OutboundTimeout != 10*time.Second {
		t.Errorf("OutboundTimeout = %v, want %v", cfg.OutboundTimeout, 10*time.Second)
	}

	// Rate limit defaults
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.RateLimitRegister != 10 {
		t.Errorf("RateLimitRegister = %d, want %d", cfg.RateLimitRegister, 10)
	}

	// Server defaults
	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}
	if cfg.WebPort != "5173" {
		t.Errorf("WebPort = %q, want %q", cfg.WebPort, "5173")
	}
	if cfg.IsProduction() {
		t.Error("IsProduction() should be false by default")
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, want none by default", cfg.TrustedProxies)
	}
}

func TestLoad_RedirectURLDefaultsToClientOrigin(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("GOOGLE_REDIRECT_URL", "")
	t.Setenv("CLIENT_URL", "https://app.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ClientURL != "https://app.example.com" {
		t.Errorf("ClientURL = %q, want trailing slash trimmed", cfg.ClientURL)
	}
	if cfg.GoogleRedirectURL != "https://app.example.com/auth/google/callback" {
		t.Errorf("GoogleRedirectURL = %q, want %q", cfg.GoogleRedirectURL, "https://app.example.com/auth/google/callback")
	}
}

func TestLoad_TrustedProxiesList(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,172.28.0.10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "172.28.0.10" {
		t.Errorf("TrustedProxies = %v, want [10.0.0.0/8 172.28.0.10]", cfg.TrustedProxies)
	}
}

func TestLoad_InvalidDuration_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("OUTBOUND_TIMEOUT", "not-a-duration")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid OUTBOUND_TIMEOUT, got nil")
	}
}

func TestLoad_ProductionEnvironment(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() should be true when APP_ENV=production")
	}
}

func TestValidateGateway_MissingRequired_ReturnsError(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantVar string
	}{
		{"client id", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID"},
		{"client secret", "GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET"},
		{"session secret", "SESSION_SECRET", "SESSION_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(tt.unset, "")

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			err = cfg.ValidateGateway()
			if err == nil {
				t.Fatalf("expected error when %s is missing", tt.unset)
			}
			if !strings.Contains(err.Error(), tt.wantVar) {
				t.Errorf("error = %q, should mention %s", err.Error(), tt.wantVar)
			}
		})
	}
}

func TestValidateGateway_PostgresStoreRequiresDatabaseURL(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SESSION_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	err = cfg.ValidateGateway()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("ValidateGateway() = %v, want DATABASE_URL error", err)
	}
}

func TestValidateGateway_UnsupportedStores(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"session store", "SESSION_STORE", "memcached"},
		{"whitelist store", "WHITELIST_STORE", "firestore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if err := cfg.ValidateGateway(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestValidateWeb_DefaultsAreValid(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.ValidateWeb(); err != nil {
		t.Errorf("ValidateWeb() = %v, want nil", err)
	}
}

func TestValidateDatabase_MissingURL_ReturnsError(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.ValidateDatabase(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}
