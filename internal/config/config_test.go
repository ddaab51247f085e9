package config

import (
	"os"
	"testing"
)

func TestLoadDefaultsRequireMutationSecret(t *testing.T) {
	os.Unsetenv("GATEWAY_MUTATION_SECRET")
	_, err := Load("/nonexistent/path.toml")
	if err == nil {
		t.Fatal("expected Load to fail without a mutation secret")
	}
}

func TestLoadAppliesEnvOverlay(t *testing.T) {
	os.Setenv("GATEWAY_MUTATION_SECRET", "s3cr3t")
	os.Setenv("GATEWAY_PORT", "9999")
	defer os.Unsetenv("GATEWAY_MUTATION_SECRET")
	defer os.Unsetenv("GATEWAY_PORT")

	cfg, err := Load("/nonexistent/path.toml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q, want 9999", cfg.Server.Port)
	}
	if cfg.Mutation.Secret != "s3cr3t" {
		t.Errorf("secret = %q", cfg.Mutation.Secret)
	}
	if cfg.Mutation.TTL().Milliseconds() != 300000 {
		t.Errorf("default TTL = %v", cfg.Mutation.TTL())
	}
}

func TestValidateRejectsBadTransportMode(t *testing.T) {
	cfg := &Config{
		Transport: TransportConfig{Mode: "stdio"},
		Mutation:  MutationConfig{Secret: "x"},
		Tenant:    TenantConfig{Default: "default"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-http transport mode")
	}
}
