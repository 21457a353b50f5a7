package profile

import (
	"testing"
	"time"
)

func TestProfileDefaults(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{Mode: "dev"}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"EngineURL should be empty by default", "", profile.EngineURL},
		{"ERPBaseURL default", "http://attsim.mybluemix.net", profile.ERPBaseURL},
		{"AIBaseURL default", "https://api.openai.com/v1", profile.AIBaseURL},
		{"AIModel default", "gpt-4o-mini", profile.AIModel},
		{"RedisAddr should be empty by default", "", profile.RedisAddr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if profile.EngineTimeout != 30*time.Second {
		t.Errorf("EngineTimeout default: expected 30s, got %v", profile.EngineTimeout)
	}
	if profile.ERPTimeout != 15*time.Second {
		t.Errorf("ERPTimeout default: expected 15s, got %v", profile.ERPTimeout)
	}
	// DemoProfile defaults on outside prod.
	if !profile.DemoProfile {
		t.Error("DemoProfile should default to true in dev mode")
	}
}

func TestProfileDemoProfileDefaultsByMode(t *testing.T) {
	clearEnvVars(t)

	prod := &Profile{Mode: "prod"}
	prod.FromEnv()
	if prod.DemoProfile {
		t.Error("DemoProfile should default to false in prod mode")
	}

	t.Setenv("SMARTCHAT_DEMO_PROFILE", "true")
	prod = &Profile{Mode: "prod"}
	prod.FromEnv()
	if !prod.DemoProfile {
		t.Error("SMARTCHAT_DEMO_PROFILE=true should enable the demo profile in prod")
	}
}

func TestProfileFromEnv(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("SMARTCHAT_ENGINE_URL", "http://localhost:8100/api/message")
	t.Setenv("SMARTCHAT_ENGINE_TIMEOUT_SECONDS", "5")
	t.Setenv("SMARTCHAT_ERP_BASE_URL", "http://localhost:8200")
	t.Setenv("SMARTCHAT_AI_API_KEY", "sk-test")
	t.Setenv("SMARTCHAT_REDIS_ADDR", "localhost:6379")
	t.Setenv("SMARTCHAT_REDIS_DB", "3")

	profile := &Profile{Mode: "dev"}
	profile.FromEnv()

	if profile.EngineURL != "http://localhost:8100/api/message" {
		t.Errorf("EngineURL: got %q", profile.EngineURL)
	}
	if profile.EngineTimeout != 5*time.Second {
		t.Errorf("EngineTimeout: got %v", profile.EngineTimeout)
	}
	if profile.ERPBaseURL != "http://localhost:8200" {
		t.Errorf("ERPBaseURL: got %q", profile.ERPBaseURL)
	}
	if profile.AIAPIKey != "sk-test" {
		t.Errorf("AIAPIKey: got %q", profile.AIAPIKey)
	}
	if profile.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr: got %q", profile.RedisAddr)
	}
	if profile.RedisDB != 3 {
		t.Errorf("RedisDB: got %d", profile.RedisDB)
	}
	if !profile.IsEngineConfigured() {
		t.Error("IsEngineConfigured should be true when SMARTCHAT_ENGINE_URL is set")
	}
}

func TestProfileValidate(t *testing.T) {
	clearEnvVars(t)

	dir := t.TempDir()
	profile := &Profile{Mode: "nonsense", Data: dir, Driver: "sqlite"}
	if err := profile.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if profile.Mode != "demo" {
		t.Errorf("unknown mode should fall back to demo, got %q", profile.Mode)
	}
	if profile.DSN == "" {
		t.Error("sqlite DSN should be derived from the data directory")
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SMARTCHAT_ENGINE_URL",
		"SMARTCHAT_ENGINE_TIMEOUT_SECONDS",
		"SMARTCHAT_ERP_BASE_URL",
		"SMARTCHAT_ERP_TIMEOUT_SECONDS",
		"SMARTCHAT_AI_API_KEY",
		"SMARTCHAT_AI_BASE_URL",
		"SMARTCHAT_AI_MODEL",
		"SMARTCHAT_DEMO_PROFILE",
		"SMARTCHAT_REDIS_ADDR",
		"SMARTCHAT_REDIS_PASSWORD",
		"SMARTCHAT_REDIS_DB",
	} {
		t.Setenv(key, "")
	}
}
