package profile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// TestProfileDefaults checks the gateway defaults when no environment is set.
func TestProfileDefaults(t *testing.T) {
	clearEnvVars(t)

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"OpenAIAPIKey empty by default", "", profile.OpenAIAPIKey},
		{"OpenAIBaseURL default", DefaultOpenAIBaseURL, profile.OpenAIBaseURL},
		{"ChatAssistantID default", DefaultChatAssistantID, profile.ChatAssistantID},
		{"NegotiatorAssistantID default", DefaultNegotiatorAssistantID, profile.NegotiatorAssistantID},
		{"UserName default", DefaultUserName, profile.UserName},
		{"MaxUpstreamRequests default", "16", strconv.Itoa(profile.MaxUpstreamRequests)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}
}

// TestProfileFromEnv checks that each variable lands in its field.
func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) string
		expected string
	}{
		{
			name:     "ATLAS_OPENAI_API_KEY",
			envVar:   "ATLAS_OPENAI_API_KEY",
			envValue: "sk-atlas",
			field:    func(p *Profile) string { return p.OpenAIAPIKey },
			expected: "sk-atlas",
		},
		{
			name:     "legacy OPENAI_API_KEY",
			envVar:   "OPENAI_API_KEY",
			envValue: "sk-legacy",
			field:    func(p *Profile) string { return p.OpenAIAPIKey },
			expected: "sk-legacy",
		},
		{
			name:     "ATLAS_OPENAI_BASE_URL",
			envVar:   "ATLAS_OPENAI_BASE_URL",
			envValue: "https://proxy.internal/v1",
			field:    func(p *Profile) string { return p.OpenAIBaseURL },
			expected: "https://proxy.internal/v1",
		},
		{
			name:     "ATLAS_CHAT_ASSISTANT_ID",
			envVar:   "ATLAS_CHAT_ASSISTANT_ID",
			envValue: "asst_chat",
			field:    func(p *Profile) string { return p.ChatAssistantID },
			expected: "asst_chat",
		},
		{
			name:     "ATLAS_NEGOTIATOR_ASSISTANT_ID",
			envVar:   "ATLAS_NEGOTIATOR_ASSISTANT_ID",
			envValue: "asst_neg",
			field:    func(p *Profile) string { return p.NegotiatorAssistantID },
			expected: "asst_neg",
		},
		{
			name:     "ATLAS_USER_NAME",
			envVar:   "ATLAS_USER_NAME",
			envValue: "Carlos",
			field:    func(p *Profile) string { return p.UserName },
			expected: "Carlos",
		},
		{
			name:     "ATLAS_MAX_UPSTREAM_REQUESTS",
			envVar:   "ATLAS_MAX_UPSTREAM_REQUESTS",
			envValue: "4",
			field:    func(p *Profile) string { return strconv.Itoa(p.MaxUpstreamRequests) },
			expected: "4",
		},
		{
			name:     "invalid ATLAS_MAX_UPSTREAM_REQUESTS keeps default",
			envVar:   "ATLAS_MAX_UPSTREAM_REQUESTS",
			envValue: "many",
			field:    func(p *Profile) string { return strconv.Itoa(p.MaxUpstreamRequests) },
			expected: "16",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv(tt.envVar, tt.envValue)

			profile := &Profile{}
			profile.FromEnv()

			actual := tt.field(profile)
			if actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, actual)
			}
		})
	}
}

func TestProfileAPIKeyPrecedence(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("ATLAS_OPENAI_API_KEY", "sk-new")
	t.Setenv("OPENAI_API_KEY", "sk-old")

	profile := &Profile{}
	profile.FromEnv()
	if profile.OpenAIAPIKey != "sk-new" {
		t.Errorf("expected ATLAS_OPENAI_API_KEY to win, got %q", profile.OpenAIAPIKey)
	}
	if !profile.HasAPIKey() {
		t.Error("expected HasAPIKey to be true")
	}
}

func TestProfileValidate(t *testing.T) {
	t.Run("sqlite dsn derived from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Data: dir}
		if err := p.Validate(); err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if p.Driver != "sqlite" {
			t.Errorf("expected sqlite driver, got %q", p.Driver)
		}
		if p.DSN != filepath.Join(dir, "atlas_dev.db") {
			t.Errorf("unexpected dsn %q", p.DSN)
		}
		if p.ChatAssistantID != DefaultChatAssistantID {
			t.Errorf("expected default chat assistant, got %q", p.ChatAssistantID)
		}
	})

	t.Run("unknown mode falls back to dev", func(t *testing.T) {
		for _, mode := range []string{"", "demo", "staging"} {
			dir := t.TempDir()
			p := &Profile{Mode: mode, Data: dir}
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate(%q) failed: %v", mode, err)
			}
			if p.Mode != "dev" {
				t.Errorf("mode %q: expected dev, got %q", mode, p.Mode)
			}
			if p.DSN != filepath.Join(dir, "atlas_dev.db") {
				t.Errorf("mode %q: unexpected dsn %q", mode, p.DSN)
			}
		}
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", Data: t.TempDir()}
		if err := p.Validate(); err == nil {
			t.Error("expected error for postgres without dsn")
		}
	})

	t.Run("mysql is rejected", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", Data: t.TempDir()}
		if err := p.Validate(); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: filepath.Join(t.TempDir(), "missing")}
		if err := p.Validate(); err == nil {
			t.Error("expected error for missing data dir")
		}
	})
}

// Helper functions

func clearEnvVars(t *testing.T) {
	t.Helper()
	envVars := []string{
		"ATLAS_OPENAI_API_KEY",
		"OPENAI_API_KEY",
		"ATLAS_OPENAI_BASE_URL",
		"ATLAS_CHAT_ASSISTANT_ID",
		"ATLAS_NEGOTIATOR_ASSISTANT_ID",
		"ATLAS_USER_NAME",
		"ATLAS_MAX_UPSTREAM_REQUESTS",
	}
	for _, envVar := range envVars {
		// t.Setenv registers restoration; unset afterwards so the variable is absent.
		t.Setenv(envVar, "")
		os.Unsetenv(envVar)
	}
}
