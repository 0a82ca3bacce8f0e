package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultChatAssistantID is the assistant behind the general chat surface.
	DefaultChatAssistantID = "asst_CCu0BHjv7F57ES9RmPbHEaYT"
	// DefaultNegotiatorAssistantID is the assistant behind the negotiator surface.
	DefaultNegotiatorAssistantID = "asst_JQE3K3UtYHAsAbS5DEwOg1h8"
	// DefaultOpenAIBaseURL is the upstream Assistants API endpoint.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultUserName is the name greeted by the welcome messages.
	DefaultUserName = "Usuário"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where atlas stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Assistant gateway configuration
	OpenAIAPIKey          string // ATLAS_OPENAI_API_KEY (legacy: OPENAI_API_KEY)
	OpenAIBaseURL         string // ATLAS_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	ChatAssistantID       string // ATLAS_CHAT_ASSISTANT_ID
	NegotiatorAssistantID string // ATLAS_NEGOTIATOR_ASSISTANT_ID
	UserName              string // ATLAS_USER_NAME (default: Usuário)
	MaxUpstreamRequests   int    // ATLAS_MAX_UPSTREAM_REQUESTS (default: 16)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// HasAPIKey reports whether an upstream credential is configured through the environment.
// A key saved through the credential API is resolved separately by the store.
func (p *Profile) HasAPIKey() bool {
	return strings.TrimSpace(p.OpenAIAPIKey) != ""
}

// FromEnv loads the assistant gateway configuration from environment variables.
// Supports both ATLAS_* (new) and the bare OPENAI_API_KEY used by the original proxy.
func (p *Profile) FromEnv() {
	getEnvWithFallback := func(newKey, legacyKey string) string {
		if val := os.Getenv(newKey); val != "" {
			return val
		}
		return os.Getenv(legacyKey)
	}

	getEnvWithDefault := func(key, defaultValue string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultValue
	}

	p.OpenAIAPIKey = getEnvWithFallback("ATLAS_OPENAI_API_KEY", "OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvWithDefault("ATLAS_OPENAI_BASE_URL", DefaultOpenAIBaseURL)
	p.ChatAssistantID = getEnvWithDefault("ATLAS_CHAT_ASSISTANT_ID", DefaultChatAssistantID)
	p.NegotiatorAssistantID = getEnvWithDefault("ATLAS_NEGOTIATOR_ASSISTANT_ID", DefaultNegotiatorAssistantID)
	p.UserName = getEnvWithDefault("ATLAS_USER_NAME", DefaultUserName)

	p.MaxUpstreamRequests = 16
	if val := os.Getenv("ATLAS_MAX_UPSTREAM_REQUESTS"); val != "" {
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err == nil && n > 0 {
			p.MaxUpstreamRequests = n
		} else {
			slog.Warn("ignoring invalid ATLAS_MAX_UPSTREAM_REQUESTS", slog.String("value", val))
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only sqlite and postgres are supported", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "atlas")
		} else {
			p.Data = "/var/opt/atlas"
		}
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("atlas_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.OpenAIBaseURL == "" {
		p.OpenAIBaseURL = DefaultOpenAIBaseURL
	}
	if p.ChatAssistantID == "" {
		p.ChatAssistantID = DefaultChatAssistantID
	}
	if p.NegotiatorAssistantID == "" {
		p.NegotiatorAssistantID = DefaultNegotiatorAssistantID
	}
	if p.UserName == "" {
		p.UserName = DefaultUserName
	}
	if p.MaxUpstreamRequests <= 0 {
		p.MaxUpstreamRequests = 16
	}

	return nil
}
