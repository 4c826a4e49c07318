package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	Gemini GeminiConfig
	Log    LogConfig
}

type ServerConfig struct {
	Port  int
	// MCP also serves the MCP tools on stdio.
	MCP   bool
	// Token, when set, is required as a bearer token on every API route
	// except /health.
	Token string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	APIVersion string
	Transport  string
	Timeout    string
}

type LogConfig struct {
	Level string
}

// TimeoutDuration parses Gemini.Timeout, falling back to 120s when it is
// empty, invalid or not positive.
func (g GeminiConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(g.Timeout))
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Gemini: GeminiConfig{
			Model:      "gemini-1.5-flash",
			BaseURL:    "https://generativelanguage.googleapis.com",
			APIVersion: "v1beta",
			Transport:  "rest",
			Timeout:    "120s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.gemini-resume.app) and
// the API key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/gemini-resume/config.json
// and the API key falls back to $XDG_DATA_HOME/gemini-resume/secrets.json.
//
// Environment variables (GEMINI_RESUME_*) override backend values on all
// platforms. The API key is read from GEMINI_API_KEY, then GOOGLE_API_KEY.
// A missing API key is not an error: requests fail individually instead.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}

	// Try platform keychain for API key if still empty.
	if cfg.Gemini.APIKey == "" {
		if key, err := kc.Get("gemini-resume", "gemini_api_key"); err == nil && key != "" {
			cfg.Gemini.APIKey = key
		}
	}

	return cfg, nil
}

// HasAPIKey reports whether a credential was found.
func (c Config) HasAPIKey() bool { return c.Gemini.APIKey != "" }

// APIKeyHint tells the user where the API key can be provided.
func APIKeyHint() string {
	return "set GEMINI_API_KEY (or GOOGLE_API_KEY)" + apiKeyHint()
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
