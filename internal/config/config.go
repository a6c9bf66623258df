package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Forward targets.
const (
	TargetLog        = "log"
	TargetCompletion = "completion"
	TargetNone       = "none"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// EndpointEnv overrides the configured endpoint.
const EndpointEnv = "WATCHWIRE_ENDPOINT"

// Config is the resolved watchwire configuration.
type Config struct {
	Endpoint  string
	LogLevel  string
	LogFormat string
	LogFile   string
	// LogStderr is "auto", "always" or "never".
	LogStderr string
	Theme     string

	Forward    Forward
	Completion Completion
	Serve      Serve
}

// Forward configures the downstream sink.
type Forward struct {
	Target    string
	CachePath string // empty keeps the cache in memory only
	Resume    bool
}

// Completion configures the chat completion consumer.
type Completion struct {
	APIBase   string
	Model     string
	Prompt    string
	APIKeyEnv string
}

// APIKey reads the key from the configured environment variable.
func (c Completion) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// Serve configures the reference file-watching server.
type Serve struct {
	Listen string
	Root   string
	Ignore []string
}

const (
	defaultConfigPath = "~/.config/watchwire/config.toml"
	defaultEndpoint   = "ws://localhost:8080"
	defaultLogLevel   = "info"
	defaultLogStderr  = "auto"
	defaultLogFile    = "~/.local/share/watchwire/watchwire.log"
	defaultCachePath  = "~/.local/share/watchwire/cache.db"
	defaultTheme      = "Nightfox"
	defaultAPIBase    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
	defaultPrompt     = "Summarize the changes in the following file content."
	defaultAPIKeyEnv  = "OPENAI_API_KEY"
	defaultListen     = "127.0.0.1:8080"
	defaultServeRoot  = "."
)

var defaultIgnore = []string{"**/.git/**", "**/node_modules/**", "**/*.swp", "**/*~"}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Endpoint:  defaultEndpoint,
		LogLevel:  defaultLogLevel,
		LogFormat: LogFormatText,
		LogFile:   mustExpand(defaultLogFile),
		LogStderr: defaultLogStderr,
		Theme:     defaultTheme,
		Forward: Forward{
			Target:    TargetLog,
			CachePath: mustExpand(defaultCachePath),
		},
		Completion: Completion{
			APIBase:   defaultAPIBase,
			Model:     defaultModel,
			Prompt:    defaultPrompt,
			APIKeyEnv: defaultAPIKeyEnv,
		},
		Serve: Serve{
			Listen: defaultListen,
			Root:   mustExpand(defaultServeRoot),
			Ignore: append([]string(nil), defaultIgnore...),
		},
	}
}

type rawConfig struct {
	Endpoint  string `toml:"endpoint"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
	LogStderr string `toml:"log_stderr"`
	Theme     string `toml:"theme"`

	Forward struct {
		Target    string  `toml:"target"`
		CachePath *string `toml:"cache_path"`
		Resume    bool    `toml:"resume"`
	} `toml:"forward"`

	Completion struct {
		APIBase   string `toml:"api_base"`
		Model     string `toml:"model"`
		Prompt    string `toml:"prompt"`
		APIKeyEnv string `toml:"api_key_env"`
	} `toml:"completion"`

	Serve struct {
		Listen string   `toml:"listen"`
		Root   string   `toml:"root"`
		Ignore []string `toml:"ignore"`
	} `toml:"serve"`
}

// Load locates and parses the config file, falling back to defaults when it
// is missing. Blank values also fall back to defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.Endpoint, raw.Endpoint)
	setString(&cfg.LogLevel, raw.LogLevel)
	setLower(&cfg.LogFormat, raw.LogFormat)
	setPath(&cfg.LogFile, raw.LogFile)
	setLower(&cfg.LogStderr, raw.LogStderr)
	setString(&cfg.Theme, raw.Theme)

	setLower(&cfg.Forward.Target, raw.Forward.Target)
	if raw.Forward.CachePath != nil {
		// An explicit empty string disables persistence.
		cfg.Forward.CachePath = ""
		setPath(&cfg.Forward.CachePath, *raw.Forward.CachePath)
	}
	cfg.Forward.Resume = raw.Forward.Resume

	setString(&cfg.Completion.APIBase, raw.Completion.APIBase)
	setString(&cfg.Completion.Model, raw.Completion.Model)
	setString(&cfg.Completion.Prompt, raw.Completion.Prompt)
	setString(&cfg.Completion.APIKeyEnv, raw.Completion.APIKeyEnv)

	setString(&cfg.Serve.Listen, raw.Serve.Listen)
	setPath(&cfg.Serve.Root, raw.Serve.Root)
	if raw.Serve.Ignore != nil {
		cfg.Serve.Ignore = filterEmpty(raw.Serve.Ignore)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("log_format %q: want %q or %q", c.LogFormat, LogFormatText, LogFormatJSON)
	}
	switch c.LogStderr {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("log_stderr %q: want \"auto\", \"always\" or \"never\"", c.LogStderr)
	}
	switch c.Forward.Target {
	case TargetLog, TargetCompletion, TargetNone:
	default:
		return fmt.Errorf("forward.target %q: want %q, %q or %q", c.Forward.Target, TargetLog, TargetCompletion, TargetNone)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv(EndpointEnv)); env != "" {
		cfg.Endpoint = env
	}
}

func setString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func setLower(dst *string, value string) {
	setString(dst, strings.ToLower(value))
}

func setPath(dst *string, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	*dst = mustExpand(value)
}

func filterEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
