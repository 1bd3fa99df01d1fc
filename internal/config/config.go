package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ggonzalez94/yieldsensei/internal/registry"
)

const (
	DefaultDefiLlamaAPIBase    = registry.DefiLlamaAPIBaseURL
	DefaultDefiLlamaYieldsBase = registry.DefiLlamaYieldsBaseURL
	DefaultRedisChannel        = "sensei:pipeline"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	LogLevel       string
	NoJournal      bool
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int

	DefiLlamaAPIBase    string
	DefiLlamaYieldsBase string
	AuditTablePath      string

	LogLevel    string
	LogEncoding string

	JournalEnabled  bool
	JournalPath     string
	JournalLockPath string

	AgentProvider  string
	AgentModel     string
	AgentAPIKey    string
	AgentBaseURL   string
	AgentMaxTokens int64

	RedisAddress  string
	RedisPassword string
	RedisChannel  string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Log     struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"log"`
	Journal struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"journal"`
	Providers struct {
		DefiLlama struct {
			APIBase    string `yaml:"api_base"`
			YieldsBase string `yaml:"yields_base"`
		} `yaml:"defillama"`
	} `yaml:"providers"`
	Security struct {
		AuditTable string `yaml:"audit_table"`
	} `yaml:"security"`
	Agent struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
		BaseURL   string `yaml:"base_url"`
		MaxTokens *int64 `yaml:"max_tokens"`
	} `yaml:"agent"`
	Events struct {
		Redis struct {
			Address     string `yaml:"address"`
			Password    string `yaml:"password"`
			PasswordEnv string `yaml:"password_env"`
			Channel     string `yaml:"channel"`
		} `yaml:"redis"`
	} `yaml:"events"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.RedisChannel == "" {
		settings.RedisChannel = DefaultRedisChannel
	}
	switch settings.AgentProvider {
	case "", "offline":
		settings.AgentProvider = "offline"
	case "anthropic", "openai":
	default:
		return Settings{}, fmt.Errorf("agent provider must be offline, anthropic or openai")
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	journalPath, lockPath, err := defaultJournalPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:          "json",
		Timeout:             10 * time.Second,
		Retries:             0,
		DefiLlamaAPIBase:    DefaultDefiLlamaAPIBase,
		DefiLlamaYieldsBase: DefaultDefiLlamaYieldsBase,
		LogLevel:            "warn",
		LogEncoding:         "console",
		JournalEnabled:      true,
		JournalPath:         journalPath,
		JournalLockPath:     lockPath,
		AgentProvider:       "offline",
		RedisChannel:        DefaultRedisChannel,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "sensei", "config.yaml"), nil
}

func defaultJournalPaths() (string, string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "sensei")
	return filepath.Join(dir, "runs.db"), filepath.Join(dir, "runs.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = cfg.Log.Level
	}
	if cfg.Log.Encoding != "" {
		settings.LogEncoding = cfg.Log.Encoding
	}
	if cfg.Journal.Enabled != nil {
		settings.JournalEnabled = *cfg.Journal.Enabled
	}
	if cfg.Journal.Path != "" {
		settings.JournalPath = cfg.Journal.Path
	}
	if cfg.Journal.LockPath != "" {
		settings.JournalLockPath = cfg.Journal.LockPath
	}
	if cfg.Providers.DefiLlama.APIBase != "" {
		settings.DefiLlamaAPIBase = cfg.Providers.DefiLlama.APIBase
	}
	if cfg.Providers.DefiLlama.YieldsBase != "" {
		settings.DefiLlamaYieldsBase = cfg.Providers.DefiLlama.YieldsBase
	}
	if cfg.Security.AuditTable != "" {
		settings.AuditTablePath = cfg.Security.AuditTable
	}
	if cfg.Agent.Provider != "" {
		settings.AgentProvider = strings.ToLower(cfg.Agent.Provider)
	}
	if cfg.Agent.Model != "" {
		settings.AgentModel = cfg.Agent.Model
	}
	if cfg.Agent.APIKey != "" {
		settings.AgentAPIKey = cfg.Agent.APIKey
	}
	if cfg.Agent.APIKeyEnv != "" {
		settings.AgentAPIKey = os.Getenv(cfg.Agent.APIKeyEnv)
	}
	if cfg.Agent.BaseURL != "" {
		settings.AgentBaseURL = cfg.Agent.BaseURL
	}
	if cfg.Agent.MaxTokens != nil {
		settings.AgentMaxTokens = *cfg.Agent.MaxTokens
	}
	if cfg.Events.Redis.Address != "" {
		settings.RedisAddress = cfg.Events.Redis.Address
	}
	if cfg.Events.Redis.Password != "" {
		settings.RedisPassword = cfg.Events.Redis.Password
	}
	if cfg.Events.Redis.PasswordEnv != "" {
		settings.RedisPassword = os.Getenv(cfg.Events.Redis.PasswordEnv)
	}
	if cfg.Events.Redis.Channel != "" {
		settings.RedisChannel = cfg.Events.Redis.Channel
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("SENSEI_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SENSEI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("SENSEI_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("SENSEI_LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := os.Getenv("SENSEI_LOG_ENCODING"); v != "" {
		settings.LogEncoding = v
	}
	if v := os.Getenv("SENSEI_NO_JOURNAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.JournalEnabled = !b
		}
	}
	if v := os.Getenv("SENSEI_JOURNAL_PATH"); v != "" {
		settings.JournalPath = v
	}
	if v := os.Getenv("SENSEI_JOURNAL_LOCK_PATH"); v != "" {
		settings.JournalLockPath = v
	}
	if v := os.Getenv("SENSEI_DEFILLAMA_API_BASE"); v != "" {
		settings.DefiLlamaAPIBase = v
	}
	if v := os.Getenv("SENSEI_DEFILLAMA_YIELDS_BASE"); v != "" {
		settings.DefiLlamaYieldsBase = v
	}
	if v := os.Getenv("SENSEI_AUDIT_TABLE"); v != "" {
		settings.AuditTablePath = v
	}
	if v := os.Getenv("SENSEI_AGENT_PROVIDER"); v != "" {
		settings.AgentProvider = strings.ToLower(v)
	}
	if v := os.Getenv("SENSEI_AGENT_MODEL"); v != "" {
		settings.AgentModel = v
	}
	if v := os.Getenv("SENSEI_AGENT_API_KEY"); v != "" {
		settings.AgentAPIKey = v
	}
	if v := os.Getenv("SENSEI_AGENT_BASE_URL"); v != "" {
		settings.AgentBaseURL = v
	}
	if v := os.Getenv("SENSEI_AGENT_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.AgentMaxTokens = n
		}
	}
	if v := os.Getenv("SENSEI_REDIS_ADDRESS"); v != "" {
		settings.RedisAddress = v
	}
	if v := os.Getenv("SENSEI_REDIS_PASSWORD"); v != "" {
		settings.RedisPassword = v
	}
	if v := os.Getenv("SENSEI_REDIS_CHANNEL"); v != "" {
		settings.RedisChannel = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.LogLevel != "" {
		settings.LogLevel = flags.LogLevel
	}
	if flags.NoJournal {
		settings.JournalEnabled = false
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
