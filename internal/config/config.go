package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ggonzalez94/lendkit/internal/policy"
)

// Credentials every chat session needs. Startup fails when any is unset.
const (
	EnvOpenAIAPIKey        = "OPENAI_API_KEY"
	EnvCDPAPIKeyName       = "CDP_API_KEY_NAME"
	EnvCDPAPIKeyPrivateKey = "CDP_API_KEY_PRIVATE_KEY"
)

var RequiredEnv = []string{EnvOpenAIAPIKey, EnvCDPAPIKeyName, EnvCDPAPIKeyPrivateKey}

type Overrides struct {
	ConfigPath string
	EnvFile    string
	Plain      bool
}

type Settings struct {
	OutputMode string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	CDPAPIKeyName       string
	CDPAPIKeyPrivateKey string
	CDPBaseURL          string

	RPCURL string

	WalletDataPath string
	WalletLockPath string

	Simulate       bool
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	GasMultiplier  float64

	MemoryEnabled  bool
	MemoryPath     string
	MemoryLockPath string
	ThreadID       string
	MaxSteps       int
	EnableTools    []string

	HTTPTimeout time.Duration
	HTTPRetries int

	LogPath  string
	LogLevel string
}

type fileConfig struct {
	Output string `yaml:"output"`
	OpenAI struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`
	CDP struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"cdp"`
	Chain struct {
		RPCURL string `yaml:"rpc_url"`
	} `yaml:"chain"`
	Wallet struct {
		DataPath string `yaml:"data_path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"wallet"`
	Execution struct {
		Simulate       *bool    `yaml:"simulate"`
		PollInterval   string   `yaml:"poll_interval"`
		ReceiptTimeout string   `yaml:"receipt_timeout"`
		GasMultiplier  *float64 `yaml:"gas_multiplier"`
	} `yaml:"execution"`
	Memory struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		ThreadID string `yaml:"thread_id"`
	} `yaml:"memory"`
	Agent struct {
		MaxSteps    *int     `yaml:"max_steps"`
		EnableTools []string `yaml:"enable_tools"`
	} `yaml:"agent"`
	HTTP struct {
		Timeout string `yaml:"timeout"`
		Retries *int   `yaml:"retries"`
	} `yaml:"http"`
	Log struct {
		Path  string `yaml:"path"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load(overrides Overrides) (Settings, error) {
	if err := loadDotEnv(overrides.EnvFile); err != nil {
		return Settings{}, err
	}

	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(overrides.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if overrides.Plain {
		settings.OutputMode = "plain"
	}
	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return Settings{}, fmt.Errorf("output must be json or plain")
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 2 * time.Second
	}
	if settings.ReceiptTimeout < 0 {
		settings.ReceiptTimeout = 0
	}
	if settings.GasMultiplier <= 1 {
		settings.GasMultiplier = 1.2
	}
	if settings.MaxSteps <= 0 {
		settings.MaxSteps = 25
	}
	if settings.HTTPTimeout <= 0 {
		settings.HTTPTimeout = 10 * time.Second
	}
	if settings.HTTPRetries < 0 {
		settings.HTTPRetries = 0
	}
	if strings.TrimSpace(settings.WalletLockPath) == "" {
		settings.WalletLockPath = settings.WalletDataPath + ".lock"
	}

	return settings, nil
}

// MissingRequired lists the required credentials that are not set, in
// declaration order.
func (s Settings) MissingRequired() []string {
	values := map[string]string{
		EnvOpenAIAPIKey:        s.OpenAIAPIKey,
		EnvCDPAPIKeyName:       s.CDPAPIKeyName,
		EnvCDPAPIKeyPrivateKey: s.CDPAPIKeyPrivateKey,
	}
	missing := make([]string, 0, len(RequiredEnv))
	for _, name := range RequiredEnv {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func defaultSettings() (Settings, error) {
	cacheDir, err := defaultCacheDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:     "json",
		OpenAIModel:    "gpt-4o-mini",
		CDPBaseURL:     "https://api.cdp.coinbase.com",
		WalletDataPath: "wallet_data.txt",
		Simulate:       true,
		PollInterval:   2 * time.Second,
		GasMultiplier:  1.2,
		MemoryPath:     filepath.Join(cacheDir, "memory.db"),
		MemoryLockPath: filepath.Join(cacheDir, "memory.lock"),
		ThreadID:       "lendkit",
		MaxSteps:       25,
		HTTPTimeout:    10 * time.Second,
		LogPath:        filepath.Join(cacheDir, "lendkit.log"),
		LogLevel:       "info",
	}, nil
}

func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	if v := strings.TrimSpace(os.Getenv("LENDKIT_CONFIG")); v != "" {
		return v, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "lendkit", "config.yaml"), nil
}

func defaultCacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "lendkit"), nil
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
	if cfg.OpenAI.Model != "" {
		settings.OpenAIModel = cfg.OpenAI.Model
	}
	if cfg.OpenAI.BaseURL != "" {
		settings.OpenAIBaseURL = cfg.OpenAI.BaseURL
	}
	if cfg.CDP.BaseURL != "" {
		settings.CDPBaseURL = cfg.CDP.BaseURL
	}
	if cfg.Chain.RPCURL != "" {
		settings.RPCURL = cfg.Chain.RPCURL
	}
	if cfg.Wallet.DataPath != "" {
		settings.WalletDataPath = cfg.Wallet.DataPath
	}
	if cfg.Wallet.LockPath != "" {
		settings.WalletLockPath = cfg.Wallet.LockPath
	}
	if cfg.Execution.Simulate != nil {
		settings.Simulate = *cfg.Execution.Simulate
	}
	if cfg.Execution.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Execution.PollInterval)
		if err != nil {
			return fmt.Errorf("config execution.poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Execution.ReceiptTimeout != "" {
		d, err := time.ParseDuration(cfg.Execution.ReceiptTimeout)
		if err != nil {
			return fmt.Errorf("config execution.receipt_timeout: %w", err)
		}
		settings.ReceiptTimeout = d
	}
	if cfg.Execution.GasMultiplier != nil {
		settings.GasMultiplier = *cfg.Execution.GasMultiplier
	}
	if cfg.Memory.Enabled != nil {
		settings.MemoryEnabled = *cfg.Memory.Enabled
	}
	if cfg.Memory.Path != "" {
		settings.MemoryPath = cfg.Memory.Path
	}
	if cfg.Memory.LockPath != "" {
		settings.MemoryLockPath = cfg.Memory.LockPath
	}
	if cfg.Memory.ThreadID != "" {
		settings.ThreadID = cfg.Memory.ThreadID
	}
	if cfg.Agent.MaxSteps != nil {
		settings.MaxSteps = *cfg.Agent.MaxSteps
	}
	if len(cfg.Agent.EnableTools) > 0 {
		settings.EnableTools = policy.SplitList(strings.Join(cfg.Agent.EnableTools, ","))
	}
	if cfg.HTTP.Timeout != "" {
		d, err := time.ParseDuration(cfg.HTTP.Timeout)
		if err != nil {
			return fmt.Errorf("config http.timeout: %w", err)
		}
		settings.HTTPTimeout = d
	}
	if cfg.HTTP.Retries != nil {
		settings.HTTPRetries = *cfg.HTTP.Retries
	}
	if cfg.Log.Path != "" {
		settings.LogPath = cfg.Log.Path
	}
	if cfg.Log.Level != "" {
		settings.LogLevel = strings.ToLower(cfg.Log.Level)
	}

	return nil
}

func applyEnv(settings *Settings) {
	settings.OpenAIAPIKey = strings.TrimSpace(os.Getenv(EnvOpenAIAPIKey))
	settings.CDPAPIKeyName = strings.TrimSpace(os.Getenv(EnvCDPAPIKeyName))
	settings.CDPAPIKeyPrivateKey = UnescapeNewlines(os.Getenv(EnvCDPAPIKeyPrivateKey))

	if v := os.Getenv("LENDKIT_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("LENDKIT_MODEL"); v != "" {
		settings.OpenAIModel = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		settings.OpenAIBaseURL = v
	}
	if v := os.Getenv("LENDKIT_CDP_BASE_URL"); v != "" {
		settings.CDPBaseURL = v
	}
	if v := os.Getenv("LENDKIT_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("LENDKIT_WALLET_DATA"); v != "" {
		settings.WalletDataPath = v
	}
	if v := os.Getenv("LENDKIT_WALLET_LOCK"); v != "" {
		settings.WalletLockPath = v
	}
	if v := os.Getenv("LENDKIT_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Simulate = b
		}
	}
	if v := os.Getenv("LENDKIT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PollInterval = d
		}
	}
	if v := os.Getenv("LENDKIT_RECEIPT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.ReceiptTimeout = d
		}
	}
	if v := os.Getenv("LENDKIT_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.MemoryEnabled = b
		}
	}
	if v := os.Getenv("LENDKIT_MEMORY_PATH"); v != "" {
		settings.MemoryPath = v
	}
	if v := os.Getenv("LENDKIT_THREAD_ID"); v != "" {
		settings.ThreadID = v
	}
	if v := os.Getenv("LENDKIT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.MaxSteps = n
		}
	}
	if v := os.Getenv("LENDKIT_ENABLE_TOOLS"); v != "" {
		settings.EnableTools = policy.SplitList(v)
	}
	if v := os.Getenv("LENDKIT_HTTP_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.HTTPRetries = n
		}
	}
	if v := os.Getenv("LENDKIT_LOG_PATH"); v != "" {
		settings.LogPath = v
	}
	if v := os.Getenv("LENDKIT_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
}

// UnescapeNewlines turns literal \n sequences into newlines. PEM keys are
// commonly stored on one line in .env files.
func UnescapeNewlines(v string) string {
	return strings.ReplaceAll(strings.TrimSpace(v), `\n`, "\n")
}
