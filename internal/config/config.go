package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "TENANTCTL"
	configDirName  = ".tenantctl"
	configFileName = "config.toml"
)

const (
	StoreTOML     = "toml"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	SecretsChain = "chain"
	SecretsFile  = "file"
	SecretsPass  = "pass"
)

type Store struct {
	Backend string
	Path    string
	DSN     string
}

type Secrets struct {
	Backend string
	Root    string
}

type Pool struct {
	Capacity       int
	AcquireTimeout time.Duration
	LaunchRate     float64
	LaunchBurst    int
}

type Orchestrator struct {
	ActionTimeout    time.Duration
	PersistTimeout   time.Duration
	PersistOnFailure bool
}

type Driver struct {
	Headless    bool
	Install     bool
	UserAgent   string
	TypingDelay time.Duration
}

type Log struct {
	Level  string
	Format string
	File   string
}

type Settings struct {
	Home           string
	Store          Store
	Secrets        Secrets
	Pool           Pool
	Orchestrator   Orchestrator
	Driver         Driver
	SurfaceBaseURL string
	Log            Log
	MetricsFile    string
	TracingStdout  bool
}

// NewViper returns a viper instance bound to TENANTCTL_* variables and,
// when it exists, the config file. An explicit file must exist.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := strings.TrimSpace(configFile) != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configFile = filepath.Join(home, configDirName, configFileName)
	}

	v.SetConfigFile(configFile)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", configFile, err)
	}

	return v, nil
}

func setDefaults(v *viper.Viper, home string) {
	base := filepath.Join(home, configDirName)

	v.SetDefault("store.backend", StoreTOML)
	v.SetDefault("secrets.backend", SecretsChain)
	v.SetDefault("secrets.root", filepath.Join(base, "secrets"))
	v.SetDefault("pool.capacity", 4)
	v.SetDefault("pool.acquire_timeout", 2*time.Minute)
	v.SetDefault("pool.launch_rate", 0.0)
	v.SetDefault("pool.launch_burst", 1)
	v.SetDefault("orchestrator.action_timeout", 5*time.Minute)
	v.SetDefault("orchestrator.persist_timeout", 15*time.Second)
	v.SetDefault("orchestrator.persist_on_failure", true)
	v.SetDefault("driver.headless", true)
	v.SetDefault("driver.install", false)
	v.SetDefault("driver.typing_delay", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tracing.stdout", false)
}

// Load applies defaults and returns typed settings. The store path default
// depends on the backend, so it is resolved here rather than in setDefaults.
func Load(v *viper.Viper) (Settings, error) {
	if v == nil {
		v = viper.New()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, fmt.Errorf("resolve home directory: %w", err)
	}
	setDefaults(v, home)

	s := Settings{
		Home: home,
		Store: Store{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("store.backend"))),
			Path:    strings.TrimSpace(v.GetString("store.path")),
			DSN:     strings.TrimSpace(v.GetString("store.dsn")),
		},
		Secrets: Secrets{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("secrets.backend"))),
			Root:    v.GetString("secrets.root"),
		},
		Pool: Pool{
			Capacity:       v.GetInt("pool.capacity"),
			AcquireTimeout: v.GetDuration("pool.acquire_timeout"),
			LaunchRate:     v.GetFloat64("pool.launch_rate"),
			LaunchBurst:    v.GetInt("pool.launch_burst"),
		},
		Orchestrator: Orchestrator{
			ActionTimeout:    v.GetDuration("orchestrator.action_timeout"),
			PersistTimeout:   v.GetDuration("orchestrator.persist_timeout"),
			PersistOnFailure: v.GetBool("orchestrator.persist_on_failure"),
		},
		Driver: Driver{
			Headless:    v.GetBool("driver.headless"),
			Install:     v.GetBool("driver.install"),
			UserAgent:   strings.TrimSpace(v.GetString("driver.user_agent")),
			TypingDelay: v.GetDuration("driver.typing_delay"),
		},
		SurfaceBaseURL: strings.TrimSpace(v.GetString("surface.base_url")),
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   strings.TrimSpace(v.GetString("log.file")),
		},
		MetricsFile:   strings.TrimSpace(v.GetString("metrics.textfile")),
		TracingStdout: v.GetBool("tracing.stdout"),
	}

	if s.Store.Path == "" {
		switch s.Store.Backend {
		case StoreTOML:
			s.Store.Path = filepath.Join(home, configDirName, "tenants.toml")
		case StoreSQLite:
			s.Store.Path = filepath.Join(home, configDirName, "tenants.db")
		}
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}

func (s Settings) validate() error {
	switch s.Store.Backend {
	case StoreTOML, StoreSQLite:
	case StorePostgres:
		if s.Store.DSN == "" {
			return errors.New("config: store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q", s.Store.Backend)
	}

	switch s.Secrets.Backend {
	case SecretsChain, SecretsFile, SecretsPass:
	default:
		return fmt.Errorf("config: unknown secrets.backend %q", s.Secrets.Backend)
	}

	if s.Pool.Capacity <= 0 {
		return fmt.Errorf("config: pool.capacity must be positive, got %d", s.Pool.Capacity)
	}
	if s.Pool.LaunchRate < 0 {
		return fmt.Errorf("config: pool.launch_rate must not be negative, got %v", s.Pool.LaunchRate)
	}

	return nil
}

// LogDir is where log files are kept when log.file is a bare name.
func (s Settings) LogDir() string {
	return filepath.Join(s.Home, configDirName, "logs")
}

// LogFile resolves log.file against LogDir unless it is already absolute.
func (s Settings) LogFile() string {
	if s.Log.File == "" || filepath.IsAbs(s.Log.File) {
		return s.Log.File
	}
	return filepath.Join(s.LogDir(), s.Log.File)
}
