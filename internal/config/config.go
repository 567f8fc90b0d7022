package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const (
	GeneratorBase64 = "base64"
	GeneratorNanoID = "nanoid"
)

const (
	minShortCodeLength = 6
	maxShortCodeLength = 10
)

// ErrInvalidConfig is returned when a loaded config contains unsupported values.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Env        string `yaml:"env"`
	LogLevel   string `yaml:"log_level"`
	Storage    string `yaml:"storage"`
	ShortCode  `yaml:"short_code"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
}

type ShortCode struct {
	Generator  string `yaml:"generator"`
	Length     int    `yaml:"length"`
	MaxRetries int    `yaml:"max_retries"`
}

var defaultShortCode = ShortCode{
	Generator:  GeneratorBase64,
	Length:     8,
	MaxRetries: 5,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	RequestTimeout: 5 * time.Second,
	MaxHeaderBytes: 1 << 20,
}

// SlogLevel returns the parsed log level, falling back to info.
func (cfg *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// TLS reports whether both certificate and key files are configured.
func (s *HTTPServer) TLS() bool {
	return s.CertFile != "" && s.KeyFile != ""
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	MigrationsPath  string        `yaml:"migrations_path"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	MigrationsPath:  "file://migrations",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.Storage = StoragePostgres
	cfg.ShortCode = defaultShortCode
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
}

// Validate reports the first unsupported value found in cfg.
func (cfg *Config) Validate() error {
	switch cfg.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, cfg.Env)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, cfg.LogLevel)
	}

	switch cfg.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, cfg.Storage)
	}

	switch cfg.ShortCode.Generator {
	case GeneratorBase64, GeneratorNanoID:
	default:
		return fmt.Errorf("%w: unknown short code generator %q", ErrInvalidConfig, cfg.ShortCode.Generator)
	}

	if cfg.ShortCode.Length < minShortCodeLength || cfg.ShortCode.Length > maxShortCodeLength {
		return fmt.Errorf("%w: short code length must be between %d and %d, got %d",
			ErrInvalidConfig, minShortCodeLength, maxShortCodeLength, cfg.ShortCode.Length)
	}

	if cfg.ShortCode.MaxRetries < 1 {
		return fmt.Errorf("%w: short code max retries must be positive, got %d", ErrInvalidConfig, cfg.ShortCode.MaxRetries)
	}

	if cfg.Env == EnvProd && !cfg.HTTPServer.TLS() {
		return fmt.Errorf("%w: cert_file and key_file are required in %s", ErrInvalidConfig, EnvProd)
	}

	return nil
}
