package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr           string        `yaml:"addr"`         // ":8080"
	ReadTimeout    time.Duration `yaml:"readTimeout"`  // 15s
	WriteTimeout   time.Duration `yaml:"writeTimeout"` // 30s
	IdleTimeout    time.Duration `yaml:"idleTimeout"`  // 60s
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chatd
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

type SQLite struct {
	Path string `yaml:"path"` // file path or "file::memory:?cache=shared"
}

type Storage struct {
	Driver   string   `yaml:"driver"` // postgres|sqlite
	Postgres Postgres `yaml:"postgres"`
	SQLite   SQLite   `yaml:"sqlite"`
}

func (s Storage) Validate() error {
	switch s.Driver {
	case "postgres":
		if s.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
	case "sqlite":
		if s.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", s.Driver)
	}
	return nil
}

type Redis struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"poolSize"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type Realtime struct {
	Driver     string `yaml:"driver"` // memory|redis
	Redis      Redis  `yaml:"redis"`
	BufferSize int    `yaml:"bufferSize"`
}

func (r Realtime) Validate() error {
	switch r.Driver {
	case "memory":
	case "redis":
		if r.Redis.Address == "" {
			return errors.New("realtime.redis.address is required")
		}
	default:
		return fmt.Errorf("realtime.driver %q is not supported", r.Driver)
	}
	return nil
}

type Password struct {
	MinLength  int `yaml:"minLength"`
	BcryptCost int `yaml:"bcryptCost"`
}

func (p Password) Validate() error {
	if p.MinLength < 6 {
		return errors.New("security.password.minLength must be >= 6")
	}
	if p.BcryptCost != 0 && (p.BcryptCost < 4 || p.BcryptCost > 18) {
		return errors.New("security.password.bcryptCost must be in [4..18]")
	}
	return nil
}

type JWT struct {
	PrivateKeyPath string        `yaml:"privateKeyPath"`
	PublicKeyPath  string        `yaml:"publicKeyPath"`
	Ephemeral      bool          `yaml:"ephemeral"` // generate an in-memory key (dev only)
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	AccessTTL      time.Duration `yaml:"accessTTL"` // e.g. 15m
	ClockSkew      time.Duration `yaml:"clockSkew"` // e.g. 30s
}

func (j JWT) Validate() error {
	if !j.Ephemeral {
		if j.PrivateKeyPath == "" {
			return errors.New("security.jwt.privateKeyPath is required")
		}
		if j.PublicKeyPath == "" {
			return errors.New("security.jwt.publicKeyPath is required")
		}
	}
	if j.Issuer == "" {
		return errors.New("security.jwt.issuer is required")
	}
	if j.AccessTTL <= 0 {
		return errors.New("security.jwt.accessTTL must be > 0")
	}
	if j.ClockSkew < 0 || j.ClockSkew > time.Minute {
		return errors.New("security.jwt.clockSkew must be in [0..1m]")
	}
	return nil
}

type Security struct {
	Password   Password      `yaml:"password"`
	JWT        JWT           `yaml:"jwt"`
	RefreshTTL time.Duration `yaml:"refreshTTL"`
}

func (s Security) Validate() error {
	if err := s.Password.Validate(); err != nil {
		return err
	}
	return s.JWT.Validate()
}

type Session struct {
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

type Media struct {
	Audio      bool     `yaml:"audio"`
	Video      bool     `yaml:"video"`
	ICEServers []string `yaml:"iceServers"`
}

type LocalStorage struct {
	BasePath     string `yaml:"basePath"`
	PublicPrefix string `yaml:"publicPrefix"`
}

type S3 struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle"` // MinIO
	PublicURL       string `yaml:"publicURL"`
}

type Attachments struct {
	Driver   string        `yaml:"driver"` // local|s3
	Local    LocalStorage  `yaml:"local"`
	S3       S3            `yaml:"s3"`
	MaxBytes int64         `yaml:"maxBytes"`
	URLTTL   time.Duration `yaml:"urlTTL"`
}

func (a Attachments) Validate() error {
	switch a.Driver {
	case "local":
		if a.Local.BasePath == "" {
			return errors.New("attachments.local.basePath is required")
		}
	case "s3":
		if a.S3.Bucket == "" {
			return errors.New("attachments.s3.bucket is required")
		}
	default:
		return fmt.Errorf("attachments.driver %q is not supported", a.Driver)
	}
	return nil
}

type Config struct {
	HTTP        HTTP        `yaml:"http"`
	GRPC        GRPC        `yaml:"grpc"`
	Logging     Logging     `yaml:"logging"`
	Storage     Storage     `yaml:"storage"`
	Realtime    Realtime    `yaml:"realtime"`
	Security    Security    `yaml:"security"`
	Session     Session     `yaml:"session"`
	Media       Media       `yaml:"media"`
	Attachments Attachments `yaml:"attachments"`
}

// LoadConfig reads CONFIG_PATH (default ./config/config.yaml).
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if strings.TrimSpace(path) == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Realtime.Validate(); err != nil {
		return err
	}
	if err := c.Security.Validate(); err != nil {
		return err
	}
	return c.Attachments.Validate()
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chatd"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Realtime.Driver == "" {
		c.Realtime.Driver = "memory"
	}
	if c.Realtime.BufferSize <= 0 {
		c.Realtime.BufferSize = 100
	}

	if c.Security.Password.MinLength == 0 {
		c.Security.Password.MinLength = 6
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "chatd"
	}
	if c.Security.JWT.AccessTTL == 0 {
		c.Security.JWT.AccessTTL = 15 * time.Minute
	}
	if c.Security.RefreshTTL == 0 {
		c.Security.RefreshTTL = 30 * 24 * time.Hour
	}

	if c.Session.HeartbeatInterval <= 0 {
		c.Session.HeartbeatInterval = 30 * time.Second
	}

	if c.Attachments.Driver == "" {
		c.Attachments.Driver = "local"
	}
	if c.Attachments.Local.BasePath == "" {
		c.Attachments.Local.BasePath = "./data/attachments"
	}
	if c.Attachments.Local.PublicPrefix == "" {
		c.Attachments.Local.PublicPrefix = "/attachments/"
	}
	if c.Attachments.MaxBytes <= 0 {
		c.Attachments.MaxBytes = 10 << 20
	}
	if c.Attachments.URLTTL <= 0 {
		c.Attachments.URLTTL = 24 * time.Hour
	}
}
