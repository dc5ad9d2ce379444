package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAucoBaseURL = "https://api.auco.ai/v1.5/ext"
	DefaultPDFAPIURL   = "https://api.pdfshift.io/v3/convert/pdf"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Minio    MinioConfig    `yaml:"minio"`
	Auco     AucoConfig     `yaml:"auco"`
	PDF      PDFConfig      `yaml:"pdf"`
	Document DocumentConfig `yaml:"document"`
	Auth     AuthConfig     `yaml:"auth"`
	Users    []User         `yaml:"users" validate:"dive"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
	// RateLimit is requests per second per client IP, Burst the bucket size
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `yaml:"burst" validate:"gte=0"`
	// CORSOrigins empty allows every origin
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" validate:"gte=0"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	// Addr empty disables the dispatch lock
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	LockTTLSec int    `yaml:"lock_ttl_seconds" validate:"gte=0"`
}

type MinioConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint" validate:"required_if=Enabled true"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket" validate:"required_if=Enabled true"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type AucoConfig struct {
	BaseURL    string `yaml:"base_url" validate:"url"`
	PublicKey  string `yaml:"public_key" validate:"omitempty,startswith=puk_"`
	PrivateKey string `yaml:"private_key" validate:"omitempty,startswith=prk_"`
	OwnerEmail string `yaml:"owner_email" validate:"omitempty,email"`
	Subject    string `yaml:"subject"`
	Message    string `yaml:"message"`
	Notify     *bool  `yaml:"notify"`
	// RemindEvery is the provider reminder interval
	RemindEvery    int  `yaml:"remind_every" validate:"gte=0"`
	Diagnose       bool `yaml:"diagnose"`
	TimeoutSeconds int  `yaml:"timeout_seconds" validate:"gte=0"`
	// WebhookToken authenticates provider callbacks, defaults to the private key
	WebhookToken string `yaml:"webhook_token"`
}

type PDFConfig struct {
	APIURL           string `yaml:"api_url" validate:"url"`
	APIKey           string `yaml:"api_key"`
	Format           string `yaml:"format"`
	Margin           string `yaml:"margin"`
	ResponseEncoding string `yaml:"response_encoding" validate:"oneof=binary base64"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" validate:"gte=0"`
}

type DocumentConfig struct {
	DefaultTemplate string `yaml:"default_template" validate:"oneof=modern simple"`
	// DateLayout is a Go time layout for current_date and release dates
	DateLayout string `yaml:"date_layout"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Role     string `yaml:"role" validate:"omitempty,oneof=admin operator"`
}

// ErrMissingRequired marks configuration the pipeline cannot run without
var ErrMissingRequired = errors.New("missing required configuration")

var validate = validator.New()

// Load reads the YAML file at path, applies .env and environment overrides,
// then fills defaults. A missing file is not an error when the environment
// carries the configuration.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Auco.OwnerEmail, "AUCO_OWNER_EMAIL")
	setString(&cfg.Auco.PublicKey, "AUCO_PUK")
	setString(&cfg.Auco.PrivateKey, "AUCO_PRK")
	setString(&cfg.Auco.BaseURL, "AUCO_BASE_URL")
	setString(&cfg.Auco.WebhookToken, "AUCO_WEBHOOK_TOKEN")
	setString(&cfg.PDF.APIKey, "PDFSHIFT_API_KEY")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Minio.Bucket, "MINIO_BUCKET")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AUCO_DIAGNOSE"); v != "" {
		cfg.Auco.Diagnose = v == "1" || v == "true"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	// the owner address is compared against signer emails
	cfg.Auco.OwnerEmail = strings.ToLower(strings.TrimSpace(cfg.Auco.OwnerEmail))
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 5
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.LockTTLSec == 0 {
		cfg.Redis.LockTTLSec = 120
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Auco.BaseURL == "" {
		cfg.Auco.BaseURL = DefaultAucoBaseURL
	}
	if cfg.Auco.Subject == "" {
		cfg.Auco.Subject = "Contract signature request"
	}
	if cfg.Auco.Message == "" {
		cfg.Auco.Message = "Please review and sign the attached contract."
	}
	if cfg.Auco.Notify == nil {
		notify := true
		cfg.Auco.Notify = &notify
	}
	if cfg.Auco.RemindEvery == 0 {
		cfg.Auco.RemindEvery = 6
	}
	if cfg.Auco.TimeoutSeconds == 0 {
		cfg.Auco.TimeoutSeconds = 30
	}
	if cfg.Auco.WebhookToken == "" {
		cfg.Auco.WebhookToken = cfg.Auco.PrivateKey
	}
	if cfg.PDF.APIURL == "" {
		cfg.PDF.APIURL = DefaultPDFAPIURL
	}
	if cfg.PDF.Format == "" {
		cfg.PDF.Format = "A4"
	}
	if cfg.PDF.Margin == "" {
		cfg.PDF.Margin = "20px"
	}
	if cfg.PDF.ResponseEncoding == "" {
		cfg.PDF.ResponseEncoding = "binary"
	}
	if cfg.PDF.TimeoutSeconds == 0 {
		cfg.PDF.TimeoutSeconds = 60
	}
	if cfg.Document.DefaultTemplate == "" {
		cfg.Document.DefaultTemplate = "modern"
	}
	if cfg.Document.DateLayout == "" {
		cfg.Document.DateLayout = "1/2/2006"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	for i := range cfg.Users {
		if cfg.Users[i].Role == "" {
			cfg.Users[i].Role = "operator"
		}
	}
}

// Validate checks structural constraints of the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CheckRequired reports the settings a dispatch cannot proceed without
func (c *Config) CheckRequired() error {
	var missing []string
	if c.Auco.OwnerEmail == "" {
		missing = append(missing, "AUCO_OWNER_EMAIL")
	}
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingRequired, missing)
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
