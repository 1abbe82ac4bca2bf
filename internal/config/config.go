package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Auth    AuthConfig
	Store   StoreConfig
	Users   UsersConfig
	Cache   CacheConfig
	Barcode BarcodeConfig
	Upload  UploadConfig
	Mail    MailConfig
	Session SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"PantryPal"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Admin login key
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	JWTSecret  string        `envconfig:"JWT_SECRET" default:""`
	TokenTTL   time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"10"`
	ResetURL   string        `envconfig:"PASSWORD_RESET_URL" default:""`
}

// StoreConfig holds item store settings.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres, or mongodb
	Path string `envconfig:"STORE_DB_PATH" default:"./data/pantrypal.db"`
	// PostgreSQL settings
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORE_DB_NAME" default:"pantrypal"`
	User     string `envconfig:"STORE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`
	// MongoDB settings
	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"pantrypal"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"items"`
}

// UsersConfig holds account store settings.
type UsersConfig struct {
	Type string `envconfig:"USERS_DB_TYPE" default:"sqlite"` // sqlite or mysql
	Path string `envconfig:"USERS_DB_PATH" default:"./data/pantrypal.db"`
	// MySQL settings
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"pantrypal"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// CacheConfig holds cache and change notification settings.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost      string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"pantrypal:cache"`
}

// BarcodeConfig holds product lookup settings.
type BarcodeConfig struct {
	BaseURL   string        `envconfig:"BARCODE_BASE_URL" default:"https://world.openfoodfacts.org"`
	Timeout   time.Duration `envconfig:"BARCODE_TIMEOUT" default:"10s"`
	CacheTTL  time.Duration `envconfig:"BARCODE_CACHE_TTL" default:"24h"`
	UserAgent string        `envconfig:"BARCODE_USER_AGENT" default:"PantryPal/1.0"`
}

// UploadConfig holds image upload settings.
type UploadConfig struct {
	Provider string `envconfig:"UPLOAD_PROVIDER" default:"none"` // none, s3, or cloudinary

	S3Bucket        string `envconfig:"UPLOAD_S3_BUCKET" default:""`
	S3Region        string `envconfig:"UPLOAD_S3_REGION" default:""`
	S3Endpoint      string `envconfig:"UPLOAD_S3_ENDPOINT" default:""`
	S3AccessKey     string `envconfig:"UPLOAD_S3_ACCESS_KEY" default:""`
	S3SecretKey     string `envconfig:"UPLOAD_S3_SECRET_KEY" default:""`
	S3PathStyle     bool   `envconfig:"UPLOAD_S3_PATH_STYLE" default:"false"`
	S3PublicBaseURL string `envconfig:"UPLOAD_S3_PUBLIC_URL" default:""`

	CloudinaryCloudName    string `envconfig:"CLOUDINARY_CLOUD_NAME" default:""`
	CloudinaryUploadPreset string `envconfig:"CLOUDINARY_UPLOAD_PRESET" default:""`
	CloudinaryFolder       string `envconfig:"CLOUDINARY_FOLDER" default:"pantry"`
	CloudinaryAPIKey       string `envconfig:"CLOUDINARY_API_KEY" default:""`
	CloudinaryAPISecret    string `envconfig:"CLOUDINARY_API_SECRET" default:""`
}

// MailConfig holds SMTP settings. An empty host only logs emails.
type MailConfig struct {
	Host     string `envconfig:"SMTP_HOST" default:""`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	Username string `envconfig:"SMTP_USER" default:""`
	Password string `envconfig:"SMTP_PASS" default:""`
	From     string `envconfig:"MAIL_FROM" default:"no-reply@pantrypal.local"`
	FromName string `envconfig:"MAIL_FROM_NAME" default:"PantryPal"`
}

// SessionConfig controls the per-user pantry sessions.
type SessionConfig struct {
	IdleTimeout  time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	ReapInterval time.Duration `envconfig:"SESSION_REAP_INTERVAL" default:"1m"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// DSN returns the MySQL data source name.
func (u *UsersConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		u.User, u.Password, u.Host, u.Port, u.Name)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate lists missing or invalid settings. Outside production the
// server warns and runs with fallbacks; in production any entry is fatal.
func (c *Config) Validate() []string {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Auth.JWTSecret == "" {
		add("JWT_SECRET is required")
	} else if len(c.Auth.JWTSecret) < 32 {
		add("JWT_SECRET must be at least 32 characters")
	}

	switch strings.ToLower(c.Store.Type) {
	case "sqlite", "postgres":
	case "mongodb":
		if c.Store.MongoURI == "" {
			add("MONGODB_URI is required when STORE_TYPE=mongodb")
		}
	default:
		add("STORE_TYPE %q is not one of sqlite, postgres, mongodb", c.Store.Type)
	}

	switch strings.ToLower(c.Users.Type) {
	case "sqlite", "mysql":
	default:
		add("USERS_DB_TYPE %q is not one of sqlite, mysql", c.Users.Type)
	}

	switch strings.ToLower(c.Cache.Type) {
	case "memory", "redis":
	default:
		add("CACHE_TYPE %q is not one of memory, redis", c.Cache.Type)
	}

	switch strings.ToLower(c.Upload.Provider) {
	case "", "none":
		add("UPLOAD_PROVIDER is not set, image uploads are disabled")
	case "s3":
		if c.Upload.S3Bucket == "" || c.Upload.S3Region == "" {
			add("UPLOAD_S3_BUCKET and UPLOAD_S3_REGION are required when UPLOAD_PROVIDER=s3")
		}
	case "cloudinary":
		if c.Upload.CloudinaryCloudName == "" || c.Upload.CloudinaryUploadPreset == "" {
			add("CLOUDINARY_CLOUD_NAME and CLOUDINARY_UPLOAD_PRESET are required when UPLOAD_PROVIDER=cloudinary")
		}
	default:
		add("UPLOAD_PROVIDER %q is not one of none, s3, cloudinary", c.Upload.Provider)
	}

	if c.Mail.Host == "" {
		add("SMTP_HOST is not set, password reset emails are only logged")
	}
	return problems
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
