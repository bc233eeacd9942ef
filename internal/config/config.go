package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/storage"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	Storage   storage.Config
	SMTP      SMTPConfig
	Contact   ContactConfig
	Admins    AdminsConfig
	RateLimit RateLimitConfig
	Site      SiteConfig
	Editor    EditorConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// HashCacheTTL bounds how long asset hash lookups are cached.
	HashCacheTTL time.Duration
}

type KeycloakConfig struct {
	URL           string
	Realm         string
	ClientID      string
	ClientSecret  string
	AllowInsecure bool
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type ContactConfig struct {
	OperatorEmail string
	// NotifyInline relays messages from the API process instead of cmd/notifier.
	NotifyInline bool
	Collection   string
}

type AdminsConfig struct {
	UIDs []string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type SiteConfig struct {
	Name            string
	Collection      string
	DocumentID      string
	HashCollection  string
	HeroImageFolder string
}

type EditorConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "churchsite")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_HASH_CACHE_TTL", 60)
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	viper.SetDefault("STORAGE_BACKEND", storage.BackendMinIO)
	viper.SetDefault("STORAGE_BUCKET", "church-site")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("SMTP_PORT", "587")
	viper.SetDefault("CONTACT_COLLECTION", "contactMessages")
	viper.SetDefault("RATE_LIMIT_RPS", 0.2)
	viper.SetDefault("RATE_LIMIT_BURST", 5)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("SITE_NAME", "Grace Fellowship")
	viper.SetDefault("SITE_COLLECTION", "site")
	viper.SetDefault("SITE_DOCUMENT_ID", "content")
	viper.SetDefault("SITE_HASH_COLLECTION", "fileHashes")
	viper.SetDefault("SITE_HERO_FOLDER", "heroImages/")
	viper.SetDefault("EDITOR_IDLE_MINUTES", 30)
	viper.SetDefault("EDITOR_SWEEP_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:         viper.GetString("REDIS_HOST"),
			Port:         viper.GetString("REDIS_PORT"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           viper.GetInt("REDIS_DB"),
			HashCacheTTL: time.Duration(viper.GetInt("REDIS_HASH_CACHE_TTL")) * time.Minute,
		},
		Keycloak: KeycloakConfig{
			URL:           viper.GetString("KEYCLOAK_URL"),
			Realm:         viper.GetString("KEYCLOAK_REALM"),
			ClientID:      viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:  viper.GetString("KEYCLOAK_CLIENT_SECRET"),
			AllowInsecure: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		Storage: storage.Config{
			Backend:       viper.GetString("STORAGE_BACKEND"),
			Endpoint:      viper.GetString("STORAGE_ENDPOINT"),
			Region:        viper.GetString("STORAGE_REGION"),
			AccessKey:     viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
			UseSSL:        viper.GetBool("STORAGE_USE_SSL"),
			Bucket:        viper.GetString("STORAGE_BUCKET"),
			PublicBaseURL: viper.GetString("STORAGE_PUBLIC_BASE_URL"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetString("SMTP_PORT"),
			Username: viper.GetString("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
			FromName: viper.GetString("SMTP_FROM_NAME"),
		},
		Contact: ContactConfig{
			OperatorEmail: viper.GetString("CONTACT_OPERATOR_EMAIL"),
			NotifyInline:  viper.GetBool("CONTACT_NOTIFY_INLINE"),
			Collection:    viper.GetString("CONTACT_COLLECTION"),
		},
		Admins: AdminsConfig{
			UIDs: splitList(viper.GetString("ADMIN_UIDS")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Site: SiteConfig{
			Name:            viper.GetString("SITE_NAME"),
			Collection:      viper.GetString("SITE_COLLECTION"),
			DocumentID:      viper.GetString("SITE_DOCUMENT_ID"),
			HashCollection:  viper.GetString("SITE_HASH_COLLECTION"),
			HeroImageFolder: viper.GetString("SITE_HERO_FOLDER"),
		},
		Editor: EditorConfig{
			IdleTimeout:   time.Duration(viper.GetInt("EDITOR_IDLE_MINUTES")) * time.Minute,
			SweepInterval: time.Duration(viper.GetInt("EDITOR_SWEEP_SECONDS")) * time.Second,
		},
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure value in production")
	}
	if len(cfg.Admins.UIDs) == 0 {
		log.Println("WARNING: ADMIN_UIDS is empty; nobody can edit the site")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
