package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the login server and the CLI.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	AppURL   string `mapstructure:"URL"` // public base url, used for redirect_uri

	SSOURL       string        `mapstructure:"SSO_CCP_URL"`
	CrestURL     string        `mapstructure:"CCP_CREST_URL"`
	ClientID     string        `mapstructure:"SSO_CCP_CLIENT_ID"`
	SecretKey    string        `mapstructure:"SSO_CCP_SECRET_KEY"`
	CrestTimeout time.Duration `mapstructure:"CREST_TIMEOUT"`
	LocationTTL  time.Duration `mapstructure:"LOCATION_TTL"`
	UserAgent    string        `mapstructure:"USER_AGENT"`

	LoginPath string `mapstructure:"LOGIN_PATH"`
	MapPath   string `mapstructure:"MAP_PATH"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"` // "mongodb" | "memory"
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDBName   string `mapstructure:"MONGO_DB_NAME"`

	CacheDriver   string        `mapstructure:"CACHE_DRIVER"` // "memory" | "redis"
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`

	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	AllowedCharacterIDs   []int64 `mapstructure:"ALLOWED_CHARACTER_IDS"`
	AllowedCorporationIDs []int64 `mapstructure:"ALLOWED_CORPORATION_IDS"`
	AllowedAllianceIDs    []int64 `mapstructure:"ALLOWED_ALLIANCE_IDS"`
}

// LoadConfig reads configuration from a .env file, config file, environment variables and defaults.
// An empty cfgFile searches the default locations.
func LoadConfig(cfgFile string) (*ServerConfig, error) {
	// Missing .env is fine; containers get their env injected.
	_ = godotenv.Load()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/shadow-crest/")
		v.AddConfigPath("$HOME/.shadow-crest")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("URL", "http://localhost:8080")
	v.SetDefault("SSO_CCP_URL", "https://login.eveonline.com")
	v.SetDefault("CCP_CREST_URL", "https://crest-tq.eveonline.com")
	v.SetDefault("SSO_CCP_CLIENT_ID", "")
	v.SetDefault("SSO_CCP_SECRET_KEY", "")
	v.SetDefault("CREST_TIMEOUT", 3*time.Second)
	v.SetDefault("LOCATION_TTL", 10*time.Second)
	v.SetDefault("USER_AGENT", "shadow-crest/1.0")
	v.SetDefault("LOGIN_PATH", "/login")
	v.SetDefault("MAP_PATH", "/map")
	v.SetDefault("STORAGE_DRIVER", "mongodb")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "shadow_crest")
	v.SetDefault("CACHE_DRIVER", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "shadow-crest")
	v.SetDefault("ALLOWED_CHARACTER_IDS", []int64{})
	v.SetDefault("ALLOWED_CORPORATION_IDS", []int64{})
	v.SetDefault("ALLOWED_ALLIANCE_IDS", []int64{})
}
