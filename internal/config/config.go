package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`

	Server struct {
		Port               int      `mapstructure:"port"`
		PublicURL          string   `mapstructure:"public_url"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
		MaxConns int    `mapstructure:"max_conns"`
	} `mapstructure:"database"`

	JWT struct {
		Secret        string `mapstructure:"secret"`
		Issuer        string `mapstructure:"issuer"`
		SessionCookie string `mapstructure:"session_cookie"`
	} `mapstructure:"jwt"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	WhatsApp struct {
		Provider           string `mapstructure:"provider"`
		DefaultCountryCode string `mapstructure:"default_country_code"`
		DedupeTTLMinutes   int    `mapstructure:"dedupe_ttl_minutes"`

		Twilio struct {
			AccountSID        string `mapstructure:"account_sid"`
			AuthToken         string `mapstructure:"auth_token"`
			From              string `mapstructure:"from"`
			BaseURL           string `mapstructure:"base_url"`
			StatusCallbackURL string `mapstructure:"status_callback_url"`
		} `mapstructure:"twilio"`

		Meta struct {
			PhoneNumberID string `mapstructure:"phone_number_id"`
			AccessToken   string `mapstructure:"access_token"`
			APIVersion    string `mapstructure:"api_version"`
			BaseURL       string `mapstructure:"base_url"`
			AppSecret     string `mapstructure:"app_secret"`
			VerifyToken   string `mapstructure:"verify_token"`
		} `mapstructure:"meta"`

		AiSensy struct {
			APIKey  string `mapstructure:"api_key"`
			BaseURL string `mapstructure:"base_url"`
		} `mapstructure:"aisensy"`
	} `mapstructure:"whatsapp"`

	Dispatch struct {
		RatePerMinute int `mapstructure:"rate_per_minute"`
	} `mapstructure:"dispatch"`

	Storage struct {
		Enabled           bool   `mapstructure:"enabled"`
		Endpoint          string `mapstructure:"endpoint"`
		Region            string `mapstructure:"region"`
		Bucket            string `mapstructure:"bucket"`
		AccessKey         string `mapstructure:"access_key"`
		SecretKey         string `mapstructure:"secret_key"`
		PresignTTLMinutes int    `mapstructure:"presign_ttl_minutes"`
	} `mapstructure:"storage"`

	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`

	Scheduler struct {
		Enabled           bool   `mapstructure:"enabled"`
		ReconcileSchedule string `mapstructure:"reconcile_schedule"`
	} `mapstructure:"scheduler"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		Output string `mapstructure:"output"`
	} `mapstructure:"log"`
}

// DefaultPath is where Load looks for the config file
const DefaultPath = "configs/config.yaml"

// Load reads DefaultPath. The file is optional; defaults and env vars fill the rest.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath)
}

// LoadFrom reads the yaml file at path (optional), then applies env overrides.
// Nested keys map to env vars with "." replaced by "_" (whatsapp.twilio.auth_token
// is WHATSAPP_TWILIO_AUTH_TOKEN).
func LoadFrom(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("timezone", "Asia/Kolkata")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type", "X-Request-ID"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "travel_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.session_cookie", "__session")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("whatsapp.provider", "twilio")
	v.SetDefault("whatsapp.default_country_code", "91")
	v.SetDefault("whatsapp.dedupe_ttl_minutes", 60)
	v.SetDefault("whatsapp.twilio.account_sid", "")
	v.SetDefault("whatsapp.twilio.auth_token", "")
	v.SetDefault("whatsapp.twilio.from", "")
	v.SetDefault("whatsapp.twilio.base_url", "https://api.twilio.com")
	v.SetDefault("whatsapp.twilio.status_callback_url", "")
	v.SetDefault("whatsapp.meta.phone_number_id", "")
	v.SetDefault("whatsapp.meta.access_token", "")
	v.SetDefault("whatsapp.meta.api_version", "v19.0")
	v.SetDefault("whatsapp.meta.base_url", "https://graph.facebook.com")
	v.SetDefault("whatsapp.meta.app_secret", "")
	v.SetDefault("whatsapp.meta.verify_token", "")
	v.SetDefault("whatsapp.aisensy.api_key", "")
	v.SetDefault("whatsapp.aisensy.base_url", "https://backend.aisensy.com/campaign/t1/api/v2")

	v.SetDefault("dispatch.rate_per_minute", 60)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.presign_ttl_minutes", 60)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reconcile_schedule", "0 2 * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// applyEnvOverrides keeps the short variable names used by the deployment manifests
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		cfg.WhatsApp.Twilio.AccountSID = sid
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		cfg.WhatsApp.Twilio.AuthToken = token
	}
	if token := os.Getenv("META_WHATSAPP_TOKEN"); token != "" {
		cfg.WhatsApp.Meta.AccessToken = token
	}
	if secret := os.Getenv("META_APP_SECRET"); secret != "" {
		cfg.WhatsApp.Meta.AppSecret = secret
	}
	if key := os.Getenv("AISENSY_API_KEY"); key != "" {
		cfg.WhatsApp.AiSensy.APIKey = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
}

// Validate checks the settings the HTTP server cannot run without
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required (JWT_SECRET)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Dispatch.RatePerMinute <= 0 {
		return fmt.Errorf("dispatch.rate_per_minute must be positive, got %d", c.Dispatch.RatePerMinute)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
