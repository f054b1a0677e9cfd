package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Clinic ClinicConfig
}

type AppConfig struct {
	Port string
	Env  string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// ClinicConfig tunes the consistency engine and the maintenance scheduler.
type ClinicConfig struct {
	SequenceMaxAttempts int
	MaintenanceInterval time.Duration
	DedupeOnSchedule    bool
	ExpiryWarningDays   int
	NotifyTimeout       time.Duration
	DedupeLockTTL       time.Duration
}

func (c *Config) IsDev() bool {
	return c.App.Env == "development"
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom reads the given env file (if present) and the process
// environment. Environment variables win over the file.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "168h")
	v.SetDefault("CLINIC_SEQUENCE_MAX_ATTEMPTS", 10)
	v.SetDefault("CLINIC_MAINTENANCE_INTERVAL", "1h")
	v.SetDefault("CLINIC_DEDUPE_ON_SCHEDULE", false)
	v.SetDefault("CLINIC_EXPIRY_WARNING_DAYS", 30)
	v.SetDefault("CLINIC_NOTIFY_TIMEOUT", "5s")
	v.SetDefault("CLINIC_DEDUPE_LOCK_TTL", "10m")

	// A missing .env is fine, the environment alone can configure the app.
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	accessExpiry, err := time.ParseDuration(v.GetString("JWT_ACCESS_EXPIRY"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(v.GetString("JWT_REFRESH_EXPIRY"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	cfg := &Config{
		App: AppConfig{
			Port: v.GetString("APP_PORT"),
			Env:  v.GetString("APP_ENV"),
		},
		DB: DBConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Clinic: ClinicConfig{
			SequenceMaxAttempts: v.GetInt("CLINIC_SEQUENCE_MAX_ATTEMPTS"),
			MaintenanceInterval: v.GetDuration("CLINIC_MAINTENANCE_INTERVAL"),
			DedupeOnSchedule:    v.GetBool("CLINIC_DEDUPE_ON_SCHEDULE"),
			ExpiryWarningDays:   v.GetInt("CLINIC_EXPIRY_WARNING_DAYS"),
			NotifyTimeout:       v.GetDuration("CLINIC_NOTIFY_TIMEOUT"),
			DedupeLockTTL:       v.GetDuration("CLINIC_DEDUPE_LOCK_TTL"),
		},
	}

	if cfg.Clinic.SequenceMaxAttempts < 1 {
		cfg.Clinic.SequenceMaxAttempts = 10
	}

	return cfg, nil
}
