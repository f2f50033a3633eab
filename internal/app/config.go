package app

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"keel/internal/session"
)

// Config contains all runtime configuration, loaded from KEEL_* environment
// variables with optional .env file support.
type Config struct {
	HTTPAddr string
	LogLevel string
	LogPath  string
	Debug    bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	Issuer            string
	AccessTokenSecret string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	GracePeriod       time.Duration
	ClockSkew         time.Duration
	BatchSize         int

	JanitorInterval time.Duration
}

// LoadConfig reads configuration from the environment with defaults. A .env
// file in the working directory is honored when present.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // optional

	v.SetEnvPrefix("keel")
	v.AutomaticEnv()

	defaults := session.DefaultConfig()

	v.SetDefault("http_addr", "0.0.0.0:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_path", "")
	v.SetDefault("debug", false)

	v.SetDefault("http_read_header_timeout", 5*time.Second)
	v.SetDefault("http_read_timeout", 15*time.Second)
	v.SetDefault("http_write_timeout", 15*time.Second)
	v.SetDefault("http_idle_timeout", 60*time.Second)

	v.SetDefault("database_url", "")
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("db_min_conns", 0)
	v.SetDefault("migrate_on_start", true)
	v.SetDefault("readiness_require_db", false)

	v.SetDefault("issuer", defaults.Issuer)
	v.SetDefault("access_token_ttl", defaults.AccessTokenTTL)
	v.SetDefault("refresh_token_ttl", defaults.RefreshTokenTTL)
	v.SetDefault("grace_period", defaults.GracePeriod)
	v.SetDefault("clock_skew", defaults.ClockSkew)
	v.SetDefault("batch_size", defaults.BatchSize)

	v.SetDefault("janitor_interval", 15*time.Minute)

	cfg := Config{
		HTTPAddr: v.GetString("http_addr"),
		LogLevel: v.GetString("log_level"),
		LogPath:  v.GetString("log_path"),
		Debug:    v.GetBool("debug"),

		ReadHeaderTimeout: v.GetDuration("http_read_header_timeout"),
		ReadTimeout:       v.GetDuration("http_read_timeout"),
		WriteTimeout:      v.GetDuration("http_write_timeout"),
		IdleTimeout:       v.GetDuration("http_idle_timeout"),

		DatabaseURL:    v.GetString("database_url"),
		DBMaxConns:     v.GetInt32("db_max_conns"),
		DBMinConns:     v.GetInt32("db_min_conns"),
		MigrateOnStart: v.GetBool("migrate_on_start"),

		ReadinessRequireDB: v.GetBool("readiness_require_db"),

		Issuer:            v.GetString("issuer"),
		AccessTokenSecret: v.GetString("access_token_secret"),
		AccessTokenTTL:    v.GetDuration("access_token_ttl"),
		RefreshTokenTTL:   v.GetDuration("refresh_token_ttl"),
		GracePeriod:       v.GetDuration("grace_period"),
		ClockSkew:         v.GetDuration("clock_skew"),
		BatchSize:         v.GetInt("batch_size"),

		JanitorInterval: v.GetDuration("janitor_interval"),
	}

	if cfg.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("KEEL_ACCESS_TOKEN_SECRET is required (>= 32 bytes)")
	}

	return cfg, nil
}

// SessionConfig maps the app config onto the session engine config.
func (c Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.Issuer = c.Issuer
	sc.AccessTokenSecret = []byte(c.AccessTokenSecret)
	sc.AccessTokenTTL = c.AccessTokenTTL
	sc.RefreshTokenTTL = c.RefreshTokenTTL
	sc.GracePeriod = c.GracePeriod
	sc.ClockSkew = c.ClockSkew
	sc.BatchSize = c.BatchSize
	return sc
}
