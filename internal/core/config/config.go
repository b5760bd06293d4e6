package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int `mapstructure:"write_timeout_sec"`
	IdleTimeoutSec  int `mapstructure:"idle_timeout_sec"`
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
	// Whether GET /api/books* requires a valid token. The write routes
	// always do.
	RequireAuthForReads bool     `mapstructure:"require_auth_for_reads"`
	CORSOrigins         []string `mapstructure:"cors_origins"`
}

type Log struct {
	Level      string
	JSON       bool
	File       string
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

type JWT struct {
	Secret   string
	Issuer   string
	TTLHours int `mapstructure:"ttl_hours"`
}

type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int    `mapstructure:"conn_max_lifetime_min"`
	AutoMigrate        bool   `mapstructure:"auto_migrate"`
	LogLevel           string `mapstructure:"log_level"`
}

type Media struct {
	Dir         string
	URLPrefix   string `mapstructure:"url_prefix"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
	MaxWidth    int    `mapstructure:"max_width"`
	MaxHeight   int    `mapstructure:"max_height"`
	JPEGQuality int    `mapstructure:"jpeg_quality"`
	// Whether deleting a book also deletes its cover file from disk.
	DeleteImageOnBookDelete bool `mapstructure:"delete_image_on_book_delete"`
}

type RateLimit struct {
	GlobalRPS   float64 `mapstructure:"global_rps"`
	GlobalBurst int     `mapstructure:"global_burst"`
	LoginRPS    float64 `mapstructure:"login_rps"`
	LoginBurst  int     `mapstructure:"login_burst"`
	MaxInflight int64   `mapstructure:"max_inflight"`
}

type Config struct {
	App       App
	Log       Log
	JWT       JWT
	DB        DB
	Redis     Redis     `mapstructure:"redis"`
	Media     Media     `mapstructure:"media"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects configs the service cannot run with. Secrets never have
// defaults: a missing JWT secret or DSN is a hard error, not a fallback.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set APP_JWT_SECRET or the config file)")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Media.Dir == "" {
		return fmt.Errorf("media.dir is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "grimoire-api")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 4000)
	v.SetDefault("app.http.read_timeout_sec", 15)
	v.SetDefault("app.http.write_timeout_sec", 30)
	v.SetDefault("app.http.idle_timeout_sec", 60)
	v.SetDefault("app.require_auth_for_reads", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("jwt.issuer", "grimoire-api")
	v.SetDefault("jwt.ttl_hours", 24)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("media.dir", "./images")
	v.SetDefault("media.url_prefix", "/images")
	v.SetDefault("media.max_upload_mb", 10)
	v.SetDefault("media.max_width", 800)
	v.SetDefault("media.max_height", 1200)
	v.SetDefault("media.jpeg_quality", 80)
	v.SetDefault("media.delete_image_on_book_delete", true)

	v.SetDefault("ratelimit.global_rps", 200)
	v.SetDefault("ratelimit.global_burst", 400)
	v.SetDefault("ratelimit.login_rps", 0.2)
	v.SetDefault("ratelimit.login_burst", 10)
	v.SetDefault("ratelimit.max_inflight", 300)
}
