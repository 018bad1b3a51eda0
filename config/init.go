package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Конечная структура конфигурации приложения.
type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`   // 0.0.0.0
		HTTPPort string `mapstructure:"http_port"` // 8080
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // путь/префикс файла, пусто — только stdout
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // "postgres" | "mysql" | "" (in-memory)
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"` // пусто — Redis не используется
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Sequence struct {
		Backend   string `mapstructure:"backend"` // db | redis
		KeyPrefix string `mapstructure:"key_prefix"`
	} `mapstructure:"sequence"`

	Assignment struct {
		PastWindowDays    int `mapstructure:"past_window_days"`
		FutureWindowDays  int `mapstructure:"future_window_days"`
		MaxSpanYears      int `mapstructure:"max_span_years"`
		TransferAheadDays int `mapstructure:"transfer_ahead_days"`
		PurposeMinLength  int `mapstructure:"purpose_min_length"`
	} `mapstructure:"assignment"`

	QR struct {
		Enabled bool   `mapstructure:"enabled"`
		Size    int    `mapstructure:"size"`
		BaseURL string `mapstructure:"base_url"` // ссылка в QR: <base_url>/assignments/<ASN>
		Storage string `mapstructure:"storage"`  // fs | s3
		Dir     string `mapstructure:"dir"`
		S3      struct {
			Bucket    string `mapstructure:"bucket"`
			Region    string `mapstructure:"region"`
			Endpoint  string `mapstructure:"endpoint"` // R2/MinIO
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
		} `mapstructure:"s3"`
	} `mapstructure:"qr"`

	PRP struct {
		BaseURL      string        `mapstructure:"base_url"` // пусто — pull выключен
		Token        string        `mapstructure:"token"`
		SharedSecret string        `mapstructure:"shared_secret"` // пусто — push endpoint не регистрируется
		PageSize     int           `mapstructure:"page_size"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"prp"`

	Jobs struct {
		Enabled           bool          `mapstructure:"enabled"`
		OverdueInterval   time.Duration `mapstructure:"overdue_interval"`
		ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
		PRPInterval       time.Duration `mapstructure:"prp_interval"`
	} `mapstructure:"jobs"`

	Metrics struct {
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")

	v.SetDefault("logs.level", "info")
	v.SetDefault("logs.format", "text")
	v.SetDefault("logs.file", "")

	// DB: по умолчанию — in-memory (пустой driver)
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sequence.backend", "db")
	v.SetDefault("sequence.key_prefix", "inventory:asn:seq:")

	v.SetDefault("assignment.past_window_days", 30)
	v.SetDefault("assignment.future_window_days", 90)
	v.SetDefault("assignment.max_span_years", 2)
	v.SetDefault("assignment.transfer_ahead_days", 30)
	v.SetDefault("assignment.purpose_min_length", 5)

	v.SetDefault("qr.enabled", true)
	v.SetDefault("qr.size", 256)
	v.SetDefault("qr.base_url", "")
	v.SetDefault("qr.storage", "fs")
	v.SetDefault("qr.dir", "./data/qr")
	v.SetDefault("qr.s3.bucket", "")
	v.SetDefault("qr.s3.region", "auto")
	v.SetDefault("qr.s3.endpoint", "")
	v.SetDefault("qr.s3.access_key", "")
	v.SetDefault("qr.s3.secret_key", "")

	v.SetDefault("prp.base_url", "")
	v.SetDefault("prp.token", "")
	v.SetDefault("prp.shared_secret", "")
	v.SetDefault("prp.page_size", 200)
	v.SetDefault("prp.timeout", "30s")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.overdue_interval", "1h")
	v.SetDefault("jobs.reconcile_interval", "6h")
	v.SetDefault("jobs.prp_interval", "24h")

	v.SetDefault("metrics.namespace", "inventory")
}

// Load читает конфиг из .env, env и файла с дефолтами.
func Load() (*Config, error) {
	// .env необязателен; уже заданные переменные окружения не перезаписываются
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env read error: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Источник файла
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "inventory"))
		}
		v.AddConfigPath("/etc/inventory")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	switch c.Database.Driver {
	case "", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver %q is not supported (postgres|mysql|empty)", c.Database.Driver)
	}
	if c.Database.Driver != "" && strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set when database.driver is set")
	}
	switch c.Sequence.Backend {
	case "db":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("sequence.backend=redis requires redis.addr")
		}
		if c.Database.Driver == "" {
			return errors.New("sequence.backend=redis requires a database")
		}
	default:
		return fmt.Errorf("sequence.backend %q is not supported (db|redis)", c.Sequence.Backend)
	}
	if c.QR.Enabled {
		switch c.QR.Storage {
		case "fs":
			if strings.TrimSpace(c.QR.Dir) == "" {
				return errors.New("qr.dir must be set for qr.storage=fs")
			}
		case "s3":
			if strings.TrimSpace(c.QR.S3.Bucket) == "" {
				return errors.New("qr.s3.bucket must be set for qr.storage=s3")
			}
		default:
			return fmt.Errorf("qr.storage %q is not supported (fs|s3)", c.QR.Storage)
		}
	}
	if c.PRP.SharedSecret == "CHANGE_ME" {
		return errors.New("prp.shared_secret must not be CHANGE_ME")
	}
	return nil
}
