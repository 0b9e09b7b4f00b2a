package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN         string
		LockTimeout time.Duration `mapstructure:"lock_timeout"`
	} `mapstructure:"postgres"`

	Ledger struct {
		Storage        string        // postgres | memory
		LockWait       time.Duration `mapstructure:"lock_wait"`
		DeliverTimeout time.Duration `mapstructure:"deliver_timeout"`
	} `mapstructure:"ledger"`

	Redis struct {
		URL        string
		StockQueue string `mapstructure:"stock_queue"`
		AlertQueue string `mapstructure:"alert_queue"`
	} `mapstructure:"redis"`

	Telegram struct {
		Token       string
		AdminChatID int64   `mapstructure:"admin_chat_id"`
		Recipients  []int64 `mapstructure:"recipients"`
	} `mapstructure:"telegram"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.lock_timeout", 2*time.Second)
	v.SetDefault("ledger.storage", StoragePostgres)
	v.SetDefault("ledger.lock_wait", 3*time.Second)
	v.SetDefault("ledger.deliver_timeout", 10*time.Second)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.stock_queue", "ledger:stock_changed")
	v.SetDefault("redis.alert_queue", "ledger:low_stock")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.recipients", []int64{})
	v.SetDefault("metrics.enabled", true)
}

// Load читает YAML; отсутствующий файл не ошибка, если path пустой.
// Любой ключ переопределяется через APP_<SECTION>_<KEY>: Unmarshal видит
// только известные viper ключи, поэтому у каждого ключа есть default.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.Ledger.Storage {
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("config: postgres.dsn is required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown ledger.storage %q", c.Ledger.Storage)
	}
	if c.Ledger.LockWait <= 0 {
		return fmt.Errorf("config: ledger.lock_wait must be positive")
	}
	if c.Ledger.DeliverTimeout <= 0 {
		return fmt.Errorf("config: ledger.deliver_timeout must be positive")
	}
	return nil
}
