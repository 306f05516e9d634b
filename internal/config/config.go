package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/services"

	"github.com/spf13/viper"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	PostgresConn  string `mapstructure:"POSTGRES_CONN"`
	PostgresUser  string `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass  string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost  string `mapstructure:"POSTGRES_HOST"`
	PostgresPort  string `mapstructure:"POSTGRES_PORT"`
	PostgresDB    string `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL  string `mapstructure:"MIGRATION_URL"`
	StoreDriver   string `mapstructure:"STORE_DRIVER"`

	DocumentServiceURL string `mapstructure:"DOCUMENT_SERVICE_URL"`

	AutoSubmitGrace  time.Duration `mapstructure:"AUTO_SUBMIT_GRACE"`
	SelectionWindow  time.Duration `mapstructure:"SELECTION_WINDOW"`
	Round2Window     time.Duration `mapstructure:"ROUND2_WINDOW"`
	CorrectionWindow time.Duration `mapstructure:"CORRECTION_WINDOW"`
	ArchiveRetention time.Duration `mapstructure:"ARCHIVE_RETENTION"`
	CycleInterval    time.Duration `mapstructure:"CYCLE_INTERVAL"`
	ShortlistSize    int           `mapstructure:"SHORTLIST_SIZE"`
	FinalistCount    int           `mapstructure:"FINALIST_COUNT"`

	DebugEndpoints bool          `mapstructure:"DEBUG_ENDPOINTS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

func setDefaults(v *viper.Viper) {
	defaults := services.DefaultSettings()
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("POSTGRES_CONN", "")
	v.SetDefault("POSTGRES_USERNAME", "")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_HOST", "")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_DATABASE", "")
	v.SetDefault("MIGRATION_URL", "file://migrations")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DOCUMENT_SERVICE_URL", "")
	v.SetDefault("AUTO_SUBMIT_GRACE", defaults.AutoSubmitGrace)
	v.SetDefault("SELECTION_WINDOW", defaults.SelectionWindow)
	v.SetDefault("ROUND2_WINDOW", defaults.Round2Window)
	v.SetDefault("CORRECTION_WINDOW", defaults.CorrectionWindow)
	v.SetDefault("ARCHIVE_RETENTION", defaults.ArchiveRetention)
	v.SetDefault("CYCLE_INTERVAL", time.Minute)
	v.SetDefault("SHORTLIST_SIZE", defaults.ShortlistSize)
	v.SetDefault("FINALIST_COUNT", defaults.FinalistCount)
	v.SetDefault("DEBUG_ENDPOINTS", false)
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
}

// LoadConfig загружает конфигурацию из файла app.env в каталоге path и переменных окружения.
// Переменные окружения имеют приоритет, отсутствие файла не считается ошибкой.
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err = v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if cfg.PostgresConn == "" && cfg.PostgresHost != "" {
		cfg.PostgresConn = cfg.postgresURL()
	}
	return cfg, cfg.Validate()
}

// postgresURL собирает строку подключения из отдельных параметров POSTGRES_*.
func (c Config) postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	if c.PostgresUser != "" {
		u.User = url.UserPassword(c.PostgresUser, c.PostgresPass)
	}
	return u.String()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresConn == "" {
			return errors.New("POSTGRES_CONN or POSTGRES_HOST is required for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.CycleInterval <= 0 {
		return errors.New("CYCLE_INTERVAL must be positive")
	}
	if c.ShortlistSize <= 0 || c.FinalistCount <= 0 {
		return errors.New("SHORTLIST_SIZE and FINALIST_COUNT must be positive")
	}
	if c.FinalistCount > c.ShortlistSize {
		return fmt.Errorf("FINALIST_COUNT %d exceeds SHORTLIST_SIZE %d", c.FinalistCount, c.ShortlistSize)
	}
	for name, d := range map[string]time.Duration{
		"AUTO_SUBMIT_GRACE": c.AutoSubmitGrace,
		"SELECTION_WINDOW":  c.SelectionWindow,
		"ROUND2_WINDOW":     c.Round2Window,
		"CORRECTION_WINDOW": c.CorrectionWindow,
		"ARCHIVE_RETENTION": c.ArchiveRetention,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// Settings возвращает окна и размеры отбора для сервисов.
func (c Config) Settings() services.Settings {
	return services.Settings{
		AutoSubmitGrace:  c.AutoSubmitGrace,
		SelectionWindow:  c.SelectionWindow,
		Round2Window:     c.Round2Window,
		CorrectionWindow: c.CorrectionWindow,
		ArchiveRetention: c.ArchiveRetention,
		ShortlistSize:    c.ShortlistSize,
		FinalistCount:    c.FinalistCount,
	}
}
