package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации консоли аналитики.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера консоли.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MetricsPort  int           `mapstructure:"metrics_port"`

	// Статический bearer-токен для входящих запросов к /api/v1/*.
	// Выпуск сессий — внешняя система, консоли хватает общего секрета.
	APIToken string `mapstructure:"api_token"`
}

// UpstreamConfig — адрес и режим опроса backend-а аналитики.
type UpstreamConfig struct {
	// Базовый URL API, с завершающим слешем: {api_base}admin/analytics
	APIBase         string        `mapstructure:"api_base"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// AuthConfig — параметры получения identity-токена у внешнего провайдера.
type AuthConfig struct {
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	ExpiryLeeway time.Duration `mapstructure:"expiry_leeway"` // за сколько до exp перевыпускаем
}

// RedisConfig описывает подключение к Redis (кэш последнего снапшота).
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// ReliabilityConfig — настройки Retry/Circuit Breaker вокруг фетча аналитики.
type ReliabilityConfig struct {
	Attempts      uint          `mapstructure:"attempts"`
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает файл: UPSTREAM_API_BASE=... перекроет upstream.api_base
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла (его отсутствие — не ошибка, работаем на ENV и дефолтах)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.Upstream.APIBase == "" {
		return nil, errors.New("upstream.api_base is required")
	}
	if !strings.HasSuffix(cfg.Upstream.APIBase, "/") {
		cfg.Upstream.APIBase += "/"
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("upstream.request_timeout", 10*time.Second)
	v.SetDefault("upstream.refresh_interval", 1*time.Minute)
	v.SetDefault("auth.expiry_leeway", 30*time.Second)
	v.SetDefault("redis.snapshot_ttl", 24*time.Hour)
	v.SetDefault("reliability.attempts", 3)
	v.SetDefault("reliability.cb_max_requests", 3)
	v.SetDefault("reliability.cb_interval", 5*time.Second)
	v.SetDefault("reliability.cb_timeout", 30*time.Second)
	v.SetDefault("reliability.rate_limit", 5)
	v.SetDefault("reliability.rate_burst", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
