package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/senyabanana/proposal-service/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress  string        `mapstructure:"SERVER_ADDRESS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	PostgresConn   string        `mapstructure:"POSTGRES_CONN"`
	PostgresUser   string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass   string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost   string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort   string        `mapstructure:"POSTGRES_PORT"`
	PostgresDB     string        `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL   string        `mapstructure:"MIGRATION_URL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	TaxRate  string `mapstructure:"TAX_RATE"`
	TaxRates string `mapstructure:"TAX_RATES"` // REGION:RATE через запятую, например "ON:0.13,QC:0.14975"
	Timezone string `mapstructure:"TIMEZONE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AwsRegion          string `mapstructure:"AWS_REGION"`
	AwsAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	AwsS3Bucket        string `mapstructure:"AWS_S3_BUCKET"`
	S3Endpoint         string `mapstructure:"S3_ENDPOINT"`
	S3PublicBaseURL    string `mapstructure:"S3_PUBLIC_BASE_URL"`

	ExpirySweepInterval time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	MaxUploadMB         int64         `mapstructure:"MAX_UPLOAD_MB"`
}

var keys = []string{
	"SERVER_ADDRESS", "REQUEST_TIMEOUT", "POSTGRES_CONN", "POSTGRES_USERNAME", "POSTGRES_PASSWORD",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DATABASE", "MIGRATION_URL", "JWT_SECRET",
	"TAX_RATE", "TAX_RATES", "TIMEZONE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_S3_BUCKET", "S3_ENDPOINT",
	"S3_PUBLIC_BASE_URL", "EXPIRY_SWEEP_INTERVAL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "MAX_UPLOAD_MB",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("MIGRATION_URL", "file://internal/db/migration")
	v.SetDefault("TAX_RATE", validation.DefaultTaxRate.String())
	v.SetDefault("TAX_RATES", "")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("EXPIRY_SWEEP_INTERVAL", time.Hour)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("MAX_UPLOAD_MB", 10)
}

// LoadConfig загружает конфигурацию из файла app.env в каталоге path.
// Переменные окружения имеют приоритет над файлом; отсутствие файла не ошибка.
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)
	for _, key := range keys {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	if err = v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return
		}
		err = nil
	}
	err = v.Unmarshal(&cfg)
	return
}

// DSN возвращает строку подключения к Postgres.
func (c Config) DSN() string {
	if c.PostgresConn != "" {
		return c.PostgresConn
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPass),
		Host:     c.PostgresHost + ":" + c.PostgresPort,
		Path:     c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// TaxTable разбирает TAX_RATE и TAX_RATES.
func (c Config) TaxTable() (validation.TaxTable, error) {
	table := validation.TaxTable{Default: validation.DefaultTaxRate}
	if s := strings.TrimSpace(c.TaxRate); s != "" {
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return table, fmt.Errorf("invalid TAX_RATE %q: %w", s, err)
		}
		if rate.IsNegative() {
			return table, fmt.Errorf("invalid TAX_RATE %q: must not be negative", s)
		}
		table.Default = rate
	}
	byRegion, err := validation.ParseTaxRates(c.TaxRates)
	if err != nil {
		return table, err
	}
	table.ByRegion = byRegion
	return table, nil
}

// Location возвращает часовой пояс, в котором определяется "сегодня".
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
