// Package config loads engine configuration via viper, mirroring the
// teacher's pkg/config layering (nested mapstructure sections, env-var
// override, sane defaults).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	OTel     OTelConfig     `mapstructure:"otel"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig covers only the job-runner's health/metrics endpoint; all
// business HTTP routing is out of scope (spec.md §1).
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	EnableTracing   bool          `mapstructure:"enable_tracing"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
}

type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	CollectorAddr string  `mapstructure:"collector_addr"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Environment   string `mapstructure:"environment"`
}

// WorkerConfig holds per-job interval overrides for PaymentWorkerSet,
// defaults matching SPEC_FULL §4.4's cadences.
type WorkerConfig struct {
	ProcessScheduledAuthorizationsInterval time.Duration `mapstructure:"process_scheduled_authorizations_interval"`
	RetryFailedAuthorizationsInterval      time.Duration `mapstructure:"retry_failed_authorizations_interval"`
	CaptureCompletedLessonsInterval        time.Duration `mapstructure:"capture_completed_lessons_interval"`
	RetryFailedCapturesInterval            time.Duration `mapstructure:"retry_failed_captures_interval"`
	ResolveUndisputedNoShowsInterval       time.Duration `mapstructure:"resolve_undisputed_no_shows_interval"`
	AuditPayoutSchedulesInterval           time.Duration `mapstructure:"audit_payout_schedules_interval"`
	AuthorizationHealthCheckInterval       time.Duration `mapstructure:"authorization_health_check_interval"`
	CheckImmediateAuthTimeoutInterval      time.Duration `mapstructure:"check_immediate_auth_timeout_interval"`
	BatchSize                              int           `mapstructure:"batch_size"`
}

func Defaults() *Config {
	return &Config{
		App: AppConfig{Name: "booking-payment-engine", Environment: "development"},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8090},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres", DBName: "booking_payment",
			SSLMode: "disable", MaxConns: 20, MinConns: 2, ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, PoolSize: 50, DialTimeout: 5 * time.Second, LockTTL: 30 * time.Second},
		Kafka: KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "booking-payment-events", ConsumerGroup: "payment-engine", ClientID: "payment-engine"},
		OTel:  OTelConfig{ServiceName: "booking-payment-engine", SampleRatio: 1.0},
		Stripe: StripeConfig{Environment: "test"},
		Worker: WorkerConfig{
			ProcessScheduledAuthorizationsInterval: 30 * time.Minute,
			RetryFailedAuthorizationsInterval:      30 * time.Minute,
			CaptureCompletedLessonsInterval:        time.Hour,
			RetryFailedCapturesInterval:            4 * time.Hour,
			ResolveUndisputedNoShowsInterval:        time.Hour,
			AuditPayoutSchedulesInterval:            24 * time.Hour,
			AuthorizationHealthCheckInterval:        15 * time.Minute,
			CheckImmediateAuthTimeoutInterval:       10 * time.Minute,
			BatchSize:                                100,
		},
	}
}

// Load reads configuration from environment variables (with BPE_ prefix,
// nested keys joined by underscore) over top of Defaults().
func Load() (*Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("BPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}
