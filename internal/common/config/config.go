// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	ReadTimeout   int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout  int    `mapstructure:"write_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// PaymentConfig holds settings for the payment provider (Razorpay-style REST API).
// A missing key_id/key_secret is a fatal startup condition, not a per-call error.
type PaymentConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	KeyID       string `mapstructure:"key_id"`
	KeySecret   string `mapstructure:"key_secret"`
	AmountMinor int64  `mapstructure:"amount_minor"` // referral fee in minor units
	Currency    string `mapstructure:"currency"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

// AWSConfig holds settings for SES (OTP email), SNS (ops alerts) and S3 (resumes).
type AWSConfig struct {
	Region string `mapstructure:"region"`
	SES    struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"ses"`
	SNS struct {
		Enabled        bool   `mapstructure:"enabled"`
		AlertsTopicARN string `mapstructure:"alerts_topic_arn"`
	} `mapstructure:"sns"`
	S3 struct {
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"s3"`
}

// WorkflowConfig holds the submission workflow settings.
type WorkflowConfig struct {
	OTPTTL          int `mapstructure:"otp_ttl"`          // seconds
	StageTimeout    int `mapstructure:"stage_timeout"`    // milliseconds, per network stage
	CheckoutTimeout int `mapstructure:"checkout_timeout"` // milliseconds, user-driven wait
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
