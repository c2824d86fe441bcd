package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AWS       AWSConfig       `mapstructure:"aws"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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

// GetDSN returns the PostgreSQL connection string.
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

type AWSConfig struct {
	Region string `mapstructure:"region"`
	SES    struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"ses"`
	SNS struct {
		Enabled            bool   `mapstructure:"enabled"`
		DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
	} `mapstructure:"sns"`
}

// WhatsAppConfig covers the stub gateway; the real transport protocol lives
// behind the channel adapter boundary.
type WhatsAppConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Sender   string `mapstructure:"sender"`
}

// DispatchConfig tunes the fan-out dispatcher.
type DispatchConfig struct {
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
	MaxRetries     int `mapstructure:"max_retries"`
	AudiencePage   int `mapstructure:"audience_page_size"`
}

// SchedulerConfig tunes the background sweeps.
type SchedulerConfig struct {
	BroadcastSweepInterval int `mapstructure:"broadcast_sweep_interval"` // seconds
	ReminderSweepInterval  int `mapstructure:"reminder_sweep_interval"`  // seconds
	ReminderBatchSize      int `mapstructure:"reminder_batch_size"`
}

// InboxConfig tunes the realtime inbox feed.
type InboxConfig struct {
	WindowSize int `mapstructure:"window_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
