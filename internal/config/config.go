// Package config loads famsched settings from FAMSCHED_* environment
// variables, reading a .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "FAMSCHED"

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	DBPath   string `envconfig:"DB_PATH" default:"famsched.db"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	SeedFile string `envconfig:"SEED_FILE"`

	SessionSecret string        `envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	// Broadcast
	ChannelName  string `envconfig:"CHANNEL_NAME" default:"family-app-updates"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"famsched.updates"`

	// Reminders
	ReminderInterval time.Duration `envconfig:"REMINDER_INTERVAL" default:"60s"`
	ReminderWindow   time.Duration `envconfig:"REMINDER_WINDOW" default:"30m"`

	// Schedule generator
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`

	// Web push
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `envconfig:"VAPID_SUBSCRIBER"`

	Backup Backup `envconfig:"BACKUP"`
}

type Backup struct {
	Endpoint   string        `envconfig:"S3_ENDPOINT"`
	Bucket     string        `envconfig:"S3_BUCKET"`
	Region     string        `envconfig:"S3_REGION" default:"us-east-1"`
	AccessKey  string        `envconfig:"S3_ACCESS_KEY"`
	SecretKey  string        `envconfig:"S3_SECRET_KEY"`
	Prefix     string        `envconfig:"PREFIX"`
	Passphrase string        `envconfig:"PASSPHRASE"`
	Interval   time.Duration `envconfig:"INTERVAL" default:"24h"`
	Retention  time.Duration `envconfig:"RETENTION" default:"720h"`
	LocalDir   string        `envconfig:"LOCAL_DIR"`
}

// Load reads envFile (if present) into the environment without overriding
// variables already set, then processes FAMSCHED_* variables.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if c.ReminderInterval <= 0 {
		return Config{}, fmt.Errorf("reminder interval must be positive, got %s", c.ReminderInterval)
	}
	if c.ReminderWindow <= 0 {
		return Config{}, fmt.Errorf("reminder window must be positive, got %s", c.ReminderWindow)
	}
	return c, nil
}

// PushConfigured reports whether both VAPID keys are set.
func (c Config) PushConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// AMQPConfigured reports whether cross-process broadcast should use RabbitMQ.
func (c Config) AMQPConfigured() bool {
	return c.AMQPURL != ""
}
