// Package config loads the call server settings from .env files, an
// optional YAML tuning file and the process environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names accepted in PROVIDER.
const (
	ProviderACS    = "acs"
	ProviderTwilio = "twilio"
)

// Store names accepted in CALL_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// CallbackPath is the webhook route the provider posts call events to.
const CallbackPath = "/api/callbacks"

// Config is the full server configuration.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	Provider    string `yaml:"provider"`
	Store       string `yaml:"store"`

	Call     CallConfig     `yaml:"call"`
	Polling  PollingConfig  `yaml:"polling"`
	ACS      ACSConfig      `yaml:"-"`
	Twilio   TwilioConfig   `yaml:"-"`
	Database DatabaseConfig `yaml:"-"`

	DisableWebhookValidation bool `yaml:"disable_webhook_validation"`

	// APIKey guards the /api/calls routes when set.
	APIKey string `yaml:"-"`
}

// CallConfig holds the numbers and prompts used for every outbound call.
type CallConfig struct {
	SourceNumber   string `yaml:"-"`
	TargetNumber   string `yaml:"-"`
	ServerHost     string `yaml:"-"`
	Voice          string `yaml:"voice"`
	GoodbyeMessage string `yaml:"goodbye_message"`
	ApologyMessage string `yaml:"apology_message"`

	// MaxDuration fails a call still Active after this long; 0 disables.
	MaxDuration time.Duration `yaml:"max_duration"`
}

// PollingConfig controls how long a synchronous caller waits for a result.
type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ACSConfig holds Azure Communication Services credentials.
type ACSConfig struct {
	ConnectionString          string
	CognitiveServicesEndpoint string
}

// TwilioConfig holds Twilio REST credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	User                   string
	Password               string
	Name                   string
	Host                   string
	Port                   string
	InstanceConnectionName string // Cloud SQL unix socket
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Port:        "8080",
		Environment: "production",
		LogLevel:    "info",
		Provider:    ProviderACS,
		Store:       StoreMemory,
		Call: CallConfig{
			Voice:          "en-US-NancyNeural",
			GoodbyeMessage: "Thank you for your response. Goodbye!",
			ApologyMessage: "I'm sorry, I didn't understand. Goodbye.",
			MaxDuration:    5 * time.Minute,
		},
		Polling: PollingConfig{
			Interval: time.Second,
			Timeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			User: "postgres",
			Name: "voicecall",
			Host: "localhost",
			Port: "5432",
		},
	}
}

// Load builds the configuration: defaults, then .env files, then the YAML
// file named by CALL_CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("environments/.env.development"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	cfg := DefaultConfig()
	if path := os.Getenv("CALL_CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Provider, "PROVIDER")
	setString(&c.Store, "CALL_STORE")
	setString(&c.APIKey, "CALL_API_KEY")

	setString(&c.Call.SourceNumber, "ACS_PHONE_NUMBER")
	setString(&c.Call.TargetNumber, "TARGET_PHONE_NUMBER")
	setString(&c.Call.ServerHost, "CALL_SERVER_HOST")
	setString(&c.Call.Voice, "SPEECH_TO_TEXT_VOICE")
	setString(&c.Call.GoodbyeMessage, "CALL_GOODBYE_MESSAGE")
	setString(&c.Call.ApologyMessage, "CALL_APOLOGY_MESSAGE")

	setString(&c.ACS.ConnectionString, "ACS_CONNECTION_STRING")
	setString(&c.ACS.CognitiveServicesEndpoint, "COGNITIVE_SERVICES_ENDPOINT")

	setString(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	if c.Call.SourceNumber == "" {
		setString(&c.Call.SourceNumber, "TWILIO_PHONE_NUMBER")
	}

	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASS")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.InstanceConnectionName, "INSTANCE_CONNECTION_NAME")

	if v := os.Getenv("DISABLE_WEBHOOK_VALIDATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DISABLE_WEBHOOK_VALIDATION: %w", err)
		}
		c.DisableWebhookValidation = b
	}
	if err := setDuration(&c.Polling.Interval, "CALL_POLL_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&c.Polling.Timeout, "CALL_POLL_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Call.MaxDuration, "CALL_MAX_DURATION"); err != nil {
		return err
	}

	c.Provider = strings.ToLower(c.Provider)
	c.Store = strings.ToLower(c.Store)
	c.Call.ServerHost = strings.TrimRight(c.Call.ServerHost, "/")
	return nil
}

// CallbackURL is the absolute address the provider posts events to.
func (c *Config) CallbackURL() string {
	return c.Call.ServerHost + CallbackPath
}

// SkipWebhookValidation reports whether provider signatures are not checked.
func (c *Config) SkipWebhookValidation() bool {
	return c.Environment == "development" || c.DisableWebhookValidation
}

// Validate reports settings that the selected provider cannot run without.
func (c *Config) Validate() error {
	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	require(c.Call.TargetNumber, "TARGET_PHONE_NUMBER")
	require(c.Call.ServerHost, "CALL_SERVER_HOST")

	switch c.Provider {
	case ProviderACS:
		require(c.ACS.ConnectionString, "ACS_CONNECTION_STRING")
		require(c.Call.SourceNumber, "ACS_PHONE_NUMBER")
		require(c.ACS.CognitiveServicesEndpoint, "COGNITIVE_SERVICES_ENDPOINT")
	case ProviderTwilio:
		require(c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
		require(c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
		require(c.Call.SourceNumber, "TWILIO_PHONE_NUMBER")
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	switch c.Store {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown call store %q", c.Store)
	}

	if c.Polling.Interval <= 0 || c.Polling.Timeout < c.Polling.Interval {
		return fmt.Errorf("invalid polling settings: interval %s, timeout %s",
			c.Polling.Interval, c.Polling.Timeout)
	}

	if c.Call.MaxDuration < 0 {
		return fmt.Errorf("invalid max call duration %s", c.Call.MaxDuration)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
