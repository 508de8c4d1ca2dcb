package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/deepgram/chatroom/pkg/logger"
)

const (
	DefaultHost            = "http://localhost:5002"
	DefaultTitle           = "Chat"
	DefaultWaitingTimeout  = 5000 * time.Millisecond
	DefaultPollingInterval = 1000 * time.Millisecond
	DefaultRevealInterval  = 800 * time.Millisecond
)

// DefaultMessageBlacklist holds control commands that are sent but never shown.
var DefaultMessageBlacklist = []string{"_restart"}

// WidgetConfig configures the conversation widget. Durations in the YAML file
// use Go duration syntax ("5s", "800ms"); env vars take milliseconds.
type WidgetConfig struct {
	Host             string        `yaml:"host" validate:"required,url"`
	UserID           string        `yaml:"user_id"`
	Title            string        `yaml:"title"`
	WelcomeMessage   string        `yaml:"welcome_message"`
	WaitingTimeout   time.Duration `yaml:"waiting_timeout" validate:"gt=0"`
	PollingInterval  time.Duration `yaml:"polling_interval" validate:"gt=0"`
	RevealInterval   time.Duration `yaml:"reveal_interval" validate:"gt=0"`
	MessageBlacklist []string      `yaml:"message_blacklist"`
}

func DefaultWidgetConfig() WidgetConfig {
	return WidgetConfig{
		Host:             DefaultHost,
		Title:            DefaultTitle,
		WaitingTimeout:   DefaultWaitingTimeout,
		PollingInterval:  DefaultPollingInterval,
		RevealInterval:   DefaultRevealInterval,
		MessageBlacklist: append([]string(nil), DefaultMessageBlacklist...),
	}
}

// LoadWidgetConfig builds the widget config from defaults, then the optional
// YAML file at path, then CHATROOM_* environment variables.
func LoadWidgetConfig(path string) (WidgetConfig, error) {
	cfg := DefaultWidgetConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read widget config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse widget config: %w", err)
		}
		logger.Info(logger.CONFIG, "Loaded widget config from %s", path)
	}

	cfg.Host = GetEnvOrDefault("CHATROOM_HOST", cfg.Host)
	cfg.UserID = GetEnvOrDefault("CHATROOM_USER_ID", cfg.UserID)
	cfg.Title = GetEnvOrDefault("CHATROOM_TITLE", cfg.Title)
	cfg.WelcomeMessage = GetEnvOrDefault("CHATROOM_WELCOME_MESSAGE", cfg.WelcomeMessage)
	cfg.WaitingTimeout = parseEnvMillis("CHATROOM_WAITING_TIMEOUT_MS", cfg.WaitingTimeout)
	cfg.PollingInterval = parseEnvMillis("CHATROOM_POLLING_INTERVAL_MS", cfg.PollingInterval)
	cfg.RevealInterval = parseEnvMillis("CHATROOM_REVEAL_INTERVAL_MS", cfg.RevealInterval)
	cfg.MessageBlacklist = parseEnvList("CHATROOM_MESSAGE_BLACKLIST", cfg.MessageBlacklist)

	return cfg, cfg.Validate()
}

// Validate checks the config against its struct constraints.
func (c WidgetConfig) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid widget config: %w", err)
	}
	return nil
}
