package config

import (
	"github.com/deepgram/chatroom/pkg/logger"
)

func GetPort() string {
	return GetEnvOrDefault("PORT", "5002")
}

// GetCORSOrigins returns the origins allowed to call the bot server.
func GetCORSOrigins() []string {
	return parseEnvList("CORS_ORIGINS", []string{"*"})
}

// GetSQLitePath returns the transcript database path, empty when unset.
func GetSQLitePath() string {
	value := GetEnvOrDefault("SQLITE_PATH", "")
	if value == "" {
		logger.Debug(logger.CONFIG, "SQLITE_PATH not set")
	}
	return value
}

func GetOpenAIKey() string {
	value := GetEnvOrDefault("OPENAI_KEY", "")
	if value == "" {
		logger.Warn(logger.CONFIG, "OPENAI_KEY not set - falling back to the rule bot")
	}
	return value
}

func GetOpenAIModel() string {
	return GetEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
}

// GetBotSystemPrompt returns the instructions given to the language model bot.
func GetBotSystemPrompt() string {
	return GetEnvOrDefault("BOT_SYSTEM_PROMPT",
		"You are a friendly assistant living in a small chat widget. Keep replies short. "+
			"Separate distinct thoughts with a blank line.")
}
