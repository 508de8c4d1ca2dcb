package config

import (
	"github.com/deepgram/chatroom/pkg/logger"
)

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

func GetRateLimitConfig(key string) RateLimitConfig {
	enabled := parseEnvBool("RATELIMIT_ENABLED", false)

	configs := map[string]RateLimitConfig{
		"say": {
			Enabled: enabled,
			RPS:     parseEnvFloat("RATELIMIT_SAY_RPS", 2),
			Burst:   parseEnvInt("RATELIMIT_SAY_BURST", 5),
		},
		"log": {
			Enabled: enabled,
			RPS:     parseEnvFloat("RATELIMIT_LOG_RPS", 10),
			Burst:   parseEnvInt("RATELIMIT_LOG_BURST", 20),
		},
		"webhook": {
			Enabled: enabled,
			RPS:     parseEnvFloat("RATELIMIT_WEBHOOK_RPS", 2),
			Burst:   parseEnvInt("RATELIMIT_WEBHOOK_BURST", 5),
		},
	}

	if config, exists := configs[key]; exists {
		return config
	}

	logger.Warn(logger.CONFIG, "No rate limit config found for key: %s", key)
	return RateLimitConfig{Enabled: false}
}
