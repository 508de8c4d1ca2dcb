package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/deepgram/chatroom/pkg/logger"
)

// LoadDotEnv reads a .env file into the process environment if one exists.
// Variables that are already set win over the file.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			logger.Debug(logger.CONFIG, "No env file loaded from %s: %v", p, err)
			continue
		}
		logger.Info(logger.CONFIG, "Loaded environment from %s", p)
	}
}

// GetEnvOrDefault returns the value of an environment variable or a default value
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseEnvInt(key string, defaultValue int) int {
	val := GetEnvOrDefault(key, "")
	if val == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		logger.Warn(logger.CONFIG, "Invalid value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return parsed
}

func parseEnvFloat(key string, defaultValue float64) float64 {
	val := GetEnvOrDefault(key, "")
	if val == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		logger.Warn(logger.CONFIG, "Invalid value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return parsed
}

func parseEnvBool(key string, defaultValue bool) bool {
	val := GetEnvOrDefault(key, "")
	if val == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		logger.Warn(logger.CONFIG, "Invalid value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return parsed
}

// parseEnvMillis reads an integer number of milliseconds.
func parseEnvMillis(key string, defaultValue time.Duration) time.Duration {
	ms := parseEnvInt(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

// parseEnvList splits a comma separated variable, dropping empty items.
func parseEnvList(key string, defaultValue []string) []string {
	val := GetEnvOrDefault(key, "")
	if val == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
