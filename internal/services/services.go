package services

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/deepgram/chatroom/internal/config"
	"github.com/deepgram/chatroom/internal/infrastructure/openai"
	"github.com/deepgram/chatroom/internal/infrastructure/redis"
	"github.com/deepgram/chatroom/internal/metrics"
	"github.com/deepgram/chatroom/internal/services/bot"
	"github.com/deepgram/chatroom/internal/services/transcript"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

type Services struct {
	botService        *bot.Service
	metrics           *metrics.Metrics
	openAIService     *openai.Service
	redisService      *redis.Service
	transcriptService *transcript.Service
}

// InitializeServices initializes all services of the bot server
func InitializeServices() (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	// Initialize Redis service (optional)
	redisService := redis.NewService()
	log.Info().Bool("available", redisService != nil).Msg("Initializing Redis service")

	transcriptService, err := transcript.NewService(redisService, config.GetSQLitePath())
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize transcript service")
		return nil, fmt.Errorf("failed to initialize transcript service: %w", err)
	}
	log.Info().Msg("Initializing transcript service")

	// Initialize OpenAI service (optional)
	openAIService := openai.NewService()

	var responder bot.Responder = bot.NewRuleBot()
	if openAIService != nil {
		openAIBot, err := bot.NewOpenAIBot(openAIService, config.GetBotSystemPrompt())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI bot: %w", err)
		}
		responder = openAIBot
		log.Info().Str("model", openAIService.Model()).Msg("Using OpenAI bot")
	} else {
		log.Info().Msg("Using rule bot")
	}

	s := NewServices(transcriptService, responder, metrics.New())
	s.redisService = redisService
	s.openAIService = openAIService

	log.Info().Msg("All services initialized successfully")
	return s, nil
}

// NewServices wires the bot service over an existing transcript service
func NewServices(transcriptService *transcript.Service, responder bot.Responder, m *metrics.Metrics) *Services {
	return &Services{
		botService:        bot.NewService(transcriptService, responder, m),
		metrics:           m,
		transcriptService: transcriptService,
	}
}

// GetBotService returns the bot service
func (s *Services) GetBotService() *bot.Service {
	return s.botService
}

// GetMetrics returns the metrics registry
func (s *Services) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// Close releases the transcript store
func (s *Services) Close() error {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	return s.transcriptService.Close()
}
