package openai

import (
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/deepgram/chatroom/internal/config"
	"github.com/deepgram/chatroom/pkg/logger"
)

type Service struct {
	mu     sync.RWMutex
	client *openai.Client
	model  string
}

// NewService returns nil when OPENAI_KEY is missing.
func NewService() *Service {
	logger.Info(logger.BOT, "Initialising OpenAI service")
	key := config.GetOpenAIKey()

	if key == "" {
		logger.Warn(logger.BOT, "OpenAI service not configured - OPENAI_KEY missing")
		return nil
	}

	return NewServiceWithConfig(openai.DefaultConfig(key), config.GetOpenAIModel())
}

// NewServiceWithConfig builds a service against any OpenAI compatible endpoint.
func NewServiceWithConfig(cfg openai.ClientConfig, model string) *Service {
	return &Service{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *Service) GetClient() *openai.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Service) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}
