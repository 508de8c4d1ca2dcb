package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
	openaiinfra "github.com/deepgram/chatroom/internal/infrastructure/openai"
	"github.com/deepgram/chatroom/pkg/logger"
)

// OpenAIBot answers with a chat completion over the conversation so far.
type OpenAIBot struct {
	service      *openaiinfra.Service
	systemPrompt *models.SystemPrompt
	maxHistory   int
}

func NewOpenAIBot(service *openaiinfra.Service, custom string) (*OpenAIBot, error) {
	if service == nil {
		return nil, fmt.Errorf("OpenAI service is required")
	}

	prompt := models.DefaultSystemPrompt()
	prompt.SetCustom(custom)

	return &OpenAIBot{
		service:      service,
		systemPrompt: prompt,
		maxHistory:   40,
	}, nil
}

func (b *OpenAIBot) Respond(ctx context.Context, turn Turn) ([]Reply, error) {
	text := strings.TrimSpace(turn.Text)
	if text == "" {
		return nil, nil
	}

	messages := b.buildMessages(turn)
	logger.Debug(logger.BOT, "Requesting completion for %s with %d messages", turn.ConversationID, len(messages))

	resp, err := b.service.GetClient().CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    b.service.Model(),
		Messages: messages,
		User:     turn.ConversationID,
	})
	if err != nil {
		logger.Error(logger.BOT, "Failed to get chat completion: %v", err)
		return nil, fmt.Errorf("failed to get chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, nil
	}
	return []Reply{{Text: content}}, nil
}

func (b *OpenAIBot) buildMessages(turn Turn) []openai.ChatCompletionMessage {
	system := b.systemPrompt.String()
	if turn.DisplayName != "" {
		system += fmt.Sprintf("\nThe visitor's name is %s.", turn.DisplayName)
	}

	history := turn.History
	if len(history) > b.maxHistory {
		history = history[len(history)-b.maxHistory:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})

	for _, e := range history {
		text := entryText(e.Message)
		if text == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		if e.Username == models.BotUsername {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: text})
	}

	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: turn.Text,
	})
}

// entryText flattens non-text content so the model still sees what was shown.
func entryText(c models.Content) string {
	switch c.Type {
	case models.ContentText:
		return c.Text
	case models.ContentImage:
		return "[image: " + c.Image + "]"
	case models.ContentButtons:
		titles := make([]string, 0, len(c.Buttons))
		for _, btn := range c.Buttons {
			titles = append(titles, btn.Title)
		}
		return "[buttons: " + strings.Join(titles, ", ") + "]"
	}
	return ""
}
