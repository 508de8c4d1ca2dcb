package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

// RestartCommand clears a conversation instead of being answered.
const RestartCommand = "_restart"

// Turn is one user input as seen by a Responder.
type Turn struct {
	ConversationID string
	Text           string
	DisplayName    string
	// History is the transcript before this turn's user message.
	History []models.Entry
}

// Reply is one bot utterance. Text may hold several paragraphs separated by a
// blank line; Buttons are offered after the text.
type Reply struct {
	Text    string
	Image   string
	Buttons []models.Button
}

// Responder decides what the bot says next.
type Responder interface {
	Respond(ctx context.Context, turn Turn) ([]Reply, error)
}

// RuleBot answers a handful of commands without any external service.
type RuleBot struct {
	ImageURL string
}

const defaultImageURL = "https://picsum.photos/seed/chatroom/320/200"

func NewRuleBot() *RuleBot {
	return &RuleBot{ImageURL: defaultImageURL}
}

func menuButtons() []models.Button {
	return []models.Button{
		{Payload: "/help", Title: "What can you do?"},
		{Payload: "/image", Title: "Show me a picture"},
		{Payload: "/greet", Title: "Say hi"},
	}
}

func (b *RuleBot) Respond(ctx context.Context, turn Turn) ([]Reply, error) {
	text := strings.TrimSpace(turn.Text)
	lower := strings.ToLower(text)

	switch {
	case text == "":
		return nil, nil
	case lower == "/greet" || lower == "hi" || lower == "hello" || lower == "hey":
		greeting := "Hi there!"
		if turn.DisplayName != "" {
			greeting = fmt.Sprintf("Hi %s!", turn.DisplayName)
		}
		return []Reply{{
			Text:    greeting + "\n\nWhat would you like to do?",
			Buttons: menuButtons(),
		}}, nil
	case lower == "/help" || lower == "help":
		return []Reply{{
			Text: "I am a very small bot.\n\nI can greet you, show a picture or repeat what you say.",
		}, {
			Text:    "Pick one:",
			Buttons: menuButtons(),
		}}, nil
	case lower == "/image":
		return []Reply{{Text: "Here you go."}, {Image: b.ImageURL}}, nil
	case strings.HasPrefix(text, "/"):
		return []Reply{{Text: fmt.Sprintf("Sorry, I don't know the command %s.", text)}}, nil
	default:
		return []Reply{{Text: "You said: " + text}}, nil
	}
}
