package widget

import (
	"context"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

// Transport carries messages between the widget and the bot server.
type Transport interface {
	// Send delivers one user message. payload, when non-empty, is what the bot
	// acts on instead of text.
	Send(ctx context.Context, userID, text, payload, messageID string) error
	// FetchLog returns the authoritative transcript for userID. It must be safe
	// to call repeatedly.
	FetchLog(ctx context.Context, userID string) ([]models.Message, error)
}
