package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedPayload marks a transcript the backend returned in an unexpected shape.
var ErrMalformedPayload = errors.New("malformed payload")

// WelcomeMessageID is the fixed id given to the synthetic welcome message.
const WelcomeMessageID = "9b9c4e2d-eb7f-4425-b23c-30c25bd7f507"

// BotUsername is the username the server logs bot messages under.
const BotUsername = "bot"

// wireTimeLayout matches the naive UTC timestamps the server writes.
const wireTimeLayout = "2006-01-02T15:04:05.000000"

type Author string

const (
	AuthorUser Author = "user"
	AuthorBot  Author = "bot"
)

type ContentType string

const (
	ContentText    ContentType = "text"
	ContentImage   ContentType = "image"
	ContentButtons ContentType = "button"
)

type Button struct {
	Payload  string `json:"payload"`
	Title    string `json:"title"`
	Selected bool   `json:"selected,omitempty"`
}

// Content is a tagged variant; only the field matching Type is meaningful.
type Content struct {
	Type    ContentType `json:"type"`
	Text    string      `json:"text,omitempty"`
	Image   string      `json:"image,omitempty"`
	Buttons []Button    `json:"buttons,omitempty"`
}

func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

func ImageContent(url string) Content {
	return Content{Type: ContentImage, Image: url}
}

func ButtonsContent(buttons ...Button) Content {
	return Content{Type: ContentButtons, Buttons: buttons}
}

// Validate reports whether the content carries what its tag promises.
func (c Content) Validate() error {
	switch c.Type {
	case ContentText:
		return nil
	case ContentImage:
		if c.Image == "" {
			return fmt.Errorf("%w: image message without url", ErrMalformedPayload)
		}
		return nil
	case ContentButtons:
		for i, b := range c.Buttons {
			if b.Payload == "" && b.Title == "" {
				return fmt.Errorf("%w: button %d has neither payload nor title", ErrMalformedPayload, i)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrMalformedPayload, c.Type)
	}
}

// Message is one entry of a conversation. ID is the only identity used for dedup.
type Message struct {
	ID        string
	Author    Author
	Content   Content
	Timestamp time.Time
}

// IsBot reports whether the message was authored by the bot.
func (m Message) IsBot() bool {
	return m.Author == AuthorBot
}

// Entry is the transcript record exchanged with the bot server.
type Entry struct {
	Time     string  `json:"time"`
	Username string  `json:"username"`
	Message  Content `json:"message"`
	UUID     string  `json:"uuid"`
}

// NewEntry builds a transcript record stamped with at.
func NewEntry(username string, content Content, id string, at time.Time) Entry {
	return Entry{
		Time:     FormatWireTime(at),
		Username: username,
		Message:  content,
		UUID:     id,
	}
}

// FormatWireTime renders t as a naive UTC timestamp.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

// ParseWireTime accepts naive UTC timestamps as well as fully zoned RFC 3339.
func ParseWireTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s+"Z")
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrMalformedPayload, s)
	}
	return t.UTC(), nil
}

// ToMessage converts a transcript record, mapping the bot username to AuthorBot.
func (e Entry) ToMessage() (Message, error) {
	if strings.TrimSpace(e.UUID) == "" {
		return Message{}, fmt.Errorf("%w: entry without uuid", ErrMalformedPayload)
	}
	ts, err := ParseWireTime(e.Time)
	if err != nil {
		return Message{}, err
	}
	if err := e.Message.Validate(); err != nil {
		return Message{}, err
	}

	author := AuthorUser
	if e.Username == BotUsername {
		author = AuthorBot
	}

	return Message{
		ID:        e.UUID,
		Author:    author,
		Content:   e.Message,
		Timestamp: ts,
	}, nil
}

// DecodeTranscript parses a transcript document. Any shape problem is
// reported as ErrMalformedPayload.
func DecodeTranscript(data []byte) ([]Message, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	messages := make([]Message, 0, len(entries))
	for i, e := range entries {
		m, err := e.ToMessage()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}
