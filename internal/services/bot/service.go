package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
	"github.com/deepgram/chatroom/internal/services/transcript"
	"github.com/deepgram/chatroom/pkg/logger"
)

// DisplayNameSlot holds the name the widget reports for its user.
const DisplayNameSlot = "display_name"

// Recorder counts transcript writes. *metrics.Metrics satisfies it.
type Recorder interface {
	MessageLogged(author string)
}

type nopRecorder struct{}

func (nopRecorder) MessageLogged(string) {}

// SayRequest is one message posted by a widget.
type SayRequest struct {
	ConversationID string
	Message        string
	Payload        string
	DisplayName    string
	UUID           string
}

// CollectedMessage is a bot reply returned inline by the webhook endpoint.
type CollectedMessage struct {
	RecipientID string          `json:"recipient_id"`
	Text        string          `json:"text,omitempty"`
	Image       string          `json:"image,omitempty"`
	Buttons     []models.Button `json:"buttons,omitempty"`
}

// TrackerEvent is one transcript entry in tracker form.
type TrackerEvent struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	MessageID string         `json:"message_id"`
	Message   models.Content `json:"message"`
}

// Tracker summarises what the server knows about a conversation.
type Tracker struct {
	SenderID      string            `json:"sender_id"`
	Slots         map[string]string `json:"slots"`
	LatestMessage *models.Content   `json:"latest_message"`
	Events        []TrackerEvent    `json:"events"`
}

type Service struct {
	transcripts *transcript.Service
	responder   Responder
	recorder    Recorder
}

func NewService(transcripts *transcript.Service, responder Responder, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		transcripts: transcripts,
		responder:   responder,
		recorder:    recorder,
	}
}

// Say logs the user's message when it carries an id, asks the responder for
// a reply and appends the reply to the transcript. The restart command
// clears the transcript instead.
func (s *Service) Say(ctx context.Context, req SayRequest) error {
	cid := req.ConversationID
	logger.Info(logger.BOT, "Say from %s: %q", cid, req.Message)

	if req.DisplayName != "" {
		if err := s.transcripts.SetSlot(ctx, cid, DisplayNameSlot, req.DisplayName); err != nil {
			return err
		}
	}

	if req.Message == RestartCommand || req.Payload == RestartCommand {
		return s.transcripts.Clear(ctx, cid)
	}

	history, err := s.transcripts.Transcript(ctx, cid)
	if err != nil {
		return err
	}

	if req.UUID != "" {
		if _, err := s.transcripts.Log(ctx, cid, cid, models.TextContent(req.Message), req.UUID); err != nil {
			return err
		}
		s.recorder.MessageLogged(string(models.AuthorUser))
	}

	input := req.Message
	if req.Payload != "" {
		input = req.Payload
	}

	replies, err := s.responder.Respond(ctx, Turn{
		ConversationID: cid,
		Text:           input,
		DisplayName:    s.displayName(ctx, cid, req.DisplayName),
		History:        history,
	})
	if err != nil {
		return fmt.Errorf("bot failed to respond: %w", err)
	}

	return s.emit(ctx, cid, replies)
}

// Webhook answers a message without touching the transcript.
func (s *Service) Webhook(ctx context.Context, sender, message string) ([]CollectedMessage, error) {
	replies, err := s.responder.Respond(ctx, Turn{
		ConversationID: sender,
		Text:           message,
		DisplayName:    s.displayName(ctx, sender, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("bot failed to respond: %w", err)
	}

	collected := []CollectedMessage{}
	for _, content := range expand(replies) {
		collected = append(collected, CollectedMessage{
			RecipientID: sender,
			Text:        content.Text,
			Image:       content.Image,
			Buttons:     content.Buttons,
		})
	}
	return collected, nil
}

// Transcript returns the conversation log as stored.
func (s *Service) Transcript(ctx context.Context, cid string) ([]models.Entry, error) {
	return s.transcripts.Transcript(ctx, cid)
}

func (s *Service) Tracker(ctx context.Context, cid string) (*Tracker, error) {
	entries, err := s.transcripts.Transcript(ctx, cid)
	if err != nil {
		return nil, err
	}
	slots, err := s.transcripts.Slots(ctx, cid)
	if err != nil {
		return nil, err
	}

	tracker := &Tracker{
		SenderID: cid,
		Slots:    slots,
		Events:   make([]TrackerEvent, 0, len(entries)),
	}
	for _, e := range entries {
		event := "user"
		if e.Username == models.BotUsername {
			event = "bot"
		} else {
			msg := e.Message
			tracker.LatestMessage = &msg
		}
		tracker.Events = append(tracker.Events, TrackerEvent{
			Event:     event,
			Timestamp: e.Time,
			MessageID: e.UUID,
			Message:   e.Message,
		})
	}
	return tracker, nil
}

func (s *Service) displayName(ctx context.Context, cid, given string) string {
	if given != "" {
		return given
	}
	slots, err := s.transcripts.Slots(ctx, cid)
	if err != nil {
		logger.Warn(logger.BOT, "Failed to read slots for %s: %v", cid, err)
		return ""
	}
	return slots[DisplayNameSlot]
}

func (s *Service) emit(ctx context.Context, cid string, replies []Reply) error {
	for _, content := range expand(replies) {
		if _, err := s.transcripts.Log(ctx, cid, models.BotUsername, content, ""); err != nil {
			return err
		}
		s.recorder.MessageLogged(string(models.AuthorBot))
	}
	return nil
}

// expand turns replies into transcript content: one text entry per
// paragraph, then the buttons, then any image.
func expand(replies []Reply) []models.Content {
	var out []models.Content
	for _, r := range replies {
		if r.Text != "" {
			for _, part := range strings.Split(r.Text, "\n\n") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, models.TextContent(part))
				}
			}
		}
		if len(r.Buttons) > 0 {
			out = append(out, models.ButtonsContent(r.Buttons...))
		}
		if r.Image != "" {
			out = append(out, models.ImageContent(r.Image))
		}
	}
	return out
}
