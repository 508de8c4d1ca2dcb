package chatroom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
	"github.com/deepgram/chatroom/pkg/logger"
)

// maxLogBytes caps how much of a transcript response is read.
const maxLogBytes = 8 << 20

// StatusError is returned when the bot server answers with a non-200 status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: bot server returned status %d", e.Op, e.Status)
}

// Service talks to a bot server over its conversation endpoints. It is
// immutable after NewService and safe for concurrent use.
type Service struct {
	client  *http.Client
	baseURL string
}

func NewService(host string, client *http.Client) *Service {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{
		client:  client,
		baseURL: strings.TrimRight(host, "/"),
	}
}

func (s *Service) conversationURL(userID, action string) string {
	return fmt.Sprintf("%s/conversations/%s/%s", s.baseURL, url.PathEscape(userID), action)
}

// Send delivers a user message. Empty payload and messageID are left out of
// the query, as the server treats a missing uuid as "do not log".
func (s *Service) Send(ctx context.Context, userID, text, payload, messageID string) error {
	params := url.Values{}
	params.Set("message", text)
	if payload != "" {
		params.Set("payload", payload)
	}
	if messageID != "" {
		params.Set("uuid", messageID)
	}

	endpoint := s.conversationURL(userID, "say") + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Op: "say", Status: resp.StatusCode, Body: string(body)}
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	logger.Debug(logger.TRANSPORT, "Delivered message %s for %s", messageID, userID)
	return nil
}

// FetchLog returns the conversation transcript. Shape problems in the body are
// reported as models.ErrMalformedPayload.
func (s *Service) FetchLog(ctx context.Context, userID string) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.conversationURL(userID, "log"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Op: "log", Status: resp.StatusCode, Body: string(body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	messages, err := models.DecodeTranscript(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	return messages, nil
}

// Tracker returns the raw dialogue tracker document for userID.
func (s *Service) Tracker(ctx context.Context, userID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.conversationURL(userID, "tracker"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLogBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: "tracker", Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Health checks the bot server's health endpoint.
func (s *Service) Health(ctx context.Context) error {
	endpoint := s.baseURL + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: "health", Status: resp.StatusCode}
	}
	return nil
}
