package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Message is the JSON body posted by WebhookSink.
type Message struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// WebhookSink posts each line as a Message to a chat gateway.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Send(ctx context.Context, channel, text string) error {
	body, err := json.Marshal(Message{Channel: channel, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

// LogSink writes lines to the logger instead of a chat network.
type LogSink struct {
	l *zap.Logger
}

func NewLogSink(l *zap.Logger) *LogSink {
	return &LogSink{l: l.Named("chat")}
}

func (s *LogSink) Send(_ context.Context, channel, text string) error {
	s.l.Info("message", zap.String("channel", channel), zap.String("text", text))
	return nil
}
