// Package discord delivers respawn notifications as webhook embeds and maps
// the bot's free-text commands onto engine calls.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// WebhookPayload is the Discord webhook message structure.
type WebhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notifier posts payloads to a single configured webhook.
type Notifier struct {
	webhookURL string
	username   string
	avatarURL  string
	client     *http.Client
	log        zerolog.Logger
}

func NewNotifier(webhookURL, username, avatarURL string, log zerolog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		username:   username,
		avatarURL:  avatarURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// Send posts the payload. Delivery is best-effort: failures are returned for
// logging but never affect engine state.
func (n *Notifier) Send(ctx context.Context, payload WebhookPayload) error {
	if payload.Username == "" {
		payload.Username = n.username
	}
	if payload.AvatarURL == "" {
		payload.AvatarURL = n.avatarURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("discord: webhook returned %d: %s", resp.StatusCode, string(b))
}
