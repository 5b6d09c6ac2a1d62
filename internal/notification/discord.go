package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed    = 16711680
	colorYellow = 16776960
	colorGreen  = 65280
)

// Notifier posts embeds to Discord webhooks. A level whose URL is empty is
// silently skipped.
type Notifier struct {
	ErrorURL   string
	WarnURL    string
	SuccessURL string
	client     *http.Client
}

func NewNotifier(errorURL, warnURL, successURL string) *Notifier {
	return &Notifier{
		ErrorURL:   errorURL,
		WarnURL:    warnURL,
		SuccessURL: successURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Error(ctx context.Context, errorMessage string) error {
	return n.send(ctx, n.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("An error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (n *Notifier) Warn(ctx context.Context, warnMessage string) error {
	return n.send(ctx, n.WarnURL, DiscordEmbed{
		Title:       "⚠️ Warning Notification",
		Description: warnMessage,
		Color:       colorYellow,
	})
}

func (n *Notifier) Success(ctx context.Context, successMessage string) error {
	return n.send(ctx, n.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: successMessage,
		Color:       colorGreen,
	})
}

func (n *Notifier) send(ctx context.Context, url string, embed DiscordEmbed) error {
	if n == nil || url == "" {
		return nil
	}

	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
