package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/forest-guardian/degradation-indicator/internal/properties"
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
	colorRed   = 16711680
	colorGreen = 65280
)

// Discord posts run outcomes to webhooks. An empty webhook url disables that kind of message.
type Discord struct {
	ErrorURL   string
	SuccessURL string
	Client     *http.Client
}

// FromProperties reads the webhook urls from the environment.
func FromProperties() *Discord {
	return &Discord{
		ErrorURL:   properties.DiscordErrorNotificationUrl(),
		SuccessURL: properties.DiscordSuccessNotificationUrl(),
	}
}

func (d *Discord) Error(ctx context.Context, errorMessage string) error {
	return d.send(ctx, d.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("SDG 15.3.1 run failed.\n\nAn error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) Success(ctx context.Context, successMessage string) error {
	return d.send(ctx, d.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: fmt.Sprintf("SDG 15.3.1 run completed.\n\n%s", successMessage),
		Color:       colorGreen,
	})
}

func (d *Discord) send(ctx context.Context, url string, embed DiscordEmbed) error {
	if url == "" {
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
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}
