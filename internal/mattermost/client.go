// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aimd54/forum-trophies/internal/config"
	"github.com/aimd54/forum-trophies/pkg/logger"
)

const botUsername = "Trophy Bot"

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Enabled reports whether messages are actually sent.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendSimpleMessage sends a simple text message.
func (c *Client) SendSimpleMessage(ctx context.Context, text string) error {
	return c.SendMessage(ctx, &Message{
		Text: text,
	})
}

// TrophyCount is one line of an assignment summary.
type TrophyCount struct {
	Title   string
	Awarded int
}

// AssignmentSummary describes a finished assignment run.
type AssignmentSummary struct {
	RunID      string
	Awarded    int
	MaxAssigns int
	CapReached bool
	Trophies   []TrophyCount
	Duration   time.Duration
}

// SendAssignmentSummary posts the outcome of an assignment run. Runs that
// awarded nothing are not reported.
func (c *Client) SendAssignmentSummary(ctx context.Context, summary AssignmentSummary) error {
	if summary.Awarded == 0 {
		c.log.Debug().Str("run_id", summary.RunID).Msg("No trophies awarded, skipping summary")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### 🏆 Trophy Assignment\n\n**%d** trophies awarded:\n\n", summary.Awarded)
	for _, tc := range summary.Trophies {
		fmt.Fprintf(&b, "• **%s**: %d\n", tc.Title, tc.Awarded)
	}

	color := "#2eb886"
	if summary.CapReached {
		color = "#daa038"
		fmt.Fprintf(&b, "\n⚠️ _Run stopped at the cap of %d awards, the next run continues._\n", summary.MaxAssigns)
	}

	return c.SendMessage(ctx, &Message{
		Username: botUsername,
		Text:     b.String(),
		Attachments: []Attachment{
			{
				Fallback: fmt.Sprintf("%d trophies awarded", summary.Awarded),
				Color:    color,
				Fields: []Field{
					{Short: true, Title: "Run", Value: summary.RunID},
					{Short: true, Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
				},
			},
		},
	})
}
