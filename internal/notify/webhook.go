// Package notify sends outbound alerts about the miner's connection to the
// pool and the health of its submitted shares.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mithril-go/miner/internal/util"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	DiscordURL   string `mapstructure:"discord_url"`
	TelegramBot  string `mapstructure:"telegram_bot"`
	TelegramChat string `mapstructure:"telegram_chat"`
	Enabled      bool   `mapstructure:"enabled"`
	MinerName    string
}

const (
	MaxRetries     = 3
	RetryBaseDelay = 2 * time.Second
)

// Notifier handles sending notifications.
type Notifier struct {
	cfg    *WebhookConfig
	client *http.Client
}

// NewNotifier creates a new notifier.
func NewNotifier(cfg *WebhookConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyStratumError sends a notification when the pool connection reports
// an error, e.g. a login failure or a rejected share.
func (n *Notifier) NotifyStratumError(message string) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordErrorNotification(message)
	}
	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramErrorNotification(message)
	}
}

// NotifyRejectionRatio sends a notification once the submission breaker trips
// because too many recent shares were rejected.
func (n *Notifier) NotifyRejectionRatio(ratio float64, window time.Duration) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordRejectionNotification(ratio, window)
	}
	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramRejectionNotification(ratio, window)
	}
}

// DiscordEmbed represents a Discord embed object.
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordField represents a field in a Discord embed.
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordFooter represents the footer of a Discord embed.
type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordMessage represents a Discord webhook message.
type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds,omitempty"`
}

func (n *Notifier) sendDiscordErrorNotification(message string) {
	embed := DiscordEmbed{
		Title:       "Pool Error",
		Description: fmt.Sprintf("**%s** received an error from the pool", n.cfg.MinerName),
		Color:       0xFF0000,
		Fields: []DiscordField{
			{Name: "Message", Value: message, Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &DiscordFooter{Text: n.cfg.MinerName},
	}

	n.sendDiscordMessageWithRetry(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

func (n *Notifier) sendDiscordRejectionNotification(ratio float64, window time.Duration) {
	embed := DiscordEmbed{
		Title:       "High Share Rejection Rate",
		Description: fmt.Sprintf("**%s** tripped the submission breaker", n.cfg.MinerName),
		Color:       0xFFA500,
		Fields: []DiscordField{
			{Name: "Rejection Ratio", Value: fmt.Sprintf("%.1f%%", ratio*100), Inline: true},
			{Name: "Window", Value: window.String(), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer:    &DiscordFooter{Text: n.cfg.MinerName},
	}

	n.sendDiscordMessageWithRetry(DiscordMessage{Embeds: []DiscordEmbed{embed}})
}

func (n *Notifier) sendDiscordMessageWithRetry(msg DiscordMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Discord message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(n.cfg.DiscordURL, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 400 {
			return
		}
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Discord notification after %d retries: %v", MaxRetries, lastErr)
	}
}

// TelegramMessage represents a Telegram bot message.
type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (n *Notifier) sendTelegramErrorNotification(message string) {
	text := fmt.Sprintf("*Pool Error*\n\n%s", message)
	n.sendTelegramMessageWithRetry(text)
}

func (n *Notifier) sendTelegramRejectionNotification(ratio float64, window time.Duration) {
	text := fmt.Sprintf(
		"*High Share Rejection Rate*\n\nRatio: `%.1f%%`\nWindow: `%s`",
		ratio*100, window,
	)
	n.sendTelegramMessageWithRetry(text)
}

func (n *Notifier) sendTelegramMessageWithRetry(text string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBot)

	msg := TelegramMessage{
		ChatID:    n.cfg.TelegramChat,
		Text:      text,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Telegram message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 400 {
			return
		}
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Telegram notification after %d retries: %v", MaxRetries, lastErr)
	}
}
