// Package discord posts trade notifications to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/cryptopilot/internal/domain"
	"github.com/aristath/cryptopilot/internal/events"
)

// Embed colors
const (
	ColorBuy  = 0x2ecc71
	ColorSell = 0xe74c3c
	ColorInfo = 0x3498db
)

// Notifier sends alerts to a Discord webhook. A zero URL disables it.
type Notifier struct {
	webhookURL string
	client     *http.Client
	log        zerolog.Logger
}

// NewNotifier creates a new webhook notifier
func NewNotifier(webhookURL string, log zerolog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("client", "discord").Logger(),
	}
}

// Enabled reports whether a webhook URL is configured
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// SendAlert posts a single embed
func (n *Notifier) SendAlert(ctx context.Context, title, message string, color int) error {
	if !n.Enabled() {
		return nil
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"footer": map[string]string{
					"text": "CryptoPilot",
				},
				"timestamp": time.Now().Format(time.RFC3339),
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord returned status: %d", resp.StatusCode)
	}

	return nil
}

// NotifyTrade formats and sends a trade alert
func (n *Notifier) NotifyTrade(ctx context.Context, trade domain.Trade) error {
	color := ColorInfo
	switch trade.Action {
	case domain.ActionBuy:
		color = ColorBuy
	case domain.ActionSell:
		color = ColorSell
	}

	title := fmt.Sprintf("%s %s", trade.Action.Upper(), trade.Symbol)
	message := fmt.Sprintf("$%.2f (%s, %s)\nConfidence %.0f%% via %s\n%s",
		trade.Amount, trade.Mode, trade.Status,
		trade.Decision.Confidence*100, trade.Decision.Source, trade.Decision.Rationale)

	return n.SendAlert(ctx, title, message, color)
}

// Subscribe forwards every TradeExecuted event on the bus to the webhook.
// Delivery runs in its own goroutine so a slow webhook never blocks a cycle.
func (n *Notifier) Subscribe(bus *events.Bus) func() {
	if !n.Enabled() {
		return func() {}
	}
	return bus.Subscribe(events.TradeExecuted, func(event *events.Event) {
		data, ok := event.Data.(*events.TradeExecutedData)
		if !ok {
			return
		}
		trade := data.Trade
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := n.NotifyTrade(ctx, trade); err != nil {
				n.log.Warn().Err(err).Str("trade_id", trade.ID).Msg("Failed to send trade alert")
			}
		}()
	})
}
