package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Trigger reasons carried on a notification.
const (
	ReasonThresholdReached = "threshold_reached"
	ReasonAnyDrop          = "any_drop"
)

// Notification is the descriptor handed to the delivery channel. Delivery
// itself (transport, retries) is the channel's concern.
type Notification struct {
	AlertID       int64
	WatchedItemID string
	ProductID     string
	CustomerID    string
	OldPrice      decimal.Decimal
	NewPrice      decimal.Decimal
	TargetPrice   decimal.Decimal
	Savings       decimal.Decimal
	SavingsPct    decimal.Decimal
	Reason        string
	TriggeredAt   time.Time
}

// Dispatcher delivers notification descriptors.
type Dispatcher interface {
	Send(ctx context.Context, notification Notification) error
}

// TelegramDispatcher pushes price-drop messages through the Telegram Bot API.
type TelegramDispatcher struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramDispatcher constructs a Telegram delivery channel.
func NewTelegramDispatcher(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramDispatcher{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Send posts the rendered descriptor via the sendMessage API.
func (d *TelegramDispatcher) Send(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": d.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", d.baseURL, d.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	d.logger.Info().
		Int64("alert_id", note.AlertID).
		Str("product_id", note.ProductID).
		Str("reason", note.Reason).
		Msg("notification dispatched (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Price Alert]\n")
	builder.WriteString(fmt.Sprintf("Product: %s\n", note.ProductID))
	builder.WriteString(fmt.Sprintf("Was: %s\n", note.OldPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Now: %s\n", note.NewPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("You save: %s (%s%%)\n", note.Savings.StringFixed(2), note.SavingsPct.StringFixed(1)))
	builder.WriteString(fmt.Sprintf("Target: %s\n", note.TargetPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Reason: %s\n", note.Reason))
	builder.WriteString(fmt.Sprintf("Triggered: %s UTC\n", note.TriggeredAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Dispatcher = (*TelegramDispatcher)(nil)
