package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/quantsignal/signal-scanner/internal/diagnostics"
	"github.com/quantsignal/signal-scanner/pkg/types"
)

// TelegramSink formats events into Telegram messages.
type TelegramSink struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSink creates a sink posting to the given bot chat.
func NewTelegramSink(token, chatID string) *TelegramSink {
	return &TelegramSink{
		token:  token,
		chatID: chatID,
		client: &http.Client{},
	}
}

// Name implements Sink.
func (t *TelegramSink) Name() string { return "telegram" }

// Accept implements Sink.
func (t *TelegramSink) Accept(ctx context.Context, ev types.Event) error {
	text := t.format(ev)
	if text == "" {
		return nil
	}
	return t.send(ctx, text)
}

func (t *TelegramSink) format(ev types.Event) string {
	switch e := ev.(type) {
	case types.SignalEmitted:
		s := e.Signal
		emoji := "🟢"
		if s.Direction == types.DirectionShort {
			emoji = "🔴"
		}
		return fmt.Sprintf("%s *%s %s* (%s, %s)\n\nEntry: %.4f\nSL: %.4f\nTP: %.4f\nR/R: %.2f | Confidence: %d/5\n\n%s",
			emoji, strings.ToUpper(string(s.Direction)), s.Symbol, s.Strategy, s.Timeframe,
			s.Entry, s.StopLoss, s.TakeProfit, s.RiskReward, s.Confidence, s.Reasoning)
	case types.TradeEvent:
		emoji := map[types.TradeEventKind]string{
			types.TradeEventBreakeven: "⚖️",
			types.TradeEventStop:      "🛑",
			types.TradeEventTP:        "🎯",
			types.TradeEventReversal:  "↩️",
			types.TradeEventExpired:   "⌛",
		}[e.Kind]
		msg := fmt.Sprintf("%s *%s* %s at %.4f (%.2f%%)", emoji, e.Symbol, e.Kind, e.Price, e.PnLPct)
		if e.Note != "" {
			msg += "\n" + e.Note
		}
		return msg
	case types.OperationalAlert:
		emoji := "ℹ️"
		switch e.Level {
		case types.AlertWarn:
			emoji = "⚠️"
		case types.AlertError:
			emoji = "🚨"
		}
		return fmt.Sprintf("%s %s", emoji, e.Text)
	case diagnostics.Report:
		// Summaries go to reports, not chat.
		return ""
	default:
		return ""
	}
}

func (t *TelegramSink) send(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
