package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxSamples caps how many individual findings a message lists.
const maxSamples = 5

// Notification 封装一次校验运行的缺陷摘要。
type Notification struct {
	RunID         string
	Mode          string
	Seed          int64
	Day           int
	Ticks         int
	NewsItems     int
	Defects       int
	ByKind        map[string]int
	Samples       []string
	Channels      []string
	AdditionalMsg string
}

// DefectRate is defects per published news item, as a percentage.
func (n Notification) DefectRate() decimal.Decimal {
	if n.NewsItems == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n.Defects)).
		Div(decimal.NewFromInt(int64(n.NewsItems))).
		Mul(decimal.NewFromInt(100))
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("run_id", note.RunID).
		Int("defects", note.Defects).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Coupling Report]\n")
	builder.WriteString(fmt.Sprintf("Run: %s (%s, seed %d)\n", note.RunID, note.Mode, note.Seed))
	builder.WriteString(fmt.Sprintf("Days: %d, ticks: %d, news: %d\n", note.Day, note.Ticks, note.NewsItems))
	builder.WriteString(fmt.Sprintf("Defects: %d (%s%% of news)\n", note.Defects, note.DefectRate().StringFixed(2)))

	kinds := make([]string, 0, len(note.ByKind))
	for k := range note.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		builder.WriteString(fmt.Sprintf("  %s: %d\n", k, note.ByKind[k]))
	}

	for i, s := range note.Samples {
		if i == maxSamples {
			builder.WriteString(fmt.Sprintf("  ... %d more\n", len(note.Samples)-maxSamples))
			break
		}
		builder.WriteString("  " + s + "\n")
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
