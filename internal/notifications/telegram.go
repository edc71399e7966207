package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// maxMessageRunes is the Bot API limit on a sendMessage text.
const maxMessageRunes = 4096

// markdownEscaper protects the characters legacy Markdown treats as markup.
// Symbols like 1000PEPE_USDT and exchange error texts contain them.
var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// TelegramNotifier posts bridge alerts to a chat through the Bot API.
type TelegramNotifier struct {
	token      string
	chatID     string
	apiURL     string
	httpClient *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:      token,
		chatID:     chatID,
		apiURL:     telegramAPI,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIURL points the notifier at a different Bot API host.
func (t *TelegramNotifier) WithAPIURL(apiURL string) *TelegramNotifier {
	t.apiURL = strings.TrimRight(apiURL, "/")
	return t
}

// FormatAlert renders an alert as a legacy Markdown message: a level marker,
// the bridge title, then the escaped message cut to the Bot API limit.
func FormatAlert(level, message string) string {
	marker := "ℹ️"
	switch level {
	case LevelWarning:
		marker = "⚠️"
	case LevelError:
		marker = "🚨"
	case LevelSuccess:
		marker = "✅"
	}

	text := fmt.Sprintf("%s *Webhook Bridge*\n\n%s", marker, markdownEscaper.Replace(message))
	if runes := []rune(text); len(runes) > maxMessageRunes {
		text = string(runes[:maxMessageRunes-1]) + "…"
	}
	return text
}

func (t *TelegramNotifier) SendAlert(ctx context.Context, level, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", FormatAlert(level, message))
	data.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
