package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTelegramAPI = "https://api.telegram.org"

type Telegram struct {
	client *resty.Client
	token  string
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegram returns nil when no bot token is configured.
func NewTelegram(token, baseURL string) *Telegram {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultTelegramAPI
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Telegram{client: client, token: token}
}

func (t *Telegram) SendMessage(ctx context.Context, chatID, text string) error {
	var out telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"chat_id": strings.TrimSpace(chatID), "text": text}).
		SetResult(&out).
		SetError(&out).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram send: status %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}
