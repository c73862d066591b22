// Package telegram implements the thin Bot API client used by the
// webhook service: sending replies, typing indicators, and webhook
// registration. It deliberately covers only the handful of methods the
// service needs rather than wrapping the full Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ChatActionTyping is the "typing" chat action shown while the model
// call is in flight.
const ChatActionTyping = "typing"

// Client is a minimal Telegram Bot API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Bot API client. baseURL is the API origin
// (https://api.telegram.org in production, an httptest server in tests).
func NewClient(token, baseURL string, logger *zap.Logger) *Client {
	return &Client{
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SendMessage delivers text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text})
}

// SendChatAction shows a chat action (e.g. typing). Best effort by
// contract; callers ignore the error beyond logging.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.call(ctx, "sendChatAction", sendChatActionRequest{ChatID: chatID, Action: action})
}

// SetWebhook registers the given URL as the bot's webhook target.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{URL: url})
}

// call posts a JSON payload to a Bot API method and decodes the common
// response envelope. The token never appears in errors or logs.
func (c *Client) call(ctx context.Context, method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("%s: decode response (status %d): %w", method, resp.StatusCode, err)
	}

	if !apiResp.OK {
		return fmt.Errorf("%s: api error %d: %s", method, apiResp.ErrorCode, apiResp.Description)
	}

	c.logger.Debug("Bot API call succeeded", zap.String("method", method))
	return nil
}
