package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-zero retcode returned by the OneBot implementation.
type APIError struct {
	Action  string
	Status  string
	RetCode int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("onebot %s failed: retcode %d: %s", e.Action, e.RetCode, e.Message)
	}
	return fmt.Sprintf("onebot %s failed: retcode %d (%s)", e.Action, e.RetCode, e.Status)
}

type apiResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

// Client calls the OneBot v11 HTTP API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      slog.Default().With("component", "onebot.client"),
	}
}

// SendMsg sends message to target and returns the id of the sent message.
func (c *Client) SendMsg(ctx context.Context, target Target, message Message) (string, error) {
	params := map[string]any{"message": message}
	if target.GroupID != 0 {
		params["message_type"] = "group"
		params["group_id"] = target.GroupID
	} else {
		params["message_type"] = "private"
		params["user_id"] = target.UserID
	}

	var data struct {
		MessageID json.Number `json:"message_id"`
	}
	if err := c.call(ctx, "send_msg", params, &data); err != nil {
		return "", err
	}
	return data.MessageID.String(), nil
}

// DeleteMsg retracts a message previously sent by the bot.
func (c *Client) DeleteMsg(ctx context.Context, messageID string) error {
	var id any = messageID
	if n, err := strconv.ParseInt(messageID, 10, 64); err == nil {
		id = n
	}
	return c.call(ctx, "delete_msg", map[string]any{"message_id": id}, nil)
}

func (c *Client) call(ctx context.Context, action string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	c.logger.Debug("Calling OneBot API", "action", action, "params", SanitizeForLog(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("onebot %s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("onebot %s returned HTTP %d: %s", action, resp.StatusCode, excerpt(raw))
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	if ar.RetCode != 0 || (ar.Status != "" && ar.Status != "ok" && ar.Status != "async") {
		msg := ar.Wording
		if msg == "" {
			msg = ar.Message
		}
		return &APIError{Action: action, Status: ar.Status, RetCode: ar.RetCode, Message: msg}
	}
	if out != nil && len(ar.Data) > 0 && string(ar.Data) != "null" {
		if err := json.Unmarshal(ar.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", action, err)
		}
	}
	return nil
}

func excerpt(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
