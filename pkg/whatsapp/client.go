package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maane-ai/assist-service/pkg/logger"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v20.0"

// Client talks to the WhatsApp Cloud API (Meta Graph). Sends are rate
// limited per process to stay under the Cloud API messaging throughput.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client

	limiter *rate.Limiter
}

// NewClient creates a Cloud API client. An empty baseURL uses the Graph
// API default; tests point it at a local server.
func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	return &Client{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// 20 msgs/sec with small bursts, well under Cloud API tiers.
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
}

// sendTextRequest is the Cloud API text message payload.
type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type markReadRequest struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// SendResponse is the Cloud API reply to a send.
type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a plain text message from the given business phone number
// ID and returns the Cloud API message ID.
func (c *Client) SendText(ctx context.Context, phoneNumberID, to, body string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("send rate limit wait: %w", err)
	}

	payload := sendTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	}

	var response SendResponse
	if err := c.post(ctx, fmt.Sprintf("%s/%s/messages", c.BaseURL, phoneNumberID), payload, &response); err != nil {
		return "", err
	}
	if len(response.Messages) == 0 {
		return "", fmt.Errorf("cloud API returned no message ID")
	}

	logger.Base().Debug("whatsapp message sent",
		zap.String("phone_number_id", phoneNumberID),
		zap.String("message_id", response.Messages[0].ID))
	return response.Messages[0].ID, nil
}

// MarkRead flags an inbound message as read so the user sees blue ticks
// while the agent composes a reply.
func (c *Client) MarkRead(ctx context.Context, phoneNumberID, messageID string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limit wait: %w", err)
	}

	payload := markReadRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	}
	return c.post(ctx, fmt.Sprintf("%s/%s/messages", c.BaseURL, phoneNumberID), payload, nil)
}

func (c *Client) post(ctx context.Context, url string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(bodyBytes, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("cloud API error: code=%d, type=%s, message=%s",
				apiErr.Error.Code, apiErr.Error.Type, apiErr.Error.Message)
		}
		return fmt.Errorf("cloud API error: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
