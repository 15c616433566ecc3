// Package ai содержит клиент GLM chat-completions и построение промптов
// для анализа торговых сигналов и стратегических отчетов.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

const (
	defaultBaseURL = "https://open.bigmodel.cn/api/paas/v4/chat/completions"
	defaultModel   = "glm-4-flash"

	maxAttempts = 3
)

// Client клиент chat-completions API
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client

	// Параметры повторов, уменьшаются в тестах
	backoffMin time.Duration
	backoffMax time.Duration
}

// NewClient создает клиент GLM. Пустые baseURL и model заменяются значениями
// по умолчанию.
func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		client:     &http.Client{Timeout: 30 * time.Second},
		backoffMin: 2 * time.Second,
		backoffMax: 4 * time.Second,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat отправляет пару system/user сообщений и возвращает текст ответа.
// На 429 и 5xx повторяет запрос до трех попыток с экспоненциальной паузой.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	b := &backoff.Backoff{
		Min:    c.backoffMin,
		Max:    c.backoffMax,
		Factor: 2,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, status, err := c.doRequest(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err

		retryable := status == http.StatusTooManyRequests || status >= 500
		if !retryable || attempt == maxAttempts {
			break
		}

		delay := b.Duration()
		logger.Warn("AI request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("%w: %v", domain.ErrAdvisoryFailed, lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("empty choices in response")
	}

	return parsed.Choices[0].Message.Content, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
