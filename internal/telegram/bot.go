// Package telegram sends detection alerts through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// Bot handles Telegram bot operations
type Bot struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	mu         sync.RWMutex
	enabled    bool

	cooldownTracker map[string]time.Time
	cooldownPeriod  time.Duration
}

// Config holds Telegram bot configuration
type Config struct {
	BotToken string
	ChatID   string
	Enabled  bool
	Cooldown time.Duration
}

// apiResponse represents the response from Telegram API
type apiResponse struct {
	OK          bool        `json:"ok"`
	Result      interface{} `json:"result,omitempty"`
	ErrorCode   int         `json:"error_code,omitempty"`
	Description string      `json:"description,omitempty"`
}

// ValidateConfig validates the Telegram bot configuration
func ValidateConfig(config Config) error {
	if config.Enabled {
		if config.BotToken == "" {
			return fmt.Errorf("telegram bot token is required when enabled")
		}
		if config.ChatID == "" {
			return fmt.Errorf("telegram chat ID is required when enabled")
		}
	}
	if config.Cooldown < 0 {
		return fmt.Errorf("cooldown cannot be negative")
	}
	return nil
}

// NewBot creates a new Telegram bot instance
func NewBot(config Config) *Bot {
	cooldownPeriod := config.Cooldown
	if cooldownPeriod == 0 {
		cooldownPeriod = 30 * time.Second // Default 30 seconds cooldown
	}

	return &Bot{
		botToken:        config.BotToken,
		chatID:          config.ChatID,
		enabled:         config.Enabled,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		cooldownTracker: make(map[string]time.Time),
		cooldownPeriod:  cooldownPeriod,
	}
}

// IsEnabled returns whether the bot is enabled
func (b *Bot) IsEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled enables or disables the bot
func (b *Bot) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// SendMessage sends a text message
func (b *Bot) SendMessage(ctx context.Context, message string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.enabled {
		return fmt.Errorf("telegram bot is disabled")
	}
	if b.botToken == "" || b.chatID == "" {
		return fmt.Errorf("telegram bot token or chat ID not configured")
	}

	payload := map[string]interface{}{
		"chat_id":    b.chatID,
		"text":       message,
		"parse_mode": "HTML",
	}
	return b.sendRequest(ctx, "sendMessage", payload)
}

// SendAlert sends a detection alert, respecting the per-key cooldown. The
// frame is attached as a photo when present.
func (b *Bot) SendAlert(ctx context.Context, key, message string, frameData []byte) error {
	b.mu.Lock()
	if !b.enabled {
		b.mu.Unlock()
		return fmt.Errorf("telegram bot is disabled")
	}
	if !b.checkCooldown(key) {
		b.mu.Unlock()
		return fmt.Errorf("cooldown period not yet elapsed for %s", key)
	}
	b.updateCooldown(key)
	b.mu.Unlock()

	if len(frameData) > 0 {
		return b.sendPhoto(ctx, frameData, message)
	}

	payload := map[string]interface{}{
		"chat_id":    b.chatID,
		"text":       message,
		"parse_mode": "HTML",
	}
	return b.sendRequest(ctx, "sendMessage", payload)
}

// sendPhoto sends a photo using multipart form data
func (b *Bot) sendPhoto(ctx context.Context, photoData []byte, caption string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendPhoto", b.botToken)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", b.chatID); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
		if err := writer.WriteField("parse_mode", "HTML"); err != nil {
			return fmt.Errorf("failed to write parse_mode field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("photo", "detection_frame.jpg")
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(photoData); err != nil {
		return fmt.Errorf("failed to write photo data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	defer resp.Body.Close()

	return b.handleResponse(resp)
}

// sendRequest sends a generic request to Telegram API
func (b *Bot) sendRequest(ctx context.Context, method string, payload map[string]interface{}) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/%s", b.botToken, method)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return b.handleResponse(resp)
}

// handleResponse processes the Telegram API response
func (b *Bot) handleResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var telegramResp apiResponse
	if err := json.Unmarshal(body, &telegramResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !telegramResp.OK {
		return fmt.Errorf("telegram API error %d: %s", telegramResp.ErrorCode, telegramResp.Description)
	}
	return nil
}

// checkCooldown checks if the cooldown period has elapsed for a key.
// Caller holds b.mu.
func (b *Bot) checkCooldown(key string) bool {
	lastTime, exists := b.cooldownTracker[key]
	if !exists {
		return true
	}
	return time.Since(lastTime) >= b.cooldownPeriod
}

// updateCooldown records the last alert time for a key. Caller holds b.mu.
func (b *Bot) updateCooldown(key string) {
	b.cooldownTracker[key] = time.Now()
}

// CleanupCooldownTracking removes old cooldown entries to prevent memory leaks
func (b *Bot) CleanupCooldownTracking() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for key, lastTime := range b.cooldownTracker {
		if now.Sub(lastTime) > b.cooldownPeriod*2 {
			delete(b.cooldownTracker, key)
		}
	}
}
