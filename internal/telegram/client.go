// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats a finished analysis (period range, hot and cold numbers and the
// recommended sets) into a MarkdownV2 message and delivers it with retries.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/lottoracle/internal/models"
)

// hotColdShown is how many hot and cold numbers the message lists.
const hotColdShown = 5

// sender is the part of *tgbotapi.BotAPI the client needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Send pushes a prediction to the configured chat
func (c *Client) Send(result *models.AnalysisResult) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(result))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage renders a result as a MarkdownV2 message
func formatMessage(result *models.AnalysisResult) string {
	var sb strings.Builder

	name := result.Game
	if g, ok := models.GameByID(result.Game); ok {
		name = g.Name
	}
	fmt.Fprintf(&sb, "🎯 *%s AI 預測*\n", escapeMarkdownV2(name))
	fmt.Fprintf(&sb, "🕒 %s\n\n", escapeMarkdownV2(result.CreatedAt.Format("2006-01-02 15:04")))

	if result.Status == models.StatusError {
		fmt.Fprintf(&sb, "⚠️ %s\n", escapeMarkdownV2(result.Error))
		return sb.String()
	}

	if s := result.Statistics; s != nil {
		fmt.Fprintf(&sb, "📅 %s ~ %s \\(%d 期\\)\n",
			escapeMarkdownV2(s.DateRange.Start), escapeMarkdownV2(s.DateRange.End), s.TotalPeriods)
		fmt.Fprintf(&sb, "🔥 熱門: %s\n", joinCounts(s.HotNumbers, hotColdShown))
		fmt.Fprintf(&sb, "❄️ 冷門: %s\n\n", joinCounts(s.ColdNumbers, hotColdShown))
	}

	if len(result.RecommendedSets) == 0 {
		if result.Notice != "" {
			fmt.Fprintf(&sb, "ℹ️ %s\n", escapeMarkdownV2(result.Notice))
		}
		return sb.String()
	}

	for i, set := range result.RecommendedSets {
		fmt.Fprintf(&sb, "%d\\. *%s*\n", i+1, escapeMarkdownV2(set.Label))
		fmt.Fprintf(&sb, "   `%s` \\+ 特別號 *%02d*\n", joinNumbers(set.Numbers), set.Special)
		if set.Reason != "" {
			fmt.Fprintf(&sb, "   _%s_\n", escapeMarkdownV2(set.Reason))
		}
	}

	return sb.String()
}

func joinNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(parts, " ")
}

func joinCounts(counts []models.NumberCount, limit int) string {
	if len(counts) > limit {
		counts = counts[:limit]
	}
	parts := make([]string, len(counts))
	for i, nc := range counts {
		parts[i] = fmt.Sprintf("%d\\(%d\\)", nc.Number, nc.Count)
	}
	return strings.Join(parts, ", ")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var sb strings.Builder
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			sb.WriteRune('\\')
		}
		sb.WriteRune(char)
	}
	return sb.String()
}
