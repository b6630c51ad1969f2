package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/lottoracle/internal/models"
)

type fakeBot struct {
	failures int
	calls    int
	last     tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.last = msg
	}
	if f.calls <= f.failures {
		return tgbotapi.Message{}, errors.New("Too Many Requests: retry after 1")
	}
	return tgbotapi.Message{MessageID: f.calls}, nil
}

func sampleResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		ID:     "pred-1",
		Game:   models.Lotto649.ID,
		Status: models.StatusSuccess,
		Statistics: &models.Statistics{
			TotalPeriods: 52,
			DateRange:    models.DateRange{Start: "2024-01-02", End: "2024-06-28"},
			HotNumbers:   []models.NumberCount{{Number: 7, Count: 12}, {Number: 23, Count: 11}},
			ColdNumbers:  []models.NumberCount{{Number: 44, Count: 1}},
		},
		RecommendedSets: []models.RecommendedSet{
			{Label: "冷門號碼組合", Numbers: []int{1, 8, 14, 22, 30, 49}, Special: 12, Reason: "近期較少出現 (冷門)."},
			{Label: "熱門號碼組合", Numbers: []int{3, 7, 11, 23, 35, 41}, Special: 5},
		},
		CreatedAt: time.Date(2024, 6, 29, 9, 30, 0, 0, time.UTC),
	}
}

func TestFormatMessage(t *testing.T) {
	msg := formatMessage(sampleResult())

	wantLines := []string{
		"🎯 *大樂透 AI 預測*",
		"🕒 2024\\-06\\-29 09:30",
		"📅 2024\\-01\\-02 ~ 2024\\-06\\-28 \\(52 期\\)",
		"🔥 熱門: 7\\(12\\), 23\\(11\\)",
		"❄️ 冷門: 44\\(1\\)",
		"1\\. *冷門號碼組合*",
		"   `01 08 14 22 30 49` \\+ 特別號 *12*",
		"   _近期較少出現 \\(冷門\\)\\._",
		"2\\. *熱門號碼組合*",
		"   `03 07 11 23 35 41` \\+ 特別號 *05*",
	}
	for _, line := range wantLines {
		if !strings.Contains(msg, line+"\n") {
			t.Errorf("Expected message to contain %q, got:\n%s", line, msg)
		}
	}
	if strings.Count(msg, "   _") != 1 {
		t.Errorf("Expected exactly one reason line, got:\n%s", msg)
	}
}

func TestFormatMessage_ErrorResult(t *testing.T) {
	res := &models.AnalysisResult{
		ID:        "pred-2",
		Game:      models.Lotto649.ID,
		Status:    models.StatusError,
		Error:     "無法取得大樂透歷史資料",
		CreatedAt: time.Now(),
	}

	msg := formatMessage(res)
	if !strings.Contains(msg, "⚠️ 無法取得大樂透歷史資料") {
		t.Errorf("Expected error line, got:\n%s", msg)
	}
	if strings.Contains(msg, "熱門") {
		t.Errorf("Error result should not list statistics, got:\n%s", msg)
	}
}

func TestFormatMessage_NoticeWithoutSets(t *testing.T) {
	res := sampleResult()
	res.RecommendedSets = nil
	res.Notice = "AI 預測服務暫時無法使用"

	msg := formatMessage(res)
	if !strings.Contains(msg, "ℹ️ AI 預測服務暫時無法使用") {
		t.Errorf("Expected notice, got:\n%s", msg)
	}
}

func TestFormatMessage_UnknownGame(t *testing.T) {
	res := sampleResult()
	res.Game = "keno_game"

	msg := formatMessage(res)
	if !strings.HasPrefix(msg, "🎯 *keno\\_game AI 預測*") {
		t.Errorf("Expected escaped game id in title, got:\n%s", msg)
	}
}

func TestJoinCountsLimit(t *testing.T) {
	counts := []models.NumberCount{{Number: 1, Count: 5}, {Number: 2, Count: 4}, {Number: 3, Count: 3}}
	if got := joinCounts(counts, 2); got != "1\\(5\\), 2\\(4\\)" {
		t.Errorf("joinCounts = %s", got)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"1.5%", "1\\.5%"},
		{"a_b*c", "a\\_b\\*c"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"-+=!", "\\-\\+\\=\\!"},
		{"back\\slash", "back\\\\slash"},
		{"熱門號碼組合", "熱門號碼組合"},
	}

	for _, tt := range tests {
		result := escapeMarkdownV2(tt.input)
		if result != tt.expected {
			t.Errorf("escapeMarkdownV2(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestSend(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 42, 3, time.Millisecond)

	if err := c.Send(sampleResult()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if bot.calls != 1 {
		t.Errorf("Expected 1 call, got %d", bot.calls)
	}
	if bot.last.ChatID != 42 {
		t.Errorf("Expected chat 42, got %d", bot.last.ChatID)
	}
	if bot.last.ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("Expected MarkdownV2, got %s", bot.last.ParseMode)
	}
}

func TestSend_Retries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantErr   bool
		wantCalls int
	}{
		{"recovers", 2, false, 3},
		{"gives up", 5, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{failures: tt.failures}
			err := newClient(bot, 1, 3, time.Millisecond).Send(sampleResult())
			if (err != nil) != tt.wantErr {
				t.Errorf("Send error = %v, wantErr %v", err, tt.wantErr)
			}
			if bot.calls != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, bot.calls)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	if _, err := NewClient("token", "not-a-number", 3, time.Second); err == nil {
		t.Error("Expected error for invalid chat ID")
	}
}
