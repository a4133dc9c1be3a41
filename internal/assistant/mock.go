package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/helpdesk-widget/internal/domain"
)

// MockRule maps a keyword to a canned answer.
type MockRule struct {
	Keywords   []string
	Text       string
	Category   string
	Confidence float64
}

// DefaultMockRules covers the service areas the helpdesk usually gets asked about.
var DefaultMockRules = []MockRule{
	{
		Keywords:   []string{"jam", "layanan", "buka"},
		Text:       "Layanan UPA TIK buka Senin sampai Jumat pukul 08:00-16:00 WIB.",
		Category:   "Layanan",
		Confidence: 0.92,
	},
	{
		Keywords:   []string{"password", "sandi", "lupa"},
		Text:       "Untuk reset kata sandi akun SSO, silakan gunakan menu Lupa Password di halaman login atau datang ke loket UPA TIK.",
		Category:   "Akun",
		Confidence: 0.88,
	},
	{
		Keywords:   []string{"wifi", "internet", "jaringan"},
		Text:       "Akses wifi kampus menggunakan akun SSO. Jika gagal terhubung, pastikan kata sandi sudah diperbarui.",
		Category:   "Jaringan",
		Confidence: 0.81,
	},
	{
		Keywords:   []string{"krs", "nilai", "siakad"},
		Text:       "Pertanyaan seputar KRS dan nilai dapat dilihat pada FAQ Akademik atau melalui portal SIAKAD.",
		Category:   "Akademik",
		Confidence: 0.74,
	},
	{
		Keywords:   []string{"halo", "hai", "pagi", "siang"},
		Text:       "Halo! Ada yang bisa saya bantu terkait layanan UPA TIK?",
		Category:   "Greeting",
		Confidence: 0.95,
	},
}

const (
	mockFallbackText     = "Maaf, saya belum menemukan jawaban yang sesuai. Silakan periksa FAQ atau hubungi UPA TIK."
	mockFallbackCategory = "Unknown"
	mockFallbackScore    = 0.3
)

// Mock answers locally from keyword rules, for demos and offline development.
type Mock struct {
	rules  []MockRule
	delay  time.Duration
	logger *slog.Logger
}

// NewMock creates a mock assistant. A nil rules slice uses DefaultMockRules.
func NewMock(rules []MockRule, delay time.Duration, logger *slog.Logger) *Mock {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = DefaultMockRules
	}
	return &Mock{rules: rules, delay: delay, logger: logger.With("component", "assistant_mock")}
}

// Ask matches the utterance against the rules after the configured delay.
func (m *Mock) Ask(ctx context.Context, utterance string) domain.AssistantReply {
	start := time.Now()
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.FailureReply(classifyError(ctx, ctx.Err()))
		case <-timer.C:
		}
	}

	text := strings.ToLower(utterance)
	elapsed := time.Since(start).Seconds()
	for _, rule := range m.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return domain.SuccessReply(rule.Text, rule.Category, rule.Confidence, domain.Float(elapsed))
			}
		}
	}
	m.logger.Debug("no mock rule matched", "utterance", utterance)
	return domain.SuccessReply(mockFallbackText, mockFallbackCategory, mockFallbackScore, domain.Float(elapsed))
}

// SendFeedback only logs.
func (m *Mock) SendFeedback(_ context.Context, sign domain.FeedbackSign, messageID int64) {
	m.logger.Info("feedback received", "sign", sign, "message_id", messageID)
}

// CheckHealth always reports healthy.
func (m *Mock) CheckHealth(context.Context) bool {
	return true
}
