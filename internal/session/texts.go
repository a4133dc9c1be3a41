package session

import (
	"errors"
	"sort"
	"strings"

	"github.com/ashureev/helpdesk-widget/internal/domain"
)

// Canned transcript texts.
const (
	WelcomeText = "Halo! Saya adalah chatbot UPA TIK UNJA. Silakan tanyakan apa saja tentang layanan " +
		"informasi Universitas Jambi. Sebelumnya, apa kamu sudah memeriksa halaman website FAQ. " +
		"Periksa terlebih dahulu pada Akses Cepat di bawah ini ya.."
	WelcomeCategory = "Greeting"

	ErrorCategory = "Error"

	TimeoutText            = "Koneksi timeout. Silakan coba lagi."
	ServiceUnavailableText = "Server sedang tidak tersedia. Silakan coba lagi nanti."
	NetworkErrorText       = "Maaf, tidak dapat terhubung ke server."

	OfflineWarningText = "Koneksi ke server terputus. Menggunakan mode offline."
	FeedbackThanksText = "Terima kasih atas feedbacknya!"

	VoiceUnsupportedText = "Maaf, browser kamu tidak mendukung input suara. Silakan gunakan keyboard untuk mengetik pertanyaan kamu."
	VoiceErrorText       = "Maaf, terjadi kesalahan pada input suara. Silakan coba lagi atau gunakan keyboard."

	FAQCategory = "Validasi"

	TranscriptTitle = "Chat History - UPA TIK UNJA"
)

var (
	// ErrVoiceUnsupported is reported by voice adapters when no recognizer is available.
	ErrVoiceUnsupported = errors.New("voice input unsupported")
	// ErrUnknownFAQCategory is returned by OpenFAQ for a category without a link.
	ErrUnknownFAQCategory = errors.New("unknown FAQ category")
	// ErrInvalidFeedback is returned for a sign other than positive or negative.
	ErrInvalidFeedback = errors.New("invalid feedback sign")
)

// FAQLink is a quick-access FAQ page.
type FAQLink struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

var faqLinks = map[string]FAQLink{
	"akademik": {
		Category: "akademik",
		Name:     "FAQ Akademik",
		URL:      "https://abcd.unja.ac.id/faq-per-category/eyJpdiI6ImFXcmR6RnZPbWxXUnlVMzVVVXRIMnc9PSIsInZhbHVlIjoiMkVFT0c2dG00SHFKN0EwSVdlaEVKUT09IiwibWFjIjoiYjRlNGMzNmJiMWYyZGJiMjU2YzYzODc5OThlMGI4NzYwNDE5NjY5YmIxMWViMzgwZDI3M2FjZmE2MzBkZGEwYyIsInRhZyI6IiJ9",
	},
	"kemahasiswaan": {
		Category: "kemahasiswaan",
		Name:     "FAQ Kemahasiswaan",
		URL:      "https://abcd.unja.ac.id/faq-per-category/eyJpdiI6IlVhSVI0OXFUNFRzY0V5Q1lNclhRVnc9PSIsInZhbHVlIjoiMzZiSEhoSUNKbUl2NHI5NGdZK1JNdz09IiwibWFjIjoiOWNmOTk2YzU3MGMwZWZmNzgyMGI2MzVjOTAyNTIxOGQyYjFkM2JkYzI4NWEwZTk1ZWNkOTliZmQwZDg1YTE3ZSIsInRhZyI6IiJ9",
	},
	"kepegawaian": {
		Category: "kepegawaian",
		Name:     "FAQ Kepegawaian",
		URL:      "https://abcd.unja.ac.id/faq-per-category/eyJpdiI6InFLQ3VSVi9xUkFLR3hmbXB0SVNQMXc9PSIsInZhbHVlIjoickRMVWQ1TUlyK3FVSUthY2UzYVFRUT09IiwibWFjIjoiYzE1N2FmMTE3NDNiZTZlYmNiMjUxMTY4Zjk4OTVhMjk1NGY0MWQ4MDkyZTI5MWRmNDg1Y2YzYjk4NDE1YzM3YSIsInRhZyI6IiJ9",
	},
	"keuangan": {
		Category: "keuangan",
		Name:     "FAQ Keuangan",
		URL:      "https://abcd.unja.ac.id/faq-per-category/eyJpdiI6IjB1ZXN3MHdCVnE3QVQzUEhTK09UQ2c9PSIsInZhbHVlIjoibGhoZ0ZYMlJtZk1NVGZwOHdtdWo2QT09IiwibWFjIjoiNjc4NGQ1N2I2ZGFjMzY5YjM3ZDdiMzJjNjY4ZjVkYzgxNzljZGQ2NjFhZjI4MDY2YzA3OGFmMTA4MzRmNWJkYSIsInRhZyI6IiJ9",
	},
}

// LookupFAQ returns the FAQ link for a category, case-insensitively.
func LookupFAQ(category string) (FAQLink, bool) {
	link, ok := faqLinks[strings.ToLower(strings.TrimSpace(category))]
	return link, ok
}

// FAQLinks returns all FAQ links ordered by category.
func FAQLinks() []FAQLink {
	links := make([]FAQLink, 0, len(faqLinks))
	for _, l := range faqLinks {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Category < links[j].Category })
	return links
}

func faqConfirmation(link FAQLink) string {
	return "Membuka " + link.Name + " di tab baru. Jika ada pertanyaan lain setelah membaca FAQ, silakan tanyakan kepada saya! 😊"
}

// failureText maps a transport failure onto the bot turn shown for it.
func failureText(reason domain.FailureReason) string {
	switch reason {
	case domain.FailureTimeout:
		return TimeoutText
	case domain.FailureServiceUnavailable:
		return ServiceUnavailableText
	default:
		return NetworkErrorText
	}
}
