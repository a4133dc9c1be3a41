package assistant

// LogicalFailureText is shown when the backend answers but reports a non-success status.
const LogicalFailureText = "Maaf, terjadi kesalahan. Silakan coba lagi."

// LogicalFailureCategory is the category attached to LogicalFailureText and to local error turns.
const LogicalFailureCategory = "Error"

// statusSuccess is the only status value the backend uses for a matched answer.
const statusSuccess = "success"

type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse mirrors the backend's /api/chat payload.
type chatResponse struct {
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	Category     string   `json:"category"`
	Confidence   float64  `json:"confidence"`
	ResponseTime *float64 `json:"response_time"`
	Timestamp    string   `json:"timestamp"`
	Error        string   `json:"error,omitempty"`
}

type feedbackRequest struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

type healthResponse struct {
	Status       string  `json:"status"`
	ChatbotReady bool    `json:"chatbot_ready"`
	ChatbotError *string `json:"chatbot_error"`
}

// BackendStats is the backend's own /api/stats payload, passed through untouched.
type BackendStats map[string]any
