package hermes

import "time"

const (
	// SubjectResearchRequested carries ResearchRequest payloads that start a
	// new research thread.
	SubjectResearchRequested = "scout.research.requested"
	SubjectReportGenerated   = "scout.report.generated"
	SubjectChatAnswered      = "scout.chat.answered"
)

type ResearchRequest struct {
	ThreadID    string `json:"thread_id,omitempty"`
	ProductLink string `json:"product_link"`
}

// ReportEvent is emitted once a thread's report has been written.
type ReportEvent struct {
	ThreadID      string         `json:"thread_id"`
	ReportID      string         `json:"report_id,omitempty"`
	ProductLink   string         `json:"product_link"`
	ProductQuery  string         `json:"product_query"`
	EvidenceCount map[string]int `json:"evidence_count"`
	AverageRating float64        `json:"average_rating,omitempty"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// ChatEvent is emitted after every answered follow-up question.
type ChatEvent struct {
	ThreadID   string    `json:"thread_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	ToolCalls  int       `json:"tool_calls"`
	Compacted  bool      `json:"compacted"`
	AnsweredAt time.Time `json:"answered_at"`
}
