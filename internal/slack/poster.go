package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

const excerptLimit = 600

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// ReportSummary is what gets announced when a research report is ready.
type ReportSummary struct {
	ThreadID      string
	ProductQuery  string
	ProductLink   string
	EvidenceCount map[string]int
	AverageRating float64
	TotalReviews  int
	Report        string
}

// PostReport announces a finished report. Returns the message timestamp,
// which follow-up answers are threaded under.
func (p *Poster) PostReport(ctx context.Context, summary ReportSummary) (string, error) {
	text := formatReportMessage(summary)

	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "Thread `" + summary.ThreadID + "`",
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	p.logger.Info("posted report to slack", "ts", ts, "thread_id", summary.ThreadID)
	return ts, nil
}

// PostThread posts a threaded reply to a message.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

func formatReportMessage(s ReportSummary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Report ready:* %s\n", s.ProductQuery)
	fmt.Fprintf(&sb, "*Link:* %s\n", s.ProductLink)

	total := 0
	for _, src := range []string{"amazon", "reddit", "web"} {
		total += s.EvidenceCount[src]
	}
	fmt.Fprintf(&sb, "*Evidence:* %d (amazon %d | reddit %d | web %d)\n",
		total, s.EvidenceCount["amazon"], s.EvidenceCount["reddit"], s.EvidenceCount["web"])

	if s.AverageRating > 0 {
		fmt.Fprintf(&sb, "*Rating:* %.1f / 5.0 across ~%d reviews\n", s.AverageRating, s.TotalReviews)
	} else {
		sb.WriteString("_No sentiment summary for this product._\n")
	}

	if excerpt := reportExcerpt(s.Report, excerptLimit); excerpt != "" {
		sb.WriteString("\n")
		sb.WriteString(excerpt)
	}

	return sb.String()
}

// reportExcerpt returns the report's first section, cut at the second
// heading or numbered section and bounded to limit runes.
func reportExcerpt(report string, limit int) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(report), "\n") {
		trimmed := strings.TrimSpace(line)
		if len(lines) > 0 && startsSection(trimmed) {
			break
		}
		lines = append(lines, line)
	}
	excerpt := strings.TrimSpace(strings.Join(lines, "\n"))

	if r := []rune(excerpt); len(r) > limit {
		excerpt = strings.TrimSpace(string(r[:limit])) + "…"
	}
	return excerpt
}

func startsSection(line string) bool {
	line = strings.TrimLeft(line, "#* ")
	return strings.HasPrefix(line, "2.")
}
