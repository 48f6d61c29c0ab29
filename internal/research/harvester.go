package research

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/state"
)

// Character budgets for evidence passed to the model.
const (
	harvestBudget = 10000
	reportBudget  = 20000
)

// llmSentiment is the loosely typed shape models actually return; counts and
// ratings often come back as floats.
type llmSentiment struct {
	PositiveTopics     []string           `json:"positive_topics"`
	NegativeTopics     []string           `json:"negative_topics"`
	RatingDistribution map[string]float64 `json:"rating_distribution"`
	AverageRating      float64            `json:"average_rating"`
	TotalReviews       float64            `json:"total_reviews"`
}

// harvestReviews extracts structured sentiment from the evidence log. No
// evidence, a failed call or an unparseable reply all yield an absent
// summary; the report is written without one.
func (w *Workflow) harvestReviews(ctx context.Context, s state.Session) (state.Update, error) {
	absent := state.Update{Sentiment: state.Set[*state.SentimentSummary](nil)}

	if len(s.Evidence) == 0 {
		w.logger.Info("no evidence to analyze")
		return absent, nil
	}

	raw, err := w.llm.Complete(ctx, "", fmt.Sprintf(sentimentPrompt, truncate(evidenceText(s.Evidence), harvestBudget)))
	if err != nil {
		w.logger.Error("sentiment extraction failed", "error", err)
		return absent, nil
	}

	summary, err := parseSentiment(raw)
	if err != nil {
		w.logger.Error("failed to parse sentiment response", "error", err, "raw", raw)
		return absent, nil
	}

	w.logger.Info("sentiment extracted",
		"evidence", len(s.Evidence),
		"positive", len(summary.PositiveTopics),
		"negative", len(summary.NegativeTopics),
		"average_rating", summary.AverageRating,
	)
	return state.Update{Sentiment: state.Set(summary)}, nil
}

func parseSentiment(raw string) (*state.SentimentSummary, error) {
	var resp llmSentiment
	if err := json.Unmarshal([]byte(openai.StripCodeFence(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse sentiment: %w", err)
	}

	out := &state.SentimentSummary{
		PositiveTopics: resp.PositiveTopics,
		NegativeTopics: resp.NegativeTopics,
		AverageRating:  resp.AverageRating,
		TotalReviews:   int(math.Round(resp.TotalReviews)),
	}
	if resp.RatingDistribution != nil {
		out.RatingDistribution = make(map[string]int, len(resp.RatingDistribution))
		for stars, n := range resp.RatingDistribution {
			out.RatingDistribution[stars] = int(math.Round(n))
		}
	}
	return out, nil
}

// evidenceText renders the log as one "[source] content" line per record.
func evidenceText(evidence []state.Evidence) string {
	lines := make([]string, len(evidence))
	for i, e := range evidence {
		lines[i] = fmt.Sprintf("[%s] %s", e.Source, e.Content)
	}
	return strings.Join(lines, "\n")
}
