package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/state"
)

func (w *Workflow) generateReport(ctx context.Context, s state.Session) (state.Update, error) {
	if !s.HasProductQuery() {
		return state.Update{}, errors.New("generate report: no product query")
	}

	analysis := "{}"
	if s.Sentiment != nil {
		b, err := json.Marshal(s.Sentiment)
		if err != nil {
			return state.Update{}, fmt.Errorf("marshal sentiment: %w", err)
		}
		analysis = string(b)
	}

	w.logger.Info("generating report", "product", s.ProductQuery, "evidence", len(s.Evidence))

	prompt := fmt.Sprintf(reportPrompt, s.ProductQuery, truncate(evidenceText(s.Evidence), reportBudget), analysis)
	raw, err := w.llm.Complete(ctx, "", prompt)
	if err != nil {
		return state.Update{}, fmt.Errorf("generate report: %w", err)
	}

	report := openai.StripCodeFence(raw)
	if report == "" {
		return state.Update{}, errors.New("generate report: empty report")
	}

	return state.Update{
		FinalReport: state.Set(report),
		History:     state.HistoryUpdate{Append: []state.Turn{state.AssistantTurn(report)}},
	}, nil
}
