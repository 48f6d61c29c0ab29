package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/scout/internal/state"
)

// summarizeConversation folds older turns into the running summary and asks
// the merge to delete them. When the older turns all belong to a tool group
// that the kept tail still needs, the summary is refreshed and nothing is
// deleted. If the model call fails the history is left as it is and
// compaction is retried after the next chat turn.
func (w *Workflow) summarizeConversation(ctx context.Context, s state.Session) (state.Update, error) {
	older := len(s.History) - w.opts.CompactKeep
	if older <= 0 {
		return state.Update{}, nil
	}
	cutoff := compactCutoff(s.History, w.opts.CompactKeep)
	span := s.History[:cutoff]
	if cutoff == 0 {
		span = s.History[:older]
	}

	prompt := compactFreshPrompt
	if s.RunningSummary != "" {
		prompt = fmt.Sprintf(compactExistingPrompt, s.RunningSummary)
	}
	prompt += transcript(span)

	summary, err := w.llm.Complete(ctx, compactSystemPrompt, prompt)
	if err != nil {
		w.logger.Warn("conversation summary failed, keeping history", "error", err, "turns", len(s.History))
		return state.Update{}, nil
	}

	var remove []string
	for _, t := range s.History[:cutoff] {
		remove = append(remove, t.ID)
	}

	w.logger.Info("compacted conversation", "removed", cutoff, "kept", len(s.History)-cutoff)
	return state.Update{
		RunningSummary: state.Set(summary),
		History:        state.HistoryUpdate{Remove: remove},
	}, nil
}

// compactCutoff returns how many leading turns to delete so that keep turns
// remain. The cutoff moves back past tool results so a kept result never
// loses the assistant turn that requested it.
func compactCutoff(history []state.Turn, keep int) int {
	cutoff := len(history) - keep
	if cutoff <= 0 {
		return 0
	}
	for cutoff > 0 && cutoff < len(history) && history[cutoff].Role == state.RoleTool {
		cutoff--
	}
	return cutoff
}

// transcript renders turns as plain text for the summarizer.
func transcript(turns []state.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		switch t.Role {
		case state.RoleUser:
			fmt.Fprintf(&sb, "User: %s\n", t.Content)
		case state.RoleAssistant:
			if t.Content != "" {
				fmt.Fprintf(&sb, "Assistant: %s\n", t.Content)
			}
			for _, c := range t.ToolCalls {
				fmt.Fprintf(&sb, "Assistant called %s with %s\n", c.Name, c.Arguments)
			}
		case state.RoleTool:
			fmt.Fprintf(&sb, "Tool result: %s\n", t.Content)
		}
	}
	return sb.String()
}
