package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/state"
	"github.com/MikeSquared-Agency/scout/internal/tavily"
)

// SearchToolName is the name the chat model calls the search tool by.
const SearchToolName = "tavily_search_results_json"

const chatSearchResults = 3

var searchTool = openai.FunctionTool(SearchToolName, searchToolDescription, json.RawMessage(searchToolParameters))

// chat answers the latest user turn, grounded in the report and the running
// summary. The reply may request tool calls instead of answering.
func (w *Workflow) chat(ctx context.Context, s state.Session) (state.Update, error) {
	report := s.FinalReport
	if report == "" {
		report = noReportText
	}

	messages := make([]openai.Message, 0, len(s.History)+1)
	messages = append(messages, openai.Message{
		Role:    "system",
		Content: fmt.Sprintf(chatSystemPrompt, SearchToolName, report, s.RunningSummary),
	})
	messages = append(messages, toMessages(s.History)...)

	reply, err := w.llm.Chat(ctx, messages, []openai.Tool{searchTool})
	if err != nil {
		return state.Update{}, fmt.Errorf("chat: %w", err)
	}

	calls := make([]state.ToolCall, 0, len(reply.ToolCalls))
	for _, tc := range reply.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		calls = append(calls, state.ToolCall{ID: id, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	w.logger.Info("chat reply", "tool_calls", len(calls), "history", len(s.History))
	return state.Update{
		History: state.HistoryUpdate{Append: []state.Turn{state.AssistantTurn(reply.Content, calls...)}},
	}, nil
}

type toolArgs struct {
	Query string `json:"query"`
}

type toolResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// runTools answers every tool call of the latest assistant turn, in
// parallel. Each call always gets a result turn, an error result if need be,
// so no call is left unpaired.
func (w *Workflow) runTools(ctx context.Context, s state.Session) (state.Update, error) {
	last, ok := s.LastTurn()
	if !ok || !last.HasToolCalls() {
		return state.Update{}, nil
	}

	results := make([]state.Turn, len(last.ToolCalls))
	var g errgroup.Group
	for i, call := range last.ToolCalls {
		i, call := i, call
		g.Go(func() error {
			results[i] = state.ToolResultTurn(call.ID, w.executeTool(ctx, call))
			return nil
		})
	}
	g.Wait()

	return state.Update{History: state.HistoryUpdate{Append: results}}, nil
}

func (w *Workflow) executeTool(ctx context.Context, call state.ToolCall) string {
	if call.Name != SearchToolName {
		return toolError(fmt.Sprintf("unknown tool %q", call.Name))
	}

	var args toolArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return toolError("tool arguments must include a non-empty query")
	}

	found, err := w.search.Search(ctx, tavily.Request{
		Query:      args.Query,
		MaxResults: chatSearchResults,
		Depth:      tavily.DepthAdvanced,
	})
	if err != nil {
		w.logger.Warn("chat search failed", "query", args.Query, "error", err)
		return toolError(err.Error())
	}

	out := make([]toolResult, len(found))
	for i, r := range found {
		out[i] = toolResult{Title: r.Title, URL: r.URL, Content: r.Content}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return toolError(err.Error())
	}
	w.logger.Info("tool executed", "tool", call.Name, "query", args.Query, "results", len(out))
	return string(b)
}

func toolError(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// toMessages converts conversation turns to chat-completions messages.
func toMessages(history []state.Turn) []openai.Message {
	out := make([]openai.Message, 0, len(history))
	for _, t := range history {
		msg := openai.Message{Role: string(t.Role), Content: t.Content}
		switch t.Role {
		case state.RoleAssistant:
			for _, c := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:       c.ID,
					Type:     "function",
					Function: openai.FunctionCall{Name: c.Name, Arguments: c.Arguments},
				})
			}
		case state.RoleTool:
			msg.ToolCallID = t.ToolCallID
		}
		out = append(out, msg)
	}
	return out
}
