package research

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/state"
)

func TestChat_GroundsOnReportAndSummary(t *testing.T) {
	llm := newFakeLLM()
	w := NewWorkflow(llm, newFakeSearch(0, 0, 0), &fakeFetcher{}, Options{}, discardLogger())

	s := state.Session{
		FinalReport:    "REPORT BODY",
		RunningSummary: "they asked about price",
		History:        []state.Turn{state.AssistantTurn("REPORT BODY"), state.UserTurn("How long does the battery last?")},
	}
	u, err := w.chat(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.History.Append) != 1 || u.History.Append[0].Content != "It lasts about ten hours." {
		t.Fatalf("expected the answer appended, got %+v", u.History.Append)
	}

	msgs := llm.chatRequests[0]
	if len(msgs) != 3 {
		t.Fatalf("expected system plus 2 history messages, got %d", len(msgs))
	}
	sys := msgs[0]
	if sys.Role != "system" || !strings.Contains(sys.Content, "REPORT BODY") || !strings.Contains(sys.Content, "they asked about price") {
		t.Errorf("unexpected system message: %q", sys.Content)
	}
	if msgs[2].Role != "user" || msgs[2].Content != "How long does the battery last?" {
		t.Errorf("unexpected last message: %+v", msgs[2])
	}

	tools := llm.chatTools[0]
	if len(tools) != 1 || tools[0].Function.Name != SearchToolName {
		t.Errorf("expected the search tool to be offered, got %+v", tools)
	}
}

func TestChat_NoReport(t *testing.T) {
	llm := newFakeLLM()
	w := NewWorkflow(llm, newFakeSearch(0, 0, 0), &fakeFetcher{}, Options{}, discardLogger())

	if _, err := w.chat(context.Background(), state.Session{History: []state.Turn{state.UserTurn("hi")}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sys := llm.chatRequests[0][0].Content; !strings.Contains(sys, noReportText) {
		t.Errorf("expected placeholder report text, got %q", sys)
	}
}

func TestChat_RecordsToolCalls(t *testing.T) {
	llm := newFakeLLM()
	llm.chatReplies = []*openai.Message{{
		Role: "assistant",
		ToolCalls: []openai.ToolCall{
			{ID: "call_1", Type: "function", Function: openai.FunctionCall{Name: SearchToolName, Arguments: `{"query":"acme price"}`}},
			{Type: "function", Function: openai.FunctionCall{Name: SearchToolName, Arguments: `{"query":"acme v2"}`}},
		},
	}}
	w := NewWorkflow(llm, newFakeSearch(0, 0, 0), &fakeFetcher{}, Options{}, discardLogger())

	u, err := w.chat(context.Background(), state.Session{History: []state.Turn{state.UserTurn("price?")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	turn := u.History.Append[0]
	if len(turn.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(turn.ToolCalls))
	}
	if turn.ToolCalls[0].ID != "call_1" || turn.ToolCalls[0].Arguments != `{"query":"acme price"}` {
		t.Errorf("unexpected first call: %+v", turn.ToolCalls[0])
	}
	if !strings.HasPrefix(turn.ToolCalls[1].ID, "call_") {
		t.Errorf("expected a generated call id, got %q", turn.ToolCalls[1].ID)
	}
}

func TestChat_ModelError(t *testing.T) {
	llm := newFakeLLM()
	llm.chatErr = errors.New("rate limited")
	w := NewWorkflow(llm, newFakeSearch(0, 0, 0), &fakeFetcher{}, Options{}, discardLogger())

	if _, err := w.chat(context.Background(), state.Session{History: []state.Turn{state.UserTurn("hi")}}); err == nil {
		t.Error("expected chat to fail")
	}
}

func TestRunTools_PairsEveryCall(t *testing.T) {
	search := newFakeSearch(0, 0, 0)
	w := NewWorkflow(newFakeLLM(), search, &fakeFetcher{}, Options{}, discardLogger())

	calls := []state.ToolCall{
		{ID: "c1", Name: SearchToolName, Arguments: `{"query":"acme price"}`},
		{ID: "c2", Name: "calculator", Arguments: `{}`},
		{ID: "c3", Name: SearchToolName, Arguments: `not json`},
	}
	s := state.Session{History: []state.Turn{state.UserTurn("price?"), state.AssistantTurn("", calls...)}}

	u, err := w.runTools(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := u.History.Append
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, r := range got {
		if r.Role != state.RoleTool || r.ToolCallID != calls[i].ID {
			t.Errorf("result %d: expected tool result for %s, got %+v", i, calls[i].ID, r)
		}
	}

	var hits []toolResult
	if err := json.Unmarshal([]byte(got[0].Content), &hits); err != nil || len(hits) != 1 {
		t.Errorf("expected search hits for c1, got %q", got[0].Content)
	}
	for _, r := range got[1:] {
		if !strings.Contains(r.Content, `"error"`) {
			t.Errorf("expected an error result, got %q", r.Content)
		}
	}

	if len(search.queries) != 1 || search.queries[0].MaxResults != chatSearchResults {
		t.Errorf("expected one chat search, got %+v", search.queries)
	}

	merged, err := state.Merge(s, u)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := state.ValidateHistory(merged.History); err != nil {
		t.Errorf("expected a valid history, got %v", err)
	}
}

func TestRunTools_SearchFailureBecomesResult(t *testing.T) {
	search := newFakeSearch(0, 0, 0)
	search.err = errors.New("quota exceeded")
	w := NewWorkflow(newFakeLLM(), search, &fakeFetcher{}, Options{}, discardLogger())

	s := state.Session{History: []state.Turn{state.AssistantTurn("", state.ToolCall{ID: "c1", Name: SearchToolName, Arguments: `{"query":"x"}`})}}
	u, err := w.runTools(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.History.Append) != 1 || !strings.Contains(u.History.Append[0].Content, "quota exceeded") {
		t.Errorf("expected an error result, got %+v", u.History.Append)
	}
}

func TestToMessages(t *testing.T) {
	call := state.ToolCall{ID: "c1", Name: SearchToolName, Arguments: `{"query":"q"}`}
	msgs := toMessages([]state.Turn{
		state.UserTurn("q"),
		state.AssistantTurn("", call),
		state.ToolResultTurn("c1", "[]"),
	})

	if msgs[0].Role != "user" || msgs[0].Content != "q" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if len(msgs[1].ToolCalls) != 1 || msgs[1].ToolCalls[0].Type != "function" || msgs[1].ToolCalls[0].Function.Name != SearchToolName {
		t.Errorf("unexpected assistant message: %+v", msgs[1])
	}
	if msgs[2].Role != "tool" || msgs[2].ToolCallID != "c1" {
		t.Errorf("unexpected tool message: %+v", msgs[2])
	}
}
