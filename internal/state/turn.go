package state

import (
	"fmt"

	"github.com/google/uuid"
)

// Role tags the variant of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by an assistant turn.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one message in the conversation history. Only assistant turns carry
// ToolCalls and only tool turns carry ToolCallID.
type Turn struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func UserTurn(content string) Turn {
	return Turn{ID: uuid.NewString(), Role: RoleUser, Content: content}
}

func AssistantTurn(content string, calls ...ToolCall) Turn {
	return Turn{ID: uuid.NewString(), Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func ToolResultTurn(callID, content string) Turn {
	return Turn{ID: uuid.NewString(), Role: RoleTool, Content: content, ToolCallID: callID}
}

// HasToolCalls reports whether the turn is an assistant turn requesting tools.
func (t Turn) HasToolCalls() bool {
	return t.Role == RoleAssistant && len(t.ToolCalls) > 0
}

func (t Turn) clone() Turn {
	if t.ToolCalls != nil {
		t.ToolCalls = append([]ToolCall(nil), t.ToolCalls...)
	}
	return t
}

// ValidateHistory checks the pairing invariant: every tool-result turn must
// answer a tool call issued by an earlier assistant turn in the same history.
func ValidateHistory(history []Turn) error {
	issued := make(map[string]bool)
	for i, t := range history {
		switch t.Role {
		case RoleAssistant:
			for _, c := range t.ToolCalls {
				issued[c.ID] = true
			}
		case RoleTool:
			if !issued[t.ToolCallID] {
				return fmt.Errorf("turn %d (%s): tool result %q has no preceding tool call", i, t.ID, t.ToolCallID)
			}
		}
	}
	return nil
}

// PairSafeRemovals narrows a set of turn IDs to remove so that no tool call is
// separated from its results. If any member of a pair group (an assistant
// turn with tool calls plus the tool turns answering it) is kept, the whole
// group is kept.
func PairSafeRemovals(history []Turn, remove map[string]bool) map[string]bool {
	out := make(map[string]bool, len(remove))
	for id := range remove {
		out[id] = true
	}

	owner := make(map[string]string) // tool call ID -> assistant turn ID
	for _, t := range history {
		for _, c := range t.ToolCalls {
			owner[c.ID] = t.ID
		}
	}
	groups := make(map[string][]string) // assistant turn ID -> member turn IDs
	for _, t := range history {
		if t.HasToolCalls() {
			groups[t.ID] = append(groups[t.ID], t.ID)
		}
		if t.Role == RoleTool {
			if a, ok := owner[t.ToolCallID]; ok {
				groups[a] = append(groups[a], t.ID)
			}
		}
	}

	for _, members := range groups {
		kept := false
		for _, id := range members {
			if !out[id] {
				kept = true
				break
			}
		}
		if kept {
			for _, id := range members {
				delete(out, id)
			}
		}
	}
	return out
}
