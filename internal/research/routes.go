package research

import (
	"github.com/MikeSquared-Agency/scout/internal/graph"
	"github.com/MikeSquared-Agency/scout/internal/state"
)

// Routing outcomes.
const (
	outcomeIntake   = "intake"
	outcomeChat     = "chat"
	outcomeResearch = "research"
	outcomeFallback = "fallback"
	outcomeTools    = "tools"
	outcomeCompact  = "compact"
	outcomeEnd      = "end"
)

// entryRoute starts a fresh session at intake and a continuing one at chat.
func entryRoute(s state.Session) string {
	if len(s.History) > 0 {
		return outcomeChat
	}
	return outcomeIntake
}

func intakeRoute(s state.Session) string {
	if s.HasProductQuery() {
		return outcomeResearch
	}
	return outcomeFallback
}

func chatRoute(threshold int) graph.RouteFunc {
	return func(s state.Session) string {
		if last, ok := s.LastTurn(); ok && last.Role == state.RoleAssistant && last.HasToolCalls() {
			return outcomeTools
		}
		if len(s.History) > threshold {
			return outcomeCompact
		}
		return outcomeEnd
	}
}
