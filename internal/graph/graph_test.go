package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/scout/internal/state"
)

func noop(context.Context, state.Session) (state.Update, error) {
	return state.Update{}, nil
}

func always(outcome string) RouteFunc {
	return func(state.Session) string { return outcome }
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Graph
		wantErr string
	}{
		{
			name: "valid",
			build: func() *Graph {
				return New().
					AddStep("a", noop).
					AddStep("b", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}}).
					AddEdge("a", "b").
					AddEdge("b", End)
			},
		},
		{
			name: "no entry",
			build: func() *Graph {
				return New().AddStep("a", noop).AddEdge("a", End)
			},
			wantErr: "no entry point",
		},
		{
			name: "unknown edge target",
			build: func() *Graph {
				return New().
					AddStep("a", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}}).
					AddEdge("a", "missing")
			},
			wantErr: "unknown target",
		},
		{
			name: "unknown routing outcome target",
			build: func() *Graph {
				return New().
					AddStep("a", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}}).
					AddConditionalEdges("a", always("x"), map[string][]string{"x": {"ghost"}})
			},
			wantErr: `unknown step "ghost"`,
		},
		{
			name: "step without successors",
			build: func() *Graph {
				return New().
					AddStep("a", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}})
			},
			wantErr: "no outgoing edge",
		},
		{
			name: "unreachable step",
			build: func() *Graph {
				return New().
					AddStep("a", noop).
					AddStep("orphan", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}}).
					AddEdge("a", End).
					AddEdge("orphan", End)
			},
			wantErr: `"orphan" is unreachable`,
		},
		{
			name: "duplicate step",
			build: func() *Graph {
				return New().
					AddStep("a", noop).
					AddStep("a", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}}).
					AddEdge("a", End)
			},
			wantErr: "registered twice",
		},
		{
			name: "static and conditional edges",
			build: func() *Graph {
				return New().
					AddStep("a", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}}).
					AddEdge("a", End).
					AddConditionalEdges("a", always("x"), map[string][]string{"x": {End}})
			},
			wantErr: "both static and conditional",
		},
		{
			name: "reserved name",
			build: func() *Graph {
				return New().
					AddStep(End, noop).
					AddStep("a", noop).
					SetConditionalEntry(always("go"), map[string][]string{"go": {"a"}}).
					AddEdge("a", End)
			},
			wantErr: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("expected ErrInvalidGraph, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompile_RejectsInvalidGraph(t *testing.T) {
	_, err := New().AddStep("a", noop).Compile()
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}
}
