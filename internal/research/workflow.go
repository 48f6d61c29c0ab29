// Package research is the product research workflow: identify the product
// behind a link, gather evidence from three sources in parallel, summarize
// sentiment, write a report, then answer follow-up questions about it.
package research

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/scout/internal/graph"
	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/scraper"
	"github.com/MikeSquared-Agency/scout/internal/state"
	"github.com/MikeSquared-Agency/scout/internal/tavily"
)

// Step names.
const (
	StepParseLink      = "parse_link"
	StepFallbackParse  = "fallback_parse"
	StepResearchAmazon = "researcher_amazon"
	StepResearchReddit = "researcher_reddit"
	StepResearchWeb    = "researcher_web"
	StepHarvest        = "harvest_reviews"
	StepReport         = "generate_report"
	StepChat           = "chat"
	StepTools          = "tools"
	StepCompact        = "summarize_conversation"
)

// LLM is the language-model collaborator.
type LLM interface {
	Chat(ctx context.Context, messages []openai.Message, tools []openai.Tool) (*openai.Message, error)
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Searcher is the search collaborator.
type Searcher interface {
	Search(ctx context.Context, r tavily.Request) ([]tavily.Result, error)
}

// PageFetcher is the page retrieval collaborator.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*scraper.Page, error)
}

type Options struct {
	// CompactThreshold is the history length above which a chat turn is
	// followed by compaction.
	CompactThreshold int
	// CompactKeep is how many of the most recent turns compaction keeps.
	CompactKeep int
	MaxSteps    int
	StepTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.CompactThreshold <= 0 {
		o.CompactThreshold = 5
	}
	if o.CompactKeep <= 0 {
		o.CompactKeep = 2
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = 25
	}
	return o
}

// Workflow holds the collaborators every step calls.
type Workflow struct {
	llm     LLM
	search  Searcher
	fetcher PageFetcher
	opts    Options
	logger  *slog.Logger
}

func NewWorkflow(llm LLM, search Searcher, fetcher PageFetcher, opts Options, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Workflow{
		llm:     llm,
		search:  search,
		fetcher: fetcher,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

var researchers = []string{StepResearchAmazon, StepResearchReddit, StepResearchWeb}

// Graph wires the steps together.
func (w *Workflow) Graph() *graph.Graph {
	return graph.New().
		AddStep(StepParseLink, w.parseLink).
		AddStep(StepFallbackParse, w.fallbackParse).
		AddStep(StepResearchAmazon, w.researcher(state.SourceAmazon)).
		AddStep(StepResearchReddit, w.researcher(state.SourceReddit)).
		AddStep(StepResearchWeb, w.researcher(state.SourceWeb)).
		AddStep(StepHarvest, w.harvestReviews).
		AddStep(StepReport, w.generateReport).
		AddStep(StepChat, w.chat).
		AddStep(StepTools, w.runTools).
		AddStep(StepCompact, w.summarizeConversation).
		SetConditionalEntry(entryRoute, map[string][]string{
			outcomeIntake: {StepParseLink},
			outcomeChat:   {StepChat},
		}).
		AddConditionalEdges(StepParseLink, intakeRoute, map[string][]string{
			outcomeResearch: researchers,
			outcomeFallback: {StepFallbackParse},
		}).
		AddEdge(StepFallbackParse, researchers...).
		AddEdge(StepResearchAmazon, StepHarvest).
		AddEdge(StepResearchReddit, StepHarvest).
		AddEdge(StepResearchWeb, StepHarvest).
		AddEdge(StepHarvest, StepReport).
		AddEdge(StepReport, graph.End).
		AddConditionalEdges(StepChat, chatRoute(w.opts.CompactThreshold), map[string][]string{
			outcomeTools:   {StepTools},
			outcomeCompact: {StepCompact},
			outcomeEnd:     {graph.End},
		}).
		AddEdge(StepTools, StepChat).
		AddEdge(StepCompact, graph.End)
}

// Compile validates the graph and returns an executor that checkpoints
// threads in cp.
func (w *Workflow) Compile(cp graph.Checkpointer) (*graph.Executor, error) {
	return w.Graph().Compile(
		graph.WithCheckpointer(cp),
		graph.WithMaxSteps(w.opts.MaxSteps),
		graph.WithStepTimeout(w.opts.StepTimeout),
		graph.WithLogger(w.logger),
	)
}
