package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/MikeSquared-Agency/scout/internal/checkpoint"
	"github.com/MikeSquared-Agency/scout/internal/graph"
	"github.com/MikeSquared-Agency/scout/internal/hermes"
	"github.com/MikeSquared-Agency/scout/internal/scraper"
	"github.com/MikeSquared-Agency/scout/internal/slack"
	"github.com/MikeSquared-Agency/scout/internal/state"
	"github.com/MikeSquared-Agency/scout/internal/store"
)

var (
	// ErrNotConfigured means the model or search credentials are missing.
	ErrNotConfigured = errors.New("research service is not configured")
	// ErrNoReport means intake ran but no report could be produced.
	ErrNoReport      = errors.New("no report produced")
	ErrUnknownThread = errors.New("unknown thread")
	ErrThreadExists  = errors.New("thread already exists")
	ErrEmptyInput    = errors.New("empty input")
	ErrNoArchive     = errors.New("report archive is not configured")
)

// NoReportMessage is what callers show a user when ErrNoReport is returned.
const NoReportMessage = "We couldn't produce a report for this product. Please try again."

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Archive keeps completed reports.
type Archive interface {
	SaveReport(ctx context.Context, rec store.ReportRecord) (uuid.UUID, error)
	GetReport(ctx context.Context, id uuid.UUID) (*store.ReportRecord, error)
	ThreadReports(ctx context.Context, threadID string) ([]uuid.UUID, error)
}

// Notifier announces reports and threads follow-up answers under them.
type Notifier interface {
	PostReport(ctx context.Context, summary slack.ReportSummary) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Deps are the service's collaborators. LLM and Search are required for the
// service to run; the rest are optional.
type Deps struct {
	LLM      LLM
	Search   Searcher
	Fetcher  PageFetcher
	Threads  *checkpoint.Memory
	Archive  Archive
	Events   Publisher
	Notifier Notifier
}

// Result is the outcome of starting a thread.
type Result struct {
	ThreadID string
	ReportID string
	State    state.Session
}

// Reply is the outcome of a follow-up question.
type Reply struct {
	ThreadID  string
	Answer    string
	ToolCalls int
	Compacted bool
	State     state.Session
}

type Stats struct {
	Configured bool `json:"configured"`
	Threads    int  `json:"threads"`
}

// Service runs research threads on behalf of callers.
type Service struct {
	exec     *graph.Executor
	threads  *checkpoint.Memory
	archive  Archive
	events   Publisher
	notifier Notifier
	logger   *slog.Logger

	slackThreads *cache.Cache // thread ID -> slack message ts
}

func NewService(d Deps, opts Options, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Threads == nil {
		d.Threads = checkpoint.NewMemory(time.Hour)
	}
	if d.Fetcher == nil {
		d.Fetcher = scraper.NewFetcher(10*time.Second, "")
	}
	s := &Service{
		threads:      d.Threads,
		archive:      d.Archive,
		events:       d.Events,
		notifier:     d.Notifier,
		logger:       logger,
		slackThreads: cache.New(time.Hour, 10*time.Minute),
	}
	if d.LLM == nil || d.Search == nil {
		logger.Warn("research service not configured: model and search credentials are required")
		return s, nil
	}

	exec, err := NewWorkflow(d.LLM, d.Search, d.Fetcher, opts, logger).Compile(d.Threads)
	if err != nil {
		return nil, fmt.Errorf("compile workflow: %w", err)
	}
	s.exec = exec
	return s, nil
}

func (s *Service) Configured() bool {
	return s.exec != nil
}

func (s *Service) Stats() Stats {
	return Stats{Configured: s.Configured(), Threads: s.threads.Count()}
}

// Start researches link on a new thread. An empty threadID gets a generated
// one. Any failure to produce a report is reported as ErrNoReport and the
// thread is discarded so the caller can retry.
func (s *Service) Start(ctx context.Context, threadID, link string) (*Result, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, fmt.Errorf("product link: %w", ErrEmptyInput)
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if !s.threads.Reserve(threadID) {
		return nil, ErrThreadExists
	}

	started := time.Now()
	s.logger.Info("research started", "thread_id", threadID, "link", link)

	final, err := s.exec.Invoke(ctx, threadID, state.Update{ProductLink: state.Set(link)})
	if err == nil && final.FinalReport == "" {
		err = errors.New("run finished without a report")
	}
	if err != nil {
		s.threads.Delete(threadID)
		s.logger.Error("research failed", "thread_id", threadID, "link", link, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoReport, err)
	}

	s.logger.Info("research complete",
		"thread_id", threadID,
		"product", final.ProductQuery,
		"evidence", len(final.Evidence),
		"sentiment", final.Sentiment != nil,
		"duration", time.Since(started),
	)

	reportID := s.announceReport(ctx, threadID, final)
	return &Result{ThreadID: threadID, ReportID: reportID, State: final}, nil
}

// Ask adds a user question to an existing thread and runs the chat loop.
func (s *Service) Ask(ctx context.Context, threadID, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question: %w", ErrEmptyInput)
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	before, ok := s.threads.Load(threadID)
	if !ok || before.ProductLink == "" {
		return nil, ErrUnknownThread
	}

	turn := state.UserTurn(question)
	final, err := s.exec.Invoke(ctx, threadID, state.Update{
		History: state.HistoryUpdate{Append: []state.Turn{turn}},
	})
	if err != nil {
		s.logger.Error("chat failed", "thread_id", threadID, "error", err)
		return nil, fmt.Errorf("answer question: %w", err)
	}

	reply := &Reply{
		ThreadID:  threadID,
		Answer:    latestAnswer(final.History),
		ToolCalls: toolResultsAfter(final.History, turn.ID),
		Compacted: final.RunningSummary != before.RunningSummary,
		State:     final,
	}
	s.announceAnswer(ctx, question, reply)
	return reply, nil
}

// Thread returns the latest state of a thread.
func (s *Service) Thread(threadID string) (state.Session, error) {
	sess, ok := s.threads.Load(threadID)
	if !ok || sess.ProductLink == "" {
		return state.Session{}, ErrUnknownThread
	}
	return sess, nil
}

// Report loads an archived report.
func (s *Service) Report(ctx context.Context, id uuid.UUID) (*store.ReportRecord, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	return s.archive.GetReport(ctx, id)
}

// ThreadReports lists the archived report IDs of a thread, newest first.
func (s *Service) ThreadReports(ctx context.Context, threadID string) ([]uuid.UUID, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	return s.archive.ThreadReports(ctx, threadID)
}

// HandleResearchRequested is the NATS handler for scout.research.requested.
func (s *Service) HandleResearchRequested(subject string, data []byte) {
	var req hermes.ResearchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Error("failed to parse research request", "subject", subject, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.Start(ctx, req.ThreadID, req.ProductLink); err != nil {
		s.logger.Error("research request failed", "thread_id", req.ThreadID, "error", err)
	}
}

// announceReport archives the report, publishes the report event and posts
// to Slack. Every step is best effort. Returns the archive ID, if any.
func (s *Service) announceReport(ctx context.Context, threadID string, final state.Session) string {
	bySource := final.EvidenceBySource()
	counts := make(map[string]int, len(state.Sources))
	for _, src := range state.Sources {
		counts[string(src)] = bySource[src]
	}

	var reportID string
	if s.archive != nil {
		id, err := s.archive.SaveReport(ctx, store.ReportRecord{
			ThreadID:     threadID,
			ProductLink:  final.ProductLink,
			ProductQuery: final.ProductQuery,
			Report:       final.FinalReport,
			Sentiment:    final.Sentiment,
			Evidence:     final.Evidence,
		})
		if err != nil {
			s.logger.Error("failed to archive report", "thread_id", threadID, "error", err)
		} else {
			reportID = id.String()
		}
	}

	var rating float64
	var reviews int
	if final.Sentiment != nil {
		rating = final.Sentiment.AverageRating
		reviews = final.Sentiment.TotalReviews
	}

	if s.events != nil {
		if err := s.events.Publish(hermes.SubjectReportGenerated, hermes.ReportEvent{
			ThreadID:      threadID,
			ReportID:      reportID,
			ProductLink:   final.ProductLink,
			ProductQuery:  final.ProductQuery,
			EvidenceCount: counts,
			AverageRating: rating,
			GeneratedAt:   time.Now().UTC(),
		}); err != nil {
			s.logger.Error("failed to publish report event", "thread_id", threadID, "error", err)
		}
	}

	if s.notifier != nil {
		ts, err := s.notifier.PostReport(ctx, slack.ReportSummary{
			ThreadID:      threadID,
			ProductQuery:  final.ProductQuery,
			ProductLink:   final.ProductLink,
			EvidenceCount: counts,
			AverageRating: rating,
			TotalReviews:  reviews,
			Report:        final.FinalReport,
		})
		if err != nil {
			s.logger.Error("slack post failed", "thread_id", threadID, "error", err)
		} else {
			s.slackThreads.Set(threadID, ts, cache.DefaultExpiration)
		}
	}

	return reportID
}

func (s *Service) announceAnswer(ctx context.Context, question string, r *Reply) {
	if s.events != nil {
		if err := s.events.Publish(hermes.SubjectChatAnswered, hermes.ChatEvent{
			ThreadID:   r.ThreadID,
			Question:   question,
			Answer:     r.Answer,
			ToolCalls:  r.ToolCalls,
			Compacted:  r.Compacted,
			AnsweredAt: time.Now().UTC(),
		}); err != nil {
			s.logger.Error("failed to publish chat event", "thread_id", r.ThreadID, "error", err)
		}
	}

	if s.notifier == nil {
		return
	}
	ts, ok := s.slackThreads.Get(r.ThreadID)
	if !ok {
		return
	}
	text := fmt.Sprintf("*Q:* %s\n*A:* %s", question, r.Answer)
	if err := s.notifier.PostThread(ctx, ts.(string), text); err != nil {
		s.logger.Error("slack thread reply failed", "thread_id", r.ThreadID, "error", err)
	}
}

// latestAnswer returns the content of the most recent assistant turn that
// carries text.
func latestAnswer(history []state.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Role == state.RoleAssistant && !t.HasToolCalls() && t.Content != "" {
			return t.Content
		}
	}
	return ""
}

// toolResultsAfter counts tool results following the turn with the given
// ID. Zero if that turn has been compacted away.
func toolResultsAfter(history []state.Turn, turnID string) int {
	n, seen := 0, false
	for _, t := range history {
		if t.ID == turnID {
			seen = true
			continue
		}
		if seen && t.Role == state.RoleTool {
			n++
		}
	}
	return n
}
