package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/scout/internal/state"
)

const defaultMaxSteps = 25

// Checkpointer keeps the latest session of each thread.
type Checkpointer interface {
	Load(threadID string) (state.Session, bool)
	Save(threadID string, s state.Session)
}

// StepError identifies the step that failed a run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxSteps bounds the number of supersteps in one run.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithStepTimeout bounds each step's context. Zero means no bound.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stepTimeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithCheckpointer(c Checkpointer) Option {
	return func(e *Executor) { e.checkpointer = c }
}

// Executor runs a validated Graph.
type Executor struct {
	graph        *Graph
	maxSteps     int
	stepTimeout  time.Duration
	logger       *slog.Logger
	checkpointer Checkpointer

	threads sync.Map // thread ID -> *sync.Mutex
}

// Compile validates the graph and returns an executor for it.
func (g *Graph) Compile(opts ...Option) (*Executor, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		graph:    g,
		maxSteps: defaultMaxSteps,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Invoke resumes a thread: it loads the thread's latest session (or starts an
// empty one), merges input into it, and runs the graph from the entry point.
// The session is checkpointed after every superstep. Invocations on the same
// thread are serialized.
func (e *Executor) Invoke(ctx context.Context, threadID string, input state.Update) (state.Session, error) {
	if e.checkpointer == nil {
		return state.Session{}, errors.New("invoke: executor has no checkpointer")
	}
	if threadID == "" {
		return state.Session{}, errors.New("invoke: empty thread id")
	}
	unlock := e.lock(threadID)
	defer unlock()

	current, _ := e.checkpointer.Load(threadID)
	s, err := state.Merge(current, input)
	if err != nil {
		return current, fmt.Errorf("invoke %s: %w", threadID, err)
	}
	e.checkpointer.Save(threadID, s)
	return e.run(ctx, threadID, s)
}

// Snapshot returns the latest checkpointed session of a thread.
func (e *Executor) Snapshot(threadID string) (state.Session, bool) {
	if e.checkpointer == nil {
		return state.Session{}, false
	}
	return e.checkpointer.Load(threadID)
}

// Run executes the graph once on s without checkpointing.
func (e *Executor) Run(ctx context.Context, s state.Session) (state.Session, error) {
	return e.run(ctx, "", s)
}

func (e *Executor) run(ctx context.Context, threadID string, s state.Session) (state.Session, error) {
	frontier, err := resolve("entry", *e.graph.entry, s)
	if err != nil {
		return s, err
	}
	frontier = dedupe(frontier)

	for step := 0; len(frontier) > 0; step++ {
		if step >= e.maxSteps {
			return s, fmt.Errorf("%w: %d supersteps", ErrStepLimit, e.maxSteps)
		}
		if err := ctx.Err(); err != nil {
			return s, err
		}

		var stepErr error
		s, stepErr = e.superstep(ctx, frontier, s)
		if threadID != "" {
			e.checkpointer.Save(threadID, s)
		}
		if stepErr != nil {
			return s, stepErr
		}

		var next []string
		for _, name := range frontier {
			targets, err := e.graph.successors(name, s)
			if err != nil {
				return s, err
			}
			next = append(next, targets...)
		}
		frontier = dedupe(next)
	}
	return s, nil
}

type branchResult struct {
	step   string
	update state.Update
	err    error
}

// superstep runs every step of the frontier concurrently and merges their
// updates one at a time, in completion order, after all of them finished.
// A failing branch never cancels its siblings.
func (e *Executor) superstep(ctx context.Context, frontier []string, s state.Session) (state.Session, error) {
	if len(frontier) == 1 {
		name := frontier[0]
		update, err := e.runStep(ctx, name, s.Clone())
		if err != nil {
			return s, err
		}
		merged, err := state.Merge(s, update)
		if err != nil {
			return s, &StepError{Step: name, Err: err}
		}
		return merged, nil
	}

	results := make(chan branchResult, len(frontier))
	var g errgroup.Group
	for _, name := range frontier {
		name := name
		view := s.Clone()
		g.Go(func() error {
			update, err := e.runStep(ctx, name, view)
			results <- branchResult{step: name, update: update, err: err}
			return err
		})
	}

	var errs []error
	for range frontier {
		r := <-results
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		merged, err := state.Merge(s, r.update)
		if err != nil {
			errs = append(errs, &StepError{Step: r.step, Err: err})
			continue
		}
		s = merged
	}
	if err := g.Wait(); err != nil && len(errs) == 0 {
		errs = append(errs, err)
	}
	return s, errors.Join(errs...)
}

func (e *Executor) runStep(ctx context.Context, name string, view state.Session) (update state.Update, err error) {
	fn := e.graph.steps[name]
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			e.logger.Error("step failed", "step", name, "error", err, "duration", time.Since(start))
			err = &StepError{Step: name, Err: err}
			return
		}
		e.logger.Debug("step completed", "step", name, "duration", time.Since(start))
	}()

	return fn(ctx, view)
}

func (e *Executor) lock(threadID string) func() {
	mu, _ := e.threads.LoadOrStore(threadID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0:0]
	for _, n := range names {
		if n == End || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
