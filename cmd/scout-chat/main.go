// Command scout-chat researches a product link in the terminal and answers
// follow-up questions about the report.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MikeSquared-Agency/scout/internal/checkpoint"
	"github.com/MikeSquared-Agency/scout/internal/config"
	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/render"
	"github.com/MikeSquared-Agency/scout/internal/research"
	"github.com/MikeSquared-Agency/scout/internal/scraper"
	"github.com/MikeSquared-Agency/scout/internal/tavily"
)

func main() {
	verbose := flag.Bool("v", false, "log workflow steps to stderr")
	flag.Parse()

	cfg := config.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.OpenAIAPIKey == "" || cfg.TavilyAPIKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY and TAVILY_API_KEY are required")
		os.Exit(1)
	}

	svc, err := research.NewService(research.Deps{
		LLM:     openai.NewClient(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL, cfg.LLMTimeout),
		Search:  tavily.NewClient(cfg.TavilyAPIKey, cfg.TavilyURL, cfg.SearchTimeout),
		Fetcher: scraper.NewFetcher(cfg.FetchTimeout, cfg.UserAgent),
		Threads: checkpoint.NewMemory(cfg.ThreadTTL),
	}, research.Options{
		CompactThreshold: cfg.CompactThreshold,
		CompactKeep:      cfg.CompactKeep,
		MaxSteps:         cfg.MaxSteps,
		StepTimeout:      cfg.StepTimeout,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{
		svc:    svc,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		width:  render.Width(int(os.Stdout.Fd())),
		styled: render.Styled(int(os.Stdout.Fd())),
	}
	err = s.run(ctx, flag.Arg(0))
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
	case errors.Is(err, research.ErrNoReport):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	svc    *research.Service
	in     *bufio.Reader
	out    io.Writer
	width  int
	styled bool
}

func (s *session) run(ctx context.Context, link string) error {
	if link == "" {
		var err error
		if link, err = s.prompt("Product link: "); err != nil {
			return err
		}
	}

	fmt.Fprintln(s.out, "Researching, this can take a minute...")
	res, err := s.svc.Start(ctx, "", link)
	if errors.Is(err, research.ErrNoReport) && ctx.Err() == nil {
		fmt.Fprintln(s.out, research.NoReportMessage)
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, render.Markdown(res.State.FinalReport, s.width, s.styled))
	fmt.Fprintln(s.out, "Ask a follow-up question, /report to show the report again, /exit to quit.")

	for {
		line, err := s.prompt("> ")
		if err != nil {
			return err
		}
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/report":
			sess, err := s.svc.Thread(res.ThreadID)
			if err != nil {
				return err
			}
			fmt.Fprint(s.out, render.Markdown(sess.FinalReport, s.width, s.styled))
			continue
		}

		reply, err := s.svc.Ask(ctx, res.ThreadID, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(s.out, "Sorry, that failed: %v\n", err)
			continue
		}
		fmt.Fprint(s.out, render.Markdown(reply.Answer, s.width, s.styled))
	}
}

func (s *session) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
