package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/scout/internal/openai"
	"github.com/MikeSquared-Agency/scout/internal/scraper"
	"github.com/MikeSquared-Agency/scout/internal/state"
	"github.com/MikeSquared-Agency/scout/internal/tavily"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLLM answers Complete by prompt kind and Chat through a script.
type fakeLLM struct {
	mu sync.Mutex

	productName string
	sentiment   string
	report      string
	summary     string
	failKinds   map[string]bool

	chatReplies []*openai.Message
	chatErr     error

	prompts      map[string][]string
	chatRequests [][]openai.Message
	chatTools    [][]openai.Tool
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		productName: "Acme Widget Pro",
		sentiment:   "```json\n" + `{"positive_topics":["battery"],"negative_topics":["price"],"rating_distribution":{"5":60,"4":20,"3":10,"2":5,"1":5},"average_rating":4.3,"total_reviews":120}` + "\n```",
		report:      "```markdown\n## 1. Product Summary\nProduct Name: Acme Widget Pro\n```",
		summary:     "The user asked about battery life.",
		failKinds:   map[string]bool{},
		prompts:     map[string][]string{},
	}
}

func promptKind(system, prompt string) string {
	switch {
	case system == compactSystemPrompt:
		return "summary"
	case strings.HasPrefix(prompt, "Extract the precise product name"):
		return "name"
	case strings.HasPrefix(prompt, "Analyze the following product research evidence"):
		return "sentiment"
	case strings.HasPrefix(prompt, "You are a product research analyst"):
		return "report"
	}
	return "unknown"
}

func (f *fakeLLM) Complete(_ context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := promptKind(system, prompt)
	f.prompts[kind] = append(f.prompts[kind], prompt)
	if f.failKinds[kind] {
		return "", errors.New("model unavailable")
	}
	switch kind {
	case "name":
		return f.productName, nil
	case "sentiment":
		return f.sentiment, nil
	case "report":
		return f.report, nil
	case "summary":
		return f.summary, nil
	}
	return "", fmt.Errorf("unexpected prompt %q", prompt)
}

func (f *fakeLLM) Chat(_ context.Context, messages []openai.Message, tools []openai.Tool) (*openai.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chatRequests = append(f.chatRequests, messages)
	f.chatTools = append(f.chatTools, tools)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if len(f.chatReplies) == 0 {
		return &openai.Message{Role: "assistant", Content: "It lasts about ten hours."}, nil
	}
	reply := f.chatReplies[0]
	f.chatReplies = f.chatReplies[1:]
	return reply, nil
}

func (f *fakeLLM) calls(kind string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts[kind]...)
}

// fakeSearch returns n results per source, recognised by the query
// qualifiers.
type fakeSearch struct {
	mu      sync.Mutex
	counts  map[state.Source]int
	fail    map[state.Source]bool
	err     error
	queries []tavily.Request
}

func newFakeSearch(amazon, reddit, web int) *fakeSearch {
	return &fakeSearch{
		counts: map[state.Source]int{state.SourceAmazon: amazon, state.SourceReddit: reddit, state.SourceWeb: web},
		fail:   map[state.Source]bool{},
	}
}

func sourceOf(query string) (state.Source, bool) {
	for src, q := range queryQualifiers {
		if strings.HasSuffix(query, q) {
			return src, true
		}
	}
	return "", false
}

func (f *fakeSearch) Search(_ context.Context, r tavily.Request) ([]tavily.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, r)

	if f.err != nil {
		return nil, f.err
	}
	src, ok := sourceOf(r.Query)
	if !ok {
		return []tavily.Result{{Title: "Chat hit", URL: "https://chat.example", Content: "$199 at most stores"}}, nil
	}
	if f.fail[src] {
		return nil, errors.New("search unavailable")
	}
	out := make([]tavily.Result, f.counts[src])
	for i := range out {
		out[i] = tavily.Result{
			Title:   fmt.Sprintf("%s title %d", src, i),
			URL:     fmt.Sprintf("https://%s.example/%d", src, i),
			Content: fmt.Sprintf("%s review %d", src, i),
		}
	}
	return out, nil
}

type fakeFetcher struct {
	page *scraper.Page
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*scraper.Page, error) {
	return f.page, f.err
}

func htmlPage(title string) *scraper.Page {
	return &scraper.Page{StatusCode: 200, Body: []byte("<html><head><title>" + title + "</title></head><body></body></html>")}
}
