// Package state defines the session record threaded through every workflow
// step and the per-field policies used to merge partial updates into it.
package state

import "errors"

// ErrImmutableField is returned by Merge when an update tries to change a
// field that may only be set once.
var ErrImmutableField = errors.New("immutable field already set")

// Source identifies where a piece of evidence came from.
type Source string

const (
	SourceAmazon Source = "amazon"
	SourceReddit Source = "reddit"
	SourceWeb    Source = "web"
)

// Sources lists every evidence source in a stable order.
var Sources = []Source{SourceAmazon, SourceReddit, SourceWeb}

// Evidence is one unit of retrieved third-party content about the product.
type Evidence struct {
	Source   Source            `json:"source"`
	Content  string            `json:"content"`
	URL      string            `json:"url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SentimentSummary is the structured sentiment extracted from the evidence.
type SentimentSummary struct {
	PositiveTopics     []string       `json:"positive_topics"`
	NegativeTopics     []string       `json:"negative_topics"`
	RatingDistribution map[string]int `json:"rating_distribution"`
	AverageRating      float64        `json:"average_rating"`
	TotalReviews       int            `json:"total_reviews"`
}

// Session is the state of one conversation thread.
//
// Field policies:
//
//	ProductLink     set once
//	ProductQuery    replace
//	Evidence        append
//	Sentiment       replace
//	FinalReport     replace
//	History         append with reconciliation (removals by turn ID)
//	RunningSummary  replace
type Session struct {
	ProductLink    string            `json:"product_link"`
	ProductQuery   string            `json:"product_query,omitempty"`
	Evidence       []Evidence        `json:"evidence,omitempty"`
	Sentiment      *SentimentSummary `json:"sentiment,omitempty"`
	FinalReport    string            `json:"final_report,omitempty"`
	History        []Turn            `json:"history,omitempty"`
	RunningSummary string            `json:"running_summary,omitempty"`
}

// HasProductQuery reports whether intake identified the product.
func (s Session) HasProductQuery() bool {
	return s.ProductQuery != ""
}

// LastTurn returns the most recent turn, if any.
func (s Session) LastTurn() (Turn, bool) {
	if len(s.History) == 0 {
		return Turn{}, false
	}
	return s.History[len(s.History)-1], true
}

// EvidenceBySource counts evidence records per source.
func (s Session) EvidenceBySource() map[Source]int {
	counts := make(map[Source]int, len(Sources))
	for _, e := range s.Evidence {
		counts[e.Source]++
	}
	return counts
}

// Clone returns a deep copy of the session so that callers holding the copy
// can never alias slices or maps owned by another holder.
func (s Session) Clone() Session {
	out := s
	if s.Evidence != nil {
		out.Evidence = make([]Evidence, len(s.Evidence))
		for i, e := range s.Evidence {
			out.Evidence[i] = e.clone()
		}
	}
	if s.Sentiment != nil {
		out.Sentiment = s.Sentiment.clone()
	}
	if s.History != nil {
		out.History = make([]Turn, len(s.History))
		for i, t := range s.History {
			out.History[i] = t.clone()
		}
	}
	return out
}

func (e Evidence) clone() Evidence {
	if e.Metadata != nil {
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}

func (s *SentimentSummary) clone() *SentimentSummary {
	out := *s
	out.PositiveTopics = append([]string(nil), s.PositiveTopics...)
	out.NegativeTopics = append([]string(nil), s.NegativeTopics...)
	if s.RatingDistribution != nil {
		out.RatingDistribution = make(map[string]int, len(s.RatingDistribution))
		for k, v := range s.RatingDistribution {
			out.RatingDistribution[k] = v
		}
	}
	return &out
}
