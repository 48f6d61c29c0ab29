package state

import "fmt"

// Value is an optional field of an Update. The zero Value means "field not
// present in this update"; Set(v) replaces the field, even with a zero v.
type Value[T any] struct {
	V     T
	Valid bool
}

func Set[T any](v T) Value[T] {
	return Value[T]{V: v, Valid: true}
}

// HistoryUpdate appends new turns and applies reconciliation removals by turn
// ID. Removals are applied before appends.
type HistoryUpdate struct {
	Append []Turn
	Remove []string
}

func (h HistoryUpdate) empty() bool {
	return len(h.Append) == 0 && len(h.Remove) == 0
}

// Update is a partial session update returned by a step.
type Update struct {
	ProductLink    Value[string]
	ProductQuery   Value[string]
	Evidence       []Evidence
	Sentiment      Value[*SentimentSummary]
	FinalReport    Value[string]
	History        HistoryUpdate
	RunningSummary Value[string]
}

// IsEmpty reports whether the update sets no field at all.
func (u Update) IsEmpty() bool {
	return !u.ProductLink.Valid &&
		!u.ProductQuery.Valid &&
		len(u.Evidence) == 0 &&
		!u.Sentiment.Valid &&
		!u.FinalReport.Valid &&
		u.History.empty() &&
		!u.RunningSummary.Valid
}

// Merge applies update to current according to each field's policy and
// returns the resulting session. current is never modified.
func Merge(current Session, update Update) (Session, error) {
	if update.IsEmpty() {
		return current, nil
	}
	next := current.Clone()

	if update.ProductLink.Valid {
		if current.ProductLink != "" && current.ProductLink != update.ProductLink.V {
			return current, fmt.Errorf("product link: %w", ErrImmutableField)
		}
		next.ProductLink = update.ProductLink.V
	}
	if update.ProductQuery.Valid {
		next.ProductQuery = update.ProductQuery.V
	}
	if len(update.Evidence) > 0 {
		merged := make([]Evidence, 0, len(next.Evidence)+len(update.Evidence))
		merged = append(merged, next.Evidence...)
		for _, e := range update.Evidence {
			merged = append(merged, e.clone())
		}
		next.Evidence = merged
	}
	if update.Sentiment.Valid {
		next.Sentiment = nil
		if update.Sentiment.V != nil {
			next.Sentiment = update.Sentiment.V.clone()
		}
	}
	if update.FinalReport.Valid {
		next.FinalReport = update.FinalReport.V
	}
	if !update.History.empty() {
		next.History = reconcile(next.History, update.History)
	}
	if update.RunningSummary.Valid {
		next.RunningSummary = update.RunningSummary.V
	}
	return next, nil
}

func reconcile(history []Turn, h HistoryUpdate) []Turn {
	out := history
	if len(h.Remove) > 0 {
		requested := make(map[string]bool, len(h.Remove))
		for _, id := range h.Remove {
			requested[id] = true
		}
		remove := PairSafeRemovals(history, requested)
		out = make([]Turn, 0, len(history))
		for _, t := range history {
			if !remove[t.ID] {
				out = append(out, t)
			}
		}
	}
	for _, t := range h.Append {
		out = append(out, t.clone())
	}
	return out
}
