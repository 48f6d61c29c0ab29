package research

import (
	"context"

	"github.com/MikeSquared-Agency/scout/internal/graph"
	"github.com/MikeSquared-Agency/scout/internal/state"
	"github.com/MikeSquared-Agency/scout/internal/tavily"
)

const researchResults = 5

// researcher searches one kind of source. A failed search contributes no
// evidence instead of failing the run.
func (w *Workflow) researcher(src state.Source) graph.StepFunc {
	return func(ctx context.Context, s state.Session) (state.Update, error) {
		query := researchQuery(s, src)

		results, err := w.search.Search(ctx, tavily.Request{
			Query:      query,
			MaxResults: researchResults,
			Depth:      tavily.DepthAdvanced,
		})
		if err != nil {
			w.logger.Warn("research search failed", "source", src, "error", err)
			return state.Update{}, nil
		}

		evidence := make([]state.Evidence, 0, len(results))
		for _, r := range results {
			evidence = append(evidence, state.Evidence{
				Source:   src,
				Content:  r.Content,
				URL:      r.URL,
				Metadata: map[string]string{"title": r.Title},
			})
		}

		w.logger.Info("research complete", "source", src, "evidence", len(evidence))
		return state.Update{Evidence: evidence}, nil
	}
}

func researchQuery(s state.Session, src state.Source) string {
	base := s.ProductQuery
	if base == "" {
		base = s.ProductLink
	}
	if base == "" {
		base = "product"
	}
	return base + queryQualifiers[src]
}
