package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/scout/internal/scraper"
	"github.com/MikeSquared-Agency/scout/internal/state"
)

const (
	titleFallbackLen  = 100
	placeholderQuery  = "Product from URL"
	marketplaceMarker = "/dp/"
)

// parseLink fetches the product page and turns its title into a product
// name. Every failure returns an update without a product query, which sends
// the run to fallbackParse.
func (w *Workflow) parseLink(ctx context.Context, s state.Session) (state.Update, error) {
	link := s.ProductLink

	page, err := w.fetcher.Fetch(ctx, link)
	if err != nil {
		w.logger.Warn("product page fetch failed", "link", link, "error", err)
		return state.Update{}, nil
	}
	if !page.OK() {
		w.logger.Warn("product page returned non-success status", "link", link, "status", page.StatusCode)
		return state.Update{}, nil
	}

	titles, err := scraper.ParseTitles(page.Body)
	if err != nil {
		w.logger.Warn("product page parse failed", "link", link, "error", err)
		return state.Update{}, nil
	}
	title := titles.Best()
	if title == "" {
		w.logger.Info("no title found on product page", "link", link)
		return state.Update{}, nil
	}

	name := w.productName(ctx, title)
	w.logger.Info("identified product", "link", link, "product", name)
	return state.Update{ProductQuery: state.Set(name)}, nil
}

// productName asks the model for a bare product name, falling back to the
// truncated title when the model is unavailable.
func (w *Workflow) productName(ctx context.Context, title string) string {
	fallback := truncate(title, titleFallbackLen)
	if w.llm == nil {
		return fallback
	}
	name, err := w.llm.Complete(ctx, "", fmt.Sprintf(productNamePrompt, title))
	if err != nil {
		w.logger.Warn("product name extraction failed, using raw title", "error", err)
		return fallback
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	return name
}

func (w *Workflow) fallbackParse(_ context.Context, s state.Session) (state.Update, error) {
	query := guessProductQuery(s.ProductLink)
	w.logger.Info("guessed product from link", "link", s.ProductLink, "product", query)
	return state.Update{ProductQuery: state.Set(query)}, nil
}

// guessProductQuery derives a product query from the link alone. It never
// returns an empty string.
func guessProductQuery(link string) string {
	if i := strings.Index(link, marketplaceMarker); i >= 0 {
		id := cutAny(link[i+len(marketplaceMarker):], "/?#")
		if id != "" {
			return "Amazon Product " + id
		}
	}

	segment := link
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	segment = cutAny(segment, "?#")
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	segment = strings.Join(strings.Fields(segment), " ")
	if segment == "" {
		return placeholderQuery
	}
	return segment
}

// cutAny returns s up to the first occurrence of any byte in chars.
func cutAny(s, chars string) string {
	if i := strings.IndexAny(s, chars); i >= 0 {
		return s[:i]
	}
	return s
}

// truncate bounds s to n characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
