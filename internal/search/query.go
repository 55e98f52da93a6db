package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/books-manager/books-manager-server/internal/domain"
)

// DefaultLimit caps the number of matches when Query.Limit is not set.
const DefaultLimit = 100

// Query selects books. Every non-empty field must match; an empty query
// matches the whole catalog.
type Query struct {
	Name   string // Words or word prefixes of the title, typos tolerated
	ISBN   string // Any run of digits within the ISBN
	Author string // Words or word prefixes of the author
	Limit  int
}

// Result lists matching ISBNs, best match first.
type Result struct {
	ISBNs []domain.ISBN
	Total uint64
}

// Search executes a query.
func (c *CatalogIndex) Search(ctx context.Context, q Query) (*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), limit, 0, false)
	// Relevance first, ISBN as a stable tie-breaker.
	req.SortBy([]string{"-_score", "_id"})

	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{Total: res.Total, ISBNs: make([]domain.ISBN, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		out.ISBNs = append(out.ISBNs, domain.ISBN(hit.ID))
	}
	return out, nil
}

// buildQuery constructs the Bleve query from q.
func buildQuery(q Query) query.Query {
	var queries []query.Query

	if name := strings.TrimSpace(q.Name); name != "" {
		queries = append(queries, textQuery("name", name, true))
	}

	if author := strings.TrimSpace(q.Author); author != "" {
		queries = append(queries, textQuery("author", author, false))
	}

	if isbn := strings.TrimSpace(q.ISBN); isbn != "" {
		if !isDigits(isbn) {
			// ISBNs are all digits, so nothing can contain this.
			return bleve.NewMatchNoneQuery()
		}
		wq := bleve.NewWildcardQuery("*" + isbn + "*")
		wq.SetField("isbn")
		queries = append(queries, wq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// textQuery matches a free-text field: full words with the highest boost,
// then the last word as a prefix for partial input, then typo-tolerant
// matches when fuzzy is set.
func textQuery(field, text string, fuzzy bool) query.Query {
	match := bleve.NewMatchQuery(text)
	match.SetField(field)
	match.SetOperator(query.MatchQueryOperatorAnd)
	match.SetBoost(3.0)
	textQueries := []query.Query{match}

	words := strings.Fields(strings.ToLower(text))
	if last := words[len(words)-1]; len([]rune(last)) >= 2 {
		prefix := bleve.NewPrefixQuery(last)
		prefix.SetField(field)
		prefix.SetBoost(0.5)

		if len(words) == 1 {
			textQueries = append(textQueries, prefix)
		} else {
			// Earlier words must still match in full.
			head := bleve.NewMatchQuery(strings.Join(words[:len(words)-1], " "))
			head.SetField(field)
			head.SetOperator(query.MatchQueryOperatorAnd)
			textQueries = append(textQueries, bleve.NewConjunctionQuery(head, prefix))
		}
	}

	if fuzzy {
		fq := bleve.NewMatchQuery(text)
		fq.SetField(field)
		fq.SetFuzziness(1)
		fq.SetOperator(query.MatchQueryOperatorAnd)
		fq.SetBoost(0.8)
		textQueries = append(textQueries, fq)
	}

	return bleve.NewDisjunctionQuery(textQueries...)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
