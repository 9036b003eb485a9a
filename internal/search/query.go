package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Limits on one search request.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params configures a search within one dataset.
type Params struct {
	DatasetID string
	Query     string
	// Scores restricts hits to these entry scores; empty means any.
	Scores []int
	Limit  int
	Offset int
}

// Result is one page of hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is one matching entry.
type Hit struct {
	EntryID   string  `json:"entry_id"`
	Text      string  `json:"text"`
	Score     *int    `json:"score,omitempty"`
	Relevance float64 `json:"relevance"`
	Highlight string  `json:"highlight,omitempty"`
}

// Search runs a full-text query scoped to one dataset.
func (s *SearchIndex) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), limit, max(params.Offset, 0), false)
	req.Fields = []string{"text", "score"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("text")

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{EntryID: h.ID, Relevance: h.Score}
		if text, ok := h.Fields["text"].(string); ok {
			hit.Text = text
		}
		if sc, ok := h.Fields["score"].(float64); ok && sc > 0 {
			v := int(sc)
			hit.Score = &v
		}
		if frags, ok := h.Fragments["text"]; ok && len(frags) > 0 {
			hit.Highlight = frags[0]
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery combines the dataset scope, the text match and the score filter.
func buildQuery(params Params) query.Query {
	scope := bleve.NewTermQuery(params.DatasetID)
	scope.SetField("dataset_id")

	conj := bleve.NewConjunctionQuery(scope)

	if q := strings.TrimSpace(params.Query); q != "" {
		match := bleve.NewMatchQuery(q)
		match.SetField("text")
		match.SetOperator(query.MatchQueryOperatorAnd)

		fuzzy := bleve.NewMatchQuery(q)
		fuzzy.SetField("text")
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(0.5)

		prefix := bleve.NewPrefixQuery(strings.ToLower(lastWord(q)))
		prefix.SetField("text")
		prefix.SetBoost(0.3)

		conj.AddQuery(bleve.NewDisjunctionQuery(match, fuzzy, prefix))
	}

	if len(params.Scores) > 0 {
		scores := make([]query.Query, len(params.Scores))
		for i, sc := range params.Scores {
			v := float64(sc)
			inclusive := true
			nq := bleve.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
			nq.SetField("score")
			scores[i] = nq
		}
		conj.AddQuery(bleve.NewDisjunctionQuery(scores...))
	}

	return conj
}

func lastWord(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// DeleteDataset removes every document of the dataset and returns how many
// were removed.
func (s *SearchIndex) DeleteDataset(ctx context.Context, datasetID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const pageSize = 1000

	scope := bleve.NewTermQuery(datasetID)
	scope.SetField("dataset_id")

	removed := 0
	for {
		req := bleve.NewSearchRequestOptions(scope, pageSize, 0, false)
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return removed, fmt.Errorf("find dataset documents: %w", err)
		}
		if len(res.Hits) == 0 {
			return removed, nil
		}

		batch := s.index.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := s.index.Batch(batch); err != nil {
			return removed, fmt.Errorf("delete dataset documents: %w", err)
		}
		removed += len(res.Hits)
	}
}

// DatasetDocumentCount returns the number of indexed entries in the dataset.
func (s *SearchIndex) DatasetDocumentCount(ctx context.Context, datasetID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scope := bleve.NewTermQuery(datasetID)
	scope.SetField("dataset_id")

	res, err := s.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(scope, 0, 0, false))
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}
