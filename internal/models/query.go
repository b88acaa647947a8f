package models

import "strings"

// RetrieveQuery is a question against one document.
type RetrieveQuery struct {
	Query  string   `json:"query"`
	TopK   int      `json:"top_k,omitempty"`
	Lambda *float64 `json:"lambda,omitempty"` // relevance/diversity trade-off; nil uses the configured default
}

// Validate trims the query and normalizes TopK and Lambda.
// Returns ErrEmptyQuery if the query is blank; TopK defaults to defaultTopK and is capped at maxTopK.
func (q *RetrieveQuery) Validate(defaultTopK, maxTopK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	if q.Lambda != nil {
		l := ClampLambda(*q.Lambda)
		q.Lambda = &l
	}
	return nil
}

// ClampLambda limits an MMR lambda to [0, 1].
func ClampLambda(l float64) float64 {
	if l < 0 {
		return 0
	}
	if l > 1 {
		return 1
	}
	return l
}
