package search

import "github.com/hyperjump/pdfrag/internal/models"

// ProcessQuery trims the query and applies the retriever's top-k and lambda defaults.
func (r *Retriever) ProcessQuery(query *models.RetrieveQuery) error {
	if err := query.Validate(r.topK, r.maxTopK); err != nil {
		return err
	}
	if query.Lambda == nil {
		l := r.lambda
		query.Lambda = &l
	}
	return nil
}
