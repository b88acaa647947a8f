package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetrieveQuery_Validate(t *testing.T) {
	high := 1.7
	tests := []struct {
		name     string
		query    *RetrieveQuery
		wantErr  error
		wantTopK int
	}{
		{"empty query", &RetrieveQuery{Query: ""}, ErrEmptyQuery, 0},
		{"blank query", &RetrieveQuery{Query: "  \n\t "}, ErrEmptyQuery, 0},
		{"sets default top_k", &RetrieveQuery{Query: "x"}, nil, 6},
		{"caps top_k", &RetrieveQuery{Query: "x", TopK: 500}, nil, 50},
		{"keeps top_k", &RetrieveQuery{Query: "x", TopK: 3}, nil, 3},
		{"clamps lambda", &RetrieveQuery{Query: "x", Lambda: &high}, nil, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(6, 50)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
			if tt.query.Lambda != nil && (*tt.query.Lambda < 0 || *tt.query.Lambda > 1) {
				t.Errorf("lambda not clamped: %v", *tt.query.Lambda)
			}
		})
	}
}

func TestRetrieveQuery_ValidateTrims(t *testing.T) {
	q := &RetrieveQuery{Query: "  what is the fee?  "}
	if err := q.Validate(6, 50); err != nil {
		t.Fatal(err)
	}
	if q.Query != "what is the fee?" {
		t.Errorf("query not trimmed: %q", q.Query)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	err := fmt.Errorf("ingest: %w", &StageError{Stage: StateEmbedding, Err: ErrProviderUnavailable})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Error("errors.Is should reach the sentinel through StageError")
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StateEmbedding {
		t.Errorf("errors.As: got %+v", se)
	}
	if !IsTransient(err) {
		t.Error("provider failure should be transient")
	}
	if IsInputError(err) {
		t.Error("provider failure is not an input error")
	}
}

func TestPageRange(t *testing.T) {
	r := PageRange{First: 2, Last: 3}
	if !r.Covers(2) || !r.Covers(3) || r.Covers(1) || r.Covers(4) {
		t.Errorf("Covers wrong for %v", r)
	}
	if r.String() != "pp.2-3" {
		t.Errorf("String() = %q", r.String())
	}
	if (PageRange{First: 4, Last: 4}).String() != "p.4" {
		t.Error("single page range should render as p.N")
	}
}

func TestChunkID(t *testing.T) {
	fp := "0123456789abcdef0123456789abcdef"
	if got := ChunkID(fp, 7); got != "0123456789abcdef_7" {
		t.Errorf("ChunkID = %q", got)
	}
	if got := ChunkID("abc", 0); got != "abc_0" {
		t.Errorf("ChunkID short = %q", got)
	}
}
