// Package cli provides output helpers for the pdfrag command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per retrieved chunk.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetRunes = 240

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// AskResult is what the ask command prints: the retrieval and, when requested, the answer.
type AskResult struct {
	Document  *models.IngestResponse   `json:"document"`
	Retrieval *models.RetrieveResponse `json:"retrieval"`
	Answer    string                   `json:"answer,omitempty"`
}

// WriteIngestResult writes an ingest outcome to w.
func WriteIngestResult(w io.Writer, resp *models.IngestResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	state := "indexed"
	if resp.Cached {
		state = "already indexed"
	}
	if format == OutputCompact {
		_, err := fmt.Fprintf(w, "%s\t%s\t%d pages\t%d chunks\t%s\n",
			resp.Fingerprint, resp.ExtractionMode, resp.PageCount, resp.ChunkCount, state)
		return err
	}
	_, err := fmt.Fprintf(w, "Document %s (%s)\n  pages: %d\n  chunks: %d\n  extraction: %s\n",
		resp.Fingerprint, state, resp.PageCount, resp.ChunkCount, resp.ExtractionMode)
	return err
}

// WriteRetrieveResults writes retrieved chunks to w in selection order.
func WriteRetrieveResults(w io.Writer, resp *models.RetrieveResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, c := range resp.Chunks {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", c.Rank+1, c.Score, c.Chunk.Pages, search.Snippet(c.Chunk.Text, 80))
		}
		return nil
	default:
		writeRetrieveText(w, resp)
		return nil
	}
}

func writeRetrieveText(w io.Writer, resp *models.RetrieveResponse) {
	fmt.Fprintf(w, "\n%d passages for %q in %dms\n\n", len(resp.Chunks), resp.Query, resp.QueryTime)
	for _, c := range resp.Chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s\n", c.Rank+1, c.Score, c.Chunk.Pages)
		fmt.Fprintf(w, "\n%s\n\n", search.Snippet(c.Chunk.Text, snippetRunes))
	}
}

// WriteAskResult writes the outcome of an ask command.
func WriteAskResult(w io.Writer, res *AskResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Answer != "" {
		fmt.Fprintf(w, "%s\n", res.Answer)
		if format == OutputText && len(res.Retrieval.Chunks) > 0 {
			fmt.Fprint(w, "\nSources:")
			for _, c := range res.Retrieval.Chunks {
				fmt.Fprintf(w, " [%s]", c.Chunk.Pages)
			}
			fmt.Fprintln(w)
		}
		return nil
	}
	return WriteRetrieveResults(w, res.Retrieval, format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
