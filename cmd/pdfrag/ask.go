package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/pdfrag/internal/answer"
	"github.com/hyperjump/pdfrag/internal/cli"
	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/pipeline"
	"github.com/hyperjump/pdfrag/pkg/utils"
)

type outputFlags struct {
	output string
	json   bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "text", "output format: text, compact, or json")
	cmd.Flags().BoolVar(&o.json, "json", false, "shorthand for --output json")
}

func (o *outputFlags) format() (cli.OutputFormat, error) {
	if o.json {
		return cli.OutputJSON, nil
	}
	return cli.ParseOutputFormat(o.output)
}

func newIngestCmd() *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Extract, chunk and embed a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := out.format()
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			svc, err := pipeline.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := ingestFile(cmd.Context(), svc.Pipeline, args[0])
			if err != nil {
				return err
			}
			return cli.WriteIngestResult(cmd.OutOrStdout(), resp, format)
		},
	}
	out.register(cmd)
	return cmd
}

type askOptions struct {
	topK   int
	lambda float64
	answer bool
	out    outputFlags
}

func newAskCmd() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask <file.pdf> <question...>",
		Short: "Ingest a PDF (if needed) and retrieve the passages that answer a question",
		Example: `  pdfrag ask handbook.pdf what is the parking fee
  pdfrag ask --answer handbook.pdf "when does the pool open?"
  pdfrag ask --lambda 1 --top-k 3 --json handbook.pdf refund policy`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.out.format()
			if err != nil {
				return err
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			svc, err := pipeline.NewFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			doc, err := ingestFile(ctx, svc.Pipeline, args[0])
			if err != nil {
				return err
			}
			query := buildQuery(args[1:], opts.topK, cmd.Flags().Changed("lambda"), opts.lambda)
			start := time.Now()
			chunks, err := svc.RetrieveQuery(ctx, doc.Fingerprint, query)
			if err != nil {
				return err
			}
			res := &cli.AskResult{
				Document: doc,
				Retrieval: &models.RetrieveResponse{
					Fingerprint: doc.Fingerprint,
					Query:       query.Query,
					Chunks:      chunks,
					QueryTime:   time.Since(start).Milliseconds(),
				},
			}
			if opts.answer {
				gen, err := answer.NewGenerator(cfg.Embedding.APIKey(), cfg.Embedding.BaseURL, cfg.LLM,
					answer.WithLogger(utils.Named(logger, "answer")))
				if err != nil {
					return fmt.Errorf("%w (set %s)", err, cfg.Embedding.APIKeyEnv)
				}
				if res.Answer, err = gen.Answer(ctx, query.Query, chunks); err != nil {
					return err
				}
			}
			return cli.WriteAskResult(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "number of passages (0 uses retrieval.top_k)")
	cmd.Flags().Float64Var(&opts.lambda, "lambda", 0.5, "MMR trade-off: 1 favors relevance, 0 favors diversity")
	cmd.Flags().BoolVar(&opts.answer, "answer", false, "generate an answer with the chat model")
	opts.out.register(cmd)
	return cmd
}

// buildQuery joins the question words so multi-word questions work with or without quotes.
// Lambda is only sent when the flag was given; otherwise the configured default applies.
func buildQuery(words []string, topK int, lambdaSet bool, lambda float64) *models.RetrieveQuery {
	q := &models.RetrieveQuery{
		Query: strings.TrimSpace(strings.Join(words, " ")),
		TopK:  topK,
	}
	if lambdaSet {
		q.Lambda = &lambda
	}
	return q
}

type documentIngester interface {
	IngestDocument(ctx context.Context, content []byte) (*models.IngestResponse, error)
}

func ingestFile(ctx context.Context, p documentIngester, path string) (*models.IngestResponse, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	resp, err := p.IngestDocument(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest %s: %w", path, err)
	}
	return resp, nil
}
