package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vantagelab/termlens/internal/application/analysis"
	"github.com/vantagelab/termlens/internal/config"
	"github.com/vantagelab/termlens/internal/domain/cluster"
	"github.com/vantagelab/termlens/internal/domain/term"
	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
	"github.com/vantagelab/termlens/internal/intelligence/annotator"
	"github.com/vantagelab/termlens/internal/intelligence/embedding"
	"github.com/vantagelab/termlens/pkg/errors"
)

// AnalyzeOptions holds the analyze command flags.
type AnalyzeOptions struct {
	Input      string
	Snapshots  string
	Output     string
	ConfigPath string
	Timeout    time.Duration
}

// analyzeResult is the CLI's output document.
type analyzeResult struct {
	AnalyzedAt    time.Time          `json:"analyzed_at"`
	TermCount     int                `json:"term_count"`
	EmbeddedTerms int                `json:"embedded_terms"`
	DroppedTerms  int                `json:"dropped_terms"`
	NoiseTerms    int                `json:"noise_terms"`
	Clusters      []*cluster.Cluster `json:"clusters"`
}

// NewAnalyzeCmd creates the analyze command: run the full pipeline against a
// local export, offline when the export already carries embeddings.
func NewAnalyzeCmd(root *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Cluster a local term export",
		Long: "Analyze reads a JSON or CSV term export, clusters it, scores the clusters, " +
			"and tracks their evolution against historical snapshots. Exports that already " +
			"carry embeddings run fully offline; otherwise an embedding provider must be " +
			"configured via --config.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := root.buildLogger()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()
			return runAnalyze(ctx, opts, logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "term export file (.json or .csv)")
	cmd.Flags().StringVar(&opts.Snapshots, "snapshots", "", "directory of historical snapshot JSON files")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "result file (default stdout)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file for embedding/annotation providers")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "overall analysis timeout")
	cmd.MarkFlagRequired("input")
	return cmd
}

func runAnalyze(ctx context.Context, opts *AnalyzeOptions, logger logging.Logger, stdout io.Writer) error {
	records, err := ReadExport(opts.Input)
	if err != nil {
		return err
	}

	var snapshots []term.Snapshot
	if opts.Snapshots != "" {
		snapshots, err = ReadSnapshots(opts.Snapshots)
		if err != nil {
			return err
		}
	}

	deps, err := buildPipelineDeps(records, opts.ConfigPath, logger)
	if err != nil {
		return err
	}
	pipeline := analysis.NewPipeline(deps)

	result, err := pipeline.Run(ctx, records, snapshots)
	if err != nil {
		return err
	}

	doc := analyzeResult{
		AnalyzedAt:    time.Now().UTC(),
		TermCount:     len(records),
		EmbeddedTerms: len(result.EmbeddedTerms),
		DroppedTerms:  len(result.DroppedTerms),
		NoiseTerms:    len(result.NoiseTerms),
		Clusters:      result.Clusters,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal result")
	}
	data = append(data, '\n')

	if opts.Output != "" {
		return os.WriteFile(opts.Output, data, 0o644)
	}
	_, err = stdout.Write(data)
	return err
}

// buildPipelineDeps picks the embedding strategy: pre-embedded exports run
// against a pass-through embedder; otherwise the configured provider is
// dialed. Annotation is only wired when a config provides it.
func buildPipelineDeps(records []term.Record, configPath string, logger logging.Logger) (analysis.PipelineDeps, error) {
	deps := analysis.PipelineDeps{Logger: logger}

	var cfg *config.Config
	if configPath != "" {
		loaded, err := loadProviderConfig(configPath)
		if err != nil {
			return deps, err
		}
		cfg = loaded
	}

	if allEmbedded(records) {
		deps.Embedder = newStaticEmbedder(records)
	} else {
		if cfg == nil {
			return deps, errors.New(errors.ErrCodeEmbeddingUnavailable,
				"export has terms without embeddings; pass --config with an embedding provider")
		}
		provider, err := embedding.NewOpenAIProvider(cfg.Intelligence.Embedding, logger)
		if err != nil {
			return deps, err
		}
		deps.Embedder = embedding.NewBatcher(provider, nil, nil, logger)
	}

	if cfg != nil && cfg.Intelligence.Annotator.BaseURL != "" {
		llm, err := annotator.NewLLMClient(cfg.Intelligence.Annotator, nil, logger)
		if err != nil {
			return deps, err
		}
		deps.Annotator = llm
		deps.Describer = llm
	}
	return deps, nil
}

// loadProviderConfig parses a config file without the service-level
// validation Load applies; the CLI only needs the intelligence section, and
// the provider constructors validate their own fields.
func loadProviderConfig(path string) (*config.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "read config file")
	}
	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "parse config file")
	}
	config.ApplyDefaults(cfg)
	return cfg, nil
}

func allEmbedded(records []term.Record) bool {
	if len(records) == 0 {
		return false
	}
	for i := range records {
		if !records[i].HasEmbedding() {
			return false
		}
	}
	return true
}

// staticEmbedder serves exports that already carry vectors.
type staticEmbedder struct {
	dim int
}

func newStaticEmbedder(records []term.Record) *staticEmbedder {
	dim := 0
	for i := range records {
		if records[i].HasEmbedding() {
			dim = len(records[i].Embedding)
			break
		}
	}
	return &staticEmbedder{dim: dim}
}

func (s *staticEmbedder) EmbedAll(_ context.Context, records []term.Record) (*embedding.Result, error) {
	res := &embedding.Result{}
	for i := range records {
		if records[i].HasEmbedding() {
			res.Embedded = append(res.Embedded, records[i])
		} else {
			res.Failed = append(res.Failed, records[i])
		}
	}
	return res, nil
}

func (s *staticEmbedder) Dimensions() int { return s.dim }
