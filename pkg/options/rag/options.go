// Package rag provides retrieval and extraction configuration options.
package rag

import (
	"fmt"
	"time"

	"github.com/kart-io/verbatim-rag/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// 分块策略。
const (
	ChunkStrategySection = "section"
	ChunkStrategyWindow  = "window"
)

// Options contains pipeline configuration.
type Options struct {
	// DocumentPath is the source document indexed on rebuild.
	DocumentPath string `json:"document-path" mapstructure:"document-path"`

	// Source overrides the source identifier; defaults to the document base name.
	Source string `json:"source" mapstructure:"source"`

	// Collection is the vector collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// MaxChars is the maximum chunk length in characters.
	MaxChars int `json:"max-chars" mapstructure:"max-chars"`

	// ChunkStrategy is "section" (default) or "window".
	ChunkStrategy string `json:"chunk-strategy" mapstructure:"chunk-strategy"`

	// ChunkOverlap is the overlap in characters, used only by the window strategy.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the number of chunks retrieved per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MaxOutputTokens bounds the generated answer.
	MaxOutputTokens int `json:"max-output-tokens" mapstructure:"max-output-tokens"`

	// EmbedBatchSize is the number of texts per embedding call during rebuild.
	EmbedBatchSize int `json:"embed-batch-size" mapstructure:"embed-batch-size"`

	// EmbedWorkers is the number of concurrent embedding batches during rebuild.
	EmbedWorkers int `json:"embed-workers" mapstructure:"embed-workers"`

	// QueryTimeout bounds a single HTTP query.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// RebuildOnStart rebuilds the index before the server starts serving.
	RebuildOnStart bool `json:"rebuild-on-start" mapstructure:"rebuild-on-start"`

	// PromptTemplate overrides the extraction prompt; must contain {{context}} and {{question}}.
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		DocumentPath:    "resume.txt",
		Collection:      "docs",
		MaxChars:        900,
		ChunkStrategy:   ChunkStrategySection,
		ChunkOverlap:    100,
		TopK:            3,
		MaxOutputTokens: 64,
		EmbedBatchSize:  16,
		EmbedWorkers:    4,
		QueryTimeout:    60 * time.Second,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.StringVar(&o.DocumentPath, p+"document-path", o.DocumentPath, "Path of the source document to index.")
	fs.StringVar(&o.Source, p+"source", o.Source, "Source identifier stored with each chunk (defaults to the document file name).")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.MaxChars, p+"max-chars", o.MaxChars, "Maximum chunk length in characters.")
	fs.StringVar(&o.ChunkStrategy, p+"chunk-strategy", o.ChunkStrategy, "Chunking strategy (section, window).")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Chunk overlap in characters for the window strategy.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved per query.")
	fs.IntVar(&o.MaxOutputTokens, p+"max-output-tokens", o.MaxOutputTokens, "Maximum tokens generated per answer.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Texts per embedding call during rebuild.")
	fs.IntVar(&o.EmbedWorkers, p+"embed-workers", o.EmbedWorkers, "Concurrent embedding calls during rebuild.")
	fs.DurationVar(&o.QueryTimeout, p+"query-timeout", o.QueryTimeout, "Timeout of a single query request.")
	fs.BoolVar(&o.RebuildOnStart, p+"rebuild-on-start", o.RebuildOnStart, "Rebuild the index before serving.")
	fs.StringVar(&o.PromptTemplate, p+"prompt-template", o.PromptTemplate, "Override the extraction prompt template.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("rag.collection is required"))
	}
	if o.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-chars must be positive"))
	}
	switch o.ChunkStrategy {
	case ChunkStrategySection:
	case ChunkStrategyWindow:
		if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.MaxChars {
			errs = append(errs, fmt.Errorf("rag.chunk-overlap must be in [0, max-chars)"))
		}
	default:
		errs = append(errs, fmt.Errorf("rag.chunk-strategy must be 'section' or 'window'"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-output-tokens must be positive"))
	}
	if o.EmbedBatchSize <= 0 || o.EmbedWorkers <= 0 {
		errs = append(errs, fmt.Errorf("rag.embed-batch-size and rag.embed-workers must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.ChunkStrategy == "" {
		o.ChunkStrategy = ChunkStrategySection
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 60 * time.Second
	}
	return nil
}
