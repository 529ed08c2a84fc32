// Package options contains flags and options for the index rebuild command.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/verbatim-rag/internal/rag"
	cliflag "github.com/kart-io/verbatim-rag/pkg/app/cliflag"
	cacheopts "github.com/kart-io/verbatim-rag/pkg/options/cache"
	llmopts "github.com/kart-io/verbatim-rag/pkg/options/llm"
	logopts "github.com/kart-io/verbatim-rag/pkg/options/logger"
	ragopts "github.com/kart-io/verbatim-rag/pkg/options/rag"
	storeopts "github.com/kart-io/verbatim-rag/pkg/options/store"
	tracingopts "github.com/kart-io/verbatim-rag/pkg/options/tracing"
)

// IndexOptions contains the options used to rebuild the index.
// The chat provider is configured so the prompt settings validate the same way as the server.
type IndexOptions struct {
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	StoreOptions     *storeopts.Options       `json:"store" mapstructure:"store"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
	RAGOptions       *ragopts.Options         `json:"rag" mapstructure:"rag"`
	CacheOptions     *cacheopts.Options       `json:"cache" mapstructure:"cache"`
	TracingOptions   *tracingopts.Options     `json:"tracing" mapstructure:"tracing"`
}

// NewIndexOptions creates IndexOptions with default values.
func NewIndexOptions() *IndexOptions {
	return &IndexOptions{
		LogOptions:       logopts.NewOptions(),
		StoreOptions:     storeopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
	}
}

// Flags returns flags grouped by section.
func (o *IndexOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	return fss
}

// Complete completes all the required options.
func (o *IndexOptions) Complete() error {
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return err
	}
	return o.TracingOptions.Complete()
}

// Validate checks whether the options are valid.
func (o *IndexOptions) Validate() error {
	var errs []error
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, prefixed("embedding", o.EmbeddingOptions.Validate())...)
	errs = append(errs, prefixed("chat", o.ChatOptions.Validate())...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func prefixed(section string, errs []error) []error {
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = fmt.Errorf("%s.%w", section, err)
	}
	return out
}

// Config builds a ragsvc.Config without an HTTP server.
func (o *IndexOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		LogOptions:       o.LogOptions,
		StoreOptions:     o.StoreOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		CacheOptions:     o.CacheOptions,
		TracingOptions:   o.TracingOptions,
	}, nil
}
