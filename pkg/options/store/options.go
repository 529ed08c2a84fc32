// Package store provides vector store backend selection options.
package store

import (
	"fmt"

	"github.com/kart-io/verbatim-rag/pkg/options"
	milvusopts "github.com/kart-io/verbatim-rag/pkg/options/milvus"
	sqliteopts "github.com/kart-io/verbatim-rag/pkg/options/sqlite"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// 支持的存储后端。
const (
	BackendSQLite = "sqlite"
	BackendMilvus = "milvus"
	BackendMemory = "memory"
)

// Options selects and configures the vector store backend.
type Options struct {
	Backend string              `json:"backend" mapstructure:"backend"`
	SQLite  *sqliteopts.Options `json:"sqlite" mapstructure:"sqlite"`
	Milvus  *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
}

// NewOptions creates default store options (embedded SQLite).
func NewOptions() *Options {
	return &Options{
		Backend: BackendSQLite,
		SQLite:  sqliteopts.NewOptions(),
		Milvus:  milvusopts.NewOptions(),
	}
}

// AddFlags adds flags for store options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := append(append([]string{}, prefixes...), "store")
	fs.StringVar(&o.Backend, options.Join(p...)+"backend", o.Backend, "Vector store backend (sqlite, milvus, memory).")
	o.SQLite.AddFlags(fs, p...)
	o.Milvus.AddFlags(fs, p...)
}

// Validate validates the selected backend only.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	switch o.Backend {
	case BackendSQLite:
		return o.SQLite.Validate()
	case BackendMilvus:
		return o.Milvus.Validate()
	case BackendMemory:
		return nil
	default:
		return []error{fmt.Errorf("store.backend must be one of sqlite, milvus, memory; got %q", o.Backend)}
	}
}
