// Package middleware provides middleware configuration options.
package middleware

import (
	"github.com/spf13/pflag"
)

// Options 聚合 HTTP 服务使用的中间件配置。
// 应用顺序固定: recovery -> request-id -> tracing -> logger。
type Options struct {
	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Tracing   *TracingOptions   `json:"tracing" mapstructure:"tracing"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		Recovery:  NewRecoveryOptions(),
		RequestID: NewRequestIDOptions(),
		Tracing:   NewTracingOptions(),
		Logger:    NewLoggerOptions(),
	}
}

// AddFlags adds flags for all middleware options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.Recovery.AddFlags(fs, prefixes...)
	o.RequestID.AddFlags(fs, prefixes...)
	o.Tracing.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
}

// Validate validates all middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.Recovery.Validate()...)
	errs = append(errs, o.RequestID.Validate()...)
	errs = append(errs, o.Tracing.Validate()...)
	errs = append(errs, o.Logger.Validate()...)
	return errs
}

// Complete completes all middleware options.
func (o *Options) Complete() error {
	if err := o.RequestID.Complete(); err != nil {
		return err
	}
	return nil
}
