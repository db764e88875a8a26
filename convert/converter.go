// Package convert implements the type-directed conversion engine
// between Go object graphs and the doc package's document model. The
// write path decomposes a value into document primitives; the read
// path reconstructs typed values from them. Both consult, in order,
// the custom-converter registry, the simple-type classification, and
// the structural rules for entities, containers, references and raw
// documents.
//
// A Converter is immutable after New and stateless across calls;
// Write and Read may run concurrently.
package convert

import (
	"github.com/docfold/docmap/mapping"
)

// Converter performs write and read conversions against one metadata
// context and one converter registry.
type Converter struct {
	ctx *mapping.Context
	reg *Registry
	tm  *typeMapper
	cfg config
}

type config struct {
	typeKey           string
	mapKeyReplacement string
	registry          *Registry
	resolver          RefResolver
}

// Option configures a Converter.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

// WithRegistry supplies a registry of custom converters and simple
// types. Without it the converter uses an empty registry.
func WithRegistry(r *Registry) Option {
	return optionFunc(func(c *config) { c.registry = r })
}

// WithTypeKey overrides the reserved discriminator key (default
// TypeKey).
func WithTypeKey(key string) Option {
	return optionFunc(func(c *config) { c.typeKey = key })
}

// WithMapKeyReplacement configures the escape token substituted for
// "." in map keys. Without one, writing a map key containing "."
// fails with a MappingError.
func WithMapKeyReplacement(token string) Option {
	return optionFunc(func(c *config) { c.mapKeyReplacement = token })
}

// WithResolver supplies the foreign-reference resolver. Without one,
// reference pointers are still written (derived from entity metadata)
// but reading a reference eagerly fails with a ResolutionError.
func WithResolver(r RefResolver) Option {
	return optionFunc(func(c *config) { c.resolver = r })
}

// New returns a Converter over ctx. The context and every registered
// collaborator must be fully configured before first use and not
// mutated afterwards.
func New(ctx *mapping.Context, opts ...Option) *Converter {
	cfg := config{typeKey: TypeKey}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = NewRegistry()
	}
	return &Converter{
		ctx: ctx,
		reg: cfg.registry,
		tm:  &typeMapper{ctx: ctx, key: cfg.typeKey},
		cfg: cfg,
	}
}
