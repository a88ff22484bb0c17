package inference

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/hfinfer/pkg/hub"
	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

// ModelInfoProvider fetches model metadata from a remote catalogue.
// *hub.Client implements it.
type ModelInfoProvider interface {
	GetModelInfo(ctx context.Context, model string) (*hub.ModelInfo, error)
}

// Resolver determines the response type and request target of a model.
type Resolver struct {
	registry *registry.Registry
	lookup   ModelInfoProvider
	log      *slog.Logger
}

// NewResolver creates a Resolver. lookup may be nil, in which case unknown
// models without a type override resolve to text.
func NewResolver(reg *registry.Registry, lookup ModelInfoProvider, log *slog.Logger) *Resolver {
	if reg == nil {
		reg = registry.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{registry: reg, lookup: lookup, log: log}
}

// Registry returns the model table the resolver consults first.
func (r *Resolver) Registry() *registry.Registry { return r.registry }

// Resolve returns the entry for model. It never fails: a registered entry
// wins, then a valid opts.Type, then the remote pipeline tag, then text.
func (r *Resolver) Resolve(ctx context.Context, model string, opts CallOptions) registry.Entry {
	if e, err := r.registry.Get(model); err == nil {
		return e
	}

	if opts.Type != "" {
		if opts.Type.Valid() {
			return registry.Entry{Type: opts.Type, URL: model}
		}
		r.log.WarnContext(ctx, "ignoring invalid type override",
			"model", model,
			"type", string(opts.Type))
	}

	return registry.Entry{Type: r.remoteType(ctx, model), URL: model}
}

func (r *Resolver) remoteType(ctx context.Context, model string) registry.Type {
	if r.lookup == nil {
		return registry.TypeText
	}

	info, err := r.lookup.GetModelInfo(ctx, model)
	if err != nil {
		r.log.DebugContext(ctx, "model metadata lookup failed", "model", model, "error", err)
		return registry.TypeText
	}
	if info == nil || info.PipelineTag == "" {
		r.log.DebugContext(ctx, "model has no pipeline tag", "model", model)
		return registry.TypeText
	}

	t, ok := r.registry.TaskType(info.PipelineTag)
	if !ok {
		r.log.DebugContext(ctx, "unmapped pipeline tag", "model", model, "pipeline_tag", info.PipelineTag)
		return registry.TypeText
	}
	return t
}
