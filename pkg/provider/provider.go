// Package provider lets a caller, typically an HTTP handler or a command,
// create and run services and chains while keeping the last ones around for
// later inspection (rendering, logging, error mapping).
//
//	type Handler struct {
//	    provider.Provider
//	}
//
//	func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
//	    provider.Run(r.Context(), &h.Provider, createUser, params(r))
//	    if h.Service().Failed() {
//	        http.Error(w, h.Service().Err().Error(), http.StatusUnprocessableEntity)
//	    }
//	}
package provider

import (
	"context"

	"github.com/bbservices/bbservices/pkg/chain"
	"github.com/bbservices/bbservices/pkg/service"
)

// Provider records the last service and chain it created. The zero value is
// ready to use. A Provider is not safe for concurrent use.
type Provider struct {
	service service.Outcome
	chain   *chain.Chain
}

// Service returns the last created service or nil.
func (p *Provider) Service() service.Outcome { return p.service }

// ServiceChain returns the last created chain or nil.
func (p *Provider) ServiceChain() *chain.Chain { return p.chain }

// Chain starts a new chain with params, runs its first step and records it.
func (p *Provider) Chain(ctx context.Context, params service.Params, fn chain.StepFunc) *chain.Chain {
	p.chain = chain.Start(ctx, params, fn)
	return p.chain
}

// Create builds an unrun service from bp and records it. The blueprint class
// becomes the instance class.
func Create[T any](p *Provider, bp *service.Blueprint[T], params service.Params) *service.Service[T] {
	s := bp.New(params)
	if class := bp.Class(); class != nil {
		s.SetClass(class)
	}
	p.service = s
	return s
}

// Run creates a service from bp and runs it.
func Run[T any](ctx context.Context, p *Provider, bp *service.Blueprint[T], params service.Params, callbacks ...service.Callback[T]) *service.Service[T] {
	return Create(p, bp, params).Run(ctx, callbacks...)
}

// RunE creates a service from bp and runs it with RunE.
func RunE[T any](ctx context.Context, p *Provider, bp *service.Blueprint[T], params service.Params, callbacks ...service.Callback[T]) (*service.Service[T], error) {
	return Create(p, bp, params).RunE(ctx, callbacks...)
}

// Object returns the object produced by the last created service. The second
// result is false when there is no service or it produces another type.
func Object[T any](p *Provider) (T, bool) {
	var zero T
	s, ok := p.service.(*service.Service[T])
	if !ok || s == nil {
		return zero, false
	}
	return s.Object(), true
}
