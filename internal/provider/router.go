package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xADE/datacube/proto"
)

// Router answers wire requests using a Registry.
type Router struct {
	registry   *Registry
	maxResults int
	logger     *zap.Logger
}

// NewRouter returns a router that caps results at maxResults unless a
// request asks for a different positive limit.
func NewRouter(registry *Registry, maxResults int, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry:   registry,
		maxResults: maxResults,
		logger:     logger.Named("router"),
	}
}

// Registry returns the registry the router dispatches to.
func (rt *Router) Registry() *Registry {
	return rt.registry
}

// Query dispatches req and builds the response. Every response carries a
// fresh query ID. Items are sorted by descending score, then label, and
// never exceed the effective limit.
func (rt *Router) Query(ctx context.Context, req proto.QueryRequest) proto.QueryResponse {
	resp := proto.QueryResponse{
		Query: req.Query,
		QID:   uuid.NewString(),
		Items: []proto.Item{},
	}

	limit := rt.maxResults
	if req.MaxResults > 0 {
		limit = req.MaxResults
	}

	var (
		p    Provider
		text string
	)
	if req.Provider != "" {
		reg, ok := rt.registry.Lookup(req.Provider)
		if !ok {
			resp.Error = descriptor(proto.KindUnknownProvider, fmt.Sprintf("unknown provider %q", req.Provider))
			return resp
		}
		if !reg.Enabled {
			resp.Provider = req.Provider
			resp.Error = descriptor(proto.KindProviderDisabled, fmt.Sprintf("provider %q is disabled", req.Provider))
			return resp
		}
		p = reg.Provider
		text = req.Query
		if prefix := p.Prefix(); prefix != "" {
			text = strings.TrimPrefix(text, prefix)
		}
	} else {
		p, text = rt.registry.Route(req.Query)
		if p == nil {
			return resp
		}
	}

	resp.Provider = p.Name()
	res, err := p.Query(ctx, text, limit)
	if err != nil {
		rt.logger.Warn("Provider failed",
			zap.String("provider", p.Name()),
			zap.String("qid", resp.QID),
			zap.Error(err))
		resp.Error = descriptor(proto.KindInternal, err.Error())
		return resp
	}

	resp.Error = res.Error
	resp.Items = normalize(res.Items, limit, p.Name())

	rt.logger.Debug("Query answered",
		zap.String("qid", resp.QID),
		zap.String("provider", resp.Provider),
		zap.Int("items", len(resp.Items)))
	return resp
}

// ListProviders describes the registered providers.
func (rt *Router) ListProviders() proto.ListProvidersResponse {
	return proto.ListProvidersResponse{Providers: rt.registry.List()}
}

// MalformedRequest is the response to a query whose body could not be
// decoded.
func MalformedRequest(err error) proto.QueryResponse {
	return proto.QueryResponse{
		QID:   uuid.NewString(),
		Items: []proto.Item{},
		Error: descriptor(proto.KindMalformedRequest, err.Error()),
	}
}

func descriptor(kind, msg string) *proto.ErrorDescriptor {
	return &proto.ErrorDescriptor{Kind: kind, Message: msg, Position: -1}
}

func normalize(items []proto.Item, limit int, provider string) []proto.Item {
	out := make([]proto.Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Provider == "" {
			out[i].Provider = provider
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Label < out[j].Label
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
