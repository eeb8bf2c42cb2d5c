// Package provider routes queries to the sources that answer them.
//
// A Provider owns one kind of result (applications, arithmetic, shell
// commands) and is selected either by name or by a query prefix. The
// Registry holds the fixed set of providers; the Router turns a wire
// request into a wire response.
package provider

import (
	"context"

	"github.com/0xADE/datacube/proto"
)

// Provider answers queries of one kind.
type Provider interface {
	Name() string
	Description() string
	// Prefix selects the provider from the query text. Empty means the
	// provider is only reachable as the default or by name.
	Prefix() string
	// Query answers text, which has the prefix already removed. The
	// returned items need not be sorted or capped; the router does both.
	// Failures a user should see go in Result.Error; a returned error is
	// reported as an internal failure.
	Query(ctx context.Context, text string, limit int) (Result, error)
}

// Result is what a provider returns for one query.
type Result struct {
	Items []proto.Item
	Error *proto.ErrorDescriptor
}
