package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/proto"
)

// ErrInvalidRegistry reports a conflicting provider set.
var ErrInvalidRegistry = errors.New("invalid provider registry")

// Registration is one provider and whether it takes queries.
type Registration struct {
	Provider Provider
	Enabled  bool
}

// Registry is the fixed, ordered set of providers. It is not modified after
// NewRegistry returns, so it is safe for concurrent use.
type Registry struct {
	regs        []Registration
	byName      map[string]int
	defaultName string
}

// NewRegistry validates regs and returns a registry that falls back to the
// provider named defaultName for queries without a known prefix.
//
// Names must be unique. Among enabled providers non-empty prefixes must be
// distinct, and only the default provider may have an empty prefix.
func NewRegistry(defaultName string, regs ...Registration) (*Registry, error) {
	r := &Registry{
		regs:        regs,
		byName:      make(map[string]int, len(regs)),
		defaultName: defaultName,
	}

	prefixes := make(map[string]string)
	for i, reg := range regs {
		name := reg.Provider.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: provider %d has no name", ErrInvalidRegistry, i)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %q", ErrInvalidRegistry, name)
		}
		r.byName[name] = i

		if !reg.Enabled {
			continue
		}
		prefix := reg.Provider.Prefix()
		if prefix == "" {
			if name != defaultName {
				return nil, fmt.Errorf("%w: provider %q has an empty prefix", ErrInvalidRegistry, name)
			}
			continue
		}
		if other, dup := prefixes[prefix]; dup {
			return nil, fmt.Errorf("%w: providers %q and %q share prefix %q", ErrInvalidRegistry, other, name, prefix)
		}
		prefixes[prefix] = name
	}

	if defaultName != "" {
		if _, ok := r.byName[defaultName]; !ok {
			return nil, fmt.Errorf("%w: unknown default provider %q", ErrInvalidRegistry, defaultName)
		}
	}
	return r, nil
}

// Lookup finds a provider by name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Registration{}, false
	}
	return r.regs[i], true
}

// Route picks the enabled provider with the longest prefix of query and
// returns the query with that prefix removed. Without a matching prefix
// the enabled default provider gets the whole query. It returns nil when
// nothing can answer.
func (r *Registry) Route(query string) (Provider, string) {
	var (
		best    Provider
		bestLen int
	)
	for _, reg := range r.regs {
		if !reg.Enabled {
			continue
		}
		prefix := reg.Provider.Prefix()
		if prefix != "" && len(prefix) > bestLen && strings.HasPrefix(query, prefix) {
			best, bestLen = reg.Provider, len(prefix)
		}
	}
	if best != nil {
		return best, query[bestLen:]
	}

	if reg, ok := r.Lookup(r.defaultName); ok && reg.Enabled {
		return reg.Provider, query
	}
	return nil, query
}

// List describes every provider in registration order.
func (r *Registry) List() []proto.ProviderInfo {
	infos := make([]proto.ProviderInfo, 0, len(r.regs))
	for _, reg := range r.regs {
		infos = append(infos, proto.ProviderInfo{
			Name:        reg.Provider.Name(),
			Description: reg.Provider.Description(),
			Prefix:      reg.Provider.Prefix(),
			Enabled:     reg.Enabled,
		})
	}
	return infos
}

// NewRegistryFromConfig registers the built-in providers in their fixed
// order: applications (the default), calculator, command.
func NewRegistryFromConfig(cfg *config.Config, index Searcher, executables Executables) (*Registry, error) {
	p := cfg.Providers
	return NewRegistry(config.ProviderApplications,
		Registration{Provider: NewApplications(index), Enabled: p.Applications.Enabled},
		Registration{Provider: NewCalculator(p.Calculator.Prefix), Enabled: p.Calculator.Enabled},
		Registration{Provider: NewCommand(p.Command.Prefix, executables), Enabled: p.Command.Enabled},
	)
}
