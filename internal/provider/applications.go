package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/indexer"
	"github.com/0xADE/datacube/internal/indexer/desktop"
	"github.com/0xADE/datacube/proto"
)

// Searcher is the part of the application index the provider needs.
type Searcher interface {
	Search(query string, limit int) []indexer.Match
}

// Applications answers queries from the application index.
type Applications struct {
	index Searcher
}

// NewApplications returns the application provider.
func NewApplications(index Searcher) *Applications {
	return &Applications{index: index}
}

func (a *Applications) Name() string        { return config.ProviderApplications }
func (a *Applications) Description() string { return "Installed desktop applications" }
func (a *Applications) Prefix() string      { return "" }

// Query searches the index. An empty query matches nothing.
func (a *Applications) Query(_ context.Context, text string, limit int) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, nil
	}

	matches := a.index.Search(text, limit)
	items := make([]proto.Item, 0, len(matches))
	for _, m := range matches {
		e := m.Entry
		detail := e.Comment
		if detail == "" {
			detail = e.GenericName
		}
		meta := map[string]string{"desktop_id": e.ID}
		if cmd := desktop.CleanExecCommand(e.Exec); cmd != "" {
			meta["command"] = cmd
		}
		if e.Path != "" {
			meta["path"] = e.Path
		}
		if e.Terminal {
			meta["terminal"] = strconv.FormatBool(e.Terminal)
		}
		if e.Flatpak {
			meta["flatpak"] = strconv.FormatBool(e.Flatpak)
		}
		items = append(items, proto.Item{
			ID:       e.ID,
			Label:    e.Name,
			Detail:   detail,
			Score:    m.Score,
			Payload:  e.Exec,
			Icon:     e.Icon,
			Metadata: meta,
		})
	}
	return Result{Items: items}, nil
}
