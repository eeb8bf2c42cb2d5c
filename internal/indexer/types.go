package indexer

import (
	"strings"
	"time"

	"github.com/0xADE/datacube/internal/indexer/desktop"
)

// Entry represents a single indexed application entry. Entries are never
// mutated once published; a changed file produces a new Entry.
type Entry struct {
	ID          string            // Desktop file ID or flatpak application ID
	Name        string            // Name resolved for the configured locale
	Names       map[string]string // Localized names (locale -> name)
	GenericName string
	Comment     string
	Exec        string   // Exec template, opaque to the index
	Icon        string   // Icon name or path
	Keywords    []string // Search keywords for the configured locale
	Categories  []string // Application categories
	Terminal    bool     // Whether to run in terminal
	NoDisplay   bool     // NoDisplay=true or Hidden=true
	Flatpak     bool     // Whether this comes from a flatpak installation
	Path        string   // Source .desktop file, empty for synthesized entries
	ModTime     time.Time

	lowerID       string
	lowerName     string
	lowerKeywords []string
}

func newEntry(e *Entry) *Entry {
	e.lowerID = strings.ToLower(e.ID)
	e.lowerName = strings.ToLower(e.Name)
	e.lowerKeywords = make([]string, 0, len(e.Keywords)+1)
	for _, kw := range e.Keywords {
		e.lowerKeywords = append(e.lowerKeywords, strings.ToLower(kw))
	}
	if e.GenericName != "" {
		e.lowerKeywords = append(e.lowerKeywords, strings.ToLower(e.GenericName))
	}
	return e
}

// fromDesktop builds an Entry from a parsed desktop file.
func fromDesktop(id string, d *desktop.DesktopEntry, locale string, modTime time.Time) *Entry {
	return newEntry(&Entry{
		ID:          id,
		Name:        d.GetLocalizedName(locale),
		Names:       d.Names,
		GenericName: desktop.Localized(d.GenericNames, d.GenericName, locale),
		Comment:     desktop.Localized(d.Comments, d.Comment, locale),
		Exec:        d.Exec,
		Icon:        d.Icon,
		Keywords:    d.GetLocalizedKeywords(locale),
		Categories:  d.Categories,
		Terminal:    d.Terminal,
		NoDisplay:   d.NoDisplay || d.Hidden,
		Path:        d.Path,
		ModTime:     modTime,
	})
}

// fileRecord remembers what a source file produced so an unchanged file is
// not parsed again on the next refresh.
type fileRecord struct {
	modTime time.Time
	entry   *Entry // nil when the file failed to parse
}

// Snapshot is an immutable view of the index. Readers obtain one with
// Indexer.Snapshot and may use it for as long as they like.
type Snapshot struct {
	entries []*Entry // precedence order, shadowed IDs excluded
	byID    map[string]*Entry
	files   map[string]fileRecord
	fuzzy   bool

	Generation uint64
	BuiltAt    time.Time
}

func emptySnapshot(fuzzy bool) *Snapshot {
	return &Snapshot{
		byID:  map[string]*Entry{},
		files: map[string]fileRecord{},
		fuzzy: fuzzy,
	}
}

// Len returns the number of entries, hidden ones included.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Get retrieves an entry by ID
func (s *Snapshot) Get(id string) (*Entry, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Entries returns all entries in precedence order.
func (s *Snapshot) Entries() []*Entry {
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// RefreshStats summarizes one refresh.
type RefreshStats struct {
	Total   int // entries in the published snapshot
	Parsed  int // files parsed in this refresh
	Reused  int // files unchanged since the previous snapshot
	Failed  int // files that could not be parsed
	Removed int // files present before and gone now
}
