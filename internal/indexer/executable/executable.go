package executable

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// ExecutableInfo contains information about an executable file
type ExecutableInfo struct {
	Name string // Executable name
	Path string // Full path to executable
}

// ScanPaths lists the executables directly inside paths. When a name occurs
// in several directories the earliest directory wins, like a shell lookup.
// The result is sorted by name.
func ScanPaths(paths []string) []ExecutableInfo {
	seen := make(map[string]struct{})
	var result []ExecutableInfo

	for _, path := range paths {
		// Continue scanning other paths even if one fails
		for _, info := range scanPath(path) {
			if _, dup := seen[info.Name]; dup {
				continue
			}
			seen[info.Name] = struct{}{}
			result = append(result, info)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func scanPath(dir string) []ExecutableInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var result []ExecutableInfo
	for _, entry := range entries {
		name := entry.Name()
		// Skip hidden files (starting with .)
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !isExecutable(info) {
			continue
		}
		result = append(result, ExecutableInfo{Name: name, Path: path})
	}
	return result
}

func isExecutable(info os.FileInfo) bool {
	// Check if file has execute permission for user, group, or others
	mode := info.Mode()
	return mode&0111 != 0
}

// Catalog caches a ScanPaths result and rescans in the background once it
// is older than the configured age.
type Catalog struct {
	paths  []string
	maxAge time.Duration

	current  atomic.Pointer[listing]
	scanning atomic.Bool
}

type listing struct {
	items     []ExecutableInfo
	scannedAt time.Time
}

// NewCatalog scans paths once and returns the catalog.
func NewCatalog(paths []string, maxAge time.Duration) *Catalog {
	c := &Catalog{paths: paths, maxAge: maxAge}
	c.Rescan()
	return c
}

// Rescan replaces the cached listing.
func (c *Catalog) Rescan() {
	c.current.Store(&listing{items: ScanPaths(c.paths), scannedAt: time.Now()})
}

// Len returns the number of cached executables.
func (c *Catalog) Len() int {
	return len(c.current.Load().items)
}

// WithPrefix returns up to limit executables whose name starts with prefix.
func (c *Catalog) WithPrefix(prefix string, limit int) []ExecutableInfo {
	l := c.current.Load()
	if c.maxAge > 0 && time.Since(l.scannedAt) > c.maxAge && c.scanning.CompareAndSwap(false, true) {
		go func() {
			defer c.scanning.Store(false)
			c.Rescan()
		}()
	}

	i := sort.Search(len(l.items), func(i int) bool { return l.items[i].Name >= prefix })
	var out []ExecutableInfo
	for ; i < len(l.items) && len(out) < limit; i++ {
		if !strings.HasPrefix(l.items[i].Name, prefix) {
			break
		}
		out = append(out, l.items[i])
	}
	return out
}
