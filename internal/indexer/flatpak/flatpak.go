// Package flatpak enumerates applications installed with flatpak.
//
// An installation root (for example /var/lib/flatpak) keeps each
// application under app/<ID>/current/active, and exports its desktop entry
// as export/share/applications/<ID>.desktop inside that deployment.
package flatpak

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// App is one installed flatpak application.
type App struct {
	ID string
	// DesktopPath is the exported desktop entry, empty when the deployment
	// exports none.
	DesktopPath string
	// Dir is the active deployment directory.
	Dir     string
	ModTime time.Time
}

// ErrInvalidRef means a configured ref is not of the form app/<ID>/<arch>/<branch>
// or a bare application ID.
var ErrInvalidRef = errors.New("invalid flatpak ref")

// Scan lists the applications of one installation root sorted by ID. A
// missing root yields no applications and no error.
func Scan(root string) ([]App, error) {
	appsDir := filepath.Join(root, "app")
	dirents, err := os.ReadDir(appsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	apps := make([]App, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() || !ValidID(d.Name()) {
			continue
		}
		app, ok := lookup(root, d.Name())
		if ok {
			apps = append(apps, app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

// Lookup finds a single application in the given installation roots, first
// root wins.
func Lookup(roots []string, id string) (App, bool) {
	for _, root := range roots {
		if app, ok := lookup(root, id); ok {
			return app, true
		}
	}
	return App{}, false
}

func lookup(root, id string) (App, bool) {
	active := filepath.Join(root, "app", id, "current", "active")
	info, err := os.Stat(active)
	if err != nil || !info.IsDir() {
		return App{}, false
	}

	app := App{ID: id, Dir: active, ModTime: info.ModTime()}
	desktopPath := filepath.Join(active, "export", "share", "applications", id+".desktop")
	if fi, err := os.Stat(desktopPath); err == nil && fi.Mode().IsRegular() {
		app.DesktopPath = desktopPath
		app.ModTime = fi.ModTime()
	}
	return app, true
}

// ParseRef extracts the application ID from "app/<ID>/<arch>/<branch>" or a
// bare "<ID>".
func ParseRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	id := ref
	if strings.Contains(ref, "/") {
		parts := strings.Split(ref, "/")
		if len(parts) != 4 || parts[0] != "app" {
			return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
		}
		id = parts[1]
	}
	if !ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return id, nil
}

// ValidID reports whether id looks like a reverse-DNS application ID with at
// least three elements.
func ValidID(id string) bool {
	parts := strings.Split(id, ".")
	if len(parts) < 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if !(r == '_' || r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
				return false
			}
		}
	}
	return true
}

// DisplayName is the fallback name of an application without a desktop
// entry: the last ID element.
func DisplayName(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// RunCommand returns the launch command for id.
func RunCommand(id string) string {
	return "flatpak run " + id
}
