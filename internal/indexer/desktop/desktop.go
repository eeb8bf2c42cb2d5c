package desktop

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the file suffix of desktop entries.
const Extension = ".desktop"

var (
	// ErrNoDesktopEntry means the file has no [Desktop Entry] group.
	ErrNoDesktopEntry = errors.New("missing [Desktop Entry] group")
	// ErrNotApplication means the entry has a Type other than Application.
	ErrNotApplication = errors.New("not an application entry")
	// ErrMissingField means a required key is absent.
	ErrMissingField = errors.New("missing required field")
)

// DesktopEntry represents a parsed .desktop file
type DesktopEntry struct {
	Name            string              // Default name
	Names           map[string]string   // Localized names (locale -> name)
	GenericName     string              // e.g. "Web Browser"
	GenericNames    map[string]string   // Localized generic names
	Comment         string              // Short description
	Comments        map[string]string   // Localized comments
	Exec            string              // Exec command template, field codes kept
	Icon            string              // Icon name or path
	Keywords        []string            // Search keywords
	LocalKeywords   map[string][]string // Localized keywords
	Categories      []string            // Application categories
	Terminal        bool                // Whether to run in terminal
	NoDisplay       bool                // NoDisplay=true
	Hidden          bool                // Hidden=true, the entry is deleted
	DBusActivatable bool
	Path            string // Path to .desktop file
}

// ID returns the desktop file ID used by the index: the base name without
// the .desktop suffix.
func ID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}

// ParseDesktopFile parses a single .desktop file
func ParseDesktopFile(path string) (*DesktopEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entry := &DesktopEntry{
		Path:          path,
		Names:         make(map[string]string),
		GenericNames:  make(map[string]string),
		Comments:      make(map[string]string),
		LocalKeywords: make(map[string][]string),
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var inDesktopEntry, sawGroup bool
	entryType := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inDesktopEntry = line == "[Desktop Entry]"
			if inDesktopEntry {
				sawGroup = true
			}
			continue
		}

		if !inDesktopEntry {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		base, locale := splitLocale(key)
		switch base {
		case "Name":
			setLocalized(&entry.Name, entry.Names, locale, unescape(value))
		case "GenericName":
			setLocalized(&entry.GenericName, entry.GenericNames, locale, unescape(value))
		case "Comment":
			setLocalized(&entry.Comment, entry.Comments, locale, unescape(value))
		case "Keywords":
			if locale == "" {
				entry.Keywords = splitList(value)
			} else {
				entry.LocalKeywords[locale] = splitList(value)
			}
		case "Exec":
			entry.Exec = unescape(value)
		case "Icon":
			entry.Icon = unescape(value)
		case "Type":
			entryType = value
		case "Terminal":
			entry.Terminal = parseBool(value)
		case "NoDisplay":
			entry.NoDisplay = parseBool(value)
		case "Hidden":
			entry.Hidden = parseBool(value)
		case "DBusActivatable":
			entry.DBusActivatable = parseBool(value)
		case "Categories":
			entry.Categories = splitList(value)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawGroup {
		return nil, ErrNoDesktopEntry
	}

	// A hidden entry only masks entries with the same ID further down the
	// search path, so it needs no other keys.
	if entry.Hidden {
		if entry.Name == "" {
			entry.Name = ID(path)
		}
		return entry, nil
	}

	if entryType != "" && entryType != "Application" {
		return nil, fmt.Errorf("%w: Type=%s", ErrNotApplication, entryType)
	}
	if entry.Name == "" {
		return nil, fmt.Errorf("%w: Name", ErrMissingField)
	}
	if entry.Exec == "" && !entry.DBusActivatable {
		return nil, fmt.Errorf("%w: Exec", ErrMissingField)
	}

	return entry, nil
}

// GetLocalizedName returns the localized name for the given locale, or default name
func (d *DesktopEntry) GetLocalizedName(locale string) string {
	return Localized(d.Names, d.Name, locale)
}

// GetLocalizedKeywords returns keywords for locale, falling back to the
// default list.
func (d *DesktopEntry) GetLocalizedKeywords(locale string) []string {
	for _, candidate := range localeCandidates(locale) {
		if kw, ok := d.LocalKeywords[candidate]; ok {
			return kw
		}
	}
	return d.Keywords
}

// Localized picks the value for locale from values, trying the full
// locale ("pt_BR") before the language ("pt"), and falls back to def.
func Localized(values map[string]string, def, locale string) string {
	for _, candidate := range localeCandidates(locale) {
		if v, ok := values[candidate]; ok && v != "" {
			return v
		}
	}
	return def
}

func localeCandidates(locale string) []string {
	if locale == "" {
		return nil
	}
	candidates := []string{locale}
	// Try language part (e.g., "en" from "en_US" or "en-US")
	if idx := strings.IndexAny(locale, "_-"); idx > 0 {
		candidates = append(candidates, locale[:idx])
	}
	return candidates
}

// splitLocale splits "Name[de]" into ("Name", "de").
func splitLocale(key string) (string, string) {
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}
	return key[:open], key[open+1 : len(key)-1]
}

func setLocalized(def *string, localized map[string]string, locale, value string) {
	if locale == "" {
		*def = value
		return
	}
	localized[locale] = value
}

func parseBool(value string) bool {
	return strings.EqualFold(value, "true")
}

// unescape expands the escape sequences allowed in string values.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 's':
			b.WriteByte(' ')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// splitList splits a ';'-separated list value, honoring "\;" escapes.
func splitList(value string) []string {
	var (
		items   []string
		current strings.Builder
	)
	flush := func() {
		item := strings.TrimSpace(unescape(current.String()))
		if item != "" {
			items = append(items, item)
		}
		current.Reset()
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '\\' && i+1 < len(value) && value[i+1] == ';':
			current.WriteByte(';')
			i++
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return items
}

// CleanExecCommand removes field codes and extra spaces from exec command
func CleanExecCommand(exec string) string {
	exec = removeFieldCodes(exec)
	return strings.Join(strings.Fields(exec), " ")
}

func removeFieldCodes(s string) string {
	var result strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '%' && i+1 < len(s) {
			next := s[i+1]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || next == '%' {
				if next == '%' {
					result.WriteByte('%')
				}
				i += 2
				continue
			}
		}
		result.WriteByte(s[i])
		i++
	}
	return result.String()
}
