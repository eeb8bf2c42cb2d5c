package provider

import (
	"context"
	"strings"

	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/internal/indexer/executable"
	"github.com/0xADE/datacube/proto"
)

// Executables is the part of the executable catalog the command provider
// needs.
type Executables interface {
	WithPrefix(prefix string, limit int) []executable.ExecutableInfo
}

// CommandIcon is the icon name set on command results.
const CommandIcon = "utilities-terminal"

// Command suggests shell commands. It never runs anything: the payload is
// the command line for the client to execute.
type Command struct {
	prefix      string
	executables Executables
}

// NewCommand returns the command provider selected by prefix.
func NewCommand(prefix string, executables Executables) *Command {
	return &Command{prefix: prefix, executables: executables}
}

func (c *Command) Name() string        { return config.ProviderCommand }
func (c *Command) Description() string { return "Shell commands and executables on PATH" }
func (c *Command) Prefix() string      { return c.prefix }

// Query returns the typed command line followed by executables whose
// name starts with its first word.
func (c *Command) Query(_ context.Context, text string, limit int) (Result, error) {
	cmdline := strings.TrimSpace(text)
	if cmdline == "" || limit <= 0 {
		return Result{}, nil
	}

	items := []proto.Item{{
		Label:    "Run: " + cmdline,
		Detail:   "Run in shell",
		Score:    100,
		Payload:  cmdline,
		Icon:     CommandIcon,
		Metadata: map[string]string{"command": cmdline},
	}}

	word, args, _ := strings.Cut(cmdline, " ")
	if c.executables != nil {
		for _, exe := range c.executables.WithPrefix(word, limit-1) {
			payload := exe.Path
			if args != "" {
				payload += " " + strings.TrimSpace(args)
			}
			items = append(items, proto.Item{
				ID:       exe.Path,
				Label:    exe.Name,
				Detail:   exe.Path,
				Score:    10,
				Payload:  payload,
				Icon:     CommandIcon,
				Metadata: map[string]string{"command": payload},
			})
		}
	}
	return Result{Items: items}, nil
}
