package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"

	"github.com/0xADE/datacube/proto"
)

const prompt = "> "

// session is the part of client.Client the interactive loop uses.
type session interface {
	Query(ctx context.Context, req proto.QueryRequest) (proto.QueryResponse, error)
	ListProviders(ctx context.Context) ([]proto.ProviderInfo, error)
}

// lineReader yields one input line per call and io.EOF at the end.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// scanReader reads plain lines, for pipes and redirected input.
type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *scanReader) Readline() (string, error) {
	fmt.Fprint(r.out, prompt)
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

// newLineReader uses readline with history when in is a terminal and falls
// back to plain line scanning otherwise.
func newLineReader(in *os.File, out io.Writer) lineReader {
	if isatty.IsTerminal(in.Fd()) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          prompt,
			HistoryFile:     filepath.Join(os.TempDir(), ".datacube_history"),
			HistoryLimit:    200,
			InterruptPrompt: "^C",
			EOFPrompt:       "exit",
		})
		if err == nil {
			return rl
		}
		fmt.Fprintf(os.Stderr, "Warning: readline not available, using simple mode: %v\n", err)
	}
	return &scanReader{scanner: bufio.NewScanner(in), out: out}
}

// runInteractive sends each input line as a query. The line ":providers"
// lists the providers instead.
func runInteractive(ctx context.Context, s session, lines lineReader, out io.Writer) error {
	fmt.Fprintln(out, "Interactive mode. Type queries or 'exit' to quit.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := lines.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		switch line = strings.TrimSpace(line); line {
		case "exit", "quit":
			return nil
		case "":
			continue
		case ":providers":
			providers, err := s.ListProviders(ctx)
			if err != nil {
				return err
			}
			printProviders(out, providers, false)
			continue
		}

		resp, err := s.Query(ctx, proto.QueryRequest{Query: line})
		if err != nil {
			return err
		}
		printResponse(out, resp, false)
	}
}
