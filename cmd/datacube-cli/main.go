// Package main is a command line client for the datacube daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/0xADE/datacube/client"
	"github.com/0xADE/datacube/proto"
)

// errQueryFailed exits with status 2 once the error response is printed.
var errQueryFailed = errors.New("query failed")

var (
	configPath   string
	socketPath   string
	timeout      time.Duration
	jsonOutput   bool
	providerName string
	maxResults   int
)

var rootCmd = &cobra.Command{
	Use:           "datacube-cli",
	Short:         "Query a running datacube daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Send one query and print the results",
	Long: `Send one query and print the results.

Examples:
  # Search applications
  datacube-cli query firefox

  # Calculator
  datacube-cli query '=2*(3+4)'

  # Bypass prefix routing
  datacube-cli query --provider calculator '1/3'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
			resp, err := c.Query(ctx, proto.QueryRequest{
				Query:      strings.Join(args, " "),
				Provider:   providerName,
				MaxResults: maxResults,
			})
			if err != nil {
				return err
			}
			if err := printResponse(os.Stdout, resp, useJSON(cmd)); err != nil {
				return err
			}
			if resp.Error != nil {
				return errQueryFailed
			}
			return nil
		})
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the daemon's providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, c *client.Client) error {
			providers, err := c.ListProviders(ctx)
			if err != nil {
				return err
			}
			return printProviders(os.Stdout, providers, useJSON(cmd))
		})
	},
}

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Read queries from stdin, one per line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		lines := newLineReader(os.Stdin, os.Stdout)
		defer lines.Close()
		return runInteractive(cmd.Context(), c, lines, os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON (default when stdout is not a terminal)")

	queryCmd.Flags().StringVarP(&providerName, "provider", "p", "", "send the query to this provider")
	queryCmd.Flags().IntVarP(&maxResults, "max", "n", 0, "maximum number of results")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(interactiveCmd)
}

func useJSON(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("json") {
		return jsonOutput
	}
	return !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func dial(ctx context.Context) (*client.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if socketPath != "" {
		return client.Dial(dialCtx, socketPath)
	}
	return client.NewClient(dialCtx, configPath)
}

func withClient(ctx context.Context, fn func(context.Context, *client.Client) error) error {
	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(reqCtx, c)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, errQueryFailed) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
