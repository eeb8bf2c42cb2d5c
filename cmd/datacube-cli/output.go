package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/0xADE/datacube/proto"
)

type jsonItem struct {
	ID       string            `json:"id,omitempty"`
	Label    string            `json:"label"`
	Detail   string            `json:"detail,omitempty"`
	Score    float64           `json:"score"`
	Payload  string            `json:"payload,omitempty"`
	Icon     string            `json:"icon,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type jsonError struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Position int    `json:"position"`
}

type jsonResponse struct {
	Query    string     `json:"query"`
	QID      string     `json:"qid"`
	Provider string     `json:"provider,omitempty"`
	Items    []jsonItem `json:"items"`
	Error    *jsonError `json:"error,omitempty"`
}

func printResponse(w io.Writer, resp proto.QueryResponse, asJSON bool) error {
	if asJSON {
		out := jsonResponse{
			Query:    resp.Query,
			QID:      resp.QID,
			Provider: resp.Provider,
			Items:    make([]jsonItem, 0, len(resp.Items)),
		}
		for _, it := range resp.Items {
			out.Items = append(out.Items, jsonItem(it))
		}
		if resp.Error != nil {
			out.Error = &jsonError{Kind: resp.Error.Kind, Message: resp.Error.Message, Position: resp.Error.Position}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if resp.Error != nil {
		if resp.Error.Position >= 0 {
			fmt.Fprintf(w, "error: %s: %s (at %d)\n", resp.Error.Kind, resp.Error.Message, resp.Error.Position)
		} else {
			fmt.Fprintf(w, "error: %s: %s\n", resp.Error.Kind, resp.Error.Message)
		}
		return nil
	}
	if len(resp.Items) == 0 {
		fmt.Fprintln(w, "no results")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range resp.Items {
		fmt.Fprintf(tw, "%.1f\t%s\t%s\t%s\n", it.Score, it.Label, it.Detail, it.Payload)
	}
	return tw.Flush()
}

func printProviders(w io.Writer, providers []proto.ProviderInfo, asJSON bool) error {
	if asJSON {
		type jsonProvider struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
			Prefix      string `json:"prefix"`
			Enabled     bool   `json:"enabled"`
		}
		out := make([]jsonProvider, 0, len(providers))
		for _, p := range providers {
			out = append(out, jsonProvider(p))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPREFIX\tENABLED\tDESCRIPTION")
	for _, p := range providers {
		prefix := p.Prefix
		if prefix == "" {
			prefix = "(default)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.Name, prefix, p.Enabled, p.Description)
	}
	return tw.Flush()
}
