package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"slumber/internal/model"
)

// printRequest renders the would-be request for --dry-run, in the same
// shape curl -v would show: request line, headers, then body.
func printRequest(cmd *cobra.Command, req *model.Request) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", req.Method, req.URL)
	for _, h := range req.Headers.Entries {
		fmt.Fprintf(out, "%s: %s\n", h.Name, h.Value)
	}
	if len(req.Body.Raw) > 0 {
		fmt.Fprintln(out)
		out.Write(req.Body.Raw)
		fmt.Fprintln(out)
	}
}

// printResponse renders ex.Response per the --status/--headers/--no-body
// flags (spec.md §6's CLI surface).
func printResponse(cmd *cobra.Command, ex *model.Exchange) {
	out := cmd.OutOrStdout()
	resp := ex.Response

	if flagShowStatus {
		fmt.Fprintf(out, "%s %d %s\n", resp.HTTPVersion, resp.Status, http.StatusText(resp.Status))
	}
	if flagShowHeaders {
		for _, h := range resp.Headers.Entries {
			fmt.Fprintf(out, "%s: %s\n", h.Name, h.Value)
		}
	}
	if flagNoBody {
		return
	}

	if resp.Stream != nil {
		rc, err := resp.Stream.Open()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "reading response stream:", err)
			return
		}
		defer rc.Close()
		io.Copy(out, rc)
		return
	}
	out.Write(resp.Body)
}
