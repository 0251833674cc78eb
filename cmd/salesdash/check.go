package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type endpoint struct {
	path        string
	method      string
	contentType string
	contains    []string
	// a cleared chart canvas answers 204
	allowEmpty bool
}

var endpoints = []endpoint{
	// Page
	{path: "/dashboard", method: "GET", contentType: "text/html", contains: []string{"totalSales", "salesTrendChart", "filterStartDate", "dataTableContainer"}},
	{path: "/dashboard/notifications", method: "GET", contentType: "text/html", contains: nil},

	// Stats and charts
	{path: "/dashboard/stats", method: "GET", contentType: "application/json", contains: []string{`"totalSales"`}},
	{path: "/dashboard/charts/salesTrendChart", method: "GET", contentType: "application/json", allowEmpty: true},
	{path: "/dashboard/charts/adDistributionChart", method: "GET", contentType: "application/json", allowEmpty: true},
	{path: "/dashboard/charts/ratioTrendChart", method: "GET", contentType: "application/json", allowEmpty: true},
	{path: "/dashboard/charts/salesTrendChart.png", method: "GET", contentType: "image/png", allowEmpty: true},

	// Export
	{path: "/dashboard/export/filtered.xlsx", method: "GET", contentType: "spreadsheetml", contains: nil},

	// API
	{path: "/api/health", method: "GET", contentType: "application/json", contains: []string{`"status":"ok"`}},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that a running dashboard answers on every route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			baseURL, _ := cmd.Flags().GetString("url")
			verbose, _ := cmd.Flags().GetBool("verbose")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			client := &http.Client{Timeout: timeout}
			return runCheck(cmd.Context(), client, strings.TrimRight(baseURL, "/"), verbose, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("url", "http://localhost:8080", "Base URL of the server to check")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	cmd.Flags().Duration("timeout", 10*time.Second, "Request timeout")

	return cmd
}

func runCheck(ctx context.Context, client *http.Client, baseURL string, verbose bool, out io.Writer) error {
	fmt.Fprintf(out, "Checking server at %s\n", baseURL)
	fmt.Fprintf(out, "Testing %d endpoints...\n\n", len(endpoints))

	var passed, failed int
	for _, ep := range endpoints {
		r := checkEndpoint(ctx, client, baseURL, ep)

		switch {
		case r.err != nil:
			failed++
			fmt.Fprintf(out, "FAIL %s %s\n", ep.method, ep.path)
			fmt.Fprintf(out, "     Error: %v\n", r.err)
		default:
			passed++
			if verbose {
				fmt.Fprintf(out, "PASS %s %s %d (%v)\n", ep.method, ep.path, r.status, r.duration.Round(time.Millisecond))
			}
		}
	}

	fmt.Fprintf(out, "\n========================================\n")
	fmt.Fprintf(out, "Results: %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d endpoints failed", failed, len(endpoints))
	}
	return nil
}

func checkEndpoint(ctx context.Context, client *http.Client, baseURL string, ep endpoint) result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, ep.method, baseURL+ep.path, nil)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("failed to read body: %w", err)}
	}

	r := result{
		endpoint: ep,
		status:   resp.StatusCode,
		duration: time.Since(start),
	}

	switch {
	case resp.StatusCode == http.StatusNoContent && ep.allowEmpty:
		return r
	case resp.StatusCode != http.StatusOK:
		r.err = fmt.Errorf("status %d (expected 200)", resp.StatusCode)
		return r
	}

	// Validate content type
	ct := resp.Header.Get("Content-Type")
	if !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("wrong content type: got %q, expected %q", ct, ep.contentType)
		return r
	}

	// Validate JSON if expected
	if ep.contentType == "application/json" && !json.Valid(body) {
		r.err = fmt.Errorf("invalid JSON")
		return r
	}

	// Validate required content
	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content: %q", needle)
			return r
		}
	}

	return r
}
