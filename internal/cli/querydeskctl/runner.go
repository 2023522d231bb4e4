// Package querydeskctl implements the operator CLI that talks to a running
// querydesk API server.
package querydeskctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"
)

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	Stdout io.Writer
	Stderr io.Writer

	// HTTPClient is swapped in tests. Defaults to a timeout-bounded client.
	HTTPClient *http.Client
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: querydeskctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  health            check server liveness")
	fmt.Fprintln(w, "  ready             check server readiness")
	fmt.Fprintln(w, "  queries           list the named query catalog")
	fmt.Fprintln(w, "  query             execute SQL or a named query")
}

func Run(ctx context.Context, args []string, opts Options) error {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:8080"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	if len(args) == 0 {
		usage(opts.Stderr)
		return fmt.Errorf("missing command")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "health":
		return runProbe(ctx, opts, "/v1/health")
	case "ready":
		return runProbe(ctx, opts, "/v1/ready")
	case "queries":
		return runListQueries(ctx, opts)
	case "query":
		return runQuery(ctx, opts, rest)
	case "help", "-h", "--help":
		usage(opts.Stdout)
		return nil
	default:
		usage(opts.Stderr)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runProbe(ctx context.Context, opts Options, path string) error {
	resp, body, err := doRequest(ctx, opts, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(opts.Stdout, strings.TrimSpace(string(body)))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}

func runListQueries(ctx context.Context, opts Options) error {
	resp, body, err := doRequest(ctx, opts, http.MethodGet, "/v1/queries", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list queries failed: %s", summarizeError(body, resp.StatusCode))
	}

	var envelope struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			Description string `json:"description"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
	for _, q := range envelope.Data {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", q.ID, q.DisplayName, q.Description)
	}
	return tw.Flush()
}

func runQuery(ctx context.Context, opts Options, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	sqlText := fs.String("sql", "", "SQL statement to execute")
	named := fs.String("named", "", "named query id from the catalog")
	asJSON := fs.Bool("json", false, "print the raw JSON response")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*sqlText == "") == (*named == "") {
		return fmt.Errorf("exactly one of -sql or -named is required")
	}

	payload := map[string]string{}
	if *named != "" {
		payload["queryType"] = "named"
		payload["namedQueryId"] = *named
	} else {
		payload["sql"] = *sqlText
	}
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, body, err := doRequest(ctx, opts, http.MethodPost, "/v1/query", requestBody)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query failed: %s", summarizeError(body, resp.StatusCode))
	}
	if *asJSON {
		fmt.Fprintln(opts.Stdout, strings.TrimSpace(string(body)))
		return nil
	}

	var envelope struct {
		Data struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
			Rows     [][]string `json:"rows"`
			RowCount int        `json:"rowCount"`
			Stats    struct {
				ExecutionTimeMs int64 `json:"executionTimeMs"`
				BytesScanned    int64 `json:"bytesScanned"`
			} `json:"stats"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	headers := make([]string, 0, len(envelope.Data.Columns))
	for _, col := range envelope.Data.Columns {
		headers = append(headers, strings.ToUpper(col.Name))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range envelope.Data.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(opts.Stdout, "\n%d rows (%d ms, %d bytes scanned)\n",
		envelope.Data.RowCount, envelope.Data.Stats.ExecutionTimeMs, envelope.Data.Stats.BytesScanned)
	return nil
}

func doRequest(ctx context.Context, opts Options, method, path string, body []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, opts.BaseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.APIKey != "" {
		req.Header.Set("X-API-Key", opts.APIKey)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp, responseBody, nil
}

func summarizeError(body []byte, status int) string {
	var envelope struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Sprintf("%s (%s)", envelope.Error.Message, envelope.Error.Kind)
	}
	return fmt.Sprintf("status %d", status)
}
