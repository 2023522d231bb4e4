// Package athena adapts the AWS Athena SDK to the engine contract used by
// the query orchestrator.
package athena

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	sdkathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/querydesk/querydesk/internal/engine"
)

type Config struct {
	Region         string
	Workgroup      string
	Database       string
	Catalog        string
	OutputLocation string
	// ResultsPageSize bounds MaxResults on GetQueryResults. Athena caps a
	// page at 1000 rows.
	ResultsPageSize int
}

// api is the slice of the Athena SDK the client needs. Tests substitute a
// fake; production wires *sdkathena.Client.
type api interface {
	StartQueryExecution(ctx context.Context, params *sdkathena.StartQueryExecutionInput, optFns ...func(*sdkathena.Options)) (*sdkathena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *sdkathena.GetQueryExecutionInput, optFns ...func(*sdkathena.Options)) (*sdkathena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *sdkathena.GetQueryResultsInput, optFns ...func(*sdkathena.Options)) (*sdkathena.GetQueryResultsOutput, error)
	StopQueryExecution(ctx context.Context, params *sdkathena.StopQueryExecutionInput, optFns ...func(*sdkathena.Options)) (*sdkathena.StopQueryExecutionOutput, error)
}

type Client struct {
	api api
	cfg Config
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("athena region is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(sdkathena.NewFromConfig(awsCfg), cfg)
}

func NewWithAPI(a api, cfg Config) (*Client, error) {
	if a == nil {
		return nil, fmt.Errorf("athena api is required")
	}
	if cfg.ResultsPageSize <= 0 || cfg.ResultsPageSize > 1000 {
		cfg.ResultsPageSize = 1000
	}
	return &Client{api: a, cfg: cfg}, nil
}

func (c *Client) Submit(ctx context.Context, sql string) (string, error) {
	input := &sdkathena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
	}
	if c.cfg.Workgroup != "" {
		input.WorkGroup = aws.String(c.cfg.Workgroup)
	}
	if c.cfg.Database != "" || c.cfg.Catalog != "" {
		execCtx := &types.QueryExecutionContext{}
		if c.cfg.Database != "" {
			execCtx.Database = aws.String(c.cfg.Database)
		}
		if c.cfg.Catalog != "" {
			execCtx.Catalog = aws.String(c.cfg.Catalog)
		}
		input.QueryExecutionContext = execCtx
	}
	if c.cfg.OutputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: aws.String(c.cfg.OutputLocation),
		}
	}

	out, err := c.api.StartQueryExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", err)
	}
	handle := aws.ToString(out.QueryExecutionId)
	if handle == "" {
		return "", fmt.Errorf("start query execution: empty execution id")
	}
	return handle, nil
}

func (c *Client) Status(ctx context.Context, handle string) (engine.Status, error) {
	out, err := c.api.GetQueryExecution(ctx, &sdkathena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(handle),
	})
	if err != nil {
		return engine.Status{}, fmt.Errorf("get query execution %q: %w", handle, err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return engine.Status{}, fmt.Errorf("get query execution %q: empty status", handle)
	}

	execStatus := out.QueryExecution.Status
	status := engine.Status{
		State:  engine.ParseState(string(execStatus.State)),
		Reason: aws.ToString(execStatus.StateChangeReason),
	}
	if stats := out.QueryExecution.Statistics; stats != nil {
		status.Stats = engine.Stats{
			ExecutionTimeMs: aws.ToInt64(stats.EngineExecutionTimeInMillis),
			BytesScanned:    aws.ToInt64(stats.DataScannedInBytes),
		}
	}
	return status, nil
}

func (c *Client) Results(ctx context.Context, handle, pageToken string) (engine.Page, error) {
	input := &sdkathena.GetQueryResultsInput{
		QueryExecutionId: aws.String(handle),
		MaxResults:       aws.Int32(int32(c.cfg.ResultsPageSize)),
	}
	if pageToken != "" {
		input.NextToken = aws.String(pageToken)
	}

	out, err := c.api.GetQueryResults(ctx, input)
	if err != nil {
		return engine.Page{}, fmt.Errorf("get query results %q: %w", handle, err)
	}
	if out.ResultSet == nil {
		return engine.Page{}, fmt.Errorf("get query results %q: empty result set", handle)
	}

	page := engine.Page{NextToken: aws.ToString(out.NextToken)}
	if meta := out.ResultSet.ResultSetMetadata; meta != nil {
		page.Columns = make([]engine.Column, 0, len(meta.ColumnInfo))
		for _, info := range meta.ColumnInfo {
			page.Columns = append(page.Columns, engine.Column{
				Name: aws.ToString(info.Name),
				Type: aws.ToString(info.Type),
			})
		}
	}
	page.Rows = make([][]string, 0, len(out.ResultSet.Rows))
	for _, row := range out.ResultSet.Rows {
		values := make([]string, 0, len(row.Data))
		for _, datum := range row.Data {
			values = append(values, aws.ToString(datum.VarCharValue))
		}
		page.Rows = append(page.Rows, values)
	}
	return page, nil
}

func (c *Client) Cancel(ctx context.Context, handle string) error {
	if _, err := c.api.StopQueryExecution(ctx, &sdkathena.StopQueryExecutionInput{
		QueryExecutionId: aws.String(handle),
	}); err != nil {
		return fmt.Errorf("stop query execution %q: %w", handle, err)
	}
	return nil
}
