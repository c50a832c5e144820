package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ask-kyra/internal/desk"
	"ask-kyra/internal/logging"
	"ask-kyra/internal/storage"
)

const dateLayout = "02-01-2006"

type HistoryParams struct {
	Email string `json:"email" mcp:"student email exactly as it was typed into the form"`
}

type DigestParams struct {
	Date string `json:"date,omitempty" mcp:"day to summarize as DD-MM-YYYY, today when empty"`
}

// Tools exposes read-only lookups over the stores to MCP clients.
type Tools struct {
	desk *desk.Service
	now  func() time.Time
}

func New(d *desk.Service) *Tools {
	return &Tools{desk: d, now: time.Now}
}

// Register adds every tool to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "kyra_query_history",
		Description: "Lists the questions a student asked Ky'ra and the replies that were shown",
	}, t.QueryHistory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kyra_project_history",
		Description: "Lists the project titles recorded for a student",
	}, t.ProjectHistory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kyra_daily_digest",
		Description: "Summarizes questions and project rows recorded on one day",
	}, t.DailyDigest)
}

func (t *Tools) QueryHistory(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[HistoryParams]) (*mcp.CallToolResultFor[any], error) {
	email := params.Arguments.Email
	if email == "" {
		return errorResult("email is required"), nil
	}
	recs, err := t.desk.QueryHistory(ctx, email)
	if err != nil {
		logging.FromContext(ctx).Error(ctx, "query history tool failed", zap.Error(err))
		return errorResult(fmt.Sprintf("failed to load queries: %v", err)), nil
	}

	var b strings.Builder
	if len(recs) == 0 {
		fmt.Fprintf(&b, "No chat history for %s.", email)
	}
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. [%s] Q: %s\n   A: %s\n", i+1, r.Timestamp, r.Query, r.Response)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
		Meta: map[string]any{
			"email":   email,
			"count":   len(recs),
			"queries": recs,
		},
	}, nil
}

func (t *Tools) ProjectHistory(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[HistoryParams]) (*mcp.CallToolResultFor[any], error) {
	email := params.Arguments.Email
	if email == "" {
		return errorResult("email is required"), nil
	}
	recs, err := t.desk.ProjectHistory(ctx, email)
	if err != nil {
		logging.FromContext(ctx).Error(ctx, "project history tool failed", zap.Error(err))
		return errorResult(fmt.Sprintf("failed to load projects: %v", err)), nil
	}

	var b strings.Builder
	if len(recs) == 0 {
		fmt.Fprintf(&b, "No projects submitted by %s.", email)
	}
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. [%s] %s%s\n", i+1, r.Timestamp, r.ProjectTitle, extras(r.Extra))
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
		Meta: map[string]any{
			"email":    email,
			"count":    len(recs),
			"projects": recs,
		},
	}, nil
}

func (t *Tools) DailyDigest(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[DigestParams]) (*mcp.CallToolResultFor[any], error) {
	day := t.now()
	if d := strings.TrimSpace(params.Arguments.Date); d != "" {
		parsed, err := time.ParseInLocation(dateLayout, d, time.Local)
		if err != nil {
			return errorResult(fmt.Sprintf("date must be DD-MM-YYYY: %v", err)), nil
		}
		day = parsed
	}
	stats, err := t.desk.Digest(ctx, day)
	if err != nil {
		logging.FromContext(ctx).Error(ctx, "digest tool failed", zap.Error(err))
		return errorResult(fmt.Sprintf("failed to build digest: %v", err)), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: stats.GenerateReportSummary()}},
		Meta: map[string]any{
			"date":            stats.Date,
			"total_queries":   stats.TotalQueries,
			"unique_students": stats.UniqueStudents,
			"failed_answers":  stats.FailedAnswers,
			"project_rows":    stats.ProjectRows,
		},
	}, nil
}

func errorResult(msg string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func extras(cols []storage.Column) string {
	if len(cols) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.Value != "" {
			parts = append(parts, c.Name+"="+c.Value)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
