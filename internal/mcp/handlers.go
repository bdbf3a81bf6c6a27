package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/history"
	"github.com/ziadkadry99/nae/internal/report"
)

// handleFetchContext ingests and returns the four context layers.
func (s *Server) handleFetchContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	asset, err := request.RequireString("asset")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: asset"), nil
	}
	ing, err := s.assembler.Ingest(ctx, strings.ToUpper(asset), request.GetString("event", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingestion failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatContext(ing)), nil
}

// handleAnalyzeAsset runs an analysis, ingesting first when no layers are given.
func (s *Server) handleAnalyzeAsset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	asset, err := request.RequireString("asset")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: asset"), nil
	}
	asset = strings.ToUpper(asset)
	event := request.GetString("event", "")

	var snapshot engine.ContextObject
	supplied := false
	for _, ls := range engine.LayerSections {
		if v := request.GetString(ls.Field, ""); v != "" {
			snapshot.Set(ls.Field, v)
			supplied = true
		}
	}
	if !supplied {
		snapshot, err = s.assembler.BuildContext(ctx, asset, event)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ingestion failed: %v", err)), nil
		}
	}

	rec, err := s.analyzer.Analyze(ctx, asset, event, snapshot)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	if err := s.history.Save(ctx, rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis %s completed but could not be saved: %v", rec.ID, err)), nil
	}
	md, err := report.Markdown(rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(md), nil
}

// handleListHistory returns a table of stored analyses.
func (s *Server) handleListHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.history.Filter(ctx, request.GetString("asset", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("No analyses stored. Use analyze_asset to run one."), nil
	}
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return mcp.NewToolResultText(fmt.Sprintf("Found %d analysis(es):\n\n%s", len(records), report.Index(records))), nil
}

// handleGetAnalysis returns one stored analysis as markdown or JSON.
func (s *Server) handleGetAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	rec, err := s.history.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(notFoundMessage(err, id)), nil
	}
	if request.GetString("format", "markdown") == "json" {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
	md, err := report.Markdown(rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(md), nil
}

// handleAskAnalysis answers a question about a stored analysis.
func (s *Server) handleAskAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	rec, err := s.history.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(notFoundMessage(err, id)), nil
	}
	answer, err := s.assistant.Ask(ctx, question, rec)
	if err != nil {
		return mcp.NewToolResultError(engine.FallbackAnswer), nil
	}
	return mcp.NewToolResultText(answer), nil
}

// handleClearHistory deletes every stored analysis.
func (s *Server) handleClearHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !request.GetBool("confirm", false) {
		return mcp.NewToolResultError("refusing to clear history without confirm=true"), nil
	}
	if err := s.history.Clear(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
	}
	return mcp.NewToolResultText("History cleared."), nil
}

func notFoundMessage(err error, id string) string {
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Sprintf("No analysis with id %q. Use list_history to see stored analyses.", id)
	}
	return err.Error()
}

// formatContext renders an ingestion result for AI agent consumption.
func formatContext(ing *engine.Ingestion) string {
	var sb strings.Builder
	for _, ls := range engine.LayerSections {
		sb.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", strings.ToUpper(ls.Field), ing.Context.Get(ls.Field)))
	}
	if len(ing.Sources) > 0 {
		sb.WriteString("## SOURCES\n\n")
		for _, src := range ing.Sources {
			sb.WriteString("- " + src + "\n")
		}
	}
	return sb.String()
}
