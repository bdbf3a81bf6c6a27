package mcp

import "github.com/mark3labs/mcp-go/mcp"

// fetchContextTool defines the fetch_context MCP tool.
var fetchContextTool = mcp.NewTool("fetch_context",
	mcp.WithDescription("Ingest live market context for an asset, split into factual, mediatic, social and positioning layers."),
	mcp.WithString("asset",
		mcp.Required(),
		mcp.Description("Asset symbol, e.g. BTC or NVDA"),
	),
	mcp.WithString("event",
		mcp.Description("Event or context to focus the ingestion on"),
	),
)

// analyzeAssetTool defines the analyze_asset MCP tool.
var analyzeAssetTool = mcp.NewTool("analyze_asset",
	mcp.WithDescription("Run a narrative divergence analysis for an asset. Live context is ingested first unless layer texts are supplied. The result is saved to history."),
	mcp.WithString("asset",
		mcp.Required(),
		mcp.Description("Asset symbol"),
	),
	mcp.WithString("event",
		mcp.Description("Event or context to analyze around"),
	),
	mcp.WithString("factual", mcp.Description("Factual/macro layer text")),
	mcp.WithString("mediatic", mcp.Description("Mediatic/news layer text")),
	mcp.WithString("social", mcp.Description("Social/sentiment layer text")),
	mcp.WithString("positioning", mcp.Description("Behavioral/microstructure layer text")),
)

// listHistoryTool defines the list_history MCP tool.
var listHistoryTool = mcp.NewTool("list_history",
	mcp.WithDescription("List stored analyses, newest first."),
	mcp.WithString("asset",
		mcp.Description("Glob pattern over asset symbols, e.g. BTC*"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of analyses to return (default 10)"),
	),
)

// getAnalysisTool defines the get_analysis MCP tool.
var getAnalysisTool = mcp.NewTool("get_analysis",
	mcp.WithDescription("Get a stored analysis by id."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Analysis id"),
	),
	mcp.WithString("format",
		mcp.Description("Output format (default markdown)"),
		mcp.Enum("markdown", "json"),
	),
)

// askAnalysisTool defines the ask_analysis MCP tool.
var askAnalysisTool = mcp.NewTool("ask_analysis",
	mcp.WithDescription("Ask a question about a stored analysis. Answers use only the analysis record."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Analysis id"),
	),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Question about the analysis"),
	),
)

// clearHistoryTool defines the clear_history MCP tool.
var clearHistoryTool = mcp.NewTool("clear_history",
	mcp.WithDescription("Delete every stored analysis."),
	mcp.WithBoolean("confirm",
		mcp.Required(),
		mcp.Description("Must be true"),
	),
)
