package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ziadkadry99/nae/internal/engine"
	"github.com/ziadkadry99/nae/internal/history"
	"github.com/ziadkadry99/nae/internal/logging"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the analysis pipeline as tools.
type Server struct {
	assembler *engine.Assembler
	analyzer  *engine.Analyzer
	assistant *engine.Assistant
	history   *history.Store
	logger    *zap.Logger
	mcp       *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(assembler *engine.Assembler, analyzer *engine.Analyzer, assistant *engine.Assistant, store *history.Store, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	s := &Server{
		assembler: assembler,
		analyzer:  analyzer,
		assistant: assistant,
		history:   store,
		logger:    logger,
	}

	s.mcp = server.NewMCPServer(
		"nae",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(fetchContextTool, s.handleFetchContext)
	s.mcp.AddTool(analyzeAssetTool, s.handleAnalyzeAsset)
	s.mcp.AddTool(listHistoryTool, s.handleListHistory)
	s.mcp.AddTool(getAnalysisTool, s.handleGetAnalysis)
	s.mcp.AddTool(askAnalysisTool, s.handleAskAnalysis)
	s.mcp.AddTool(clearHistoryTool, s.handleClearHistory)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
