// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes marksync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/marksync/internal/apperr"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/syncservice"
)

const contractURI = "marksync://timeline-format"

// Server wraps the MCP server with marksync tools.
type Server struct {
	mcp *server.MCPServer
	svc *syncservice.Service
}

// New creates a new MCP server with all marksync tools registered.
func New(svc *syncservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"marksync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_timeline",
		mcp.WithDescription("Run one reconciliation cycle between note frontmatter and the timeline document. "+
			"Returns the cycle result with warnings."),
		mcp.WithString("direction",
			mcp.Description("toTimeline or bidirectional (default: configured direction)"),
			mcp.Enum(string(models.ToTimeline), string(models.Bidirectional)),
		),
		mcp.WithBoolean("dry_run", mcp.Description("Report what would change without writing anything")),
	), s.syncTimeline)

	s.mcp.AddTool(mcp.NewTool("read_timeline",
		mcp.WithDescription("Read the timeline document and its parsed events."),
	), s.readTimeline)

	s.mcp.AddTool(mcp.NewTool("list_cycles",
		mcp.WithDescription("List recent reconciliation cycles, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of cycles (default 20)")),
	), s.listCycles)

	s.mcp.AddTool(mcp.NewTool("get_timeline_contract",
		mcp.WithDescription("Returns the timeline document format. "+
			"Call this before editing the timeline so the next cycle can apply the edits."),
	), s.getTimelineContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Timeline Format Contract",
			mcp.WithResourceDescription("Line grammar of the timeline document."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) syncTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var dir models.Direction
	if raw := req.GetString("direction", ""); raw != "" {
		d, err := models.ParseDirection(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		dir = d
	}
	res, err := s.svc.RunNow(ctx, "mcp", dir, req.GetBool("dry_run", false))
	if err != nil {
		if errors.Is(err, apperr.ErrBusy) {
			return mcp.NewToolResultError("a sync cycle is already running; retry shortly"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) readTimeline(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.svc.Timeline(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError("timeline not created yet; run sync_timeline first"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(view), nil
}

func (s *Server) listCycles(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cycles, err := s.svc.Cycles(req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cycles), nil
}

func (s *Server) getTimelineContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TimelineFormatContract(s.svc.Options())), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     TimelineFormatContract(s.svc.Options()),
		},
	}, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
