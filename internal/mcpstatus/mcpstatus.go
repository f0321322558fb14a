// Package mcpstatus exposes a read-only Model Context Protocol tool
// server over the aggregation server's channel lock state, using the
// standard mark3labs/mcp-go server/tool wiring, with a single tool
// answering "what is the current lock state".
package mcpstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ChannelStatus is one channel's state as reported by get_channel_status.
type ChannelStatus struct {
	ID           int     `json:"id"`
	Kind         string  `json:"kind"`
	Synchronised bool    `json:"synchronised"`
	StartFound   bool    `json:"start_found"`
	Level        float64 `json:"level"`
	PhaseDelta   float64 `json:"phase_delta"`
	Offset       int     `json:"offset"`
	BufferLen    int     `json:"buffer_len"`
}

// StatusFunc returns the current status of every known channel.
type StatusFunc func() []ChannelStatus

// Server wraps a mark3labs/mcp-go tool server exposing the
// get_channel_status tool over StreamableHTTP.
type Server struct {
	status     StatusFunc
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

// New constructs a Server that answers get_channel_status calls from
// status.
func New(status StatusFunc) *Server {
	s := &Server{status: status}

	s.mcpServer = server.NewMCPServer(
		"ilserver",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_channel_status",
			mcp.WithDescription("Get the current synchronization state of every receiver channel: whether it has found a carrier onset, whether it has locked to the reference channel, and its current amplitude/phase compensation and time offset. Use this to diagnose why the combiner is or isn't emitting packets."),
			mcp.WithString("format",
				mcp.Description("Output format: 'json' for structured data or 'text' for a human-readable summary"),
				mcp.DefaultString("json"),
			),
		),
		s.handleGetChannelStatus,
	)

	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)
	return s
}

// ServeHTTP lets Server be mounted directly on an http.ServeMux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.ServeHTTP(w, r)
}

func (s *Server) handleGetChannelStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "json")
	channels := s.status()

	if format == "text" {
		text := "Channel status:\n"
		for _, c := range channels {
			locked := "unsynchronised"
			if c.Synchronised {
				locked = "synchronised"
			}
			text += "  channel " + strconv.Itoa(c.ID) + " (" + c.Kind + "): " + locked + "\n"
		}
		return mcp.NewToolResultText(text), nil
	}

	jsonData, err := json.Marshal(channels)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
