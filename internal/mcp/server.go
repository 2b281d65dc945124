package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// protocolVersion is the MCP protocol revision this server speaks.
const protocolVersion = "2024-11-05"

// maxLineBytes bounds a single request line. Edit batches carry whole file
// regions, so this is generous.
const maxLineBytes = 16 * 1024 * 1024

// ToolHandler is a function that handles a tool call.
type ToolHandler func(ctx context.Context, arguments json.RawMessage) (*ToolResult, error)

// Server dispatches newline-delimited JSON-RPC requests to registered tools.
type Server struct {
	name    string
	version string

	mu       sync.RWMutex
	tools    map[string]Tool
	handlers map[string]ToolHandler
	order    []string // registration order, so tools/list is deterministic
}

// NewServer creates a server that identifies itself with the given name and
// version during the initialize handshake.
func NewServer(name, version string) *Server {
	return &Server{
		name:     name,
		version:  version,
		tools:    make(map[string]Tool),
		handlers: make(map[string]ToolHandler),
	}
}

// RegisterTool registers a tool and its handler. Re-registering a name
// replaces the handler but keeps its position in the listing.
func (s *Server) RegisterTool(tool Tool, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[tool.Name]; !exists {
		s.order = append(s.order, tool.Name)
	}
	s.tools[tool.Name] = tool
	s.handlers[tool.Name] = handler
}

// ListTools returns all registered tools in registration order.
func (s *Server) ListTools() []Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		tools = append(tools, s.tools[name])
	}
	return tools
}

// CallTool invokes a registered tool by name.
func (s *Server) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*ToolResult, error) {
	s.mu.RLock()
	handler, ok := s.handlers[name]
	s.mu.RUnlock()

	if !ok {
		return &ToolResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("tool not found: %s", name)}},
			IsError: true,
		}, nil
	}
	return handler(ctx, arguments)
}

// Serve reads requests from in and writes responses to out until EOF or the
// context is canceled. Notifications (requests without an ID) get no response.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn().Err(err).Msg("invalid JSON-RPC request")
			s.write(out, NewErrorResponse(nil, ErrorCodeParseError, fmt.Sprintf("invalid JSON: %v", err)))
			continue
		}

		resp := s.handle(ctx, &req)
		if resp != nil {
			s.write(out, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)

	case "notifications/initialized", "initialized":
		return nil

	case "tools/list":
		resp, err := NewResponse(req.ID, ListToolsResult{Tools: s.ListTools()})
		if err != nil {
			return NewErrorResponse(req.ID, ErrorCodeInternalError, err.Error())
		}
		return resp

	case "tools/call":
		return s.handleToolCall(ctx, req)

	default:
		if req.ID == nil {
			// Unknown notification; ignore per JSON-RPC.
			return nil
		}
		return NewErrorResponse(req.ID, ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	result := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    s.name,
			"version": s.version,
		},
	}
	resp, err := NewResponse(req.ID, result)
	if err != nil {
		return NewErrorResponse(req.ID, ErrorCodeInternalError, err.Error())
	}
	return resp
}

func (s *Server) handleToolCall(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrorCodeInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err))
	}

	log.Debug().Str("tool", params.Name).Msg("tool call")

	result, err := s.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log.Error().Err(err).Str("tool", params.Name).Msg("tool handler failed")
		return NewErrorResponse(req.ID, ErrorCodeInternalError, err.Error())
	}

	resp, err := NewResponse(req.ID, result)
	if err != nil {
		return NewErrorResponse(req.ID, ErrorCodeInternalError, err.Error())
	}
	return resp
}

func (s *Server) write(out io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		return
	}
	if _, err := fmt.Fprintf(out, "%s\n", data); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
