package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aigentive/openai-image-mcp/internal/history"
	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/internal/provider"
	"github.com/aigentive/openai-image-mcp/internal/session"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

const (
	serverName      = "openai-image-mcp"
	serverVersion   = "0.2.0"
	protocolVersion = "2024-11-05"
)

// Server speaks MCP (JSON-RPC 2.0 over stdio) and dispatches tool calls
// to the session, generation and organizer layers.
type Server struct {
	log       *zap.Logger
	store     *session.Store
	builder   *session.ContextBuilder
	client    provider.Client
	organizer *organizer.Organizer
	history   *history.Log
	registry  *models.ModelRegistry
	startedAt time.Time

	statsMu    sync.Mutex
	toolCalls  map[string]int
	toolErrors int
}

type Options struct {
	Log       *zap.Logger
	Store     *session.Store
	Client    provider.Client
	Organizer *organizer.Organizer
	History   *history.Log // optional; stats degrade gracefully without it
	Registry  *models.ModelRegistry
	// ContextTurns bounds how much session history is replayed upstream.
	// Zero means the default cap.
	ContextTurns int
}

func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = models.DefaultRegistry()
	}
	return &Server{
		log:       log,
		store:     opts.Store,
		builder:   session.NewContextBuilder(opts.ContextTurns),
		client:    opts.Client,
		organizer: opts.Organizer,
		history:   opts.History,
		registry:  registry,
		startedAt: time.Now(),
		toolCalls: make(map[string]int),
	}
}

// Request is an incoming JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Run reads newline-delimited JSON-RPC requests from r and writes
// responses to w until EOF. Malformed lines are logged and skipped; no
// request may take the process down.
func (s *Server) Run(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", zap.Error(err))
			continue
		}

		resp := s.handleRequest(&req)
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			s.log.Error("failed to encode response", zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

func (s *Server) handleRequest(req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment; nothing to send back.
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
		},
	}
}

func (s *Server) handleToolsList(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]any{"tools": toolDefinitions()},
	}
}

func (s *Server) countCall(tool string, failed bool) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.toolCalls[tool]++
	if failed {
		s.toolErrors++
	}
}
