package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/internal/provider"
	"github.com/aigentive/openai-image-mcp/internal/security"
	"github.com/aigentive/openai-image-mcp/internal/session"
)

// errInvalidParams marks caller mistakes caught before anything upstream
// is touched: missing arguments, out-of-range counts, bad enum values.
var errInvalidParams = errors.New("invalid params")

// errorKind translates an error chain into the stable machine-readable
// tag carried on every failed tool result.
func errorKind(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "session_not_found"
	case errors.Is(err, session.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, provider.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, provider.ErrRequestRejected),
		errors.Is(err, provider.ErrEditNotSupported):
		return "request_rejected"
	case errors.Is(err, organizer.ErrIO):
		return "io_error"
	case errors.Is(err, errInvalidParams),
		errors.Is(err, security.ErrPathTraversal),
		errors.Is(err, security.ErrReservedName),
		errors.Is(err, security.ErrInvalidScheme),
		errors.Is(err, security.ErrPrivateIP):
		return "invalid_params"
	default:
		return "internal"
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleToolsCall(req *Request) *Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32602, Message: fmt.Sprintf("Invalid params: %v", err)},
		}
	}

	result, err := s.executeTool(context.Background(), params.Name, params.Arguments)
	s.countCall(params.Name, err != nil)

	if err != nil {
		if errors.Is(err, errUnknownTool) {
			return &Response{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &RPCError{Code: -32602, Message: err.Error()},
			}
		}
		kind := errorKind(err)
		s.log.Warn("tool call failed",
			zap.String("tool", params.Name),
			zap.String("kind", kind),
			zap.Error(err))
		result = map[string]any{
			"success":    false,
			"error":      err.Error(),
			"error_kind": kind,
		}
	}

	text, merr := json.MarshalIndent(result, "", "  ")
	if merr != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32000, Message: fmt.Sprintf("Failed to encode result: %v", merr)},
		}
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": string(text)},
			},
		},
	}
}

var errUnknownTool = errors.New("unknown tool")

func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	// A panic in one tool must not take down the transport loop.
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tool panicked", zap.String("tool", name), zap.Any("panic", r))
			result = nil
			err = fmt.Errorf("internal error in %s: %v", name, r)
		}
	}()

	switch name {
	case "create_image_session":
		return s.handleCreateSession(args)
	case "get_session_status":
		return s.handleSessionStatus(args)
	case "list_active_sessions":
		return s.handleListSessions()
	case "close_session":
		return s.handleCloseSession(args)
	case "generate_image":
		return s.handleGenerateImage(ctx, args)
	case "generate_in_session":
		return s.handleGenerateInSession(ctx, args)
	case "edit_image":
		return s.handleEditImage(ctx, args)
	case "promote_image_to_session":
		return s.handlePromoteImage(ctx, args)
	case "generate_product_image":
		return s.handleProductImage(ctx, args)
	case "generate_ui_asset":
		return s.handleUIAsset(ctx, args)
	case "batch_generate":
		return s.handleBatchGenerate(ctx, args)
	case "get_server_stats":
		return s.handleServerStats(ctx)
	case "get_usage_guide":
		return s.handleUsageGuide()
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownTool, name)
	}
}

func decodeArgs(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

type createSessionArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Model       string `json:"model"`
}

func (s *Server) handleCreateSession(raw json.RawMessage) (any, error) {
	var args createSessionArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Description == "" {
		return nil, fmt.Errorf("%w: description is required", errInvalidParams)
	}
	if args.Model == "auto" {
		// Resolved by the first generation in the session.
		args.Model = ""
	}
	if args.Model != "" {
		if _, ok := s.registry.Get(args.Model); !ok {
			return nil, fmt.Errorf("%w: unknown model %q", errInvalidParams, args.Model)
		}
	}

	summary, err := s.store.Create(args.Description, args.Model, args.Name)
	if err != nil {
		return nil, err
	}

	s.log.Info("session created",
		zap.String("session_id", summary.ID),
		zap.String("name", summary.Name))

	return map[string]any{
		"success":    true,
		"session_id": summary.ID,
		"session":    summary,
	}, nil
}

type sessionIDArgs struct {
	SessionID string `json:"session_id"`
}

func (a sessionIDArgs) validate() error {
	if a.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", errInvalidParams)
	}
	return nil
}

func (s *Server) handleSessionStatus(raw json.RawMessage) (any, error) {
	var args sessionIDArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.validate(); err != nil {
		return nil, err
	}

	sess, err := s.store.Peek(args.SessionID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"success": true,
		"session": sess.Summary(),
		"turns":   s.builder.Build(sess),
		"images":  sess.Images,
	}, nil
}

func (s *Server) handleListSessions() (any, error) {
	summaries := s.store.List()
	return map[string]any{
		"success":  true,
		"count":    len(summaries),
		"sessions": summaries,
	}, nil
}

func (s *Server) handleCloseSession(raw json.RawMessage) (any, error) {
	var args sessionIDArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := args.validate(); err != nil {
		return nil, err
	}

	summary, err := s.store.Close(args.SessionID)
	if err != nil {
		return nil, err
	}

	s.log.Info("session closed",
		zap.String("session_id", summary.ID),
		zap.Int("turns", summary.TurnCount),
		zap.Int("images", summary.ImageCount))

	return map[string]any{
		"success": true,
		"session": summary,
	}, nil
}
