package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// MCPServer dispatches JSON-RPC 2.0 messages against a Registry, per
// spec.md §4.10: initialize, tools/list, tools/call, resources/list,
// resources/read. It is transport-agnostic; internal/gatewayhttp wires it
// to the Streamable HTTP endpoint (http.go).
type MCPServer struct {
	reg    *Registry
	info   ServerInfo
	logger *zap.Logger
}

func NewMCPServer(reg *Registry, info ServerInfo, logger *zap.Logger) *MCPServer {
	return &MCPServer{reg: reg, info: info, logger: logger}
}

// HandleMessage parses one JSON-RPC message and returns its response, or
// nil for a notification (no id) that requires none.
func (s *MCPServer) HandleMessage(ctx context.Context, data []byte) *RPCResponse {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return &RPCResponse{JSONRPC: "2.0", Error: &RPCError{Code: ErrCodeParse, Message: "parse error", Data: err.Error()}}
	}
	if len(req.ID) == 0 || string(req.ID) == "null" {
		s.logger.Debug("mcp notification", zap.String("method", req.Method))
		return nil
	}

	result, rpcErr := s.dispatch(ctx, &req)
	resp := &RPCResponse{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func (s *MCPServer) dispatch(ctx context.Context, req *RPCRequest) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.Params)
	case "tools/list":
		return &ToolsListResult{Tools: s.reg.toolDefinitions()}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "resources/list":
		return &ResourcesListResult{Resources: s.reg.ListResources()}, nil
	case "resources/read":
		return s.handleResourcesRead(req.Params)
	default:
		return nil, &RPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

func (s *MCPServer) handleInitialize(params json.RawMessage) (any, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "invalid initialize params", Data: err.Error()}
		}
	}
	s.logger.Info("mcp client connecting",
		zap.String("client", p.ClientInfo.Name),
		zap.String("protocolVersion", p.ProtocolVersion))

	caps := ServerCapability{Tools: &ToolsCapability{}}
	if len(s.reg.ListResources()) > 0 {
		caps.Resources = &ResourcesCapability{}
	}
	return &InitializeResult{
		ProtocolVersion: "2025-03-26",
		Capabilities:    caps,
		ServerInfo:      s.info,
	}, nil
}

func (s *MCPServer) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var p ToolsCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "invalid tools/call params", Data: err.Error()}
	}
	entry, ok := s.reg.Get(p.Name)
	if !ok {
		return nil, &RPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool not found: %s", p.Name)}
	}

	kwargs := map[string]string{}
	if len(p.Arguments) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(p.Arguments, &obj); err == nil {
			for k, v := range obj {
				kwargs[k] = stringifyArg(v)
			}
		}
	}

	call := CallFromArgs(p.Name, nil, kwargs)
	result, err := entry.Handler(ctx, call)
	if err != nil {
		s.logger.Warn("mcp tool call failed", zap.String("tool", p.Name), zap.Error(err))
		return errorToolResult(err.Error()), nil
	}

	wrapped, err := JSONToolResult(result)
	if err != nil {
		return nil, &RPCError{Code: ErrCodeInternal, Message: "failed to serialize result"}
	}
	return wrapped, nil
}

func (s *MCPServer) handleResourcesRead(params json.RawMessage) (any, *RPCError) {
	var p ResourcesReadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &RPCError{Code: ErrCodeInvalidParams, Message: "invalid resources/read params", Data: err.Error()}
	}
	res, ok := s.reg.GetResource(p.URI)
	if !ok {
		return nil, &RPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("resource not found: %s", p.URI)}
	}
	result, err := res.Read()
	if err != nil {
		return nil, &RPCError{Code: ErrCodeInternal, Message: fmt.Sprintf("resource read error: %v", err)}
	}
	return result, nil
}
