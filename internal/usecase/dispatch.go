package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/pkg/shared/mcpjsonrpc"
)

// ProtocolVersion is the MCP protocol revision this server negotiates.
const ProtocolVersion = "2024-11-05"

// InitializeResult is the payload returned by the "initialize" method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises what this server supports. Both listings are
// static, so listChanged stays false.
type Capabilities struct {
	Tools     ListChangedCapability `json:"tools"`
	Resources ListChangedCapability `json:"resources"`
}

// ListChangedCapability marks whether change notifications are emitted.
type ListChangedCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerInfo identifies the server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ListToolsResult is the payload returned by the "tools/list" method.
type ListToolsResult struct {
	Tools []domain.Tool `json:"tools"`
}

// CallToolResult is the payload returned by the "tools/call" method.
type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// TextContent is a single text block inside a CallToolResult.
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Dispatcher decodes JSON-RPC envelopes, routes them to the matching use
// case, and encodes the response. One instance serves all transports;
// concurrent dispatches share nothing mutable beyond the initialization
// flag.
type Dispatcher struct {
	callTool  *CallToolUseCase
	listTools *ListToolsUseCase
	logger    *slog.Logger

	serverName    string
	serverVersion string

	initOnce    sync.Once
	initialized atomic.Bool

	requests metric.Int64Counter
}

// NewDispatcher creates a Dispatcher advertising the given server identity.
func NewDispatcher(callTool *CallToolUseCase, listTools *ListToolsUseCase, serverName, serverVersion string, logger *slog.Logger) *Dispatcher {
	requests, err := otel.Meter(instrumentationName).Int64Counter("mcp.rpc.requests",
		metric.WithDescription("Number of dispatched JSON-RPC requests."))
	if err != nil {
		otel.Handle(err)
	}
	return &Dispatcher{
		callTool:      callTool,
		listTools:     listTools,
		logger:        logger.With("component", "dispatcher"),
		serverName:    serverName,
		serverVersion: serverVersion,
		requests:      requests,
	}
}

// Initialized reports whether an "initialize" call has completed.
func (d *Dispatcher) Initialized() bool {
	return d.initialized.Load()
}

// Dispatch runs decode → route → encode for one raw JSON-RPC message.
// It returns nil for notifications (no id member): the method still
// executes, but no response is produced. The returned envelope echoes the
// request id byte for byte.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) *mcpjsonrpc.Response {
	var req mcpjsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		d.logger.Warn("Failed to parse request.", slog.Any("error", err))
		return mcpjsonrpc.NewErrorResponse(nil, mcpjsonrpc.CodeParseError, fmt.Sprintf("parse error: %v", err))
	}
	if req.Method == "" {
		d.logger.Warn("Request is missing a method.")
		if req.IsNotification() {
			return nil
		}
		return mcpjsonrpc.NewErrorResponse(req.ID, mcpjsonrpc.CodeParseError, "missing method")
	}

	d.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("rpc.method", req.Method)))
	d.logger.Debug("Dispatching request.", slog.String("method", req.Method))

	resp := d.route(ctx, &req)
	if req.IsNotification() {
		if resp != nil && resp.Error != nil {
			d.logger.Warn("Notification failed, dropping error.",
				slog.String("method", req.Method), slog.String("error", resp.Error.Message))
		}
		return nil
	}
	return resp
}

func (d *Dispatcher) route(ctx context.Context, req *mcpjsonrpc.Request) *mcpjsonrpc.Response {
	switch req.Method {
	case "initialize":
		return mcpjsonrpc.NewResponse(req.ID, d.handleInitialize(req))

	case "notifications/initialized":
		// Client acknowledgment, nothing to do.
		return nil

	case "tools/list":
		return mcpjsonrpc.NewResponse(req.ID, ListToolsResult{Tools: d.listTools.Execute()})

	case "tools/call":
		result, err := d.handleToolsCall(ctx, req)
		if err != nil {
			return mcpjsonrpc.NewErrorResponse(req.ID, mcpjsonrpc.CodeInternalError, err.Error())
		}
		return mcpjsonrpc.NewResponse(req.ID, result)

	default:
		d.logger.Warn("Unknown method.", slog.String("method", req.Method))
		return mcpjsonrpc.NewErrorResponse(req.ID, mcpjsonrpc.CodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleInitialize records the initialization state on first call and
// returns the same capability set every time after that.
func (d *Dispatcher) handleInitialize(req *mcpjsonrpc.Request) InitializeResult {
	var params mcpjsonrpc.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			d.logger.Debug("Ignoring unreadable initialize params.", slog.Any("error", err))
		}
	}
	d.initOnce.Do(func() {
		d.initialized.Store(true)
		d.logger.Info("Server initialized.",
			slog.String("client", params.ClientInfo.Name),
			slog.String("client_version", params.ClientInfo.Version),
			slog.String("client_protocol", params.ProtocolVersion))
	})
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capabilities{
			Tools:     ListChangedCapability{ListChanged: false},
			Resources: ListChangedCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{Name: d.serverName, Version: d.serverVersion},
	}
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *mcpjsonrpc.Request) (*CallToolResult, error) {
	var params mcpjsonrpc.CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid tools/call params: %w", err)
		}
	}
	if params.Name == "" {
		return nil, fmt.Errorf("tool name required")
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	if !d.initialized.Load() {
		d.logger.Warn("Tool call before initialize, proceeding anyway.", slog.String("tool", params.Name))
	}

	value, err := d.callTool.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}

	text, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result for tool '%s': %w", params.Name, err)
	}
	return &CallToolResult{Content: []TextContent{{Type: "text", Text: string(text)}}}, nil
}
