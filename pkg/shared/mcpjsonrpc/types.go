package mcpjsonrpc

import "encoding/json"

// Based on JSON-RPC 2.0 Specification: https://www.jsonrpc.org/specification

// Version is the protocol version tag carried by every envelope.
const Version = "2.0"

// Request represents a JSON-RPC request object. Params and ID stay raw:
// params are decoded per method, and the ID bytes are echoed verbatim in
// the response (a number stays a number, a string stays a string).
type Request struct {
	Version string          `json:"jsonrpc"`          // MUST be "2.0"
	Method  string          `json:"method"`           // Method to be invoked
	Params  json.RawMessage `json:"params,omitempty"` // Parameters (structured value or array)
	ID      json.RawMessage `json:"id,omitempty"`     // Request identifier (string, number, or null)
}

// IsNotification reports whether the request carries no id member at all.
// An explicit "id": null is NOT a notification; it is answered with id null.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC response object.
type Response struct {
	Version string          `json:"jsonrpc"`          // MUST be "2.0"
	Result  interface{}     `json:"result,omitempty"` // Required on success
	Error   *Error          `json:"error,omitempty"`  // Required on error
	ID      json.RawMessage `json:"id"`               // Must match request ID (or null if could not be determined)
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional data about the error
}

func (e *Error) Error() string { return e.Message }

// Error codes (subset, based on JSON-RPC spec and potential application errors)
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// -32000 to -32099: Server error (implementation-defined)
	CodeServerErrorToolNotFound = -32000
	CodeServerErrorToolFailed   = -32001
)

// nullID is the id used when the request's id could not be determined.
var nullID = json.RawMessage("null")

// NewResponse builds a success envelope echoing the given id.
func NewResponse(id json.RawMessage, result interface{}) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{Version: Version, Result: result, ID: id}
}

// NewErrorResponse builds an error envelope echoing the given id.
func NewErrorResponse(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = nullID
	}
	return &Response{Version: Version, Error: &Error{Code: code, Message: message}, ID: id}
}

// CallToolParams is the "params" shape for the "tools/call" method.
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// InitializeParams is the "params" shape for the "initialize" method.
// The server records nothing from it beyond logging the client identity.
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}
