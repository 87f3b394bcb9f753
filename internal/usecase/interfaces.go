package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/i2y/mcp-odoo/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// ToolRegistry is the read side of the tool registry. The registry is
// frozen before any transport accepts requests, so implementations may
// serve reads without synchronization.
type ToolRegistry interface {
	// Lookup returns the tool registered under name, or an error wrapping
	// ErrToolNotFound.
	Lookup(name string) (domain.Tool, error)

	// List returns all tools in registration order. The slice is a fresh
	// copy on every call and never nil.
	List() []domain.Tool

	// Len reports how many tools are registered.
	Len() int
}

// OdooGateway is the backend RPC surface tool handlers consume. Connectivity
// failures are ordinary errors; implementations own reconnect behavior, the
// dispatcher never retries.
type OdooGateway interface {
	// Connect authenticates against the backend and caches the resulting uid.
	Connect(ctx context.Context) error

	// IsConnected reports whether an authenticated uid is cached.
	IsConnected() bool

	// ServerVersion returns the backend's version descriptor.
	ServerVersion(ctx context.Context) (map[string]interface{}, error)

	// ExecuteKw performs a generic model method call.
	ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}) (json.RawMessage, error)

	// SearchRead queries records matching domain, returning the given fields.
	// Zero limit/offset and empty order are omitted from the call.
	SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, limit, offset int, order string) ([]map[string]interface{}, error)

	// SearchCount counts records matching domain.
	SearchCount(ctx context.Context, model string, domain []interface{}) (int, error)
}
