package memreg

import (
	"fmt"
	"log/slog"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

// Builder accumulates tool registrations during bootstrap. Registration is
// single-threaded and happens before any transport starts; Build freezes
// the set into a read-only Registry.
type Builder struct {
	tools  map[string]domain.Tool
	order  []string
	logger *slog.Logger
	built  bool
}

// NewBuilder creates an empty registry builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{
		tools:  make(map[string]domain.Tool),
		logger: logger.With("component", "tool_registry"),
	}
}

// Register adds a tool. Names must be unique; a duplicate fails with an
// error wrapping usecase.ErrDuplicateTool. Registration order is preserved
// for capability advertisement.
func (b *Builder) Register(tool domain.Tool) error {
	if b.built {
		return fmt.Errorf("register '%s': registry already built", tool.Name)
	}
	if tool.Name == "" {
		return fmt.Errorf("register: tool name is empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("register '%s': tool has no handler", tool.Name)
	}
	if _, exists := b.tools[tool.Name]; exists {
		return fmt.Errorf("register '%s': %w", tool.Name, usecase.ErrDuplicateTool)
	}
	b.tools[tool.Name] = tool
	b.order = append(b.order, tool.Name)
	b.logger.Debug("Registered tool.", slog.String("tool", tool.Name))
	return nil
}

// Build freezes the builder and returns the read-only registry.
func (b *Builder) Build() *Registry {
	b.built = true
	b.logger.Info("Tool registry built.", slog.Int("count", len(b.order)))
	return &Registry{tools: b.tools, order: b.order}
}

// Registry is the frozen tool set. It is populated once at process start
// and never mutated afterwards, so lookups and listings need no locking.
type Registry struct {
	tools map[string]domain.Tool
	order []string
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (domain.Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return domain.Tool{}, fmt.Errorf("lookup '%s': %w", name, usecase.ErrToolNotFound)
	}
	return tool, nil
}

// List returns all tools in registration order. The returned slice is a
// fresh copy; callers may not mutate registry state through it.
func (r *Registry) List() []domain.Tool {
	list := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
