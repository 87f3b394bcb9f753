package usecase

import (
	"log/slog"

	"github.com/i2y/mcp-odoo/internal/domain"
)

// ListToolsUseCase provides the functionality to list available tools.
type ListToolsUseCase struct {
	registry ToolRegistry
	logger   *slog.Logger
}

// NewListToolsUseCase creates a new ListToolsUseCase.
func NewListToolsUseCase(registry ToolRegistry, logger *slog.Logger) *ListToolsUseCase {
	return &ListToolsUseCase{
		registry: registry,
		logger:   logger.With("usecase", "ListTools"),
	}
}

// Execute returns every registered tool in registration order. The listing
// is side-effect free and identical across calls.
func (uc *ListToolsUseCase) Execute() []domain.Tool {
	tools := uc.registry.List()
	uc.logger.Debug("Listed tools.", slog.Int("count", len(tools)))
	return tools
}
