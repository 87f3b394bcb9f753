package tools

import (
	"fmt"
	"log/slog"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

// Registrar collects tool definitions during bootstrap. It is satisfied by
// the registry builder.
type Registrar interface {
	Register(tool domain.Tool) error
}

// RegisterAll registers the full tool suite against r in a fixed order:
// system, CRM, partners, accounting. The order is what clients see in
// tools/list, so it must stay stable across releases.
func RegisterAll(r Registrar, gw usecase.OdooGateway, logger *slog.Logger) error {
	log := logger.With(slog.String("component", "tools"))

	groups := []struct {
		name  string
		tools []domain.Tool
	}{
		{"system", systemTools(gw)},
		{"crm", crmTools(gw)},
		{"partners", partnerTools(gw)},
		{"accounting", accountingTools(gw)},
	}

	total := 0
	for _, g := range groups {
		for _, tool := range g.tools {
			if err := r.Register(tool); err != nil {
				return fmt.Errorf("register %s tools: %w", g.name, err)
			}
			total++
		}
		log.Debug("Registered tool group.", slog.String("group", g.name), slog.Int("tools", len(g.tools)))
	}

	log.Info("Registered tool suite.", slog.Int("count", total))
	return nil
}
