package tools

import (
	"context"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

func systemTools(gw usecase.OdooGateway) []domain.Tool {
	return []domain.Tool{
		{
			Name:        "odoo_version",
			Description: "Get the Odoo server version information. Useful to verify backend connectivity.",
			InputSchema: domain.ObjectSchema(nil),
			Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
				return gw.ServerVersion(ctx)
			},
		},
	}
}
