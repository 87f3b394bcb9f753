package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcp-odoo/internal/adapter/outbound/memreg"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

func TestRegisterAll(t *testing.T) {
	t.Run("Registers the full suite in a stable order", func(t *testing.T) {
		builder := memreg.NewBuilder(testLogger())
		require.NoError(t, RegisterAll(builder, new(mockGateway), testLogger()))

		registry := builder.Build()
		require.Equal(t, 25, registry.Len())

		want := []string{
			"odoo_version",
			"list_leads",
			"get_lead_details",
			"create_lead",
			"update_lead",
			"convert_lead_to_opportunity",
			"list_crm_stages",
			"list_crm_teams",
			"get_lead_activities",
			"get_academic_programs",
			"get_crm_dashboard_stats",
			"list_partners",
			"get_partner_details",
			"create_partner",
			"update_partner",
			"list_vendor_bills",
			"list_customer_invoices",
			"list_payments",
			"get_invoice_details",
			"reconcile_invoices_and_payments",
			"list_accounting_entries",
			"list_suppliers",
			"list_customers",
			"find_entries_by_account",
			"trace_account_flow",
		}
		tools := registry.List()
		got := make([]string, 0, len(tools))
		for _, tool := range tools {
			got = append(got, tool.Name)
		}
		assert.Equal(t, want, got)
	})

	t.Run("Every tool carries a handler, description and schema", func(t *testing.T) {
		builder := memreg.NewBuilder(testLogger())
		require.NoError(t, RegisterAll(builder, new(mockGateway), testLogger()))

		for _, tool := range builder.Build().List() {
			assert.NotNil(t, tool.Handler, "tool %s has no handler", tool.Name)
			assert.NotEmpty(t, tool.Description, "tool %s has no description", tool.Name)
			assert.Equal(t, "object", tool.InputSchema.Type, "tool %s schema is not an object", tool.Name)
		}
	})

	t.Run("Re-registration reports the duplicate", func(t *testing.T) {
		builder := memreg.NewBuilder(testLogger())
		require.NoError(t, RegisterAll(builder, new(mockGateway), testLogger()))

		err := RegisterAll(builder, new(mockGateway), testLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, usecase.ErrDuplicateTool)
		assert.ErrorContains(t, err, "register system tools")
	})
}
