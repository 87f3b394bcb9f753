package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i2y/mcp-odoo/internal/domain"
)

func TestListVendorBills(t *testing.T) {
	assert := assert.New(t)
	gw := new(mockGateway)

	records := []map[string]interface{}{{
		"id":               float64(201),
		"name":             "BILL/2024/0042",
		"amount_total":     float64(1210),
		"amount_residual":  float64(605),
		"invoice_date":     "2024-02-10",
		"invoice_date_due": "2024-03-10",
		"state":            "posted",
		"payment_state":    "partial",
		"partner_id":       []interface{}{float64(88), "Proveedores Reunidos"},
		"currency_id":      []interface{}{float64(1), "EUR"},
	}}

	gw.On("SearchRead", mock.Anything, "account.move",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_type", "=", "in_invoice") &&
				hasCond(dom, "partner_id", "=", 88) &&
				hasCond(dom, "payment_state", "!=", "paid") &&
				hasCond(dom, "invoice_date", ">=", "2024-01-01")
		}),
		invoiceListFields, defaultLimit, 0, "").
		Return(records, nil).Once()

	result, err := accountingToolByName(t, gw, "list_vendor_bills").Handler(context.Background(), map[string]interface{}{
		"partner_id": float64(88),
		"pending":    true,
		"date_from":  "2024-01-01",
	})
	require.NoError(t, err)

	bills := result.([]map[string]interface{})
	require.Len(t, bills, 1)
	bill := bills[0]
	assert.Equal("BILL/2024/0042", bill["name"])
	assert.Equal("2024-02-10", bill["date"])
	assert.Equal("EUR", bill["currency"])
	assert.Equal("partial", bill["payment_state"])
	assert.Equal("Partially Paid", bill["payment_state_display"])
	assert.Equal(map[string]interface{}{"id": float64(88), "name": "Proveedores Reunidos"}, bill["partner"])

	gw.AssertExpectations(t)
}

func TestListCustomerInvoices(t *testing.T) {
	gw := new(mockGateway)

	gw.On("SearchRead", mock.Anything, "account.move",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_type", "=", "out_invoice") &&
				!hasCond(dom, "payment_state", "!=", "paid")
		}),
		invoiceListFields, defaultLimit, 0, "").
		Return([]map[string]interface{}{}, nil).Once()

	result, err := accountingToolByName(t, gw, "list_customer_invoices").Handler(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Empty(t, result)

	gw.AssertExpectations(t)
}

// accountingToolByName picks one tool out of the accounting group.
func accountingToolByName(t *testing.T, gw *mockGateway, name string) domain.Tool {
	t.Helper()
	for _, tool := range accountingTools(gw) {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("no accounting tool named %s", name)
	panic("unreachable")
}

func TestListPayments(t *testing.T) {
	assert := assert.New(t)
	gw := new(mockGateway)

	records := []map[string]interface{}{
		{
			"id": float64(301), "name": "PAY/2024/0007",
			"amount": float64(605), "date": "2024-02-20",
			"state": "posted", "payment_type": "outbound",
			"partner_id":             []interface{}{float64(88), "Proveedores Reunidos"},
			"journal_id":             []interface{}{float64(2), "Bank"},
			"currency_id":            []interface{}{float64(1), "EUR"},
			"reconciled_invoice_ids": []interface{}{float64(201)},
			"payment_method_id":      []interface{}{float64(1), "Manual"},
		},
		{
			"id": float64(302), "name": "PAY/2024/0008",
			"amount": float64(100), "date": "2024-02-21",
			"state": "posted", "payment_type": "outbound",
			"partner_id":             []interface{}{float64(90), "Otra S.A."},
			"journal_id":             []interface{}{float64(2), "Bank"},
			"currency_id":            []interface{}{float64(1), "EUR"},
			"reconciled_invoice_ids": []interface{}{float64(999)},
			"payment_method_id":      []interface{}{float64(1), "Manual"},
		},
	}

	gw.On("SearchRead", mock.Anything, "account.payment", mock.Anything,
		paymentListFields, defaultLimit, 0, "").
		Return(records, nil).Once()

	result, err := accountingToolByName(t, gw, "list_payments").Handler(context.Background(), map[string]interface{}{
		"invoice_id": float64(201),
	})
	require.NoError(t, err)

	payments := result.([]map[string]interface{})
	require.Len(t, payments, 1)
	assert.Equal("PAY/2024/0007", payments[0]["name"])
	assert.Equal("Bank", payments[0]["journal"])
	assert.Equal("Manual", payments[0]["payment_method"])

	gw.AssertExpectations(t)
}

func TestGetInvoiceDetails(t *testing.T) {
	assert := assert.New(t)
	gw := new(mockGateway)

	header := json.RawMessage(`[{
		"id": 201, "name": "BILL/2024/0042",
		"amount_total": 1210.0, "amount_residual": 0.0,
		"invoice_date": "2024-02-10", "state": "posted",
		"payment_state": "paid",
		"partner_id": [88, "Proveedores Reunidos"],
		"currency_id": [1, "EUR"],
		"ref": "PO-991", "move_type": "in_invoice"
	}]`)
	gw.On("ExecuteKw", mock.Anything, "account.move", "read",
		[]interface{}{201},
		mock.MatchedBy(func(kwargs map[string]interface{}) bool {
			fields, ok := kwargs["fields"].([]string)
			if !ok {
				return false
			}
			for _, f := range fields {
				if f == "narration" {
					return true
				}
			}
			return false
		})).
		Return(header, nil).Once()

	gw.On("ExecuteKw", mock.Anything, "account.move.line", "search",
		mock.MatchedBy(func(callArgs []interface{}) bool {
			dom, ok := callArgs[0].(searchDomain)
			return ok && hasCond(dom, "move_id", "=", 201) &&
				hasCond(dom, "exclude_from_invoice_tab", "=", false)
		}), mock.Anything).
		Return(json.RawMessage(`[501, 502]`), nil).Once()

	gw.On("ExecuteKw", mock.Anything, "account.move.line", "read",
		[]interface{}{[]int{501, 502}}, mock.Anything).
		Return(json.RawMessage(`[
			{"name": "Course materials", "quantity": 10.0, "price_unit": 100.0, "price_subtotal": 1000.0},
			{"name": "Shipping", "quantity": 1.0, "price_unit": 210.0, "price_subtotal": 210.0}
		]`), nil).Once()

	result, err := accountingToolByName(t, gw, "get_invoice_details").Handler(context.Background(), map[string]interface{}{
		"invoice_id": float64(201),
	})
	require.NoError(t, err)

	details := result.(map[string]interface{})
	assert.Equal("Paid", details["payment_state_display"])
	lines := details["lines"].([]map[string]interface{})
	require.Len(t, lines, 2)
	assert.Equal("Course materials", lines[0]["name"])

	gw.AssertExpectations(t)
}

func TestGetInvoiceDetails_NotFound(t *testing.T) {
	gw := new(mockGateway)
	gw.On("ExecuteKw", mock.Anything, "account.move", "read",
		[]interface{}{999}, mock.Anything).
		Return(json.RawMessage(`[]`), nil).Once()

	_, err := accountingToolByName(t, gw, "get_invoice_details").Handler(context.Background(), map[string]interface{}{
		"invoice_id": float64(999),
	})
	assert.ErrorContains(t, err, "invoice 999 not found")
	gw.AssertExpectations(t)
}

func TestReconcileInvoicesAndPayments(t *testing.T) {
	assert := assert.New(t)
	gw := new(mockGateway)

	invoices := []map[string]interface{}{
		{
			"id": float64(201), "name": "BILL/2024/0042",
			"amount_total": float64(1210), "amount_residual": float64(0),
			"invoice_date": "2024-02-10", "state": "posted",
			"payment_state": "paid", "move_type": "in_invoice",
			"partner_id":  []interface{}{float64(88), "Proveedores Reunidos"},
			"currency_id": []interface{}{float64(1), "EUR"},
		},
		{
			"id": float64(305), "name": "INV/2024/0101",
			"amount_total": float64(500), "amount_residual": float64(500),
			"invoice_date": "2024-02-12", "state": "posted",
			"payment_state": "not_paid", "move_type": "out_invoice",
			"partner_id":  []interface{}{float64(90), "Otra S.A."},
			"currency_id": []interface{}{float64(1), "EUR"},
		},
	}

	gw.On("SearchRead", mock.Anything, "account.move",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_type", "in", []string{"in_invoice", "out_invoice"})
		}),
		mock.Anything, reconcileBatchLimit, 0, "").
		Return(invoices, nil).Once()

	gw.On("SearchRead", mock.Anything, "account.payment",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "reconciled_invoice_ids", "in", []int{201})
		}),
		mock.Anything, 0, 0, "").
		Return([]map[string]interface{}{
			{"id": float64(301), "name": "PAY/2024/0007", "amount": float64(1210), "date": "2024-02-20"},
		}, nil).Once()

	gw.On("SearchRead", mock.Anything, "account.payment",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "reconciled_invoice_ids", "in", []int{305})
		}),
		mock.Anything, 0, 0, "").
		Return([]map[string]interface{}{}, nil).Once()

	result, err := accountingToolByName(t, gw, "reconcile_invoices_and_payments").Handler(context.Background(), map[string]interface{}{})
	require.NoError(t, err)

	report := result.([]map[string]interface{})
	require.Len(t, report, 2)

	bill := report[0]
	assert.Equal("vendor_bill", bill["type"])
	assert.Equal(1210.0, bill["total_paid"])
	assert.Equal(0.0, bill["outstanding"])
	assert.Equal(true, bill["is_reconciled"])

	invoice := report[1]
	assert.Equal("customer_invoice", invoice["type"])
	assert.Equal(0.0, invoice["total_paid"])
	assert.Equal(500.0, invoice["outstanding"])
	assert.Equal(false, invoice["is_reconciled"])

	gw.AssertExpectations(t)
}

func TestListAccountingEntries(t *testing.T) {
	assert := assert.New(t)
	gw := new(mockGateway)

	entries := []map[string]interface{}{{
		"id": float64(700), "name": "MISC/2024/0003",
		"date": "2024-02-01", "ref": "Payroll",
		"journal_id": []interface{}{float64(5), "Miscellaneous"},
		"state":      "posted",
	}}
	lines := []map[string]interface{}{
		{"name": "Wages", "debit": float64(3000), "credit": float64(0)},
		{"name": "Bank", "debit": float64(0), "credit": float64(3000)},
	}

	gw.On("SearchRead", mock.Anything, "account.move",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_type", "=", "entry") &&
				hasCond(dom, "date", ">=", "2024-01-01")
		}),
		mock.Anything, defaultLimit, 0, "").
		Return(entries, nil).Once()
	gw.On("SearchRead", mock.Anything, "account.move.line",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_id", "=", 700)
		}),
		moveLineFields, 0, 0, "").
		Return(lines, nil).Once()

	result, err := accountingToolByName(t, gw, "list_accounting_entries").Handler(context.Background(), map[string]interface{}{
		"date_from": "2024-01-01",
	})
	require.NoError(t, err)

	report := result.([]map[string]interface{})
	require.Len(t, report, 1)
	entry := report[0]
	assert.Equal("Payroll", entry["reference"])
	assert.Equal("Miscellaneous", entry["journal"])
	assert.Equal(3000.0, entry["total_debit"])
	assert.Equal(3000.0, entry["total_credit"])

	gw.AssertExpectations(t)
}

func TestPartnerDirectories(t *testing.T) {
	t.Run("Suppliers filter on supplier_rank", func(t *testing.T) {
		gw := new(mockGateway)

		records := []map[string]interface{}{{
			"id": float64(88), "name": "Proveedores Reunidos",
			"vat": "ESB99887766", "email": "ventas@reunidos.example",
			"phone": false, "supplier_rank": float64(3),
			"street": "Calle Mayor 1", "city": "Madrid", "zip": "28001",
			"country_id":  []interface{}{float64(68), "Spain"},
			"category_id": []interface{}{float64(2)},
		}}
		gw.On("SearchRead", mock.Anything, "res.partner",
			mock.MatchedBy(func(dom []interface{}) bool {
				return hasCond(dom, "supplier_rank", ">", 0) &&
					hasCond(dom, "name", "ilike", "reunidos")
			}),
			mock.Anything, defaultLimit, 0, "").
			Return(records, nil).Once()

		result, err := accountingToolByName(t, gw, "list_suppliers").Handler(context.Background(), map[string]interface{}{
			"name": "reunidos",
		})
		require.NoError(t, err)

		suppliers := result.([]map[string]interface{})
		require.Len(t, suppliers, 1)
		supplier := suppliers[0]
		assert.Equal(t, 3.0, supplier["supplier_rank"])
		assert.Equal(t, "", supplier["phone"])
		address := supplier["address"].(map[string]interface{})
		assert.Equal(t, "Madrid", address["city"])
		assert.Equal(t, "Spain", address["country"])

		gw.AssertExpectations(t)
	})

	t.Run("Customers filter on customer_rank", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("SearchRead", mock.Anything, "res.partner",
			mock.MatchedBy(func(dom []interface{}) bool {
				return hasCond(dom, "customer_rank", ">", 0)
			}),
			mock.Anything, defaultLimit, 0, "").
			Return([]map[string]interface{}{}, nil).Once()

		result, err := accountingToolByName(t, gw, "list_customers").Handler(context.Background(), map[string]interface{}{})
		require.NoError(t, err)
		assert.Empty(t, result)

		gw.AssertExpectations(t)
	})
}

func TestFindEntriesByAccount(t *testing.T) {
	t.Run("Groups lines by entry with totals", func(t *testing.T) {
		assert := assert.New(t)
		gw := new(mockGateway)

		gw.On("ExecuteKw", mock.Anything, "account.account", "search",
			mock.MatchedBy(func(callArgs []interface{}) bool {
				dom, ok := callArgs[0].(searchDomain)
				return ok && hasCond(dom, "code", "like", "570")
			}), mock.Anything).
			Return(json.RawMessage(`[31, 32]`), nil).Once()

		gw.On("ExecuteKw", mock.Anything, "account.move.line", "search",
			mock.MatchedBy(func(callArgs []interface{}) bool {
				dom, ok := callArgs[0].(searchDomain)
				return ok && hasCond(dom, "account_id", "in", []int{31, 32})
			}),
			map[string]interface{}{"limit": defaultLimit}).
			Return(json.RawMessage(`[501, 502]`), nil).Once()

		gw.On("ExecuteKw", mock.Anything, "account.move.line", "read",
			[]interface{}{[]int{501, 502}}, mock.Anything).
			Return(json.RawMessage(`[
				{"name": "Cash in", "move_id": [70, "MOVE/70"], "debit": 100.0, "credit": 0.0},
				{"name": "Cash out", "move_id": [70, "MOVE/70"], "debit": 0.0, "credit": 40.0}
			]`), nil).Once()

		gw.On("ExecuteKw", mock.Anything, "account.move", "read",
			[]interface{}{[]int{70}}, mock.Anything).
			Return(json.RawMessage(`[{
				"id": 70, "name": "MOVE/70", "date": "2024-02-02",
				"ref": "Cash sweep", "journal_id": [2, "Bank"],
				"state": "posted", "partner_id": false, "amount_total": 100.0
			}]`), nil).Once()

		gw.On("SearchRead", mock.Anything, "account.move.line",
			mock.MatchedBy(func(dom []interface{}) bool {
				return hasCond(dom, "move_id", "=", 70)
			}),
			moveLineFields, 0, 0, "").
			Return([]map[string]interface{}{
				{"name": "Cash in", "debit": float64(100), "credit": float64(0)},
				{"name": "Counterpart", "debit": float64(0), "credit": float64(100)},
			}, nil).Once()

		result, err := accountingToolByName(t, gw, "find_entries_by_account").Handler(context.Background(), map[string]interface{}{
			"account_number": "570",
		})
		require.NoError(t, err)

		entries := result.([]map[string]interface{})
		require.Len(t, entries, 1)
		entry := entries[0]
		assert.Equal("MOVE/70", entry["name"])
		assert.Equal("570", entry["has_account"])
		assert.Equal("Bank", entry["journal"])
		assert.Equal(100.0, entry["total_debit"])
		assert.Equal(100.0, entry["total_credit"])
		assert.Len(entry["lines"], 2)

		gw.AssertExpectations(t)
	})

	t.Run("Reports when no account matches", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("ExecuteKw", mock.Anything, "account.account", "search",
			mock.Anything, mock.Anything).
			Return(json.RawMessage(`[]`), nil).Once()

		_, err := accountingToolByName(t, gw, "find_entries_by_account").Handler(context.Background(), map[string]interface{}{
			"account_number": "000",
		})
		assert.ErrorContains(t, err, "no accounts found matching the number 000")
		gw.AssertExpectations(t)
	})

	t.Run("Reports when the account has no lines", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("ExecuteKw", mock.Anything, "account.account", "search",
			mock.Anything, mock.Anything).
			Return(json.RawMessage(`[31]`), nil).Once()
		gw.On("ExecuteKw", mock.Anything, "account.move.line", "search",
			mock.Anything, mock.Anything).
			Return(json.RawMessage(`[]`), nil).Once()

		_, err := accountingToolByName(t, gw, "find_entries_by_account").Handler(context.Background(), map[string]interface{}{
			"account_number": "570",
		})
		assert.ErrorContains(t, err, "no move lines found for accounts 570")
		gw.AssertExpectations(t)
	})
}

func TestTraceAccountFlow(t *testing.T) {
	assert := assert.New(t)
	gw := new(mockGateway)

	// Account lookups for both codes.
	gw.On("ExecuteKw", mock.Anything, "account.account", "search",
		mock.MatchedBy(func(callArgs []interface{}) bool {
			dom, ok := callArgs[0].(searchDomain)
			return ok && hasCond(dom, "code", "like", "572")
		}), mock.Anything).
		Return(json.RawMessage(`[31]`), nil).Once()
	gw.On("ExecuteKw", mock.Anything, "account.account", "search",
		mock.MatchedBy(func(callArgs []interface{}) bool {
			dom, ok := callArgs[0].(searchDomain)
			return ok && hasCond(dom, "code", "like", "400")
		}), mock.Anything).
		Return(json.RawMessage(`[41]`), nil).Once()

	// Source-account lines: one entry, one partner.
	gw.On("SearchRead", mock.Anything, "account.move.line",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "account_id", "in", []int{31})
		}),
		[]string{"move_id", "partner_id", "date"}, 100, 0, "").
		Return([]map[string]interface{}{{
			"move_id":    []interface{}{float64(70), "MOVE/70"},
			"partner_id": []interface{}{float64(9), "ACME"},
			"date":       "2024-02-02",
		}}, nil).Once()

	// The entry also holds destination-account lines: direct relation.
	gw.On("SearchRead", mock.Anything, "account.move.line",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_id", "=", 70) && hasCond(dom, "account_id", "in", []int{41})
		}),
		mock.Anything, 0, 0, "").
		Return([]map[string]interface{}{
			{"name": "Supplier due", "account_id": []interface{}{float64(41), "400000 Suppliers"}},
		}, nil).Once()

	gw.On("ExecuteKw", mock.Anything, "account.move", "read",
		[]interface{}{70}, mock.Anything).
		Return(json.RawMessage(`[{
			"id": 70, "name": "MOVE/70", "date": "2024-02-02",
			"journal_id": [2, "Bank"], "state": "posted",
			"partner_id": [9, "ACME"]
		}]`), nil).Once()

	// Full line set of the direct entry.
	gw.On("SearchRead", mock.Anything, "account.move.line",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_id", "=", 70) && !hasCond(dom, "account_id", "in", []int{41})
		}),
		mock.Anything, 0, 0, "").
		Return([]map[string]interface{}{
			{"name": "Bank out", "account_id": []interface{}{float64(31), "572000 Bank"}},
			{"name": "Supplier due", "account_id": []interface{}{float64(41), "400000 Suppliers"}},
		}, nil).Once()

	// Indirect scan: destination lines sharing the partner, new entry 80.
	gw.On("SearchRead", mock.Anything, "account.move.line",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "account_id", "in", []int{41}) && hasCond(dom, "partner_id", "in", []int{9})
		}),
		[]string{"move_id", "partner_id", "date"}, 100, 0, "").
		Return([]map[string]interface{}{{
			"move_id":    []interface{}{float64(80), "MOVE/80"},
			"partner_id": []interface{}{float64(9), "ACME"},
			"date":       "2024-02-10",
		}}, nil).Once()

	gw.On("ExecuteKw", mock.Anything, "account.move", "read",
		[]interface{}{80}, mock.Anything).
		Return(json.RawMessage(`[{
			"id": 80, "name": "MOVE/80", "date": "2024-02-10",
			"journal_id": [3, "Purchases"], "state": "posted",
			"partner_id": [9, "ACME"]
		}]`), nil).Once()

	gw.On("SearchRead", mock.Anything, "account.move.line",
		mock.MatchedBy(func(dom []interface{}) bool {
			return hasCond(dom, "move_id", "=", 80)
		}),
		mock.Anything, 0, 0, "").
		Return([]map[string]interface{}{
			{"name": "Supplier invoice", "account_id": []interface{}{float64(41), "400000 Suppliers"}},
			{"name": "Expense", "account_id": []interface{}{float64(60), "600000 Purchases"}},
		}, nil).Once()

	result, err := accountingToolByName(t, gw, "trace_account_flow").Handler(context.Background(), map[string]interface{}{
		"from_account": "572",
		"to_account":   "400",
	})
	require.NoError(t, err)

	flow := result.(map[string]interface{})
	assert.Equal("572", flow["from_account"])
	assert.Equal("400", flow["to_account"])
	assert.Equal(1, flow["total_direct_relations"])
	assert.Equal(1, flow["total_indirect_relations"])

	direct := flow["direct_relations"].([]map[string]interface{})
	require.Len(t, direct, 1)
	assert.Equal("direct_relation", direct[0]["type"])
	assert.Len(direct[0]["lines"], 2)

	indirect := flow["indirect_relations"].([]map[string]interface{})
	require.Len(t, indirect, 1)
	assert.Equal("ACME", indirect[0]["partner"])
	assert.Equal([]int{70}, indirect[0]["related_from_moves"])

	gw.AssertExpectations(t)
}
