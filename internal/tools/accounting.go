package tools

import (
	"context"
	"fmt"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

var invoiceListFields = []string{
	"id", "name", "amount_total", "amount_residual",
	"invoice_date", "invoice_date_due", "state", "payment_state",
	"partner_id", "currency_id",
}

var paymentListFields = []string{
	"id", "name", "amount", "date", "state",
	"payment_type", "partner_id", "journal_id",
	"currency_id", "reconciled_invoice_ids", "payment_method_id",
}

var moveLineFields = []string{
	"name", "account_id", "partner_id", "debit", "credit",
	"balance", "matching_number",
}

// paymentStateNames maps Odoo payment_state codes to human-readable labels.
var paymentStateNames = map[string]string{
	"not_paid":         "Not Paid",
	"in_payment":       "In Payment",
	"paid":             "Paid",
	"partial":          "Partially Paid",
	"reversed":         "Reversed",
	"invoicing_legacy": "Legacy",
}

// formatInvoice flattens a raw account.move record and adds a readable
// payment state label.
func formatInvoice(rec map[string]interface{}) map[string]interface{} {
	date := recStr(rec, "invoice_date")
	if date == "" {
		date = recStr(rec, "date")
	}
	state := recStr(rec, "payment_state")
	display, ok := paymentStateNames[state]
	if !ok {
		display = state
	}
	return map[string]interface{}{
		"id":                    rec["id"],
		"name":                  rec["name"],
		"amount_total":          recFloat(rec, "amount_total"),
		"amount_residual":       recFloat(rec, "amount_residual"),
		"date":                  date,
		"due_date":              recStr(rec, "invoice_date_due"),
		"state":                 recStr(rec, "state"),
		"payment_state":         state,
		"payment_state_display": display,
		"partner":               relation(rec["partner_id"]),
		"currency":              relationName(rec["currency_id"]),
	}
}

// formatPayment flattens a raw account.payment record.
func formatPayment(rec map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":                     rec["id"],
		"name":                   rec["name"],
		"amount":                 recFloat(rec, "amount"),
		"date":                   recStr(rec, "date"),
		"state":                  recStr(rec, "state"),
		"payment_type":           recStr(rec, "payment_type"),
		"partner":                relation(rec["partner_id"]),
		"journal":                relationName(rec["journal_id"]),
		"currency":               relationName(rec["currency_id"]),
		"reconciled_invoice_ids": recIDs(rec, "reconciled_invoice_ids"),
		"payment_method":         relationName(rec["payment_method_id"]),
	}
}

func accountingTools(gw usecase.OdooGateway) []domain.Tool {
	return []domain.Tool{
		invoiceListingTool(gw, "list_vendor_bills",
			"List vendor bills (supplier invoices) with their payment status.",
			"in_invoice", "Filter by supplier ID."),
		invoiceListingTool(gw, "list_customer_invoices",
			"List customer invoices with their payment status.",
			"out_invoice", "Filter by customer ID."),
		listPaymentsTool(gw),
		getInvoiceDetailsTool(gw),
		reconcileTool(gw),
		listAccountingEntriesTool(gw),
		partnerDirectoryTool(gw, "list_suppliers",
			"List suppliers (vendors) with optional name filtering.",
			"supplier_rank"),
		partnerDirectoryTool(gw, "list_customers",
			"List customers with optional name filtering.",
			"customer_rank"),
		findEntriesByAccountTool(gw),
		traceAccountFlowTool(gw),
	}
}

// invoiceListingTool builds the vendor-bill and customer-invoice listings,
// which differ only in the move_type they pin.
func invoiceListingTool(gw usecase.OdooGateway, name, description, moveType, partnerDesc string) domain.Tool {
	return domain.Tool{
		Name:        name,
		Description: description,
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"partner_id": domain.IntProp(partnerDesc),
			"pending":    domain.BoolProp("Only return unpaid invoices."),
			"date_from":  domain.StringProp("Invoice date lower bound (YYYY-MM-DD)."),
			"date_to":    domain.StringProp("Invoice date upper bound (YYYY-MM-DD)."),
			"limit":      domain.IntProp("Maximum number of invoices to return."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			dom.add("move_type", "=", moveType)
			partnerID, err := optInt(args, "partner_id", 0)
			if err != nil {
				return nil, err
			}
			if partnerID > 0 {
				dom.add("partner_id", "=", partnerID)
			}
			pending, err := optBool(args, "pending", false)
			if err != nil {
				return nil, err
			}
			if pending {
				dom.add("payment_state", "!=", "paid")
			}
			if err := addDateRange(&dom, args, "invoice_date"); err != nil {
				return nil, err
			}
			limit, err := limitArg(args, defaultLimit, maxLimit)
			if err != nil {
				return nil, err
			}

			invoices, err := gw.SearchRead(ctx, "account.move", dom, invoiceListFields, limit, 0, "")
			if err != nil {
				return nil, err
			}
			out := make([]map[string]interface{}, 0, len(invoices))
			for _, invoice := range invoices {
				out = append(out, formatInvoice(invoice))
			}
			return out, nil
		},
	}
}

// addDateRange appends date_from/date_to filters against the given column.
func addDateRange(dom *searchDomain, args map[string]interface{}, column string) error {
	for _, f := range []struct{ arg, op string }{
		{"date_from", ">="},
		{"date_to", "<="},
	} {
		s, err := optString(args, f.arg, "")
		if err != nil {
			return err
		}
		if s != "" {
			dom.add(column, f.op, s)
		}
	}
	return nil
}

func listPaymentsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "list_payments",
		Description: "List payments, optionally filtered by partner, date range or the invoice they reconcile.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"partner_id": domain.IntProp("Filter by partner ID."),
			"date_from":  domain.StringProp("Payment date lower bound (YYYY-MM-DD)."),
			"date_to":    domain.StringProp("Payment date upper bound (YYYY-MM-DD)."),
			"limit":      domain.IntProp("Maximum number of payments to return."),
			"invoice_id": domain.IntProp("Only payments reconciled against this invoice."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			partnerID, err := optInt(args, "partner_id", 0)
			if err != nil {
				return nil, err
			}
			if partnerID > 0 {
				dom.add("partner_id", "=", partnerID)
			}
			if err := addDateRange(&dom, args, "date"); err != nil {
				return nil, err
			}
			limit, err := limitArg(args, defaultLimit, maxLimit)
			if err != nil {
				return nil, err
			}
			invoiceID, err := optInt(args, "invoice_id", 0)
			if err != nil {
				return nil, err
			}

			payments, err := gw.SearchRead(ctx, "account.payment", dom, paymentListFields, limit, 0, "")
			if err != nil {
				return nil, err
			}

			// The invoice link lives on the payment side, so filter here
			// instead of in the search domain.
			out := make([]map[string]interface{}, 0, len(payments))
			for _, payment := range payments {
				if invoiceID > 0 && !containsID(recIDs(payment, "reconciled_invoice_ids"), invoiceID) {
					continue
				}
				out = append(out, formatPayment(payment))
			}
			return out, nil
		},
	}
}

func containsID(ids []interface{}, want int) bool {
	for _, v := range ids {
		if id, err := toInt(v); err == nil && id == want {
			return true
		}
	}
	return false
}

func getInvoiceDetailsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "get_invoice_details",
		Description: "Get detailed information about a specific invoice, including its line items.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"invoice_id": domain.IntProp("ID of the invoice to retrieve."),
		}, "invoice_id"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			invoiceID, err := reqInt(args, "invoice_id")
			if err != nil {
				return nil, err
			}

			raw, err := gw.ExecuteKw(ctx, "account.move", "read",
				[]interface{}{invoiceID},
				map[string]interface{}{"fields": append(invoiceListFields,
					"ref", "narration", "invoice_origin", "journal_id", "move_type")})
			if err != nil {
				return nil, err
			}
			headers, err := decodeRecords(raw, "account.move read")
			if err != nil {
				return nil, err
			}
			if len(headers) == 0 {
				return nil, fmt.Errorf("invoice %d not found", invoiceID)
			}

			lineDom := searchDomain{}
			lineDom.add("move_id", "=", invoiceID)
			lineDom.add("exclude_from_invoice_tab", "=", false)
			raw, err = gw.ExecuteKw(ctx, "account.move.line", "search", []interface{}{lineDom}, nil)
			if err != nil {
				return nil, err
			}
			lineIDs, err := decodeIDs(raw, "account.move.line search")
			if err != nil {
				return nil, err
			}

			lines := []map[string]interface{}{}
			if len(lineIDs) > 0 {
				raw, err = gw.ExecuteKw(ctx, "account.move.line", "read",
					[]interface{}{lineIDs},
					map[string]interface{}{"fields": []string{
						"name", "quantity", "price_unit", "price_subtotal",
						"price_total", "product_id", "account_id", "tax_ids"}})
				if err != nil {
					return nil, err
				}
				lines, err = decodeRecords(raw, "account.move.line read")
				if err != nil {
					return nil, err
				}
			}

			result := formatInvoice(headers[0])
			result["lines"] = lines
			return result, nil
		},
	}
}

// reconcileBatchLimit bounds the reconciliation report to keep the tool
// responsive; each invoice costs one extra payment query.
const reconcileBatchLimit = 5

func reconcileTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "reconcile_invoices_and_payments",
		Description: "Match invoices with their payments and report the reconciliation status of each.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"date_from": domain.StringProp("Invoice date lower bound (YYYY-MM-DD)."),
			"date_to":   domain.StringProp("Invoice date upper bound (YYYY-MM-DD)."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			dom.add("move_type", "in", []string{"in_invoice", "out_invoice"})
			if err := addDateRange(&dom, args, "invoice_date"); err != nil {
				return nil, err
			}

			invoices, err := gw.SearchRead(ctx, "account.move", dom,
				append(invoiceListFields, "move_type"), reconcileBatchLimit, 0, "")
			if err != nil {
				return nil, err
			}

			report := make([]map[string]interface{}, 0, len(invoices))
			for _, invoice := range invoices {
				entry := formatInvoice(invoice)
				if recStr(invoice, "move_type") == "in_invoice" {
					entry["type"] = "vendor_bill"
				} else {
					entry["type"] = "customer_invoice"
				}

				invoiceID, err := toInt(invoice["id"])
				if err != nil {
					return nil, fmt.Errorf("invoice id: %s", err)
				}
				payDom := searchDomain{}
				payDom.add("reconciled_invoice_ids", "in", []int{invoiceID})
				payments, err := gw.SearchRead(ctx, "account.payment", payDom,
					[]string{"id", "name", "amount", "date", "state", "payment_type", "partner_id", "journal_id"},
					0, 0, "")
				if err != nil {
					return nil, err
				}

				var totalPaid float64
				formatted := make([]map[string]interface{}, 0, len(payments))
				for _, payment := range payments {
					totalPaid += recFloat(payment, "amount")
					formatted = append(formatted, formatPayment(payment))
				}
				outstanding := recFloat(invoice, "amount_total") - totalPaid

				entry["payments"] = formatted
				entry["total_paid"] = totalPaid
				entry["outstanding"] = outstanding
				// Tolerate rounding residue when deciding reconciliation.
				entry["is_reconciled"] = recStr(invoice, "payment_state") == "paid" ||
					(outstanding > -0.01 && outstanding < 0.01)

				report = append(report, entry)
			}
			return report, nil
		},
	}
}

func listAccountingEntriesTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "list_accounting_entries",
		Description: "List journal entries with their line items and debit/credit totals.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"date_from": domain.StringProp("Entry date lower bound (YYYY-MM-DD)."),
			"date_to":   domain.StringProp("Entry date upper bound (YYYY-MM-DD)."),
			"limit":     domain.IntProp("Maximum number of entries to return."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			dom.add("move_type", "=", "entry")
			if err := addDateRange(&dom, args, "date"); err != nil {
				return nil, err
			}
			limit, err := limitArg(args, defaultLimit, maxLimit)
			if err != nil {
				return nil, err
			}

			entries, err := gw.SearchRead(ctx, "account.move", dom,
				[]string{"id", "name", "date", "ref", "journal_id", "state"}, limit, 0, "")
			if err != nil {
				return nil, err
			}

			out := make([]map[string]interface{}, 0, len(entries))
			for _, entry := range entries {
				entryID, err := toInt(entry["id"])
				if err != nil {
					return nil, fmt.Errorf("entry id: %s", err)
				}
				lineDom := searchDomain{}
				lineDom.add("move_id", "=", entryID)
				lines, err := gw.SearchRead(ctx, "account.move.line", lineDom, moveLineFields, 0, 0, "")
				if err != nil {
					return nil, err
				}

				var totalDebit, totalCredit float64
				for _, line := range lines {
					totalDebit += recFloat(line, "debit")
					totalCredit += recFloat(line, "credit")
				}

				out = append(out, map[string]interface{}{
					"id":           entry["id"],
					"name":         entry["name"],
					"date":         recStr(entry, "date"),
					"reference":    recStr(entry, "ref"),
					"journal":      relationName(entry["journal_id"]),
					"state":        recStr(entry, "state"),
					"lines":        lines,
					"total_debit":  totalDebit,
					"total_credit": totalCredit,
				})
			}
			return out, nil
		},
	}
}

// partnerDirectoryTool builds the supplier and customer directories, which
// differ only in the rank column that marks the partner as one or the other.
func partnerDirectoryTool(gw usecase.OdooGateway, name, description, rankField string) domain.Tool {
	return domain.Tool{
		Name:        name,
		Description: description,
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"name":  domain.StringProp("Filter by name (partial match)."),
			"limit": domain.IntProp("Maximum number of records to return."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			dom.add(rankField, ">", 0)
			nameFilter, err := optString(args, "name", "")
			if err != nil {
				return nil, err
			}
			if nameFilter != "" {
				dom.add("name", "ilike", nameFilter)
			}
			limit, err := limitArg(args, defaultLimit, maxLimit)
			if err != nil {
				return nil, err
			}

			partners, err := gw.SearchRead(ctx, "res.partner", dom,
				[]string{"id", "name", "vat", "email", "phone", rankField,
					"street", "city", "zip", "country_id", "category_id"},
				limit, 0, "")
			if err != nil {
				return nil, err
			}

			out := make([]map[string]interface{}, 0, len(partners))
			for _, partner := range partners {
				out = append(out, map[string]interface{}{
					"id":      partner["id"],
					"name":    partner["name"],
					"vat":     recStr(partner, "vat"),
					"email":   recStr(partner, "email"),
					"phone":   recStr(partner, "phone"),
					rankField: recFloat(partner, rankField),
					"address": map[string]interface{}{
						"street":  recStr(partner, "street"),
						"city":    recStr(partner, "city"),
						"zip":     recStr(partner, "zip"),
						"country": relationName(partner["country_id"]),
					},
					"category_ids": recIDs(partner, "category_id"),
				})
			}
			return out, nil
		},
	}
}

// searchAccounts resolves an account code (possibly a prefix like "570")
// to the matching account.account ids.
func searchAccounts(ctx context.Context, gw usecase.OdooGateway, code string) ([]int, error) {
	dom := searchDomain{}
	dom.add("code", "like", code)
	raw, err := gw.ExecuteKw(ctx, "account.account", "search", []interface{}{dom}, nil)
	if err != nil {
		return nil, err
	}
	return decodeIDs(raw, "account.account search")
}

func findEntriesByAccountTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "find_entries_by_account",
		Description: "Find journal entries that touch a given account number, returning each entry with all of its lines.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"account_number": domain.StringProp("Account number to search for (e.g. '570', '400')."),
			"date_from":      domain.StringProp("Line date lower bound (YYYY-MM-DD)."),
			"date_to":        domain.StringProp("Line date upper bound (YYYY-MM-DD)."),
			"limit":          domain.IntProp("Maximum number of move lines to scan."),
		}, "account_number"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			accountNumber, err := reqString(args, "account_number")
			if err != nil {
				return nil, err
			}
			limit, err := limitArg(args, defaultLimit, maxLimit)
			if err != nil {
				return nil, err
			}

			accountIDs, err := searchAccounts(ctx, gw, accountNumber)
			if err != nil {
				return nil, err
			}
			if len(accountIDs) == 0 {
				return nil, fmt.Errorf("no accounts found matching the number %s", accountNumber)
			}

			lineDom := searchDomain{}
			lineDom.add("account_id", "in", accountIDs)
			if err := addDateRange(&lineDom, args, "date"); err != nil {
				return nil, err
			}
			raw, err := gw.ExecuteKw(ctx, "account.move.line", "search",
				[]interface{}{lineDom}, map[string]interface{}{"limit": limit})
			if err != nil {
				return nil, err
			}
			lineIDs, err := decodeIDs(raw, "account.move.line search")
			if err != nil {
				return nil, err
			}
			if len(lineIDs) == 0 {
				return nil, fmt.Errorf("no move lines found for accounts %s", accountNumber)
			}

			raw, err = gw.ExecuteKw(ctx, "account.move.line", "read",
				[]interface{}{lineIDs},
				map[string]interface{}{"fields": append(moveLineFields, "move_id", "date", "journal_id", "ref")})
			if err != nil {
				return nil, err
			}
			lines, err := decodeRecords(raw, "account.move.line read")
			if err != nil {
				return nil, err
			}

			// Group the lines by entry, keeping first-seen order.
			seen := make(map[int]bool)
			moveIDs := make([]int, 0, len(lines))
			for _, line := range lines {
				if id := relationID(line["move_id"]); id != 0 && !seen[id] {
					seen[id] = true
					moveIDs = append(moveIDs, id)
				}
			}

			raw, err = gw.ExecuteKw(ctx, "account.move", "read",
				[]interface{}{moveIDs},
				map[string]interface{}{"fields": []string{
					"id", "name", "date", "ref", "journal_id",
					"state", "partner_id", "amount_total"}})
			if err != nil {
				return nil, err
			}
			moves, err := decodeRecords(raw, "account.move read")
			if err != nil {
				return nil, err
			}

			result := make([]map[string]interface{}, 0, len(moves))
			for _, move := range moves {
				moveID, err := toInt(move["id"])
				if err != nil {
					return nil, fmt.Errorf("move id: %s", err)
				}
				allDom := searchDomain{}
				allDom.add("move_id", "=", moveID)
				allLines, err := gw.SearchRead(ctx, "account.move.line", allDom, moveLineFields, 0, 0, "")
				if err != nil {
					return nil, err
				}

				var totalDebit, totalCredit float64
				for _, line := range allLines {
					totalDebit += recFloat(line, "debit")
					totalCredit += recFloat(line, "credit")
				}

				result = append(result, map[string]interface{}{
					"id":           move["id"],
					"name":         move["name"],
					"date":         recStr(move, "date"),
					"reference":    recStr(move, "ref"),
					"journal":      relationName(move["journal_id"]),
					"state":        recStr(move, "state"),
					"partner":      relationName(move["partner_id"]),
					"lines":        allLines,
					"has_account":  accountNumber,
					"total_debit":  totalDebit,
					"total_credit": totalCredit,
				})
			}
			return result, nil
		},
	}
}

func traceAccountFlowTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "trace_account_flow",
		Description: "Trace money flow between two accounts: entries touching both directly, plus indirect links through shared partners.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"from_account": domain.StringProp("Source account number (e.g. '572' for banks)."),
			"to_account":   domain.StringProp("Destination account number (e.g. '400' for suppliers)."),
			"date_from":    domain.StringProp("Line date lower bound (YYYY-MM-DD)."),
			"date_to":      domain.StringProp("Line date upper bound (YYYY-MM-DD)."),
			"limit":        domain.IntProp("Maximum number of flows to analyze."),
		}, "from_account", "to_account"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			fromAccount, err := reqString(args, "from_account")
			if err != nil {
				return nil, err
			}
			toAccount, err := reqString(args, "to_account")
			if err != nil {
				return nil, err
			}
			limit, err := limitArg(args, 10, maxLimit)
			if err != nil {
				return nil, err
			}

			fromIDs, err := searchAccounts(ctx, gw, fromAccount)
			if err != nil {
				return nil, err
			}
			if len(fromIDs) == 0 {
				return nil, fmt.Errorf("no accounts found matching the number %s", fromAccount)
			}
			toIDs, err := searchAccounts(ctx, gw, toAccount)
			if err != nil {
				return nil, err
			}
			if len(toIDs) == 0 {
				return nil, fmt.Errorf("no accounts found matching the number %s", toAccount)
			}
			toIDSet := make(map[int]bool, len(toIDs))
			for _, id := range toIDs {
				toIDSet[id] = true
			}

			fromDom := searchDomain{}
			fromDom.add("account_id", "in", fromIDs)
			if err := addDateRange(&fromDom, args, "date"); err != nil {
				return nil, err
			}
			fromLines, err := gw.SearchRead(ctx, "account.move.line", fromDom,
				[]string{"move_id", "partner_id", "date"}, 100, 0, "")
			if err != nil {
				return nil, err
			}

			seenMoves := make(map[int]bool)
			moveIDs := make([]int, 0, len(fromLines))
			seenPartners := make(map[int]bool)
			partnerIDs := make([]int, 0, len(fromLines))
			for _, line := range fromLines {
				if id := relationID(line["move_id"]); id != 0 && !seenMoves[id] {
					seenMoves[id] = true
					moveIDs = append(moveIDs, id)
				}
				if id := relationID(line["partner_id"]); id != 0 && !seenPartners[id] {
					seenPartners[id] = true
					partnerIDs = append(partnerIDs, id)
				}
			}

			readMove := func(moveID int, fields []string) (map[string]interface{}, error) {
				raw, err := gw.ExecuteKw(ctx, "account.move", "read",
					[]interface{}{moveID}, map[string]interface{}{"fields": fields})
				if err != nil {
					return nil, err
				}
				moves, err := decodeRecords(raw, "account.move read")
				if err != nil {
					return nil, err
				}
				if len(moves) == 0 {
					return nil, nil
				}
				return moves[0], nil
			}
			moveFields := []string{"name", "date", "ref", "journal_id", "state", "partner_id"}
			flowLineFields := []string{"name", "account_id", "debit", "credit", "balance"}

			// Direct relations: entries holding lines on both accounts.
			direct := []map[string]interface{}{}
			for _, moveID := range moveIDs {
				toDom := searchDomain{}
				toDom.add("move_id", "=", moveID)
				toDom.add("account_id", "in", toIDs)
				toLines, err := gw.SearchRead(ctx, "account.move.line", toDom, flowLineFields, 0, 0, "")
				if err != nil {
					return nil, err
				}
				if len(toLines) == 0 {
					continue
				}

				move, err := readMove(moveID, moveFields)
				if err != nil {
					return nil, err
				}
				if move == nil {
					move = map[string]interface{}{"id": moveID}
				}
				allDom := searchDomain{}
				allDom.add("move_id", "=", moveID)
				allLines, err := gw.SearchRead(ctx, "account.move.line", allDom, flowLineFields, 0, 0, "")
				if err != nil {
					return nil, err
				}

				direct = append(direct, map[string]interface{}{
					"type":  "direct_relation",
					"move":  move,
					"lines": allLines,
				})
			}

			// Indirect relations: destination-account entries sharing a
			// partner with the source lines.
			indirect := []map[string]interface{}{}
			if len(direct) < limit && len(partnerIDs) > 0 {
				toDom := searchDomain{}
				toDom.add("account_id", "in", toIDs)
				toDom.add("partner_id", "in", partnerIDs)
				if err := addDateRange(&toDom, args, "date"); err != nil {
					return nil, err
				}
				toLines, err := gw.SearchRead(ctx, "account.move.line", toDom,
					[]string{"move_id", "partner_id", "date"}, 100, 0, "")
				if err != nil {
					return nil, err
				}

				seenRelated := make(map[int]bool)
				newMoveIDs := make([]int, 0, len(toLines))
				for _, line := range toLines {
					id := relationID(line["move_id"])
					if id == 0 || seenMoves[id] || seenRelated[id] {
						continue
					}
					seenRelated[id] = true
					newMoveIDs = append(newMoveIDs, id)
				}
				if remaining := limit - len(direct); len(newMoveIDs) > remaining {
					newMoveIDs = newMoveIDs[:remaining]
				}

				for _, moveID := range newMoveIDs {
					move, err := readMove(moveID, moveFields)
					if err != nil {
						return nil, err
					}
					if move == nil {
						continue
					}
					allDom := searchDomain{}
					allDom.add("move_id", "=", moveID)
					allLines, err := gw.SearchRead(ctx, "account.move.line", allDom, flowLineFields, 0, 0, "")
					if err != nil {
						return nil, err
					}

					hasToLine := false
					for _, line := range allLines {
						if toIDSet[relationID(line["account_id"])] {
							hasToLine = true
							break
						}
					}
					if !hasToLine {
						continue
					}

					partnerID := relationID(move["partner_id"])
					relatedFromMoves := []int{}
					if partnerID != 0 {
						for _, line := range fromLines {
							if relationID(line["partner_id"]) == partnerID {
								relatedFromMoves = append(relatedFromMoves, relationID(line["move_id"]))
							}
						}
					}
					if len(relatedFromMoves) == 0 {
						continue
					}

					indirect = append(indirect, map[string]interface{}{
						"type":               "indirect_relation",
						"to_move":            move,
						"to_lines":           allLines,
						"related_from_moves": relatedFromMoves,
						"partner":            relationName(move["partner_id"]),
					})
				}
			}

			return map[string]interface{}{
				"from_account":             fromAccount,
				"to_account":               toAccount,
				"direct_relations":         direct,
				"indirect_relations":       indirect,
				"total_direct_relations":   len(direct),
				"total_indirect_relations": len(indirect),
			}, nil
		},
	}
}
