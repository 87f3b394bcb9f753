package tools

import (
	"context"
	"fmt"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

var partnerListFields = []string{
	"id", "name", "display_name", "email", "phone", "mobile", "website",
	"is_company", "customer_rank", "supplier_rank", "vat", "street",
	"street2", "city", "zip", "country_id", "state_id", "parent_id",
	"category_id", "create_date", "write_date", "active",
}

// partnerValueFields maps tool arguments onto res.partner columns for create
// and update payloads.
var partnerValueFields = []argField{
	{"name", "name", kindString},
	{"email", "email", kindString},
	{"phone", "phone", kindString},
	{"mobile", "mobile", kindString},
	{"website", "website", kindString},
	{"vat", "vat", kindString},
	{"street", "street", kindString},
	{"street2", "street2", kindString},
	{"city", "city", kindString},
	{"zip", "zip", kindString},
	{"country_id", "country_id", kindInt},
	{"state_id", "state_id", kindInt},
	{"parent_id", "parent_id", kindInt},
	{"customer_rank", "customer_rank", kindInt},
	{"supplier_rank", "supplier_rank", kindInt},
	{"active", "active", kindBool},
}

// formatPartner flattens a raw res.partner record. category_id is a
// many2many column and arrives as a plain list of ids.
func formatPartner(rec map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":            rec["id"],
		"name":          rec["name"],
		"display_name":  recStr(rec, "display_name"),
		"email":         recStr(rec, "email"),
		"phone":         recStr(rec, "phone"),
		"mobile":        recStr(rec, "mobile"),
		"website":       recStr(rec, "website"),
		"is_company":    recBool(rec, "is_company"),
		"customer_rank": recFloat(rec, "customer_rank"),
		"supplier_rank": recFloat(rec, "supplier_rank"),
		"vat":           recStr(rec, "vat"),
		"street":        recStr(rec, "street"),
		"street2":       recStr(rec, "street2"),
		"city":          recStr(rec, "city"),
		"zip":           recStr(rec, "zip"),
		"country":       relation(rec["country_id"]),
		"state":         relation(rec["state_id"]),
		"parent":        relation(rec["parent_id"]),
		"category_ids":  recIDs(rec, "category_id"),
		"create_date":   recStr(rec, "create_date"),
		"write_date":    recStr(rec, "write_date"),
		"active":        recBool(rec, "active"),
	}
}

// readPartnerDetails reads one partner with every column and formats it with
// the extra detail fields that listings omit.
func readPartnerDetails(ctx context.Context, gw usecase.OdooGateway, partnerID int) (map[string]interface{}, error) {
	raw, err := gw.ExecuteKw(ctx, "res.partner", "read", []interface{}{partnerID}, nil)
	if err != nil {
		return nil, err
	}
	partners, err := decodeRecords(raw, "res.partner read")
	if err != nil {
		return nil, err
	}
	if len(partners) == 0 {
		return nil, fmt.Errorf("partner %d not found", partnerID)
	}

	partner := partners[0]
	result := formatPartner(partner)
	result["function"] = recStr(partner, "function")
	result["title"] = relation(partner["title"])
	result["lang"] = recStr(partner, "lang")
	result["tz"] = recStr(partner, "tz")
	result["comment"] = recStr(partner, "comment")
	result["ref"] = recStr(partner, "ref")
	result["industry"] = relation(partner["industry_id"])
	result["company"] = relation(partner["company_id"])
	return result, nil
}

func partnerTools(gw usecase.OdooGateway) []domain.Tool {
	return []domain.Tool{
		listPartnersTool(gw),
		getPartnerDetailsTool(gw),
		createPartnerTool(gw),
		updatePartnerTool(gw),
	}
}

func listPartnersTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "list_partners",
		Description: "List partners/contacts with filtering by name, email, phone, company flag, customer/supplier rank, category and country.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"name":          domain.StringProp("Filter by name (partial match)."),
			"email":         domain.StringProp("Filter by email (partial match)."),
			"phone":         domain.StringProp("Filter by phone (partial match)."),
			"is_company":    domain.BoolProp("Filter companies (true) or individuals (false)."),
			"customer_rank": domain.IntProp("Minimum customer rank (> 0 for customers)."),
			"supplier_rank": domain.IntProp("Minimum supplier rank (> 0 for suppliers)."),
			"category_id":   domain.IntProp("Filter by category ID."),
			"country_id":    domain.IntProp("Filter by country ID."),
			"limit":         domain.IntProp("Maximum number of records to return."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			for _, f := range []string{"name", "email", "phone"} {
				s, err := optString(args, f, "")
				if err != nil {
					return nil, err
				}
				if s != "" {
					dom.add(f, "ilike", s)
				}
			}
			if v, ok := args["is_company"]; ok && v != nil {
				isCompany, err := optBool(args, "is_company", false)
				if err != nil {
					return nil, err
				}
				dom.add("is_company", "=", isCompany)
			}
			for _, f := range []string{"customer_rank", "supplier_rank"} {
				if v, ok := args[f]; ok && v != nil {
					rank, err := optInt(args, f, 0)
					if err != nil {
						return nil, err
					}
					dom.add(f, ">=", rank)
				}
			}
			if categoryID, err := optInt(args, "category_id", 0); err != nil {
				return nil, err
			} else if categoryID > 0 {
				dom.add("category_id", "in", []int{categoryID})
			}
			if countryID, err := optInt(args, "country_id", 0); err != nil {
				return nil, err
			} else if countryID > 0 {
				dom.add("country_id", "=", countryID)
			}
			limit, err := limitArg(args, defaultLimit, maxLimit)
			if err != nil {
				return nil, err
			}

			partners, err := gw.SearchRead(ctx, "res.partner", dom, partnerListFields, limit, 0, "name asc")
			if err != nil {
				return nil, err
			}
			out := make([]map[string]interface{}, 0, len(partners))
			for _, partner := range partners {
				out = append(out, formatPartner(partner))
			}
			return out, nil
		},
	}
}

func getPartnerDetailsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "get_partner_details",
		Description: "Get detailed information about a specific partner, including language, industry and parent company.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"partner_id": domain.IntProp("ID of the partner to retrieve."),
		}, "partner_id"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			partnerID, err := reqInt(args, "partner_id")
			if err != nil {
				return nil, err
			}
			return readPartnerDetails(ctx, gw, partnerID)
		},
	}
}

func createPartnerTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "create_partner",
		Description: "Create a new partner/contact. Only 'name' is required.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"name":          domain.StringProp("Partner name."),
			"email":         domain.StringProp("Email address."),
			"phone":         domain.StringProp("Phone number."),
			"mobile":        domain.StringProp("Mobile number."),
			"is_company":    domain.BoolProp("True for companies, false for individuals."),
			"website":       domain.StringProp("Website URL."),
			"vat":           domain.StringProp("VAT/Tax ID."),
			"street":        domain.StringProp("Street address."),
			"street2":       domain.StringProp("Street address line 2."),
			"city":          domain.StringProp("City."),
			"zip":           domain.StringProp("ZIP/postal code."),
			"country_id":    domain.IntProp("Country ID."),
			"state_id":      domain.IntProp("State ID."),
			"parent_id":     domain.IntProp("Parent company ID."),
			"customer_rank": domain.IntProp("Customer rank (0 = not a customer)."),
			"supplier_rank": domain.IntProp("Supplier rank (0 = not a supplier)."),
			"category_ids":  domain.IntArrayProp("List of category IDs."),
		}, "name"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if _, err := reqString(args, "name"); err != nil {
				return nil, err
			}
			values, err := collectValues(args, partnerValueFields)
			if err != nil {
				return nil, err
			}
			isCompany, err := optBool(args, "is_company", false)
			if err != nil {
				return nil, err
			}
			values["is_company"] = isCompany
			categoryIDs, err := optIntSlice(args, "category_ids")
			if err != nil {
				return nil, err
			}
			if len(categoryIDs) > 0 {
				// Many2many replace command.
				values["category_id"] = []interface{}{[]interface{}{6, 0, categoryIDs}}
			}

			raw, err := gw.ExecuteKw(ctx, "res.partner", "create", []interface{}{values}, nil)
			if err != nil {
				return nil, err
			}
			partnerID, err := decodeID(raw, "res.partner create")
			if err != nil {
				return nil, err
			}
			return readPartnerDetails(ctx, gw, partnerID)
		},
	}
}

func updatePartnerTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "update_partner",
		Description: "Update an existing partner/contact. Only the provided fields are written.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"partner_id":    domain.IntProp("ID of the partner to update."),
			"name":          domain.StringProp("Partner name."),
			"email":         domain.StringProp("Email address."),
			"phone":         domain.StringProp("Phone number."),
			"mobile":        domain.StringProp("Mobile number."),
			"website":       domain.StringProp("Website URL."),
			"vat":           domain.StringProp("VAT/Tax ID."),
			"street":        domain.StringProp("Street address."),
			"street2":       domain.StringProp("Street address line 2."),
			"city":          domain.StringProp("City."),
			"zip":           domain.StringProp("ZIP/postal code."),
			"country_id":    domain.IntProp("Country ID."),
			"state_id":      domain.IntProp("State ID."),
			"customer_rank": domain.IntProp("Customer rank."),
			"supplier_rank": domain.IntProp("Supplier rank."),
			"active":        domain.BoolProp("Active status."),
		}, "partner_id"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			partnerID, err := reqInt(args, "partner_id")
			if err != nil {
				return nil, err
			}
			values, err := collectValues(args, partnerValueFields)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, fmt.Errorf("no fields provided for update")
			}

			if _, err := gw.ExecuteKw(ctx, "res.partner", "write", []interface{}{[]int{partnerID}, values}, nil); err != nil {
				return nil, err
			}
			return readPartnerDetails(ctx, gw, partnerID)
		},
	}
}
