package tools

import (
	"context"
	"fmt"

	"github.com/i2y/mcp-odoo/internal/domain"
	"github.com/i2y/mcp-odoo/internal/usecase"
)

// leadListFields is the column set fetched for lead listings. It covers the
// stock CRM columns plus the ISEP studio fields and the Google Analytics
// attribution columns.
var leadListFields = []string{
	"id", "name", "type", "contact_name", "partner_name", "email_from",
	"phone", "mobile", "expected_revenue", "probability", "priority",
	"create_date", "write_date", "date_deadline", "stage_id", "team_id",
	"user_id", "partner_id", "description",
	"x_studio_programa_academico", "x_studio_canal_de_contacto",
	"x_studio_programa_de_inters", "x_studio_fecha_de_firma",
	"progress", "mautic_export", "x_studio_id_mautic",
	"gr_source", "gr_campaingn", "gr_term",
}

// leadValueFields maps tool arguments onto crm.lead columns for create and
// update payloads.
var leadValueFields = []argField{
	{"name", "name", kindString},
	{"contact_name", "contact_name", kindString},
	{"email_from", "email_from", kindString},
	{"phone", "phone", kindString},
	{"partner_name", "partner_name", kindString},
	{"description", "description", kindString},
	{"team_id", "team_id", kindInt},
	{"user_id", "user_id", kindInt},
	{"stage_id", "stage_id", kindInt},
	{"expected_revenue", "expected_revenue", kindFloat},
	{"probability", "probability", kindFloat},
	{"priority", "priority", kindString},
	{"program_id", "x_studio_programa_academico", kindInt},
	{"canal_contacto", "x_studio_canal_de_contacto", kindString},
	{"programa_interes", "x_studio_programa_de_inters", kindString},
	{"progress", "progress", kindFloat},
}

// formatLead flattens a raw crm.lead record: many2one pairs become
// {id, name} objects and the studio columns get their business names.
func formatLead(rec map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":               rec["id"],
		"name":             rec["name"],
		"type":             recStr(rec, "type"),
		"contact_name":     recStr(rec, "contact_name"),
		"partner_name":     recStr(rec, "partner_name"),
		"email_from":       recStr(rec, "email_from"),
		"phone":            recStr(rec, "phone"),
		"mobile":           recStr(rec, "mobile"),
		"expected_revenue": recFloat(rec, "expected_revenue"),
		"probability":      recFloat(rec, "probability"),
		"priority":         recStr(rec, "priority"),
		"create_date":      recStr(rec, "create_date"),
		"write_date":       recStr(rec, "write_date"),
		"date_deadline":    recStr(rec, "date_deadline"),
		"stage":            relation(rec["stage_id"]),
		"team":             relation(rec["team_id"]),
		"user":             relation(rec["user_id"]),
		"partner":          relation(rec["partner_id"]),

		"programa_academico": relation(rec["x_studio_programa_academico"]),
		"canal_contacto":     recStr(rec, "x_studio_canal_de_contacto"),
		"programa_interes":   recStr(rec, "x_studio_programa_de_inters"),
		"fecha_firma":        recStr(rec, "x_studio_fecha_de_firma"),
		"progress":           recFloat(rec, "progress"),
		"mautic_export":      recBool(rec, "mautic_export"),
		"mautic_id":          recStr(rec, "x_studio_id_mautic"),

		"gr_source": recStr(rec, "gr_source"),
		// gr_campaingn is the column's actual (misspelled) name in the
		// backend schema; the output key uses the correct spelling.
		"gr_campaign": recStr(rec, "gr_campaingn"),
		"gr_term":     recStr(rec, "gr_term"),
		"description": recStr(rec, "description"),
	}
}

// readLeadDetails reads one lead with every column and formats it with the
// extra detail fields that listings omit.
func readLeadDetails(ctx context.Context, gw usecase.OdooGateway, leadID int) (map[string]interface{}, error) {
	raw, err := gw.ExecuteKw(ctx, "crm.lead", "read", []interface{}{leadID}, nil)
	if err != nil {
		return nil, err
	}
	leads, err := decodeRecords(raw, "crm.lead read")
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, fmt.Errorf("lead %d not found", leadID)
	}

	lead := leads[0]
	result := formatLead(lead)
	result["website"] = recStr(lead, "website")
	result["function"] = recStr(lead, "function")
	result["street"] = recStr(lead, "street")
	result["street2"] = recStr(lead, "street2")
	result["city"] = recStr(lead, "city")
	result["zip"] = recStr(lead, "zip")
	result["date_open"] = recStr(lead, "date_open")
	result["date_closed"] = recStr(lead, "date_closed")
	result["date_last_stage_update"] = recStr(lead, "date_last_stage_update")
	result["won_status"] = recStr(lead, "won_status")
	result["active"] = recBool(lead, "active")
	result["color"] = recFloat(lead, "color")
	result["duracion_convenio"] = recStr(lead, "x_studio_duracin_de_convenio")
	result["correo_existe"] = recBool(lead, "x_studio_correo_existe")
	result["correo_revisado"] = recBool(lead, "x_studio_correo_revisado")
	result["bool_interes"] = recBool(lead, "x_studio_bool_interes")
	return result, nil
}

func crmTools(gw usecase.OdooGateway) []domain.Tool {
	return []domain.Tool{
		listLeadsTool(gw),
		getLeadDetailsTool(gw),
		createLeadTool(gw),
		updateLeadTool(gw),
		convertLeadTool(gw),
		listCrmStagesTool(gw),
		listCrmTeamsTool(gw),
		getLeadActivitiesTool(gw),
		getAcademicProgramsTool(gw),
		getCrmDashboardStatsTool(gw),
	}
}

func listLeadsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "list_leads",
		Description: "List leads/opportunities with filtering by partner, team, salesperson, stage, type, priority, date range, academic program and contact channel.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"partner_id":     domain.IntProp("Filter by partner/customer ID."),
			"team_id":        domain.IntProp("Filter by sales team ID."),
			"user_id":        domain.IntProp("Filter by salesperson ID."),
			"stage_id":       domain.IntProp("Filter by stage ID."),
			"type":           domain.StringProp("Filter by type ('lead' or 'opportunity')."),
			"priority":       domain.StringProp("Filter by priority ('0', '1', '2', '3')."),
			"date_from":      domain.StringProp("Creation date lower bound (YYYY-MM-DD)."),
			"date_to":        domain.StringProp("Creation date upper bound (YYYY-MM-DD)."),
			"program_id":     domain.IntProp("Filter by academic program ID."),
			"canal_contacto": domain.StringProp("Filter by contact channel (partial match)."),
			"limit":          domain.IntProp("Maximum number of records to return."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			for _, f := range []string{"partner_id", "team_id", "user_id", "stage_id"} {
				id, err := optInt(args, f, 0)
				if err != nil {
					return nil, err
				}
				if id > 0 {
					dom.add(f, "=", id)
				}
			}
			for _, f := range []struct{ arg, field, op string }{
				{"type", "type", "="},
				{"priority", "priority", "="},
				{"date_from", "create_date", ">="},
				{"date_to", "create_date", "<="},
				{"canal_contacto", "x_studio_canal_de_contacto", "ilike"},
			} {
				s, err := optString(args, f.arg, "")
				if err != nil {
					return nil, err
				}
				if s != "" {
					dom.add(f.field, f.op, s)
				}
			}
			if programID, err := optInt(args, "program_id", 0); err != nil {
				return nil, err
			} else if programID > 0 {
				dom.add("x_studio_programa_academico", "=", programID)
			}
			limit, err := limitArg(args, defaultLimit, maxLimit)
			if err != nil {
				return nil, err
			}

			leads, err := gw.SearchRead(ctx, "crm.lead", dom, leadListFields, limit, 0, "create_date desc")
			if err != nil {
				return nil, err
			}
			out := make([]map[string]interface{}, 0, len(leads))
			for _, lead := range leads {
				out = append(out, formatLead(lead))
			}
			return out, nil
		},
	}
}

func getLeadDetailsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "get_lead_details",
		Description: "Get detailed information about a specific lead/opportunity, including address, lifecycle dates and all custom fields.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"lead_id": domain.IntProp("ID of the lead to retrieve."),
		}, "lead_id"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			leadID, err := reqInt(args, "lead_id")
			if err != nil {
				return nil, err
			}
			return readLeadDetails(ctx, gw, leadID)
		},
	}
}

func createLeadTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "create_lead",
		Description: "Create a new lead in the CRM. Only 'name' is required; contact, revenue and academic program fields are optional.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"name":             domain.StringProp("Lead/opportunity name."),
			"contact_name":     domain.StringProp("Contact person name."),
			"email_from":       domain.StringProp("Email address."),
			"phone":            domain.StringProp("Phone number."),
			"partner_name":     domain.StringProp("Company name."),
			"description":      domain.StringProp("Description/notes."),
			"team_id":          domain.IntProp("Sales team ID."),
			"user_id":          domain.IntProp("Salesperson ID."),
			"stage_id":         domain.IntProp("Stage ID."),
			"expected_revenue": domain.NumberProp("Expected revenue."),
			"probability":      domain.NumberProp("Probability (0-100)."),
			"program_id":       domain.IntProp("Academic program ID."),
			"canal_contacto":   domain.StringProp("Contact channel."),
			"programa_interes": domain.StringProp("Program of interest."),
		}, "name"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if _, err := reqString(args, "name"); err != nil {
				return nil, err
			}
			values, err := collectValues(args, leadValueFields)
			if err != nil {
				return nil, err
			}
			// New records always start as leads; convert_lead_to_opportunity
			// promotes them later.
			values["type"] = "lead"

			raw, err := gw.ExecuteKw(ctx, "crm.lead", "create", []interface{}{values}, nil)
			if err != nil {
				return nil, err
			}
			leadID, err := decodeID(raw, "crm.lead create")
			if err != nil {
				return nil, err
			}
			return readLeadDetails(ctx, gw, leadID)
		},
	}
}

func updateLeadTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "update_lead",
		Description: "Update an existing lead/opportunity. Only the provided fields are written.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"lead_id":          domain.IntProp("ID of the lead to update."),
			"name":             domain.StringProp("Lead/opportunity name."),
			"contact_name":     domain.StringProp("Contact person name."),
			"email_from":       domain.StringProp("Email address."),
			"phone":            domain.StringProp("Phone number."),
			"description":      domain.StringProp("Description/notes."),
			"stage_id":         domain.IntProp("Stage ID."),
			"user_id":          domain.IntProp("Salesperson ID."),
			"team_id":          domain.IntProp("Sales team ID."),
			"expected_revenue": domain.NumberProp("Expected revenue."),
			"probability":      domain.NumberProp("Probability (0-100)."),
			"priority":         domain.StringProp("Priority ('0', '1', '2', '3')."),
			"program_id":       domain.IntProp("Academic program ID."),
			"canal_contacto":   domain.StringProp("Contact channel."),
			"programa_interes": domain.StringProp("Program of interest."),
			"progress":         domain.NumberProp("Progress percentage."),
		}, "lead_id"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			leadID, err := reqInt(args, "lead_id")
			if err != nil {
				return nil, err
			}
			values, err := collectValues(args, leadValueFields)
			if err != nil {
				return nil, err
			}
			if len(values) == 0 {
				return nil, fmt.Errorf("no fields provided for update")
			}

			if _, err := gw.ExecuteKw(ctx, "crm.lead", "write", []interface{}{[]int{leadID}, values}, nil); err != nil {
				return nil, err
			}
			return readLeadDetails(ctx, gw, leadID)
		},
	}
}

func convertLeadTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "convert_lead_to_opportunity",
		Description: "Convert a lead into an opportunity, optionally assigning a partner, salesperson and team.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"lead_id":    domain.IntProp("ID of the lead to convert."),
			"partner_id": domain.IntProp("Partner to associate with the opportunity."),
			"user_id":    domain.IntProp("Salesperson to assign."),
			"team_id":    domain.IntProp("Sales team to assign."),
		}, "lead_id"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			leadID, err := reqInt(args, "lead_id")
			if err != nil {
				return nil, err
			}
			values := map[string]interface{}{"type": "opportunity"}
			for _, f := range []string{"partner_id", "user_id", "team_id"} {
				id, err := optInt(args, f, 0)
				if err != nil {
					return nil, err
				}
				if id > 0 {
					values[f] = id
				}
			}

			if _, err := gw.ExecuteKw(ctx, "crm.lead", "write", []interface{}{[]int{leadID}, values}, nil); err != nil {
				return nil, err
			}
			return readLeadDetails(ctx, gw, leadID)
		},
	}
}

func listCrmStagesTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "list_crm_stages",
		Description: "List CRM pipeline stages, optionally filtered by sales team.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"team_id": domain.IntProp("Filter stages by team ID."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			dom := searchDomain{}
			teamID, err := optInt(args, "team_id", 0)
			if err != nil {
				return nil, err
			}
			if teamID > 0 {
				dom.add("team_id", "=", teamID)
			}

			stages, err := gw.SearchRead(ctx, "crm.stage", dom,
				[]string{"id", "name", "sequence", "fold", "team_id", "probability"},
				0, 0, "sequence asc")
			if err != nil {
				return nil, err
			}
			out := make([]map[string]interface{}, 0, len(stages))
			for _, stage := range stages {
				out = append(out, map[string]interface{}{
					"id":          stage["id"],
					"name":        stage["name"],
					"sequence":    recFloat(stage, "sequence"),
					"fold":        recBool(stage, "fold"),
					"probability": recFloat(stage, "probability"),
					"team":        relation(stage["team_id"]),
				})
			}
			return out, nil
		},
	}
}

func listCrmTeamsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "list_crm_teams",
		Description: "List CRM sales teams with their leader and member count.",
		InputSchema: domain.ObjectSchema(nil),
		Handler: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			teams, err := gw.SearchRead(ctx, "crm.team", nil,
				[]string{"id", "name", "user_id", "member_ids", "active"},
				0, 0, "name asc")
			if err != nil {
				return nil, err
			}
			out := make([]map[string]interface{}, 0, len(teams))
			for _, team := range teams {
				out = append(out, map[string]interface{}{
					"id":           team["id"],
					"name":         team["name"],
					"active":       recBool(team, "active"),
					"leader":       relation(team["user_id"]),
					"member_count": len(recIDs(team, "member_ids")),
				})
			}
			return out, nil
		},
	}
}

func getLeadActivitiesTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "get_lead_activities",
		Description: "Get the scheduled activities attached to a lead/opportunity.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"lead_id": domain.IntProp("Lead/opportunity ID."),
		}, "lead_id"),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			leadID, err := reqInt(args, "lead_id")
			if err != nil {
				return nil, err
			}
			dom := searchDomain{}
			dom.add("res_model", "=", "crm.lead")
			dom.add("res_id", "=", leadID)

			activities, err := gw.SearchRead(ctx, "mail.activity", dom,
				[]string{"id", "activity_type_id", "summary", "date_deadline", "user_id", "state", "create_date"},
				0, 0, "date_deadline desc")
			if err != nil {
				return nil, err
			}
			out := make([]map[string]interface{}, 0, len(activities))
			for _, act := range activities {
				out = append(out, map[string]interface{}{
					"id":            act["id"],
					"type":          relation(act["activity_type_id"]),
					"summary":       recStr(act, "summary"),
					"date_deadline": recStr(act, "date_deadline"),
					"state":         recStr(act, "state"),
					"user":          relation(act["user_id"]),
					"create_date":   recStr(act, "create_date"),
				})
			}
			return out, nil
		},
	}
}

func getAcademicProgramsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "get_academic_programs",
		Description: "List the academic programs offered, stored as product templates in the backend.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"active_only": domain.BoolProp("Return only active programs (default true)."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			activeOnly, err := optBool(args, "active_only", true)
			if err != nil {
				return nil, err
			}
			dom := searchDomain{}
			if activeOnly {
				dom.add("active", "=", true)
			}

			programs, err := gw.SearchRead(ctx, "product.template", dom,
				[]string{"id", "name", "active", "list_price", "categ_id"},
				0, 0, "name asc")
			if err != nil {
				return nil, err
			}
			out := make([]map[string]interface{}, 0, len(programs))
			for _, program := range programs {
				out = append(out, map[string]interface{}{
					"id":       program["id"],
					"name":     program["name"],
					"active":   recBool(program, "active"),
					"price":    recFloat(program, "list_price"),
					"category": relation(program["categ_id"]),
				})
			}
			return out, nil
		},
	}
}

func getCrmDashboardStatsTool(gw usecase.OdooGateway) domain.Tool {
	return domain.Tool{
		Name:        "get_crm_dashboard_stats",
		Description: "Get pipeline statistics: lead/opportunity counts, win rate, expected and weighted revenue.",
		InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
			"team_id":   domain.IntProp("Filter by sales team ID."),
			"user_id":   domain.IntProp("Filter by salesperson ID."),
			"date_from": domain.StringProp("Creation date lower bound (YYYY-MM-DD)."),
			"date_to":   domain.StringProp("Creation date upper bound (YYYY-MM-DD)."),
		}),
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			base := searchDomain{}
			for _, f := range []string{"team_id", "user_id"} {
				id, err := optInt(args, f, 0)
				if err != nil {
					return nil, err
				}
				if id > 0 {
					base.add(f, "=", id)
				}
			}
			for _, f := range []struct{ arg, op string }{
				{"date_from", ">="},
				{"date_to", "<="},
			} {
				s, err := optString(args, f.arg, "")
				if err != nil {
					return nil, err
				}
				if s != "" {
					base.add("create_date", f.op, s)
				}
			}

			withConds := func(conds ...[]interface{}) []interface{} {
				dom := make([]interface{}, 0, len(base)+len(conds))
				dom = append(dom, base...)
				for _, c := range conds {
					dom = append(dom, c)
				}
				return dom
			}

			leadsCount, err := gw.SearchCount(ctx, "crm.lead", withConds(
				[]interface{}{"type", "=", "lead"}))
			if err != nil {
				return nil, err
			}
			oppsCount, err := gw.SearchCount(ctx, "crm.lead", withConds(
				[]interface{}{"type", "=", "opportunity"}))
			if err != nil {
				return nil, err
			}
			wonCount, err := gw.SearchCount(ctx, "crm.lead", withConds(
				[]interface{}{"type", "=", "opportunity"},
				[]interface{}{"probability", "=", 100}))
			if err != nil {
				return nil, err
			}
			lostCount, err := gw.SearchCount(ctx, "crm.lead", withConds(
				[]interface{}{"type", "=", "opportunity"},
				[]interface{}{"probability", "=", 0},
				[]interface{}{"active", "=", false}))
			if err != nil {
				return nil, err
			}

			revenueOpps, err := gw.SearchRead(ctx, "crm.lead", withConds(
				[]interface{}{"type", "=", "opportunity"},
				[]interface{}{"expected_revenue", ">", 0}),
				[]string{"expected_revenue", "probability"}, 0, 0, "")
			if err != nil {
				return nil, err
			}

			var totalExpected, weighted float64
			for _, opp := range revenueOpps {
				revenue := recFloat(opp, "expected_revenue")
				totalExpected += revenue
				weighted += revenue * recFloat(opp, "probability") / 100
			}

			return map[string]interface{}{
				"leads_count":            leadsCount,
				"opportunities_count":    oppsCount,
				"won_count":              wonCount,
				"lost_count":             lostCount,
				"win_rate":               round2(float64(wonCount) / float64(max(oppsCount, 1)) * 100),
				"total_expected_revenue": round2(totalExpected),
				"weighted_revenue":       round2(weighted),
				"active_pipeline":        oppsCount - wonCount - lostCount,
			}, nil
		},
	}
}
