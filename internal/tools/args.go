// Package tools registers the Odoo CRM and accounting tool suite.
//
// Each tool wraps a small number of gateway calls and reshapes the raw
// Odoo records into flat JSON objects. Arguments arrive as the decoded
// JSON object of a tools/call request, so numbers are float64 and every
// reader here works from that representation.
package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// optString reads an optional string argument, returning fallback when the
// key is absent or null.
func optString(args map[string]interface{}, key, fallback string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument '%s' must be a string", key)
	}
	return s, nil
}

// reqString reads a mandatory, non-empty string argument.
func reqString(args map[string]interface{}, key string) (string, error) {
	s, err := optString(args, key, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("argument '%s' must be a non-empty string", key)
	}
	return s, nil
}

// toInt converts a decoded JSON value to int. Fractional numbers are
// rejected rather than truncated.
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be an integer")
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

// optInt reads an optional integer argument, returning fallback when the
// key is absent or null.
func optInt(args map[string]interface{}, key string, fallback int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("argument '%s' %s", key, err)
	}
	return n, nil
}

// reqInt reads a mandatory positive integer argument, typically a record id.
func reqInt(args map[string]interface{}, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("argument '%s' is required", key)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("argument '%s' %s", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("argument '%s' must be a positive id", key)
	}
	return n, nil
}

// optFloat reads an optional numeric argument.
func optFloat(args map[string]interface{}, key string, fallback float64) (float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("argument '%s' must be a number", key)
	}
}

// optBool reads an optional boolean argument.
func optBool(args map[string]interface{}, key string, fallback bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument '%s' must be a boolean", key)
	}
	return b, nil
}

// optIntSlice reads an optional list of integer ids.
func optIntSlice(args map[string]interface{}, key string) ([]int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("argument '%s' must be a list of integers", key)
	}
	ids := make([]int, 0, len(items))
	for _, item := range items {
		n, err := toInt(item)
		if err != nil {
			return nil, fmt.Errorf("argument '%s' %s", key, err)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// defaultLimit is the page size used when a listing tool gets no explicit
// limit, maxLimit the hard ceiling protecting the backend.
const (
	defaultLimit = 100
	maxLimit     = 500
)

// limitArg reads the limit argument and clamps it to (0, max].
func limitArg(args map[string]interface{}, fallback, max int) (int, error) {
	n, err := optInt(args, "limit", fallback)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		n = fallback
	}
	if n > max {
		n = max
	}
	return n, nil
}

// searchDomain accumulates Odoo domain conditions as [field, op, value]
// triplets in the order they were added.
type searchDomain []interface{}

func (d *searchDomain) add(field, operator string, value interface{}) {
	*d = append(*d, []interface{}{field, operator, value})
}

// relation reshapes an Odoo many2one value, which arrives as an
// [id, name] pair, into an {id, name} object. Empty relations come back
// from Odoo as false and map to nil.
func relation(v interface{}) map[string]interface{} {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 2 {
		return nil
	}
	return map[string]interface{}{"id": pair[0], "name": pair[1]}
}

// relationID extracts the id of a many2one pair, 0 when unset.
func relationID(v interface{}) int {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 1 {
		return 0
	}
	n, err := toInt(pair[0])
	if err != nil {
		return 0
	}
	return n
}

// relationName extracts the display name of a many2one pair, "" when unset.
func relationName(v interface{}) string {
	pair, ok := v.([]interface{})
	if !ok || len(pair) < 2 {
		return ""
	}
	name, _ := pair[1].(string)
	return name
}

// Odoo encodes unset scalar fields as false, so the record readers below
// fall back to a zero value whenever the type does not match.

func recStr(rec map[string]interface{}, key string) string {
	s, _ := rec[key].(string)
	return s
}

func recFloat(rec map[string]interface{}, key string) float64 {
	f, _ := rec[key].(float64)
	return f
}

func recBool(rec map[string]interface{}, key string) bool {
	b, _ := rec[key].(bool)
	return b
}

func recIDs(rec map[string]interface{}, key string) []interface{} {
	ids, ok := rec[key].([]interface{})
	if !ok {
		return []interface{}{}
	}
	return ids
}

// argField maps one tool argument onto an Odoo field for create/update
// payloads.
type argField struct {
	arg   string
	field string
	kind  argKind
}

type argKind int

const (
	kindString argKind = iota
	kindInt
	kindFloat
	kindBool
)

// collectValues builds an Odoo values map from the arguments that are
// present and non-null, validating each against its declared kind.
func collectValues(args map[string]interface{}, fields []argField) (map[string]interface{}, error) {
	values := make(map[string]interface{})
	for _, f := range fields {
		v, ok := args[f.arg]
		if !ok || v == nil {
			continue
		}
		switch f.kind {
		case kindString:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("argument '%s' must be a string", f.arg)
			}
			values[f.field] = s
		case kindInt:
			n, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("argument '%s' %s", f.arg, err)
			}
			values[f.field] = n
		case kindFloat:
			n, err := optFloat(args, f.arg, 0)
			if err != nil {
				return nil, err
			}
			values[f.field] = n
		case kindBool:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("argument '%s' must be a boolean", f.arg)
			}
			values[f.field] = b
		}
	}
	return values, nil
}

// decodeRecords unpacks an execute_kw result that is a list of records.
func decodeRecords(raw json.RawMessage, what string) ([]map[string]interface{}, error) {
	var records []map[string]interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return records, nil
}

// decodeIDs unpacks an execute_kw result that is a list of record ids.
func decodeIDs(raw json.RawMessage, what string) ([]int, error) {
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return ids, nil
}

// decodeID unpacks an execute_kw result that is a single record id.
func decodeID(raw json.RawMessage, what string) (int, error) {
	var id int
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("decode %s: %w", what, err)
	}
	return id, nil
}

// round2 rounds to two decimal places for monetary aggregates.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
