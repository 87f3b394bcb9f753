package domain

import "context"

// ToolHandler executes a tool against already-decoded JSON arguments and
// returns a JSON-compatible value. Handlers must honor ctx cancellation:
// the dispatcher bounds every invocation with a per-call deadline.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Tool represents a callable operation exposed over the Model Context
// Protocol (MCP). Tools are immutable once registered; the registry is
// built at process start and only read afterwards.
// Based on MCP Spec 2024-11-05: https://modelcontextprotocol.io/specification/2024-11-05
type Tool struct {
	// Name MUST be unique within the MCP server.
	Name string `json:"name"`

	// Description provides a natural language explanation of what the tool does.
	// This is crucial for the LLM to understand when to use the tool.
	Description string `json:"description"`

	// InputSchema defines the structure of the data the tool expects.
	// Uses JSON Schema format.
	InputSchema JSONSchemaProps `json:"inputSchema"`

	// Handler performs the actual call. Never serialized.
	Handler ToolHandler `json:"-"`
}

// JSONSchemaProps represents the properties of a JSON schema,
// commonly used for input definitions in MCP tools.
// This is a simplified version; a more complete implementation might import
// a dedicated JSON schema library or use map[string]interface{}.
type JSONSchemaProps struct {
	Type        string                     `json:"type"`                  // e.g., "object", "string", "number", "integer", "boolean", "array"
	Description string                     `json:"description,omitempty"` // Human-readable meaning of the value
	Properties  map[string]JSONSchemaProps `json:"properties,omitempty"`  // For type "object"
	Required    []string                   `json:"required,omitempty"`    // For type "object"
	Items       *JSONSchemaProps           `json:"items,omitempty"`       // For type "array"
	Format      string                     `json:"format,omitempty"`      // e.g., "date-time", "email"
	Enum        []interface{}              `json:"enum,omitempty"`        // Possible values
	Default     interface{}                `json:"default,omitempty"`     // Applied by the handler, not the dispatcher
}

// ObjectSchema builds the common "object with properties" input schema.
func ObjectSchema(properties map[string]JSONSchemaProps, required ...string) JSONSchemaProps {
	return JSONSchemaProps{Type: "object", Properties: properties, Required: required}
}

// StringProp returns a string property with a description.
func StringProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "string", Description: description}
}

// IntProp returns an integer property with a description.
func IntProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "integer", Description: description}
}

// NumberProp returns a number property with a description.
func NumberProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "number", Description: description}
}

// BoolProp returns a boolean property with a description.
func BoolProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "boolean", Description: description}
}

// ObjectProp returns a free-form object property with a description.
func ObjectProp(description string) JSONSchemaProps {
	return JSONSchemaProps{Type: "object", Description: description}
}

// IntArrayProp returns an array-of-integers property with a description.
func IntArrayProp(description string) JSONSchemaProps {
	return JSONSchemaProps{
		Type:        "array",
		Description: description,
		Items:       &JSONSchemaProps{Type: "integer"},
	}
}
