package tools

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/headliner/models"
)

// ExecuteFunc runs a tool with decoded JSON arguments.
type ExecuteFunc func(ctx context.Context, args map[string]interface{}) (string, error)

// Tool is a capability the language model may invoke by name.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema of the arguments object
	Execute     ExecuteFunc
}

// Spec is the view of the tool advertised to the model.
func (t Tool) Spec() models.ToolSpec {
	return models.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// Object builds a JSON schema for an arguments object.
func Object(properties map[string]interface{}, required ...string) map[string]interface{} {
	if properties == nil {
		properties = map[string]interface{}{}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		req := make([]interface{}, len(required))
		for i, r := range required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

// String describes a string property.
func String(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// Bool describes a boolean property.
func Bool(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

// StringArg reads a string argument, returning "" when absent.
func StringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// BoolArg reads a boolean argument with a default.
func BoolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
