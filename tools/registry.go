package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/headliner/models"
)

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry holds the tools available to one agent run, in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]entry
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]entry)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles the tool's parameter schema and adds it. Names are unique.
func (r *Registry) Register(t Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tool name must be provided")
	}
	if t.Execute == nil {
		return fmt.Errorf("tool %s: execute must be provided", t.Name)
	}
	if t.Parameters == nil {
		t.Parameters = Object(nil)
	}
	raw, err := json.Marshal(t.Parameters)
	if err != nil {
		return fmt.Errorf("tool %s: marshal schema: %w", t.Name, err)
	}
	compiler := jsonschema.NewCompiler()
	resource := t.Name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("tool %s: add schema resource: %w", t.Name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", t.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = entry{tool: t, schema: compiled}
	r.order = append(r.order, t.Name)
	return nil
}

// Specs lists the tools for the model request.
func (r *Registry) Specs() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]models.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].tool.Spec())
	}
	return specs
}

// Names returns the registered tool names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Resolve finds the tool for a call and validates its arguments. It fails with
// ErrUnknownTool or ErrInvalidArgs; neither means the tool itself failed.
func (r *Registry) Resolve(call models.ToolCall) (Tool, map[string]interface{}, error) {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return Tool{}, nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	raw := strings.TrimSpace(call.Arguments)
	if raw == "" {
		raw = "{}"
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Tool{}, nil, fmt.Errorf("%w: %s: not valid JSON: %v", ErrInvalidArgs, call.Name, err)
	}
	if err := e.schema.Validate(doc); err != nil {
		return Tool{}, nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgs, call.Name, err)
	}
	args, ok := doc.(map[string]interface{})
	if !ok {
		return Tool{}, nil, fmt.Errorf("%w: %s: arguments must be an object", ErrInvalidArgs, call.Name)
	}
	return e.tool, args, nil
}
