package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammad-safakhou/headliner/models"
)

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "echoes the url",
		Parameters:  Object(map[string]interface{}{"url": String("target")}, "url"),
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return StringArg(args, "url"), nil
		},
	}
}

func TestRegistrySpecsKeepOrder(t *testing.T) {
	r, err := NewRegistry(echoTool("navigate_browser"), echoTool("extract_text"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	specs := r.Specs()
	if len(specs) != 2 || specs[0].Name != "navigate_browser" || specs[1].Name != "extract_text" {
		t.Fatalf("unexpected specs %+v", specs)
	}
	if specs[0].Parameters["type"] != "object" {
		t.Fatalf("expected object schema, got %v", specs[0].Parameters)
	}
}

func TestRegistryRejectsDuplicatesAndBadTools(t *testing.T) {
	r, _ := NewRegistry(echoTool("a"))
	if err := r.Register(echoTool("a")); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := r.Register(Tool{Name: "noexec"}); err == nil {
		t.Fatalf("expected missing execute error")
	}
	if err := r.Register(Tool{Name: "", Execute: echoTool("x").Execute}); err == nil {
		t.Fatalf("expected missing name error")
	}
	bad := echoTool("bad")
	bad.Parameters = map[string]interface{}{"type": 12}
	if err := r.Register(bad); err == nil {
		t.Fatalf("expected schema compile error")
	}
}

func TestResolveValidatesArguments(t *testing.T) {
	r, _ := NewRegistry(echoTool("navigate_browser"))

	tool, args, err := r.Resolve(models.ToolCall{ID: "1", Name: "navigate_browser", Arguments: `{"url":"https://techcrunch.com"}`})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	out, err := tool.Execute(context.Background(), args)
	if err != nil || out != "https://techcrunch.com" {
		t.Fatalf("Execute = %q, %v", out, err)
	}

	cases := map[string]models.ToolCall{
		"unknown":       {Name: "open_tab", Arguments: `{}`},
		"missing field": {Name: "navigate_browser", Arguments: `{}`},
		"wrong type":    {Name: "navigate_browser", Arguments: `{"url": 5}`},
		"not json":      {Name: "navigate_browser", Arguments: `{url`},
		"not object":    {Name: "navigate_browser", Arguments: `"x"`},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := r.Resolve(call)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrUnknownTool) && !errors.Is(err, ErrInvalidArgs) {
				t.Fatalf("unexpected error kind: %v", err)
			}
		})
	}
}

func TestResolveEmptyArguments(t *testing.T) {
	r, _ := NewRegistry(Tool{Name: "extract_text", Execute: func(context.Context, map[string]interface{}) (string, error) { return "ok", nil }})
	if _, args, err := r.Resolve(models.ToolCall{Name: "extract_text"}); err != nil || len(args) != 0 {
		t.Fatalf("expected empty args to validate, got %v %v", args, err)
	}
}
