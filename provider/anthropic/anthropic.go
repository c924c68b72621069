package anthropic_provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mohammad-safakhou/headliner/models"
)

const defaultBaseURL = "https://api.anthropic.com"

type client struct {
	sdk         anthropic.Client
	model       anthropic.Model
	temperature float64
	maxTokens   int
}

// NewAnthropicClient creates a Messages API client. Requests are never retried.
func NewAnthropicClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration, opts ...option.RequestOption) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaudeSonnet4_5_20250929
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(timeout))
	}
	reqOpts = append(reqOpts, opts...)
	return &client{
		sdk:         anthropic.NewClient(reqOpts...),
		model:       m,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *client) Complete(ctx context.Context, messages []models.Message, specs []models.ToolSpec) (models.Message, error) {
	msgs, system := toAnthropicMessages(messages)
	params := anthropic.MessageNewParams{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: int64(c.maxTokens),
	}
	if len(system) > 0 {
		params.System = system
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}
	if len(specs) > 0 {
		params.Tools = toAnthropicTools(specs)
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return models.Message{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	out := models.AssistantMessage("")
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := string(b.Input)
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	out.Content = text.String()
	return out, nil
}

// toAnthropicMessages splits out system text and folds consecutive tool
// results into one user turn, as the Messages API requires.
func toAnthropicMessages(messages []models.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var system []anthropic.TextBlockParam
	result := make([]anthropic.MessageParam, 0, len(messages))
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			result = append(result, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case models.RoleTool:
			isError := strings.HasPrefix(msg.Content, "Error:")
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isError))
		case models.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(" "))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			flush()
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flush()
	return result, system
}

func toAnthropicTools(specs []models.ToolSpec) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(specs))
	for i, spec := range specs {
		schema := anthropic.ToolInputSchemaParam{Properties: spec.Parameters["properties"]}
		switch req := spec.Parameters["required"].(type) {
		case []string:
			schema.Required = req
		case []interface{}:
			for _, r := range req {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		result[i] = anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if spec.Description != "" {
			result[i].OfTool.Description = anthropic.String(spec.Description)
		}
	}
	return result
}
