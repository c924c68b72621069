package openai_provider

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mohammad-safakhou/headliner/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client implements chat completion with tool calling on the OpenAI API
type client struct {
	sdk         openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIClient creates a new OpenAI client. Requests are never retried.
func NewOpenAIClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration, opts ...option.RequestOption) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
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
		sdk:         openai.NewClient(reqOpts...),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete sends the conversation and returns the assistant reply, which may
// carry tool calls.
func (c *client) Complete(ctx context.Context, messages []models.Message, specs []models.ToolSpec) (models.Message, error) {
	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(messages),
		Model:    openai.ChatModel(c.model),
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}
	if len(specs) > 0 {
		params.Tools = toOpenAITools(specs)
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return models.Message{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Message{}, fmt.Errorf("openai chat completion: no choices returned")
	}

	msg := resp.Choices[0].Message
	out := models.AssistantMessage(msg.Content)
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case models.RoleAssistant:
			if !msg.HasToolCalls() {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				asst.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case models.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func toOpenAITools(specs []models.ToolSpec) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, len(specs))
	for i, spec := range specs {
		params := openai.FunctionParameters{"type": "object", "properties": map[string]interface{}{}}
		for k, v := range spec.Parameters {
			params[k] = v
		}
		result[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
			Parameters:  params,
		})
	}
	return result
}
