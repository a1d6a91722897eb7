package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ldi/telepathic/internal/logging"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	openai "github.com/sashabaranov/go-openai"
)

// maxToolRounds bounds how many times the model may call tools before it
// must produce its answer.
const maxToolRounds = 5

// OpenAIClient talks to the OpenAI API or any compatible endpoint.
type OpenAIClient struct {
	api                *openai.Client
	model              string
	transcriptionModel string
}

func NewOpenAIClient(opts Options) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	transcription := opts.TranscriptionModel
	if transcription == "" {
		transcription = openai.Whisper1
	}
	return &OpenAIClient{
		api:                openai.NewClientWithConfig(cfg),
		model:              model,
		transcriptionModel: transcription,
	}
}

func (c *OpenAIClient) Text(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Structured(ctx context.Context, prompt string, out any, tools ...server.ServerTool) error {
	format, err := responseFormat(out)
	if err != nil {
		return err
	}

	defs, handlers, err := toolDefinitions(tools)
	if err != nil {
		return err
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Model:          c.model,
			Messages:       messages,
			ResponseFormat: format,
		}
		if round < maxToolRounds {
			req.Tools = defs
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("chat completion returned no choices")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return decodeJSON(msg.Content, out)
		}
		if round >= maxToolRounds {
			return fmt.Errorf("model kept calling tools after %d rounds", maxToolRounds)
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result := invokeTool(ctx, handlers, call)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

func (c *OpenAIClient) StructuredWithImage(ctx context.Context, prompt string, image []byte, mimeType string, out any) error {
	format, err := responseFormat(out)
	if err != nil {
		return err
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return fmt.Errorf("image completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("image completion returned no choices")
	}
	return decodeJSON(resp.Choices[0].Message.Content, out)
}

func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func responseFormat(out any) (*openai.ChatCompletionResponseFormat, error) {
	schema, err := schemaFor(out)
	if err != nil {
		return nil, fmt.Errorf("failed to build response schema: %w", err)
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "result",
			Schema: schema,
			Strict: false,
		},
	}, nil
}

func toolDefinitions(tools []server.ServerTool) ([]openai.Tool, map[string]server.ToolHandlerFunc, error) {
	if len(tools) == 0 {
		return nil, nil, nil
	}
	defs := make([]openai.Tool, 0, len(tools))
	handlers := make(map[string]server.ToolHandlerFunc, len(tools))
	for _, t := range tools {
		params, err := json.Marshal(t.Tool.InputSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode schema for tool %s: %w", t.Tool.Name, err)
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Tool.Name,
				Description: t.Tool.Description,
				Parameters:  json.RawMessage(params),
			},
		})
		handlers[t.Tool.Name] = t.Handler
	}
	return defs, handlers, nil
}

// invokeTool runs one tool call and returns the text the model will read.
// Failures are reported back to the model rather than aborting the exchange.
func invokeTool(ctx context.Context, handlers map[string]server.ToolHandlerFunc, call openai.ToolCall) string {
	handler, ok := handlers[call.Function.Name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}

	args := map[string]any{}
	if strings.TrimSpace(call.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("error: invalid arguments: %v", err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = call.Function.Name
	req.Params.Arguments = args

	result, err := handler(ctx, req)
	if err != nil {
		logging.Warn("ai", "Tool %s failed: %v", call.Function.Name, err)
		return fmt.Sprintf("error: %v", err)
	}

	text := toolText(result)
	logging.Debug("ai", "Tool %s(%s) -> %s", call.Function.Name, call.Function.Arguments, logging.Truncate(text, 120))
	if result != nil && result.IsError {
		return "error: " + text
	}
	return text
}

func toolText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodeJSON unmarshals a model answer, tolerating a surrounding code fence.
func decodeJSON(content string, out any) error {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return errors.New("model returned an empty answer")
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode model answer: %w", err)
	}
	return nil
}
