// Package bedrock provides a model.Model for Anthropic models hosted on AWS
// Bedrock (InvokeModel with the Anthropic messages body).
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/model"
)

const anthropicVersion = "bedrock-2023-05-31"

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Options configure the Bedrock adapter.
type Options struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
}

// Model invokes an Anthropic model through Bedrock.
type Model struct {
	client InvokeModelAPI
	opts   Options
}

// NewModel loads the default AWS configuration and creates a Model.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewModelFromClient(bedrockruntime.NewFromConfig(cfg), optFns...), nil
}

// NewModelFromClient creates a Model from an existing client.
func NewModelFromClient(client InvokeModelAPI, optFns ...func(o *Options)) *Model {
	opts := Options{
		ModelID:     "anthropic.claude-3-5-sonnet-20241022-v2:0",
		MaxTokens:   4096,
		Temperature: 0.7,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

type contentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type toolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type invokeRequest struct {
	AnthropicVersion string     `json:"anthropic_version"`
	MaxTokens        int        `json:"max_tokens"`
	Temperature      float64    `json:"temperature"`
	System           string     `json:"system,omitempty"`
	Messages         []message  `json:"messages"`
	Tools            []toolSpec `json:"tools,omitempty"`
}

type invokeResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error any `json:"error,omitempty"`
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	body, err := json.Marshal(m.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encode bedrock request: %w", err)
	}

	out, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(m.opts.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke bedrock model: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode bedrock response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("bedrock api error: %v", resp.Error)
	}

	var parts []core.Part
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, core.TextPart{Text: block.Text})
			}
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: block.ID, Name: block.Name, Arguments: string(args)}})
		}
	}

	finish := resp.StopReason
	if finish == "" {
		finish = "stop"
	}
	return &model.Response{
		ID:           resp.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finish,
		Usage: &model.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (m *Model) buildRequest(req model.Request) invokeRequest {
	ir := invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        m.opts.MaxTokens,
		Temperature:      m.opts.Temperature,
		System:           req.Instructions,
	}

	for _, c := range req.Contents {
		switch c.Role {
		case "system":
			if ir.System != "" {
				ir.System += "\n\n"
			}
			ir.System += c.Text()
		case "assistant":
			var blocks []contentBlock
			if text := c.Text(); text != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: text})
			}
			for _, fc := range c.FunctionCalls() {
				input := map[string]any{}
				_ = json.Unmarshal([]byte(fc.Arguments), &input)
				blocks = append(blocks, contentBlock{Type: "tool_use", ID: fc.ID, Name: fc.Name, Input: input})
			}
			if len(blocks) > 0 {
				ir.Messages = append(ir.Messages, message{Role: "assistant", Content: blocks})
			}
		case "tool":
			var blocks []contentBlock
			for _, p := range c.Parts {
				fr, ok := p.(core.FunctionResponsePart)
				if !ok {
					continue
				}
				blocks = append(blocks, toolResult(fr.FunctionResponse))
			}
			if len(blocks) > 0 {
				ir.Messages = append(ir.Messages, message{Role: "user", Content: blocks})
			}
		default:
			if text := c.Text(); text != "" {
				ir.Messages = append(ir.Messages, message{Role: "user", Content: []contentBlock{{Type: "text", Text: text}}})
			}
		}
	}

	for _, t := range req.Tools {
		schema := t.Function.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		ir.Tools = append(ir.Tools, toolSpec{Name: t.Function.Name, Description: t.Function.Description, InputSchema: schema})
	}
	return ir
}

func toolResult(fr core.FunctionResponse) contentBlock {
	if fr.Error != "" {
		return contentBlock{Type: "tool_result", ToolUseID: fr.ID, Content: fr.Error, IsError: true}
	}
	text, ok := fr.Response.(string)
	if !ok {
		b, err := json.Marshal(fr.Response)
		if err != nil {
			text = fmt.Sprintf("%v", fr.Response)
		} else {
			text = string(b)
		}
	}
	return contentBlock{Type: "tool_result", ToolUseID: fr.ID, Content: text}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.ModelID, Provider: "bedrock", SupportsTools: true}
}
