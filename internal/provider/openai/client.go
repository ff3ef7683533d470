package openai

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	ai "github.com/adolfousier/opencrab"
)

// DefaultModel is used when no model is set on the client or the call.
const DefaultModel = "gpt-5"

// Client wraps the OpenAI SDK to implement ai.ChatProvider.
type Client struct {
	client *openai.Client
	model  string
}

// ClientOption configures the OpenAI client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model   string
	baseURL string
}

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithBaseURL overrides the API endpoint, for OpenAI-compatible servers.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// New creates an OpenAI client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	cfg := &clientConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := openai.NewClient(reqOpts...)
	return &Client{
		client: &client,
		model:  cfg.model,
	}
}

func (c *Client) buildParams(messages []ai.Message, options *ai.Options) openai.ChatCompletionNewParams {
	model := c.model
	if options.Model != "" {
		model = options.Model
	}

	converted := convertMessages(messages)
	if options.System != "" {
		converted = append(
			[]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(options.System)},
			converted...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: converted,
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(options.MaxTokens))
	}
	if options.Temperature != nil {
		params.Temperature = openai.Float(*options.Temperature)
	}
	if len(options.Tools) > 0 {
		params.Tools = convertTools(options.Tools)
		if options.ToolChoice != "" {
			params.ToolChoice = convertToolChoice(options.ToolChoice)
		}
	}
	return params
}

// Chat sends a conversation and returns a complete response.
func (c *Client) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (*ai.Response, error) {
	options := ai.ApplyOptions(opts...)
	params := c.buildParams(messages, options)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}

	choice := resp.Choices[0]
	return &ai.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: ai.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		ToolCalls: extractToolCalls(choice.Message),
	}, nil
}

// ChatStream sends a conversation and returns a channel of streaming events.
func (c *Client) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	options := ai.ApplyOptions(opts...)
	params := c.buildParams(messages, options)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	ch := make(chan ai.StreamEvent)

	go func() {
		defer close(ch)
		var acc openai.ChatCompletionAccumulator

		// Per-index argument builders for in-flight tool calls.
		type partialCall struct {
			id   string
			name string
			args strings.Builder
		}
		calls := make(map[int64]*partialCall)

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 {
				delta := chunk.Choices[0].Delta
				if delta.Content != "" {
					ch <- ai.StreamEvent{
						Kind:  ai.StreamTextDelta,
						Delta: delta.Content,
					}
				}
				for _, tc := range delta.ToolCalls {
					pc, ok := calls[tc.Index]
					if !ok {
						pc = &partialCall{id: tc.ID, name: tc.Function.Name}
						calls[tc.Index] = pc
						ch <- ai.StreamEvent{
							Kind:       ai.StreamToolCallStart,
							ToolCallID: pc.id,
							ToolName:   pc.name,
						}
					}
					if tc.Function.Arguments != "" {
						pc.args.WriteString(tc.Function.Arguments)
						ch <- ai.StreamEvent{
							Kind:       ai.StreamToolCallInputDelta,
							ToolCallID: pc.id,
							Delta:      tc.Function.Arguments,
						}
					}
				}
			}

			if tc, ok := acc.JustFinishedToolCall(); ok {
				if pc, found := calls[int64(tc.Index)]; found {
					delete(calls, int64(tc.Index))
					args := pc.args.String()
					if args == "" {
						args = "{}"
					}
					ch <- ai.StreamEvent{
						Kind:       ai.StreamToolCallEnd,
						ToolCallID: pc.id,
						ToolName:   pc.name,
						ToolCall: &ai.ToolCall{
							ID:        pc.id,
							Name:      pc.name,
							Arguments: args,
						},
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- ai.StreamEvent{Kind: ai.StreamError, Err: wrapError(err)}
			return
		}

		usage := ai.Usage{
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
		}
		ch <- ai.StreamEvent{Kind: ai.StreamUsage, Usage: &usage}

		completion := acc.Choices[0]
		ch <- ai.StreamEvent{
			Kind: ai.StreamDone,
			Response: &ai.Response{
				Content:      completion.Message.Content,
				FinishReason: string(completion.FinishReason),
				Usage:        usage,
				ToolCalls:    extractToolCalls(completion.Message),
			},
		}
	}()

	return ch, nil
}

var _ ai.ChatProvider = (*Client)(nil)
