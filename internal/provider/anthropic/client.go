package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	ai "github.com/adolfousier/opencrab"
)

// DefaultModel is used when no model is set on the client or the call.
const DefaultModel = "claude-sonnet-4-5"

// Client wraps the Anthropic SDK to implement ai.ChatProvider.
type Client struct {
	client *anthropic.Client
	model  string
}

// ClientOption configures the Anthropic client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model   string
	baseURL string
	bearer  string
}

// WithModel sets the default model for requests.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithBearerToken authenticates with an OAuth bearer token instead of the
// API key.
func WithBearerToken(token string) ClientOption {
	return func(c *clientConfig) {
		c.bearer = token
	}
}

// New creates an Anthropic client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	cfg := &clientConfig{model: DefaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	var reqOpts []option.RequestOption
	if cfg.bearer != "" {
		reqOpts = append(reqOpts, option.WithAuthToken(cfg.bearer))
	} else {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &Client{
		client: &client,
		model:  cfg.model,
	}
}

func (c *Client) buildParams(messages []ai.Message, options *ai.Options) anthropic.MessageNewParams {
	model := c.model
	if options.Model != "" {
		model = options.Model
	}
	maxTokens := int64(4096)
	if options.MaxTokens > 0 {
		maxTokens = int64(options.MaxTokens)
	}

	msgs, system := convertMessages(messages)
	if options.System != "" {
		system = append([]anthropic.TextBlockParam{{Text: options.System}}, system...)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
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

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}

	content := ""
	var toolCalls []ai.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content += block.Text
		case "tool_use":
			toolCalls = append(toolCalls, ai.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}

	return &ai.Response{
		Content:      content,
		FinishReason: string(resp.StopReason),
		Usage: ai.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
		ToolCalls: toolCalls,
	}, nil
}

// partialCall accumulates a tool_use block across stream events.
type partialCall struct {
	id   string
	name string
	args strings.Builder
}

// ChatStream sends a conversation and returns a channel of streaming events.
// Tool calls are surfaced incrementally: ToolCallStart when the block opens,
// InputDelta for each argument fragment, and ToolCallEnd with the complete
// call when the block closes.
func (c *Client) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	options := ai.ApplyOptions(opts...)
	params := c.buildParams(messages, options)

	stream := c.client.Messages.NewStreaming(ctx, params)
	ch := make(chan ai.StreamEvent)

	go func() {
		defer close(ch)
		var acc anthropic.Message
		calls := make(map[int64]*partialCall)

		for stream.Next() {
			event := stream.Current()
			acc.Accumulate(event)

			switch event.Type {
			case "content_block_start":
				start := event.AsContentBlockStart()
				if start.ContentBlock.Type == "tool_use" {
					calls[start.Index] = &partialCall{
						id:   start.ContentBlock.ID,
						name: start.ContentBlock.Name,
					}
					ch <- ai.StreamEvent{
						Kind:       ai.StreamToolCallStart,
						ToolCallID: start.ContentBlock.ID,
						ToolName:   start.ContentBlock.Name,
					}
				}

			case "content_block_delta":
				delta := event.AsContentBlockDelta()
				switch delta.Delta.Type {
				case "text_delta":
					ch <- ai.StreamEvent{
						Kind:  ai.StreamTextDelta,
						Delta: delta.Delta.AsTextDelta().Text,
					}
				case "input_json_delta":
					if pc, ok := calls[delta.Index]; ok {
						fragment := delta.Delta.AsInputJSONDelta().PartialJSON
						pc.args.WriteString(fragment)
						ch <- ai.StreamEvent{
							Kind:       ai.StreamToolCallInputDelta,
							ToolCallID: pc.id,
							Delta:      fragment,
						}
					}
				}

			case "content_block_stop":
				stop := event.AsContentBlockStop()
				if pc, ok := calls[stop.Index]; ok {
					delete(calls, stop.Index)
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
			InputTokens:  int(acc.Usage.InputTokens),
			OutputTokens: int(acc.Usage.OutputTokens),
		}
		ch <- ai.StreamEvent{Kind: ai.StreamUsage, Usage: &usage}

		content := ""
		var toolCalls []ai.ToolCall
		for _, block := range acc.Content {
			switch block.Type {
			case "text":
				content += block.Text
			case "tool_use":
				toolCalls = append(toolCalls, ai.ToolCall{
					ID:        block.ID,
					Name:      block.Name,
					Arguments: string(block.Input),
				})
			}
		}

		ch <- ai.StreamEvent{
			Kind: ai.StreamDone,
			Response: &ai.Response{
				Content:      content,
				FinishReason: string(acc.StopReason),
				Usage:        usage,
				ToolCalls:    toolCalls,
			},
		}
	}()

	return ch, nil
}

var _ ai.ChatProvider = (*Client)(nil)
