package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/internal/provider/anthropic"
	"github.com/adolfousier/opencrab/internal/provider/google"
	"github.com/adolfousier/opencrab/internal/provider/openai"
	"github.com/adolfousier/opencrab/pricing"
	"github.com/adolfousier/opencrab/retry"
)

// DefaultPriority is the provider order used when none is configured.
// The order is evaluated once at call start; there is no fallback to a
// later provider after a request has been dispatched.
var DefaultPriority = []ai.Provider{
	ai.ProviderAnthropic,
	ai.ProviderOpenAI,
	ai.ProviderGoogle,
}

// ProviderConfig holds per-provider gateway configuration.
type ProviderConfig struct {
	// Enabled gates whether the provider participates in selection.
	Enabled bool

	// BaseURL overrides the provider's API endpoint.
	BaseURL string

	// DefaultModel is used when a request does not name a model.
	DefaultModel string

	// Credential holds the candidate credential sources for the provider.
	Credential CredentialConfig
}

// Config holds configuration for creating a Gateway.
type Config struct {
	// Providers maps each provider to its configuration. Providers absent
	// from the map are disabled.
	Providers map[ai.Provider]ProviderConfig

	// Priority is the deterministic provider selection order. Defaults to
	// DefaultPriority.
	Priority []ai.Provider

	// Retry configures backoff for transient connection errors. If nil,
	// retry.DefaultConfig is used.
	Retry *retry.Config

	// Events is an optional channel for gateway operation events. Events
	// are sent non-blocking; a full channel drops them.
	Events chan<- Event

	// OnUsage, when set, is called with the model, token usage, and
	// estimated cost of every completed request.
	OnUsage func(model string, usage ai.Usage, costUSD float64)
}

// ErrProviderDisabled is returned when a request names a provider that is
// not enabled in the gateway configuration.
type ErrProviderDisabled struct {
	Provider ai.Provider
}

func (e *ErrProviderDisabled) Error() string {
	return fmt.Sprintf("provider %s is not enabled", e.Provider)
}

// ErrNoProvider is returned when no enabled provider can serve a request.
type ErrNoProvider struct{}

func (e *ErrNoProvider) Error() string {
	return "no enabled provider configured"
}

// Gateway routes chat requests to the highest-priority enabled provider.
// Provider clients are lazily initialized on first use. Gateway is safe for
// concurrent use.
type Gateway struct {
	providers   map[ai.Provider]ProviderConfig
	priority    []ai.Provider
	retryConfig retry.Config
	events      chan<- Event
	onUsage     func(model string, usage ai.Usage, costUSD float64)

	mu      sync.Mutex
	clients map[ai.Provider]ai.ChatProvider
	sources map[ai.Provider]CredentialSource
}

// New creates a gateway from the given configuration.
func New(cfg Config) *Gateway {
	retryConfig := retry.DefaultConfig()
	if cfg.Retry != nil {
		retryConfig = *cfg.Retry
	}
	priority := cfg.Priority
	if len(priority) == 0 {
		priority = DefaultPriority
	}

	return &Gateway{
		providers:   cfg.Providers,
		priority:    priority,
		retryConfig: retryConfig,
		events:      cfg.Events,
		onUsage:     cfg.OnUsage,
		clients:     make(map[ai.Provider]ai.ChatProvider),
		sources:     make(map[ai.Provider]CredentialSource),
	}
}

// selectProvider picks the provider for a request. A model identifier with
// a recognizable prefix pins its provider; otherwise the first enabled
// provider in priority order wins.
func (g *Gateway) selectProvider(model string) (ai.Provider, error) {
	if p := providerForModel(model); p != "" {
		cfg, ok := g.providers[p]
		if !ok || !cfg.Enabled {
			return "", &ErrProviderDisabled{Provider: p}
		}
		return p, nil
	}
	for _, p := range g.priority {
		if cfg, ok := g.providers[p]; ok && cfg.Enabled {
			return p, nil
		}
	}
	return "", &ErrNoProvider{}
}

func providerForModel(model string) ai.Provider {
	switch {
	case model == "":
		return ""
	case strings.HasPrefix(model, "claude"):
		return ai.ProviderAnthropic
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return ai.ProviderOpenAI
	case strings.HasPrefix(model, "gemini"):
		return ai.ProviderGoogle
	default:
		return ""
	}
}

// client returns the chat provider for p, initializing it on first use.
func (g *Gateway) client(ctx context.Context, p ai.Provider) (ai.ChatProvider, CredentialSource, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[p]; ok {
		return c, g.sources[p], nil
	}

	cfg := g.providers[p]
	cred, err := ResolveCredential(cfg.Credential)
	if err != nil {
		return nil, "", fmt.Errorf("provider %s: %w", p, err)
	}

	var c ai.ChatProvider
	switch p {
	case ai.ProviderAnthropic:
		var opts []anthropic.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		if cfg.DefaultModel != "" {
			opts = append(opts, anthropic.WithModel(cfg.DefaultModel))
		}
		if cred.Bearer {
			opts = append(opts, anthropic.WithBearerToken(cred.Value))
			c = anthropic.New("", opts...)
		} else {
			c = anthropic.New(cred.Value, opts...)
		}
	case ai.ProviderOpenAI:
		var opts []openai.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.DefaultModel != "" {
			opts = append(opts, openai.WithModel(cfg.DefaultModel))
		}
		c = openai.New(cred.Value, opts...)
	case ai.ProviderGoogle:
		var opts []google.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(cfg.BaseURL))
		}
		if cfg.DefaultModel != "" {
			opts = append(opts, google.WithModel(cfg.DefaultModel))
		}
		gc, err := google.New(ctx, cred.Value, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("initializing google client: %w", err)
		}
		c = gc
	default:
		return nil, "", fmt.Errorf("unsupported provider: %s", p)
	}

	g.clients[p] = c
	g.sources[p] = cred.Source
	return c, cred.Source, nil
}

// effectiveModel resolves the model for a request.
func (g *Gateway) effectiveModel(p ai.Provider, requested string) string {
	if requested != "" {
		return requested
	}
	return g.providers[p].DefaultModel
}

// Chat sends a conversation and returns a complete response. Transient
// errors are retried with exponential backoff before the call fails.
func (g *Gateway) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (*ai.Response, error) {
	options := ai.ApplyOptions(opts...)

	provider, err := g.selectProvider(options.Model)
	if err != nil {
		return nil, err
	}
	chatProvider, source, err := g.client(ctx, provider)
	if err != nil {
		return nil, err
	}
	model := g.effectiveModel(provider, options.Model)
	if options.Model == "" && model != "" {
		opts = append([]ai.Option{ai.WithModel(model)}, opts...)
	}

	start := time.Now()
	emit(g.events, Event{
		Type:             EventRequestStart,
		Operation:        "chat",
		Provider:         provider,
		Model:            model,
		CredentialSource: source,
	})

	resp, err := retry.Do(ctx, g.retryConfig, func() (*ai.Response, error) {
		return chatProvider.Chat(ctx, messages, opts...)
	})
	if err != nil {
		emit(g.events, Event{
			Type:      EventRequestError,
			Operation: "chat",
			Provider:  provider,
			Model:     model,
			Duration:  time.Since(start),
			Error:     err,
		})
		return nil, err
	}

	if resp.Model == "" {
		resp.Model = model
	}
	cost := g.recordUsage(model, resp.Usage)
	emit(g.events, Event{
		Type:      EventRequestComplete,
		Operation: "chat",
		Provider:  provider,
		Model:     model,
		Duration:  time.Since(start),
		Usage:     &resp.Usage,
		CostUSD:   cost,
	})
	return resp, nil
}

// Send sends a conversation and returns a channel of streaming events. The
// stream connection is retried on transient errors; an accepted stream is
// never restarted or failed over. The returned channel is single-pass and
// closed after StreamDone or StreamError.
func (g *Gateway) Send(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	options := ai.ApplyOptions(opts...)

	provider, err := g.selectProvider(options.Model)
	if err != nil {
		return nil, err
	}
	chatProvider, source, err := g.client(ctx, provider)
	if err != nil {
		return nil, err
	}
	model := g.effectiveModel(provider, options.Model)
	if options.Model == "" && model != "" {
		opts = append([]ai.Option{ai.WithModel(model)}, opts...)
	}

	start := time.Now()
	emit(g.events, Event{
		Type:             EventRequestStart,
		Operation:        "chat_stream",
		Provider:         provider,
		Model:            model,
		CredentialSource: source,
	})

	upstream, err := retry.DoStream(ctx, g.retryConfig, func() (<-chan ai.StreamEvent, error) {
		return chatProvider.ChatStream(ctx, messages, opts...)
	})
	if err != nil {
		emit(g.events, Event{
			Type:      EventRequestError,
			Operation: "chat_stream",
			Provider:  provider,
			Model:     model,
			Duration:  time.Since(start),
			Error:     err,
		})
		return nil, err
	}

	out := make(chan ai.StreamEvent)
	go g.forward(upstream, out, provider, model, start)
	return out, nil
}

// forward relays stream events and settles accounting when the stream ends.
func (g *Gateway) forward(upstream <-chan ai.StreamEvent, out chan<- ai.StreamEvent, provider ai.Provider, model string, start time.Time) {
	defer close(out)

	for ev := range upstream {
		switch ev.Kind {
		case ai.StreamDone:
			var cost float64
			var usage *ai.Usage
			if ev.Response != nil {
				if ev.Response.Model == "" {
					ev.Response.Model = model
				}
				cost = g.recordUsage(model, ev.Response.Usage)
				usage = &ev.Response.Usage
			}
			emit(g.events, Event{
				Type:      EventRequestComplete,
				Operation: "chat_stream",
				Provider:  provider,
				Model:     model,
				Duration:  time.Since(start),
				Usage:     usage,
				CostUSD:   cost,
			})
		case ai.StreamError:
			emit(g.events, Event{
				Type:      EventRequestError,
				Operation: "chat_stream",
				Provider:  provider,
				Model:     model,
				Duration:  time.Since(start),
				Error:     ev.Err,
			})
		}
		out <- ev
	}
}

// recordUsage feeds usage into the cost hook and returns the estimated cost.
func (g *Gateway) recordUsage(model string, usage ai.Usage) float64 {
	cost := pricing.Lookup(model).Cost(usage)
	if g.onUsage != nil {
		g.onUsage(model, usage, cost)
	}
	return cost
}

var _ ai.ChatProvider = (*Gateway)(nil)

// ChatStream implements ai.ChatProvider; it is an alias for Send.
func (g *Gateway) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	return g.Send(ctx, messages, opts...)
}
