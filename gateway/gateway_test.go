package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/retry"
)

// stubProvider implements ai.ChatProvider with canned behavior.
type stubProvider struct {
	calls    int
	failures int
	failWith error
	events   []ai.StreamEvent
	response *ai.Response
}

func (s *stubProvider) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (*ai.Response, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.failWith
	}
	return s.response, nil
}

func (s *stubProvider) ChatStream(ctx context.Context, messages []ai.Message, opts ...ai.Option) (<-chan ai.StreamEvent, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.failWith
	}
	ch := make(chan ai.StreamEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

// newTestGateway wires a stub provider in as an already-initialized
// anthropic client so no real SDK client is constructed.
func newTestGateway(cfg Config, stub ai.ChatProvider) *Gateway {
	g := New(cfg)
	g.clients[ai.ProviderAnthropic] = stub
	g.sources[ai.ProviderAnthropic] = SourceAPIKey
	return g
}

func enabledAnthropic() map[ai.Provider]ProviderConfig {
	return map[ai.Provider]ProviderConfig{
		ai.ProviderAnthropic: {
			Enabled:      true,
			DefaultModel: "claude-sonnet-4-5",
			Credential:   CredentialConfig{APIKey: "sk-ant-test"},
		},
	}
}

func TestResolveCredential(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CredentialConfig
		wantSource CredentialSource
		wantBearer bool
		wantErr    bool
	}{
		{
			name:       "secure store wins over everything",
			cfg:        CredentialConfig{SecureStore: "stored", OAuthToken: "sk-ant-oat-x", APIKey: "key", ConfigFile: "file"},
			wantSource: SourceSecureStore,
		},
		{
			name:       "oauth bearer beats api key",
			cfg:        CredentialConfig{OAuthToken: "sk-ant-oat-abc", APIKey: "sk-ant-key"},
			wantSource: SourceOAuth,
			wantBearer: true,
		},
		{
			name:       "non-bearer oauth token is skipped",
			cfg:        CredentialConfig{OAuthToken: "not-a-bearer", APIKey: "sk-ant-key"},
			wantSource: SourceAPIKey,
		},
		{
			name:       "api key beats config file",
			cfg:        CredentialConfig{APIKey: "key", ConfigFile: "file"},
			wantSource: SourceAPIKey,
		},
		{
			name:       "config file as last resort",
			cfg:        CredentialConfig{ConfigFile: "file-key"},
			wantSource: SourceConfigFile,
		},
		{
			name:       "bearer prefix detected in secure store value",
			cfg:        CredentialConfig{SecureStore: "sk-ant-oat-xyz"},
			wantSource: SourceSecureStore,
			wantBearer: true,
		},
		{
			name:    "empty config",
			cfg:     CredentialConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := ResolveCredential(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoCredential)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, cred.Source)
			assert.Equal(t, tt.wantBearer, cred.Bearer)
		})
	}
}

func TestResolveCredentialDeterministic(t *testing.T) {
	cfg := CredentialConfig{OAuthToken: "sk-ant-oat-a", APIKey: "b", ConfigFile: "c"}
	first, err := ResolveCredential(cfg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ResolveCredential(cfg)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectProvider(t *testing.T) {
	providers := map[ai.Provider]ProviderConfig{
		ai.ProviderOpenAI: {Enabled: true},
		ai.ProviderGoogle: {Enabled: true},
	}

	t.Run("model prefix pins the provider", func(t *testing.T) {
		g := New(Config{Providers: providers})
		p, err := g.selectProvider("gemini-2.5-pro")
		require.NoError(t, err)
		assert.Equal(t, ai.ProviderGoogle, p)
	})

	t.Run("pinned provider must be enabled", func(t *testing.T) {
		g := New(Config{Providers: providers})
		_, err := g.selectProvider("claude-sonnet-4-5")
		var disabled *ErrProviderDisabled
		require.ErrorAs(t, err, &disabled)
		assert.Equal(t, ai.ProviderAnthropic, disabled.Provider)
	})

	t.Run("priority order decides when no model named", func(t *testing.T) {
		g := New(Config{Providers: providers})
		p, err := g.selectProvider("")
		require.NoError(t, err)
		assert.Equal(t, ai.ProviderOpenAI, p)
	})

	t.Run("custom priority respected", func(t *testing.T) {
		g := New(Config{
			Providers: providers,
			Priority:  []ai.Provider{ai.ProviderGoogle, ai.ProviderOpenAI},
		})
		p, err := g.selectProvider("")
		require.NoError(t, err)
		assert.Equal(t, ai.ProviderGoogle, p)
	})

	t.Run("no enabled providers", func(t *testing.T) {
		g := New(Config{})
		_, err := g.selectProvider("")
		var none *ErrNoProvider
		assert.ErrorAs(t, err, &none)
	})
}

func TestSendForwardsStream(t *testing.T) {
	usage := ai.Usage{InputTokens: 100, OutputTokens: 50}
	stub := &stubProvider{
		events: []ai.StreamEvent{
			{Kind: ai.StreamTextDelta, Delta: "hel"},
			{Kind: ai.StreamTextDelta, Delta: "lo"},
			{Kind: ai.StreamUsage, Usage: &usage},
			{Kind: ai.StreamDone, Response: &ai.Response{Content: "hello", Usage: usage}},
		},
	}

	var gotModel string
	var gotUsage ai.Usage
	var gotCost float64
	g := newTestGateway(Config{
		Providers: enabledAnthropic(),
		OnUsage: func(model string, usage ai.Usage, costUSD float64) {
			gotModel = model
			gotUsage = usage
			gotCost = costUSD
		},
	}, stub)

	ch, err := g.Send(context.Background(), []ai.Message{ai.NewUserMessage("hi")})
	require.NoError(t, err)

	var kinds []ai.StreamEventKind
	var text string
	var final *ai.Response
	for ev := range ch {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == ai.StreamTextDelta {
			text += ev.Delta
		}
		if ev.Kind == ai.StreamDone {
			final = ev.Response
		}
	}

	assert.Equal(t, []ai.StreamEventKind{
		ai.StreamTextDelta, ai.StreamTextDelta, ai.StreamUsage, ai.StreamDone,
	}, kinds)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "claude-sonnet-4-5", gotModel)
	assert.Equal(t, usage, gotUsage)
	assert.Greater(t, gotCost, 0.0)

	// The request carried no model option, so the effective model is the
	// provider default; the response must say which model was billed.
	require.NotNil(t, final)
	assert.Equal(t, "claude-sonnet-4-5", final.Model)
}

func TestSendRetriesTransientConnect(t *testing.T) {
	stub := &stubProvider{
		failures: 2,
		failWith: ai.NewTransientError("service unavailable", 503, nil),
		events: []ai.StreamEvent{
			{Kind: ai.StreamDone, Response: &ai.Response{Content: "ok"}},
		},
	}
	cfg := retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	g := newTestGateway(Config{Providers: enabledAnthropic(), Retry: &cfg}, stub)

	ch, err := g.Send(context.Background(), []ai.Message{ai.NewUserMessage("hi")})
	require.NoError(t, err)
	for range ch {
	}
	assert.Equal(t, 3, stub.calls)
}

func TestChatDoesNotRetryPermanent(t *testing.T) {
	stub := &stubProvider{
		failures: 1,
		failWith: ai.NewPermanentError("unauthorized", 401, nil),
	}
	g := newTestGateway(Config{Providers: enabledAnthropic()}, stub)

	_, err := g.Chat(context.Background(), []ai.Message{ai.NewUserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, 401, ai.StatusCodeOf(err))
	assert.Equal(t, 1, stub.calls)
}

func TestEventsReportSourceNotValue(t *testing.T) {
	events := make(chan Event, 10)
	stub := &stubProvider{
		events: []ai.StreamEvent{
			{Kind: ai.StreamDone, Response: &ai.Response{Content: "ok"}},
		},
	}
	g := newTestGateway(Config{Providers: enabledAnthropic(), Events: events}, stub)

	ch, err := g.Send(context.Background(), []ai.Message{ai.NewUserMessage("hi")})
	require.NoError(t, err)
	for range ch {
	}

	var start *Event
	for {
		select {
		case ev := <-events:
			if ev.Type == EventRequestStart {
				evCopy := ev
				start = &evCopy
			}
			continue
		default:
		}
		break
	}
	require.NotNil(t, start)
	assert.Equal(t, SourceAPIKey, start.CredentialSource)
}

func TestClientRequiresCredential(t *testing.T) {
	g := New(Config{
		Providers: map[ai.Provider]ProviderConfig{
			ai.ProviderAnthropic: {Enabled: true},
		},
	})
	_, err := g.Send(context.Background(), []ai.Message{ai.NewUserMessage("hi")})
	assert.ErrorIs(t, err, ErrNoCredential)
}
