// Command opencrab is an interactive coding agent session in the terminal.
//
// It wires the full engine together: a provider gateway with credential
// fallback, a tool registry with the built-in file, exec, search, and HTTP
// tools, an approval gate that prompts on stdin for dangerous calls, and a
// persistent session store.
//
// Usage:
//
//	opencrab [-config opencrab.toml] [-session ses-...]
//
// Credentials come from the config file or the environment
// (ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY). A .env file in the
// working directory is loaded if present.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/approval"
	"github.com/adolfousier/opencrab/config"
	"github.com/adolfousier/opencrab/event"
	"github.com/adolfousier/opencrab/gateway"
	"github.com/adolfousier/opencrab/mcp"
	"github.com/adolfousier/opencrab/orchestrator"
	"github.com/adolfousier/opencrab/session"
	"github.com/adolfousier/opencrab/session/sqlitestore"
	"github.com/adolfousier/opencrab/tool"
)

var reader = bufio.NewReader(os.Stdin)

func main() {
	godotenv.Load()

	configPath := flag.String("config", "opencrab.toml", "path to the TOML config file")
	sessionID := flag.String("session", "", "resume an existing session by ID")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}

	registry := tool.NewRegistry().Add(
		tool.ReadFileTool(),
		tool.WriteFileTool(),
		tool.ListDirTool(),
		tool.SearchFilesTool(),
		tool.RunCommandTool(),
		tool.HTTPRequestTool(),
	)
	for _, m := range cfg.MCP {
		src, err := connectMCP(ctx, m)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcp %s: %v\n", m.Name, err)
			continue
		}
		defer src.Close()
		n := src.Register(registry)
		fmt.Printf("Connected MCP server %s (%d tools)\n", m.Name, n)
	}

	gw := gateway.New(cfg.GatewayConfig())

	// Prompts ride the gate's submit hook, not the event channel: events
	// are dropped under backpressure, and a lost prompt would strand the
	// call until the timeout. Submit returns before the prompt runs; the
	// mutex serializes prompts from concurrent tool calls.
	var (
		gate     *approval.Gate
		promptMu sync.Mutex
	)
	gate = approval.NewGate(
		approval.WithTimeout(cfg.Approval.Timeout),
		approval.WithOnSubmit(func(req approval.Request) {
			go func() {
				promptMu.Lock()
				defer promptMu.Unlock()
				decideApproval(gate, req)
			}()
		}),
	)

	var chatOpts []ai.Option
	if cfg.Orchestrator.Model != "" {
		chatOpts = append(chatOpts, ai.WithModel(cfg.Orchestrator.Model))
	}
	if cfg.Orchestrator.SystemPrompt != "" {
		chatOpts = append(chatOpts, ai.WithSystem(cfg.Orchestrator.SystemPrompt))
	}
	chatOpts = append(chatOpts, ai.WithTools(registry.Tools()))

	orch := orchestrator.New(gw, registry, gate, store,
		orchestrator.WithMaxIterations(cfg.Orchestrator.MaxIterations),
		orchestrator.WithChatOptions(chatOpts...),
	)

	ses, err := openSession(ctx, store, *sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("opencrab session %s (%d tools registered)\n", ses.ID, registry.Len())
	fmt.Println("Type a message, or /quit to exit.")

	repl(ctx, orch, store, ses.ID)
}

// loadConfig reads the config file, falling back to built-in defaults when
// the default path does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return config.Parse(defaultConfig)
	}
	return nil, err
}

// defaultConfig enables all three providers from environment variables.
const defaultConfig = `
[providers.anthropic]
enabled = true
api_key = "${ANTHROPIC_API_KEY}"

[providers.openai]
enabled = true
api_key = "${OPENAI_API_KEY}"

[providers.google]
enabled = true
api_key = "${GOOGLE_API_KEY}"
`

func openStore(cfg *config.Config) (session.Store, error) {
	if cfg.Session.Store == "sqlite" {
		return sqlitestore.New(cfg.Session.Path)
	}
	return session.NewMemoryStore(), nil
}

func openSession(ctx context.Context, store session.Store, id string) (session.Session, error) {
	if id != "" {
		return store.GetSession(ctx, id)
	}
	return store.CreateSession(ctx, "terminal session")
}

func connectMCP(ctx context.Context, m config.MCPConfig) (*mcp.Source, error) {
	if m.URL != "" {
		return mcp.ConnectSSE(ctx, m.URL)
	}
	return mcp.Connect(ctx, m.Command, os.Environ(), m.Args...)
}

func repl(ctx context.Context, orch *orchestrator.Orchestrator, store session.Store, sessionID string) {
	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			printCost(ctx, store, sessionID)
			return
		case line == "/cost":
			printCost(ctx, store, sessionID)
			continue
		}

		events, err := orch.Turn(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn: %v\n", err)
			continue
		}
		runTurn(events)

		if ctx.Err() != nil {
			return
		}
	}
}

// runTurn prints turn events. Approval prompting happens on the gate's
// submit hook, so dropped events never cost a decision. The REPL is blocked
// here while the turn runs, so the prompt's stdin read never races the next
// user message.
func runTurn(events <-chan event.Event) {
	for e := range events {
		switch e.Type {
		case event.MessageDelta:
			fmt.Print(e.Delta)
		case event.MessageEnd:
			fmt.Println()
		case event.ToolInvoked:
			fmt.Printf("[tool %s %s]\n", e.ToolCall.Name, e.ToolCall.Arguments)
		case event.ToolResult:
			if e.ToolResult.IsError {
				fmt.Printf("[tool %s error: %s]\n", e.ToolCall.Name, e.ToolResult.Content)
			}
		case event.UsageUpdated:
			// Reported on /cost instead of after every response.
		case event.CostError:
			fmt.Fprintf(os.Stderr, "\ncost accounting error: %v\n", e.Error)
		case event.TurnError:
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", e.Error)
		}
	}
}

func decideApproval(gate *approval.Gate, req approval.Request) {
	fmt.Printf("\nTool %s wants to run with arguments:\n  %s\n", req.ToolName, req.Arguments)
	fmt.Print("Allow? [y/N]: ")
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer == "y" || answer == "yes" {
		if err := gate.Approve(req.ID); err != nil {
			fmt.Fprintf(os.Stderr, "approve: %v\n", err)
		}
		return
	}
	if err := gate.Deny(req.ID, "declined at the terminal"); err != nil {
		fmt.Fprintf(os.Stderr, "deny: %v\n", err)
	}
}

func printCost(ctx context.Context, store session.Store, sessionID string) {
	cost, err := store.Cost(ctx, sessionID)
	if err != nil {
		return
	}
	fmt.Printf("Session usage: %d in, %d out ($%.4f)\n",
		cost.Usage.InputTokens, cost.Usage.OutputTokens, cost.USD)
}
