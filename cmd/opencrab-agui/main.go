// Command opencrab-agui serves the engine to AG-UI compatible frontends
// over Server-Sent Events (SSE).
//
// Endpoints:
//
//	POST /api/agent     - run a turn, streaming AG-UI events
//	POST /api/approval  - resolve a pending approval request
//	GET  /health        - health check
//
// Usage:
//
//	opencrab-agui [-config opencrab.toml] [-addr :8080]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/approval"
	"github.com/adolfousier/opencrab/config"
	"github.com/adolfousier/opencrab/gateway"
	"github.com/adolfousier/opencrab/orchestrator"
	"github.com/adolfousier/opencrab/session"
	"github.com/adolfousier/opencrab/session/sqlitestore"
	"github.com/adolfousier/opencrab/tool"
)

func main() {
	godotenv.Load()

	configPath := flag.String("config", "opencrab.toml", "path to the TOML config file")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var store session.Store
	if cfg.Session.Store == "sqlite" {
		store, err = sqlitestore.New(cfg.Session.Path)
		if err != nil {
			log.Fatalf("store: %v", err)
		}
	} else {
		store = session.NewMemoryStore()
	}

	registry := tool.NewRegistry().Add(
		tool.ReadFileTool(),
		tool.WriteFileTool(),
		tool.ListDirTool(),
		tool.SearchFilesTool(),
		tool.RunCommandTool(),
		tool.HTTPRequestTool(),
	)

	gw := gateway.New(cfg.GatewayConfig())
	gate := approval.NewGate(approval.WithTimeout(cfg.Approval.Timeout))

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

	handler := NewTurnHandler(orch, store)

	mux := http.NewServeMux()
	mux.Handle("/api/agent", corsMiddleware(handler))
	mux.Handle("/api/approval", corsMiddleware(NewApprovalHandler(gate)))
	mux.HandleFunc("/health", healthHandler)

	server := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE needs no write timeout
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("AG-UI server starting on %s", *addr)
	log.Printf("Endpoint: POST http://localhost%s/api/agent", *addr)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}
