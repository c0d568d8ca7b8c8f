// Medik control plane server: watches the cluster for anomalies, matches
// them against remediation rules, and runs risk-gated playbooks with
// human approval for destructive steps.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/medik/pkg/api"
	"github.com/codeready-toolchain/medik/pkg/approval"
	"github.com/codeready-toolchain/medik/pkg/config"
	"github.com/codeready-toolchain/medik/pkg/dispatch"
	"github.com/codeready-toolchain/medik/pkg/executor"
	"github.com/codeready-toolchain/medik/pkg/ingress"
	"github.com/codeready-toolchain/medik/pkg/kube"
	"github.com/codeready-toolchain/medik/pkg/models"
	"github.com/codeready-toolchain/medik/pkg/notify"
	"github.com/codeready-toolchain/medik/pkg/playbook"
	"github.com/codeready-toolchain/medik/pkg/rules"
	"github.com/codeready-toolchain/medik/pkg/storage"
	"github.com/codeready-toolchain/medik/pkg/tools"
	"github.com/codeready-toolchain/medik/pkg/watch"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting medik",
		"http_port", cfg.HTTPPort,
		"watchloop_enabled", cfg.WatchloopEnabled,
		"watchloop_interval", cfg.WatchloopInterval,
		"auto_remediation", cfg.AutoRemediationEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Event history store (optional)
	var db *storage.Client
	if cfg.DatabaseURL != "" {
		db, err = storage.NewClient(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("Connected to PostgreSQL database")
	} else {
		slog.Warn("DATABASE_URL not set, event history disabled")
	}

	// 2. Approval state store
	store, err := approval.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()
	slog.Info("Connected to Redis")

	// 3. Notification channels
	router := notify.NewRouter()
	if cfg.SlackToken != "" {
		router.Register("slack", notify.NewSlackNotifier(cfg.SlackToken))
		slog.Info("Slack notifier registered")
	}
	defaultTarget := resolveDefaultTarget(cfg)
	if defaultTarget.IsZero() {
		slog.Warn("No notification channel configured, approval questions will only be logged")
	}

	// 4. Tool invoker
	var invoker tools.Invoker
	if cfg.MCPServerURL != "" {
		mcpInvoker := tools.NewMCPInvoker(cfg.MCPServerURL)
		if err := mcpInvoker.Connect(ctx); err != nil {
			slog.Error("Failed to connect to MCP server", "url", cfg.MCPServerURL, "error", err)
			os.Exit(1)
		}
		defer func() { _ = mcpInvoker.Close() }()
		invoker = mcpInvoker
		slog.Info("MCP tool server connected", "url", cfg.MCPServerURL)
	} else {
		invoker = tools.InvokerFunc(func(ctx context.Context, toolName string, params map[string]any) (string, error) {
			return "", fmt.Errorf("tool execution disabled: MCP_SERVER_URL not configured")
		})
		slog.Warn("MCP_SERVER_URL not set, tool execution disabled")
	}

	// 5. Approvals, playbooks, executor
	approvals := approval.NewManager(store, invoker, router, cfg.ApprovalTimeout)
	approvals.StartSweeper(ctx, 30*time.Second)

	registry := playbook.NewRegistry()
	exec := executor.New(registry, invoker, approvals,
		executor.WithNotifier(router),
		executor.WithAutoRemediation(cfg.AutoRemediationEnabled),
	)

	// 6. Rule engine
	engine := rules.NewWithDefaults()
	if cfg.RulesFile != "" {
		fileRules, err := config.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			slog.Error("Failed to load rules file", "path", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
		for _, rule := range fileRules {
			if err := engine.Add(rule); err != nil {
				slog.Error("Invalid rule in rules file", "rule_id", rule.ID, "error", err)
				os.Exit(1)
			}
		}
		slog.Info("Loaded rules file", "path", cfg.RulesFile, "rules", len(fileRules))
	}

	dispatcher := dispatch.New(engine, exec, eventStore(db), defaultTarget)

	// 7. Watchloop
	var loop *watch.Loop
	if cfg.WatchloopEnabled {
		cluster, err := kube.NewClient()
		if err != nil {
			slog.Warn("Kubernetes client unavailable, watchloop disabled", "error", err)
		} else {
			loop = watch.NewLoop(cluster, cfg.WatchloopInterval, dispatcher.HandleEvent)
			loop.Start(ctx)
			slog.Info("Watchloop started", "interval", cfg.WatchloopInterval)
		}
	}

	// 8. HTTP API
	processor := ingress.NewProcessor(cfg.WebhookSecret, cfg.SignatureHeader, cfg.TimestampHeader, dispatcher)
	if cfg.WebhookSecret == "" {
		slog.Warn("ALERTMANAGER_WEBHOOK_SECRET not set, webhook signature verification disabled")
	}
	server := api.NewServer(processor, approvals, engine, registry, exec, db)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Medik started successfully")

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop emitting events first, then the API.
	if loop != nil {
		loop.Stop()
		slog.Info("Watchloop stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// resolveDefaultTarget picks the reply target for automated runs.
// Priority: AIOPS_NOTIFICATION_CHANNEL > SLACK_CHANNEL > none.
func resolveDefaultTarget(cfg config.Config) models.ReplyTarget {
	if cfg.NotificationChannel != "" {
		target, err := models.ParseReplyTarget(cfg.NotificationChannel)
		if err != nil {
			slog.Warn("Invalid AIOPS_NOTIFICATION_CHANNEL, ignoring",
				"value", cfg.NotificationChannel, "error", err)
		} else {
			return target
		}
	}
	if cfg.SlackChannel != "" {
		return models.ReplyTarget{ChannelType: "slack", ChannelID: cfg.SlackChannel}
	}
	return models.ReplyTarget{}
}

// eventStore adapts the optional database client to the dispatcher's
// interface; a nil *storage.Client must become a nil interface.
func eventStore(db *storage.Client) dispatch.EventStore {
	if db == nil {
		return nil
	}
	return db
}
