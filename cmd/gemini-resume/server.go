package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/akshayreddy1906/gemini-resume/internal/api"
	"github.com/akshayreddy1906/gemini-resume/internal/config"
	"github.com/akshayreddy1906/gemini-resume/internal/history"
	"github.com/akshayreddy1906/gemini-resume/internal/inference"
	"github.com/akshayreddy1906/gemini-resume/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("mcp") {
			cfg.Server.MCP, _ = cmd.Flags().GetBool("mcp")
		}
		return runServer(cfg)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gemini-resume status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools on stdio")
}

func setupLogging(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

// newInvoker builds the configured inference transport wrapped with logging.
func newInvoker(cfg config.Config, logger *slog.Logger) (inference.Invoker, error) {
	inv, err := inference.New(inference.Options{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		BaseURL:    cfg.Gemini.BaseURL,
		APIVersion: cfg.Gemini.APIVersion,
		Transport:  cfg.Gemini.Transport,
		Timeout:    cfg.Gemini.TimeoutDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating inference client: %w", err)
	}
	return inference.Observe(inv, logger), nil
}

func runServer(cfg config.Config) error {
	fmt.Fprintf(os.Stderr, "gemini-resume version %s\n", version)

	logger := setupLogging(cfg.Log.Level)

	// Check if a server is already running via the health endpoint.
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		printWarning("gemini-resume is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	if !cfg.HasAPIKey() {
		logger.Warn("no Gemini API key configured; submissions will fail until one is provided", "hint", config.APIKeyHint())
	}

	inv, err := newInvoker(cfg, logger)
	if err != nil {
		return err
	}

	orch := pipeline.NewOrchestrator(pipeline.Session{
		Invoker: inv,
		History: history.NewStore(),
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewAppHandler(api.AppDeps{
			Orchestrator: orch,
			Token:        cfg.Server.Token,
			Logger:       logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "gemini-resume listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Server.MCP {
		// The orchestrator is shared, so MCP calls and HTTP calls see the
		// same document slot, in-flight state and history.
		mcpSrv := api.NewMCPServer(api.MCPDeps{Orchestrator: orch, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		logger.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Model", "%s", cfg.Gemini.Model)
	printStatus("Transport", "%s", cfg.Gemini.Transport)
	if cfg.HasAPIKey() {
		printStatus("API key", "configured")
	} else {
		printStatus("API key", "%s", colorize(colorYellow, "missing ("+config.APIKeyHint()+")"))
	}

	if running {
		c := &apiClient{baseURL: serverURL, token: cfg.Server.Token, httpClient: client}
		var st pipeline.State
		if resp, err := c.get(ctx, "/state"); err == nil && decodeJSON(resp, &st) == nil {
			printStatus("State", "%s", st.Status)
			if st.Document != nil {
				printStatus("Document", "%s (%s, %d bytes)", st.Document.Name, st.Document.MediaType, st.Document.Size)
			}
			if st.LastError != "" {
				printStatus("Last error", "%s", st.LastError)
			}
		}
		var entries []history.Entry
		if resp, err := c.get(ctx, "/history?limit=100"); err == nil && decodeJSON(resp, &entries) == nil {
			printStatus("Results", "%s", countLabel(len(entries), 100))
		}
	}
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
