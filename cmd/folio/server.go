package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/folio/internal/aggregate"
	"github.com/kalambet/folio/internal/api"
	"github.com/kalambet/folio/internal/classify"
	"github.com/kalambet/folio/internal/composer"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/intent"
	"github.com/kalambet/folio/internal/llm"
	"github.com/kalambet/folio/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the folio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running folio server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show folio server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "folio.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// newLLMClient returns nil when neither an API key nor a custom base URL
// is configured.
func newLLMClient(cfg config.Config) *llm.Client {
	if !cfg.LLMConfigured() {
		return nil
	}
	return llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.ChatModel)
}

// newOrchestrator wires the classifier. Disambiguation needs both the
// feature flag and an LLM client.
func newOrchestrator(cfg config.Config, store *storage.Store, client *llm.Client) (*classify.Orchestrator, error) {
	if client == nil || !cfg.Classify.LLMEnabled {
		return classify.New(store, nil), nil
	}
	timeout, err := cfg.LLMTimeout()
	if err != nil {
		return nil, err
	}
	return classify.New(store, intent.NewClassifier(client, cfg.LLM.Model, timeout)), nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)
	slog.Info("starting folio", "version", version)

	created, err := config.EnsureAdminToken(&cfg)
	if err != nil {
		return fmt.Errorf("initializing admin token: %w", err)
	}
	if created {
		printStep("Generated a new admin token (stored in the folio secrets file)")
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	client := newLLMClient(cfg)
	if client == nil {
		slog.Warn("no LLM API key or custom base URL configured; disambiguation and chat are disabled")
	}
	orch, err := newOrchestrator(cfg, store, client)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Store:         store,
		Classifier:    orch,
		Composer:      composer.New(cfg.Chat.MaxMessages),
		AdminToken:    cfg.Server.AdminToken,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	}
	if client != nil {
		deps.Chat = client
	}

	worker := aggregate.NewWorker(store, 500*time.Millisecond)
	go worker.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("folio listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("folio is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(pidPath)
		return fmt.Errorf("could not stop folio (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to folio (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient.Timeout = 2 * time.Second

	running := false
	if resp, err := client.get(ctx, "/health"); err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		running = resp.StatusCode == http.StatusOK
		if running {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	switch {
	case !cfg.LLMConfigured():
		printStatus("LLM", "not configured (set FOLIO_LLM_API_KEY or FOLIO_LLM_BASE_URL)")
	case !cfg.Classify.LLMEnabled:
		printStatus("LLM", "chat only, disambiguation disabled")
	default:
		printStatus("LLM", "%s (timeout %s)", cfg.LLM.Model, cfg.LLM.Timeout)
	}

	if running {
		if resp, err := client.get(ctx, "/admin/stats"); err == nil {
			var st statsResponse
			if decodeJSON(resp, &st) == nil {
				printStatus("Sessions", "%d", st.Sessions)
				printStatus("Pending jobs", "%d", st.Jobs["pending"])
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
