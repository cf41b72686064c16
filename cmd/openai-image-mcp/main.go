package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aigentive/openai-image-mcp/internal/config"
	"github.com/aigentive/openai-image-mcp/internal/history"
	"github.com/aigentive/openai-image-mcp/internal/organizer"
	"github.com/aigentive/openai-image-mcp/internal/provider"
	"github.com/aigentive/openai-image-mcp/internal/provider/openai"
	"github.com/aigentive/openai-image-mcp/internal/server"
	"github.com/aigentive/openai-image-mcp/internal/session"
	"github.com/aigentive/openai-image-mcp/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

type App struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Registry  *models.ModelRegistry
	GetEnv    func(string) string
	NewClient func(cfg *provider.Config, registry *models.ModelRegistry, log *zap.Logger) (provider.Client, error)
}

func DefaultApp() *App {
	return &App{
		In:       os.Stdin,
		Out:      os.Stdout,
		Err:      os.Stderr,
		Registry: models.DefaultRegistry(),
		GetEnv:   config.Getenv,
		NewClient: func(cfg *provider.Config, registry *models.ModelRegistry, log *zap.Logger) (provider.Client, error) {
			return openai.New(cfg, registry, log)
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openai-image-mcp",
		Short: "MCP server exposing OpenAI image generation and editing as tools",
		Long: `openai-image-mcp is an MCP server that lets agents generate and edit
images through the OpenAI Images API (gpt-image-1, dall-e-3, dall-e-2).

It speaks JSON-RPC 2.0 over stdin/stdout. Generated images are organized
under generated_images/ in the workspace, each with a JSON metadata
sidecar, and every generation is appended to a local SQLite history log.

Configuration is taken from the environment:
  OPENAI_API_KEY        API key (required)
  OPENAI_BASE_URL       override the API endpoint
  MCP_MAX_SESSIONS      max concurrent sessions (default 100)
  MCP_SESSION_TIMEOUT   session idle timeout in seconds (default 3600)
  MCP_WORKSPACE_ROOT    where generated_images/ is created (default .)
  LOG_LEVEL             debug, info, warn or error (default info)`,
		Args:    cobra.NoArgs,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(app)
		},
	}
	return cmd
}

func runServe(app *App) error {
	cfg, err := config.Load(app.GetEnv)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel, app.Err)
	if err != nil {
		return err
	}
	defer log.Sync()

	client, err := app.NewClient(&provider.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	}, app.Registry, log)
	if err != nil {
		return err
	}

	org, err := organizer.New(cfg.WorkspaceRoot)
	if err != nil {
		return err
	}

	// The history log is best-effort: the server still runs if the
	// database cannot be opened, it just loses cross-restart totals.
	var genLog *history.Log
	if genLog, err = history.Open(cfg.HistoryDBPath); err != nil {
		log.Warn("history log unavailable", zap.Error(err))
		genLog = nil
	} else {
		defer genLog.Close()
	}

	srv := server.New(server.Options{
		Log:       log,
		Store:     session.NewStore(cfg.MaxSessions, cfg.SessionTimeout),
		Client:    client,
		Organizer: org,
		History:   genLog,
		Registry:  app.Registry,
	})

	log.Info("server starting",
		zap.Int("max_sessions", cfg.MaxSessions),
		zap.Duration("session_timeout", cfg.SessionTimeout),
		zap.String("workspace", cfg.WorkspaceRoot))

	return srv.Run(app.In, app.Out)
}

// newLogger writes structured logs to stderr; stdout belongs to the
// JSON-RPC transport.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	ws, ok := w.(zapcore.WriteSyncer)
	if !ok {
		ws = zapcore.AddSync(w)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, lvl)
	return zap.New(core), nil
}
