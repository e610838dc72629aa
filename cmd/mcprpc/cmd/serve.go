package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/viant/mcprpc/config"
	"github.com/viant/mcprpc/mcp"
	"github.com/viant/mcprpc/observability"
	"github.com/viant/mcprpc/transport/server/auth"
	serverhttp "github.com/viant/mcprpc/transport/server/http"
	"github.com/viant/mcprpc/transport/server/http/streamable"
	"github.com/viant/mcprpc/transport/server/stdio"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a demo MCP server",
}

var serveHTTPAddr string
var serveHTTPBFFAuth bool

var serveStdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Run a demo MCP server over stdio",
	RunE:  runServeStdio,
}

var serveHTTPCmd = &cobra.Command{
	Use:   "http",
	Short: "Run a demo MCP server over streamable HTTP, with /metrics mounted",
	RunE:  runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().StringVar(&serveHTTPAddr, "addr", ":8080", "address to listen on")
	serveHTTPCmd.Flags().BoolVar(&serveHTTPBFFAuth, "bff-auth", false,
		"enable a memory-backed BFF auth grant cookie alongside the Mcp-Session-Id handshake")
	serveCmd.AddCommand(serveStdioCmd, serveHTTPCmd)
	rootCmd.AddCommand(serveCmd)
}

// demoServer registers a single echo tool so serve stdio/http and call
// have something real to exercise end-to-end.
func demoServer() *mcp.Server {
	srv := mcp.NewServer(mcp.ServerInfo{Name: "mcprpc-demo", Version: Version})

	echoSchema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"text": {Type: "string"},
		},
		Required: []string{"text"},
	}
	_ = srv.Tools.Register("echo", "Echoes the given text back", echoSchema,
		func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var req struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, err
			}
			return json.Marshal(&mcp.CallToolResult{
				Content: []mcp.ContentBlock{{Type: "text", Text: req.Text}},
			})
		})

	return srv
}

func runServeStdio(cmd *cobra.Command, args []string) error {
	logger := newCLILogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := demoServer()
	logger.Info("starting stdio server", "name", srv.Info.Name, "version", srv.Info.Version)
	server := stdio.New(ctx, srv.NewHandler())
	return server.ListenAndServe()
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	logger := newCLILogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := observability.NewStdoutTracerProvider(os.Stderr)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	srv := demoServer()
	opts := []streamable.Option{}
	if serveHTTPBFFAuth {
		store := auth.NewMemoryStore(30*time.Minute, 24*time.Hour, 5*time.Minute)
		opts = append(opts,
			streamable.WithAuthStore(store),
			streamable.WithBFFAuthCookie(&streamable.BFFAuthCookie{
				Name:     "mcprpc-bff-auth",
				Path:     "/",
				HttpOnly: true,
				SameSite: stdhttp.SameSiteLaxMode,
				MaxAge:   int((24 * time.Hour).Seconds()),
			}),
			streamable.WithRehydrateOnHandshake(true),
			streamable.WithLogoutAllPath("/mcp/logout"),
		)
		logger.Info("BFF auth grant store enabled", "logout", "/mcp/logout")
	}
	handler := streamable.New(srv.NewHandler(), opts...)
	defer handler.Close()

	mux := stdhttp.NewServeMux()
	mux.Handle("/mcp", handler)
	if serveHTTPBFFAuth {
		mux.Handle("/mcp/logout", handler)
	}
	mux.Handle("/metrics", observability.Handler())

	httpServer := serverhttp.NewServer(serveHTTPAddr, mux)
	logger.Info("starting http server", "addr", serveHTTPAddr, "mcp", "/mcp", "metrics", "/metrics")

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err == stdhttp.ErrServerClosed {
			return nil
		}
		return err
	}
}

func newCLILogger() *slog.Logger {
	cfg, err := config.Load()
	level := slog.LevelInfo
	if err == nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
