package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/supportbot-go/internal/logging"
	"github.com/54b3r/supportbot-go/internal/server"
	"github.com/54b3r/supportbot-go/internal/tracing"
)

// NewServeCmd constructs the `supportbot serve` command, which starts the
// HTTP server exposing the document QA API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the supportbot HTTP server",
		Long: `Start the supportbot HTTP server on localhost.

The server exposes the document QA API: POST /files/upload to index a
document, POST /chat to ask questions about it, and GET /files/history
to list previous uploads. /health, /ready, and /metrics serve operations.

Examples:
  supportbot serve
  supportbot serve --port 9090
  MODEL_PROVIDER=ollama supportbot serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			host, port = resolveListenAddr(cmd, host, port)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			index, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer index.Close()

			docStore, err := openStore(log)
			if err != nil {
				return fmt.Errorf("serve: failed to open document store: %w", err)
			}
			defer func() { _ = docStore.Close() }()

			retriever, err := buildRetriever(emb, index)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			comp, err := buildComposer(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipeline, err := buildPipeline(emb, index, docStore, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			var origins []string
			if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
				for _, o := range strings.Split(raw, ",") {
					if o = strings.TrimSpace(o); o != "" {
						origins = append(origins, o)
					}
				}
			}

			pingers := []server.Pinger{index, docStore}
			if p, ok := emb.(server.Pinger); ok {
				pingers = append(pingers, p)
			}

			srv, err := server.New(pipeline, retriever, comp, docStore, &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        pingers,
				APIKey:         os.Getenv("SUPPORTBOT_API_KEY"),
				AllowedOrigins: origins,
				MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 0)),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
