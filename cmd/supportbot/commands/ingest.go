package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportbot-go/internal/logging"
)

// NewIngestCmd constructs the `supportbot ingest` command, which indexes
// local documents without going through the HTTP API.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Index local .txt or .pdf documents",
		Long: `Chunk, embed, and index one or more local documents so they can be
queried with 'supportbot ask' or via the HTTP API.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: supportbot_documents)
  EMBEDDING_*          Embedding backend overrides (see README)

Examples:
  supportbot ingest handbook.pdf
  supportbot ingest notes.txt faq.txt
  EMBEDDING_PROVIDER=ollama supportbot ingest manual.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			index, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer index.Close()

			docStore, err := openStore(log)
			if err != nil {
				return fmt.Errorf("ingest: failed to open document store: %w", err)
			}
			defer func() { _ = docStore.Close() }()

			pipeline, err := buildPipeline(emb, index, docStore, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: read %s: %w", path, err)
				}

				res, err := pipeline.Ingest(ctx, filepath.Base(path), "", data)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				log.Info("document indexed",
					slog.String("file", path),
					slog.Int64("file_id", res.DocumentID),
					slog.Int("chunks", res.ChunksStored),
				)
				fmt.Printf("indexed %s (file_id=%d, chunks=%d)\n", path, res.DocumentID, res.ChunksStored)
			}
			return nil
		},
	}

	return cmd
}
