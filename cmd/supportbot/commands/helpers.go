package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportbot-go/internal/budget"
	"github.com/54b3r/supportbot-go/internal/composer"
	"github.com/54b3r/supportbot-go/internal/embedder"
	"github.com/54b3r/supportbot-go/internal/ingest"
	"github.com/54b3r/supportbot-go/internal/provider"
	"github.com/54b3r/supportbot-go/internal/rag"
	"github.com/54b3r/supportbot-go/internal/store"
)

// defaultCollection is the Qdrant collection documents are indexed into.
const defaultCollection = "supportbot_documents"

// buildIndex connects to Qdrant and ensures the collection exists. The
// vector size follows EMBEDDING_DIMENSIONS when set, otherwise the embedding
// backend's default.
func buildIndex(ctx context.Context, log *slog.Logger) (*rag.QdrantIndex, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)

	vectorSize := getEnvInt("EMBEDDING_DIMENSIONS", 0)
	if vectorSize == 0 {
		vectorSize = embedder.DefaultDimensions(embedder.Backend())
	}

	index, err := rag.NewQdrantIndex(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: uint64(vectorSize), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant index ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
		slog.Int("vector_size", vectorSize),
	)
	return index, nil
}

// buildEmbedder validates credentials and constructs the embedding backend.
func buildEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embedder.Backend()))
	return emb, nil
}

// buildRetriever wires the embedder and index into a gated retriever using
// TOP_K and MIN_SCORE from the environment.
func buildRetriever(emb rag.Embedder, index rag.VectorIndex) (*rag.Retriever, error) {
	topK := getEnvInt("TOP_K", rag.DefaultTopK)
	minScore := getEnvFloat("MIN_SCORE", rag.DefaultMinScore)
	return rag.NewRetriever(emb, index, topK, minScore)
}

// buildComposer constructs the chat model and answer composer.
func buildComposer(ctx context.Context, log *slog.Logger) (*composer.Composer, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("backend", string(providerCfg.Backend)))

	maxContext := getEnvInt("MODEL_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens)
	return composer.New(chatModel, providerCfg.Temperature, maxContext)
}

// buildPipeline wires the ingestion pipeline from its parts.
func buildPipeline(emb rag.Embedder, index rag.VectorIndex, docs *store.SQLiteStore, log *slog.Logger) (*ingest.Pipeline, error) {
	return ingest.New(emb, index, docs, ingest.Config{
		MaxCharsPerChunk: getEnvInt("MAX_CHARS_PER_CHUNK", 0),
		MaxChunksPerFile: int64(getEnvInt("MAX_CHUNKS_PER_FILE", 0)),
	}, log)
}

// openStore opens the document metadata store at SQLITE_PATH, falling back
// to the default data/app.db location.
func openStore(log *slog.Logger) (*store.SQLiteStore, error) {
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	log.Info("document store opened", slog.String("path", path))
	return s, nil
}

// resolveListenAddr applies SERVER_HOST/SERVER_PORT to flag values that
// were not set explicitly, so YAML-layered server settings take effect.
// Precedence: explicit flag, then env, then the flag default.
func resolveListenAddr(cmd *cobra.Command, host string, port int) (string, int) {
	if !cmd.Flags().Changed("host") {
		host = getEnvOrDefault("SERVER_HOST", host)
	}
	if !cmd.Flags().Changed("port") {
		port = getEnvInt("SERVER_PORT", port)
	}
	return host, port
}

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as an int, or fallback when unset
// or unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the env var parsed as a float32, or fallback when
// unset or unparseable.
func getEnvFloat(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
