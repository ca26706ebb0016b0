package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks that the embedder configuration is usable before the
// service starts ingesting or answering. It returns an error when the
// configuration is clearly broken (e.g. azure backend with no API key), and
// logs a warning if EMBEDDING_MODEL looks like a chat model rather than an
// embedding model.
//
// This is a pre-flight check — call it before constructing the embedder or
// the Qdrant index so operators get a clear error at startup rather than a
// cryptic failure on the first upload.
func Validate(log *slog.Logger) error {
	backend := Backend()

	switch backend {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("EMBEDDING_API_KEY") == "" {
			return fmt.Errorf("embedder: backend %q requires OPENAI_API_KEY or EMBEDDING_API_KEY", backend)
		}
	case "azure":
		if os.Getenv("AZURE_OPENAI_API_KEY") == "" && os.Getenv("EMBEDDING_API_KEY") == "" {
			return fmt.Errorf("embedder: backend %q requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY", backend)
		}
		if os.Getenv("AZURE_OPENAI_ENDPOINT") == "" && os.Getenv("EMBEDDING_ENDPOINT") == "" {
			return fmt.Errorf("embedder: backend %q requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT", backend)
		}
	case "ollama":
		// No credentials needed — Ollama runs locally.
	default:
		return fmt.Errorf("embedder: unknown backend %q — valid values: openai, azure, ollama", backend)
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
		)
	}

	return nil
}
