package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/supportbot-go/internal/logging"
	"github.com/54b3r/supportbot-go/internal/rag"
)

// NewAskCmd constructs the `supportbot ask` command, which answers a single
// question from the command line using the indexed documents.
func NewAskCmd() *cobra.Command {
	var fileID int64

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about an indexed document",
		Long: `Ask a one-shot question against the indexed documents.

Retrieval is scoped to a single document with --file-id; without it the
whole collection is searched. Questions the documents cannot answer get a
friendly explanation rather than an invented reply.

Examples:
  supportbot ask "what is the refund policy?"
  supportbot ask --file-id 3 "who do I contact about billing?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			index, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer index.Close()

			retriever, err := buildRetriever(emb, index)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			var scope *int64
			if cmd.Flags().Changed("file-id") {
				scope = &fileID
			}

			answerCtx, err := retriever.AnswerContext(ctx, args[0], scope)
			if err != nil {
				return fmt.Errorf("ask: retrieval failed: %w", err)
			}

			if !answerCtx.Grounded {
				switch answerCtx.Reason {
				case rag.GateLowScore:
					fmt.Println("No strong match found — try rephrasing or ask about another part of the document.")
				case rag.GateNoText:
					fmt.Println("Matching chunks contained no usable text.")
				default:
					fmt.Println("No relevant information found in the indexed documents.")
				}
				return nil
			}

			comp, err := buildComposer(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			answer, err := comp.Compose(ctx, args[0], answerCtx.Snippets)
			if err != nil {
				return fmt.Errorf("ask: answer generation failed: %w", err)
			}

			fmt.Println(answer)
			return nil
		},
	}

	cmd.Flags().Int64Var(&fileID, "file-id", 0, "Restrict retrieval to one uploaded document")

	return cmd
}
