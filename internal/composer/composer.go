// Package composer builds the grounding prompt from retrieved document
// context and asks the generative model for an answer. The prompt instructs
// the model to answer ONLY from the supplied context and to say so when the
// answer is not contained in it, and the call runs at a low temperature so
// replies stay deterministic and context-bound.
package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/supportbot-go/internal/budget"
)

// DefaultTemperature biases the model toward deterministic, context-bound
// answers. Override via MODEL_TEMPERATURE.
const DefaultTemperature = 0.2

// systemPrompt establishes the assistant persona for every answer request.
const systemPrompt = "You are a helpful support assistant that only uses the given context."

// FallbackReply is returned when the model produces an empty completion.
// The composer never returns an empty answer to the caller.
const FallbackReply = "I tried to answer from the document, but couldn't generate a useful response. " +
	"Please try rephrasing your question."

// chatModel is the narrow slice of the eino ChatModel interface the composer
// needs. Production code passes the provider-constructed model; tests inject
// a fake.
type chatModel interface {
	// Generate produces a single completion for the given messages.
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Composer turns a question plus retrieved snippets into a final answer.
// It is stateless apart from its injected model handle and safe for
// concurrent use.
type Composer struct {
	// model is the generative chat model.
	model chatModel

	// temperature is passed on every Generate call.
	temperature float32

	// maxContextTokens bounds the assembled prompt; least-relevant snippets
	// are dropped first when the budget is exceeded.
	maxContextTokens int
}

// New constructs a Composer around the given chat model. Non-positive
// temperature and maxContextTokens fall back to package defaults.
func New(m chatModel, temperature float32, maxContextTokens int) (*Composer, error) {
	if m == nil {
		return nil, fmt.Errorf("composer: model must not be nil")
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	if maxContextTokens <= 0 {
		maxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Composer{
		model:            m,
		temperature:      temperature,
		maxContextTokens: maxContextTokens,
	}, nil
}

// Compose builds the grounding prompt from question and snippets, invokes
// the model, and returns the answer text. Model failures are surfaced as
// wrapped errors; an empty completion is replaced with FallbackReply.
func (c *Composer) Compose(ctx context.Context, question string, snippets []string) (string, error) {
	prompt := c.buildPrompt(question, snippets)

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	}

	resp, err := c.model.Generate(ctx, messages, model.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("composer: model call failed: %w", err)
	}

	answer := ""
	if resp != nil {
		answer = strings.TrimSpace(resp.Content)
	}
	if answer == "" {
		return FallbackReply, nil
	}
	return answer, nil
}

// buildPrompt assembles the single instruction block sent as the user
// message: grounding rules, the joined document context, and the verbatim
// question. Snippets beyond the context token budget are dropped tail-first.
func (c *Composer) buildPrompt(question string, snippets []string) string {
	const scaffolding = "You are an AI assistant that answers questions using ONLY the provided document context.\n" +
		"If the answer is not clearly contained in the context, say that you cannot find it " +
		"in the document. Do NOT invent facts.\n\n"

	fixed := budget.Estimate(scaffolding) + budget.Estimate(question) + 16
	snippets = budget.TrimSnippets(snippets, fixed, c.maxContextTokens)
	contextBlock := strings.Join(snippets, "\n\n")

	var b strings.Builder
	b.WriteString(scaffolding)
	b.WriteString("Document context:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nUser question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
