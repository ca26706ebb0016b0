// Package budget provides token budget estimation and context trimming for
// the answering pipeline. Because the service supports multiple LLM backends
// with different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default prompt context budget in
	// tokens. Conservative enough to fit within 8k-context models while
	// leaving room for the answer. Override via MODEL_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateAll returns the estimated total token count for a slice of strings.
func EstimateAll(ss []string) int {
	total := 0
	for _, s := range ss {
		total += Estimate(s)
	}
	return total
}

// TrimSnippets drops retrieved snippets from the tail until the estimated
// token count of fixed + snippets fits within maxTokens. fixed is the token
// cost of the prompt scaffolding and question, which are never trimmed.
//
// Snippets arrive in descending relevance order, so the least relevant are
// dropped first. The best snippet is always kept even when it alone exceeds
// the budget — an over-long prompt beats an ungrounded one.
func TrimSnippets(snippets []string, fixed, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	for len(snippets) > 1 {
		if fixed+EstimateAll(snippets) <= maxTokens {
			break
		}
		snippets = snippets[:len(snippets)-1]
	}
	return snippets
}
