package usecase

// estimateTokens approximates the model-token cost of a text without a
// tokenizer dependency. Four characters per token tracks the usual
// English-text average closely enough for budgeting.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := (len(text) + 3) / 4
	if tokens < 1 {
		return 1
	}
	return tokens
}
