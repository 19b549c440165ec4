package tokenizer

// Estimate returns an approximate token count for text. It is called at
// the HTTP boundary to populate RequestMetadata.TokenEstimate before a
// target endpoint has been chosen, so it can't resolve a tokenizer for a
// specific model — it uses the tiktoken cl100k_base encoding shared by
// most OpenAI-compatible chat models as a representative stand-in, and
// falls back to a CJK-aware character estimate if that encoding can't be
// loaded.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	if enc := sharedEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimateByChars(text)
}
