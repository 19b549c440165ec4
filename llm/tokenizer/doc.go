// Package tokenizer estimates the token count of a request's text,
// preferring a real tiktoken encoding and falling back to a CJK-aware
// character estimate, used to populate request metadata before routing.
package tokenizer
