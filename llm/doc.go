// Package llm groups the subsystems that route a chat request to a
// healthy upstream model endpoint and execute it.
//
//   - llm/router: tier selection, health tracking, retry/failover, the
//     rule-based and LLM-based classifiers and their hybrid combination.
//   - llm/client: the outbound OpenAI-compatible HTTP transport.
//   - llm/retry: the generic exponential-backoff retryer used to
//     supervise the background health-check loop.
//   - llm/tokenizer: token estimation used to compute request metadata.
package llm
