package domain

import "errors"

// Sentinel errors for classification with errors.Is. Call sites wrap
// these with fmt.Errorf("...: %w", err) to add context.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedType indicates no loader handles the file extension.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrRequestTooLarge indicates an embedding request exceeded the
	// provider's size limit. The ingestion pipeline bisects batches on
	// this error.
	ErrRequestTooLarge = errors.New("request exceeds provider size limit")

	// ErrEmptyDocument indicates a file parsed but produced no units.
	ErrEmptyDocument = errors.New("document has no extractable content")

	// ErrEmbeddingUnavailable indicates no embedding service is wired.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates no LLM is configured for answering.
	ErrLLMUnavailable = errors.New("llm service unavailable")

	// ErrInvalidInput indicates a malformed argument from the caller.
	ErrInvalidInput = errors.New("invalid input")
)
