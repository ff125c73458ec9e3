package models

import "errors"

// Sentinel errors shared across layers. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrInvalidInput reports a missing question, document reference or payload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType reports an upload whose MIME type is not PDF or Word.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrPayloadTooLarge reports an upload above the configured ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrNotFound reports a document that does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("not found")

	// ErrExtractionFailed reports a file the text extractor could not read.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrOracle reports a failed language-model call.
	ErrOracle = errors.New("language model call failed")

	// ErrBusy reports a question submitted while another one is still
	// outstanding for the same document.
	ErrBusy = errors.New("request already in progress")
)
