package entity

import "errors"

// Domain errors
var (
	// Backend errors
	ErrMissingCredentials = errors.New("RAG service address or API key is missing")
	ErrBackendUnavailable = errors.New("RAG service client is not available")
	ErrRAGService         = errors.New("RAG service request failed")
	ErrChatConnection     = errors.New("chat connection failed")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// File errors
	ErrInvalidFile       = errors.New("invalid file")
	ErrFileTooLarge      = errors.New("file too large")
	ErrTooManyFiles      = errors.New("too many files")
	ErrInvalidExtension  = errors.New("invalid file extension")
	ErrTotalSizeTooLarge = errors.New("total file size too large")

	// Validation errors
	ErrMissingField  = errors.New("required field is missing")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrInvalidFormat = errors.New("invalid format")
)

// IsValidationError reports whether err was caused by bad user input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidFile, ErrFileTooLarge, ErrTooManyFiles, ErrInvalidExtension,
		ErrTotalSizeTooLarge, ErrMissingField, ErrEmptyQuestion, ErrInvalidFormat,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsBackendError reports whether err came from the RAG service.
func IsBackendError(err error) bool {
	return errors.Is(err, ErrRAGService) || errors.Is(err, ErrChatConnection)
}
