// Package models contains shared data models used across the alumnitrack codebase.
package models

import "context"

// Summarizer is the interface every AI integration implements.
// Callers depend on this interface, never on a concrete provider.
type Summarizer interface {
	// SummarizeProfile writes a short professional summary of a scraped profile.
	SummarizeProfile(ctx context.Context, profile ProfileFields) (string, error)
	// Name returns the provider identifier (e.g., "gemini", "ollama").
	Name() string
}
