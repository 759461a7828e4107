package models

import (
	"fmt"
	"net/http"
)

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// FetchError reports a failure to retrieve raw text from the upstream publisher:
// transport errors, deadline expiry and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed: upstream returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether retrying later could succeed
func (e *FetchError) IsTransient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// UnknownCatalogEntryError is returned when a region or parameter code has no
// catalog row and creation was not allowed.
type UnknownCatalogEntryError struct {
	Kind string // "region" or "parameter"
	Code string
}

func (e *UnknownCatalogEntryError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Code)
}

func (e *UnknownCatalogEntryError) IsTransient() bool {
	return false
}

// MalformedLineError describes a line or value the parser dropped.
// It is reported to observers and never propagated out of a parse.
type MalformedLineError struct {
	Line   int
	Text   string
	Token  string
	Reason string
}

func (e *MalformedLineError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Token)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *MalformedLineError) IsTransient() bool {
	return false
}
