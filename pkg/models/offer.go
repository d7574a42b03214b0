package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSources is returned when an aggregation is attempted with no sources configured.
	ErrNoSources = errors.New("no sources configured")
	// ErrNoResults marks a backend response that matched zero usable entries.
	ErrNoResults = errors.New("no results")
)

// Offer is one normalized search result.
type Offer struct {
	Platform string `json:"platform"`
	Title    string `json:"title"`
	Price    *int   `json:"price,omitempty"`
	Link     string `json:"link"`
}

// FetchError wraps a failure inside a single source fetch.
type FetchError struct {
	Source string
	Op     string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
