package store

import "time"

// List is a list in the external reminder store.
type List struct {
	ExternalID string
	Title      string
	ColorHex   string
}

// Item is a single reminder item in the external store.
type Item struct {
	ExternalID     string
	ListExternalID string
	Title          string
	Notes          string
	IsCompleted    bool
	DueAt          *time.Time
}
