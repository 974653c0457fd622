// Package notify computes eligible alert recipients for a detection and
// fans notifications out across channels, with per-attempt logging and
// storage-backed dedup.
package notify

import "context"

// Message is one rendered notification ready for dispatch.
type Message struct {
	Title string
	Body  string
}

// Provider defines a delivery backend for one channel. Implementations
// must be safe for concurrent use.
type Provider interface {
	GetName() string
	ValidateConfig() error
	Send(ctx context.Context, to string, msg *Message) error
	IsEnabled() bool
}
