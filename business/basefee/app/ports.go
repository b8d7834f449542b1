// Package app contains the connection supervisor, the render scheduling
// controller and the ports they need from infrastructure.
package app

import (
	"context"

	"github.com/fd1az/gaswatch/business/basefee/domain"
)

// Connector opens connections to a node. Connect may be called again after
// any failure.
type Connector interface {
	// Connect dials the node. Returning without error is the "connected" event.
	Connect(ctx context.Context) (Connection, error)

	// Endpoint names the node for status lines.
	Endpoint() string
}

// Connection is one open link to a node.
type Connection interface {
	// Subscribe starts the new-heads stream.
	Subscribe(ctx context.Context) (Subscription, error)

	// Close releases the connection. Safe to call more than once.
	Close()
}

// Subscription is a live header stream.
type Subscription interface {
	// Headers delivers headers in the order the node produced them.
	Headers() <-chan *domain.Block

	// Malformed delivers one error per notification that could not be
	// decoded into a header. The stream stays open.
	Malformed() <-chan error

	// Err delivers the error that ended the stream. A nil value or a
	// closed channel means the stream ended without an error.
	Err() <-chan error

	// Unsubscribe stops the stream. Safe to call more than once.
	Unsubscribe()
}

// Renderer draws the dashboard panel. It is fire-and-forget and may redraw
// the whole display on every call.
type Renderer interface {
	Render(body, title string, emphasized bool)
}

// StatusObserver may be implemented by a Renderer that also wants raw
// connection and staleness signals, e.g. for a status bar.
type StatusObserver interface {
	OnConnectionStatus(state domain.ConnectionState, attempt int, endpoint string)
	OnStale()
	OnError(err error)
}
