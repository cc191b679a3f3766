package revue

import (
	"context"
	"net/url"
)

// API defines the interface for the Revue SDK.
type API interface {
	// Lists returns every subscriber list of the account.
	Lists(ctx context.Context) (*Response, error)

	// ListByID returns a single list.
	ListByID(ctx context.Context, id string) (*Response, error)

	// Exports returns all exports as keyed records.
	Exports(ctx context.Context) (*Response, error)

	// RawExports returns all exports as Revue sends them, one tuple per export.
	RawExports(ctx context.Context) (*Response, error)

	// ExportByID returns a single export with its download links.
	ExportByID(ctx context.Context, id string) (*Response, error)

	// ExportList starts an export of the given list.
	ExportList(ctx context.Context, listID string) (*Response, error)

	// Issues returns issues for the given stage.
	Issues(ctx context.Context, stage Stage) (*Response, error)

	// Subscribers returns the active subscribers.
	Subscribers(ctx context.Context) (*Response, error)

	// Subscribe adds a subscriber.
	Subscribe(ctx context.Context, email string, fields map[string]any) (*Response, error)

	// Unsubscribed returns the subscribers who left.
	Unsubscribed(ctx context.Context) (*Response, error)

	// Me returns the account profile the token belongs to.
	Me(ctx context.Context) (*Response, error)

	// Items returns the items of the current issue.
	Items(ctx context.Context) (*Response, error)

	// AddItems attaches an item to an issue.
	AddItems(ctx context.Context, issueID string, data url.Values) (*Response, error)
}

var _ API = (*Client)(nil)
