// Package source talks to the remote record source: an OData style REST
// API that serves records page by page and accepts per-record updates.
package source

import (
	"context"

	"github.com/turbolytics/duesync/internal"
)

// Page is one response of a paginated query. Next is the continuation
// cursor; an empty Next means the query is exhausted.
type Page struct {
	Records []internal.Record
	Next    string
}

type Querier interface {
	// Query returns the page addressed by cursor. The empty cursor
	// addresses the first page.
	Query(ctx context.Context, cursor string) (Page, error)
}

type Updater interface {
	// Update marks the record identified by id as processed on the source.
	Update(ctx context.Context, id string) error
}

// Client is an authenticated handle on the source. It is read-only shared
// state for the duration of one run.
type Client interface {
	Querier
	Updater
}

// Connector acquires a fresh credential and returns an authenticated Client.
type Connector interface {
	Connect(ctx context.Context) (Client, error)
}
