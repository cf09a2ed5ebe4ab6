package driver

import (
	"context"
	"errors"
)

// ErrControlNotFound is returned by Page.Options and Page.SelectOption when
// the page has no filter control with the given name.
var ErrControlNotFound = errors.New("filter control not found")

// Row is one visible result row.
type Row struct {
	ID   string // row identity attribute, e.g. "dgrid_0-row-183214"
	Text string // visible text, one field per line
}

// Page is a live session on the search page. Implementations keep the UI
// state between calls; the interactive cursor drives it strictly in order.
type Page interface {
	Options(ctx context.Context, control string) ([]string, error)
	SelectOption(ctx context.Context, control, label string) error
	Submit(ctx context.Context) error
	Rows(ctx context.Context) ([]Row, error)
	FirstRowID(ctx context.Context) (string, error)
	NextEnabled(ctx context.Context) (bool, error)
	ClickNext(ctx context.Context) error
	DoubleClickNext(ctx context.Context) error
	Close() error
}

// PageOpener starts a new session on the search page.
type PageOpener interface {
	Open(ctx context.Context) (Page, error)
}
