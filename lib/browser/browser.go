package browser

import (
	"context"
	"errors"
	"time"
)

var ErrObserverAfterNavigation = errors.New("response observer must be attached before the first navigation")

type ResourceType string

const (
	ResourceDocument ResourceType = "Document"
	ResourceXHR      ResourceType = "XHR"
	ResourceFetch    ResourceType = "Fetch"
	ResourceScript   ResourceType = "Script"
	ResourceOther    ResourceType = "Other"
)

// ResponseEvent is a completed network response observed on a page.
type ResponseEvent struct {
	Url          string
	ResourceType ResourceType
	MimeType     string
	Status       int
	Body         []byte
}

// Page is a single browser tab driven sequentially by one caller.
// Every blocking method honors ctx, callers bound waits with
// context.WithTimeout.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Location returns the current url and document title.
	Location(ctx context.Context) (url string, title string, err error)
	// HTML returns a snapshot of the rendered document.
	HTML(ctx context.Context) (string, error)
	// WaitVisible blocks until an element matching selector is visible.
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector string, text string) error
	// PressEscape dispatches an escape key press to the focused element.
	PressEscape(ctx context.Context) error
	// Settle waits until the page has no in-flight requests for a short
	// quiet period, returning after at most max.
	Settle(ctx context.Context, max time.Duration) error
	// Observe attaches a response observer, it must be called before the
	// first Navigate.
	Observe(queue *ResponseQueue) error
	Close() error
}

// Launcher creates pages, each page owns its own browser context.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}
