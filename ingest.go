package docrag

import (
	"context"
	"fmt"
)

// PageState is the position of a page in the ingestion state machine:
//
//	Received -> Chunked -> Embedded -> Stored -> Completed
//
// Any non-terminal state may move to Failed.
type PageState int

// Page ingestion states.
const (
	PageReceived PageState = iota
	PageChunked
	PageEmbedded
	PageStored
	PageCompleted
	PageFailed
)

var pageStateNames = [...]string{
	PageReceived:  "received",
	PageChunked:   "chunked",
	PageEmbedded:  "embedded",
	PageStored:    "stored",
	PageCompleted: "completed",
	PageFailed:    "failed",
}

// String returns the lowercase state name.
func (s PageState) String() string {
	if s < 0 || int(s) >= len(pageStateNames) {
		return fmt.Sprintf("PageState(%d)", int(s))
	}
	return pageStateNames[s]
}

// Terminal returns true for Completed and Failed.
func (s PageState) Terminal() bool {
	return s == PageCompleted || s == PageFailed
}

// Advance returns the state that follows s once the current stage finishes
// with err. A nil err moves to the next stage; a non-nil err moves to Failed.
// Terminal states cannot advance.
func (s PageState) Advance(err error) (PageState, error) {
	if s.Terminal() {
		return s, Errorf(EINVALID, "page state %s is terminal", s)
	}
	if s < PageReceived || s > PageStored {
		return s, Errorf(EINVALID, "unknown page state %d", int(s))
	}
	if err != nil {
		return PageFailed, nil
	}
	return s + 1, nil
}

// PageStatus summarizes the outcome of a page ingestion.
type PageStatus string

// Page ingestion statuses.
const (
	StatusSuccess PageStatus = "success"
	StatusPartial PageStatus = "partial"
	StatusFailure PageStatus = "failure"
)

// PageOutcome reports the ingestion of a single page.
type PageOutcome struct {
	URL   string    `json:"url"`
	State PageState `json:"state"`

	// Stage in which the page failed. Only meaningful when State is PageFailed.
	FailedAt PageState `json:"failedAt"`

	ContentLength int   `json:"contentLength"`
	Chunks        int   `json:"chunks"`
	Stored        int   `json:"stored"`
	FailedChunks  []int `json:"failedChunks,omitempty"`
	Tokens        int   `json:"tokens,omitempty"`

	Err error `json:"-"`
}

// Status derives the outcome status from the final state and failed chunks.
func (o *PageOutcome) Status() PageStatus {
	switch {
	case o.State == PageFailed || !o.State.Terminal():
		return StatusFailure
	case len(o.FailedChunks) > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

// Advance moves the outcome to the next state given the stage result.
// A failing stage records the stage it failed in and the error.
func (o *PageOutcome) Advance(err error) {
	from := o.State
	next, aerr := from.Advance(err)
	if aerr != nil {
		return
	}
	if next == PageFailed {
		o.FailedAt = from
		o.Err = err
	}
	o.State = next
}

// Fail moves the outcome straight to Failed, e.g. when the page could not
// be crawled or was canceled before it started.
func (o *PageOutcome) Fail(err error) {
	if o.State.Terminal() {
		return
	}
	o.FailedAt = o.State
	o.State = PageFailed
	o.Err = err
}

// BatchResult reports a multi-page ingestion.
type BatchResult struct {
	ID    string         `json:"id"`
	Pages []*PageOutcome `json:"pages"` // Input order
}

// Count returns the number of pages with the given status.
func (r *BatchResult) Count(status PageStatus) int {
	var n int
	for _, p := range r.Pages {
		if p.Status() == status {
			n++
		}
	}
	return n
}

// Stored returns the total number of records written by the batch.
func (r *BatchResult) Stored() int {
	var n int
	for _, p := range r.Pages {
		n += p.Stored
	}
	return n
}

// Status returns success when every page succeeded, failure when none
// stored anything useful, and partial otherwise.
func (r *BatchResult) Status() PageStatus {
	succeeded := r.Count(StatusSuccess)
	switch {
	case succeeded == len(r.Pages):
		return StatusSuccess
	case succeeded == 0 && r.Count(StatusPartial) == 0:
		return StatusFailure
	default:
		return StatusPartial
	}
}

// Ingester runs pages through the chunk, embed and store pipeline.
type Ingester interface {
	// IngestPage crawls and ingests a single URL.
	IngestPage(ctx context.Context, url string) *PageOutcome

	// IngestContent ingests an already crawled page.
	IngestContent(ctx context.Context, page *Page) *PageOutcome

	// IngestPages crawls and ingests URLs concurrently. Per-page failures
	// are reported in the result. An ECONFIG failure aborts the batch and
	// is returned together with the outcomes collected so far.
	IngestPages(ctx context.Context, urls []string, opts IngestOptions) (*BatchResult, error)
}

// IngestOptions configures a batch ingestion.
type IngestOptions struct {
	// Maximum number of pages processed at once. Zero uses the
	// implementation default.
	Concurrency int `json:"concurrency,omitempty"`
}
