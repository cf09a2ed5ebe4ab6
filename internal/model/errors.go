package model

import (
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// FilterValidationError means a filter value has no matching option on the
// source's search form. Raised before any paging starts.
type FilterValidationError struct {
	Filter  string
	Value   string
	Options []string
}

func (e *FilterValidationError) Error() string {
	return fmt.Sprintf("filter %s: no option labelled %q (%d options available)", e.Filter, e.Value, len(e.Options))
}

// AcquisitionIOError is a recoverable failure on a single page. The page is
// treated as empty and the pass continues.
type AcquisitionIOError struct {
	Page int
	Err  error
}

func (e *AcquisitionIOError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *AcquisitionIOError) Unwrap() error { return e.Err }

// AcquisitionFatalError aborts the pass: the first page failed, the total
// could not be established, or the pagination anchor was lost.
type AcquisitionFatalError struct {
	Page   int
	Reason string
	Err    error
}

func (e *AcquisitionFatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquisition aborted on page %d: %s: %v", e.Page, e.Reason, e.Err)
	}
	return fmt.Sprintf("acquisition aborted on page %d: %s", e.Page, e.Reason)
}

func (e *AcquisitionFatalError) Unwrap() error { return e.Err }

// ExtractionPartialFailure means a raw record could not yield the mandatory
// fields. The record is skipped and counted.
type ExtractionPartialFailure struct {
	SourceID string
	Reason   string
}

func (e *ExtractionPartialFailure) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("extract %s: %s", e.SourceID, e.Reason)
	}
	return "extract: " + e.Reason
}

// ReconciliationError wraps a persistence failure of a single record.
type ReconciliationError struct {
	ExternalID string
	Err        error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.ExternalID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
