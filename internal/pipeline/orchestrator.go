package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/amishk599/simoradar/internal/model"
)

// State is the orchestrator's lifecycle position.
type State string

const (
	StateInit   State = "INIT"
	StatePaging State = "PAGING"
	StateDone   State = "DONE"
	StateFailed State = "FAILED"
)

// Result is everything one pass acquired. Counts are valid in every final
// state; on failure they reflect the pages processed before the abort.
type Result struct {
	Records     []model.JobRecord // matched records, source order, deduplicated
	ExternalIDs []string          // every distinct id seen, including filtered and inactive

	Pages              int
	Found              int // distinct records extracted
	Duplicates         int
	Filtered           int // extracted but rejected by the filter
	ExtractionFailures int
	PageErrors         int

	State State
	Err   error
}

// PageProgress is reported after each page.
type PageProgress struct {
	Page    int // 1-based count of pages processed
	Rows    int // raw records on this page
	Found   int // running distinct total
	Matched int // running matched total
}

// Orchestrator runs one acquisition pass: page through the driver, extract
// each raw record, deduplicate by external id and filter.
// INIT → PAGING → DONE | FAILED.
type Orchestrator struct {
	driver    model.PaginationDriver
	extractor model.Extractor
	filter    model.RecordFilter
	maxPages  int
	onPage    func(PageProgress)
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator wired with all its dependencies.
func NewOrchestrator(
	driver model.PaginationDriver,
	extractor model.Extractor,
	filter model.RecordFilter,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		driver:    driver,
		extractor: extractor,
		filter:    filter,
		logger:    logger,
	}
}

// SetMaxPages caps the pages processed per pass. Reaching the cap ends the
// pass normally. Zero removes the cap.
func (o *Orchestrator) SetMaxPages(n int) { o.maxPages = n }

// SetOnPage registers a hook called after every page.
func (o *Orchestrator) SetOnPage(fn func(PageProgress)) { o.onPage = fn }

// Source names the driver in use.
func (o *Orchestrator) Source() string { return o.driver.Name() }

// Run executes a pass. The returned Result is never nil; err is non-nil
// exactly when the final state is FAILED.
func (o *Orchestrator) Run(ctx context.Context, filters model.Filters) (*Result, error) {
	res := &Result{State: StateInit}

	cursor, err := o.driver.Open(ctx, filters)
	if err != nil {
		return res.fail(fmt.Errorf("open %s cursor: %w", o.driver.Name(), err))
	}
	if c, ok := cursor.(io.Closer); ok {
		defer c.Close()
	}

	res.State = StatePaging
	seen := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return res.fail(fmt.Errorf("cancelled after %d pages: %w", res.Pages, err))
		}
		if o.maxPages > 0 && res.Pages >= o.maxPages {
			o.logger.Info("page cap reached", "source", o.driver.Name(), "pages", res.Pages)
			break
		}

		raws, done, err := cursor.Next(ctx)
		res.Pages = cursor.Pages()
		if err != nil {
			if ctx.Err() != nil {
				return res.fail(fmt.Errorf("cancelled after %d pages: %w", res.Pages, ctx.Err()))
			}
			var ioErr *model.AcquisitionIOError
			if !errors.As(err, &ioErr) {
				return res.fail(err)
			}
			res.PageErrors++
			o.logger.Warn("page skipped", "source", o.driver.Name(), "page", ioErr.Page, "error", ioErr.Err)
			if done {
				break
			}
			continue
		}

		for _, raw := range raws {
			rec, err := o.extractor.Extract(raw)
			if err != nil {
				res.ExtractionFailures++
				o.logger.Debug("record skipped", "page", raw.Page, "index", raw.Index, "error", err)
				continue
			}
			if _, dup := seen[rec.ExternalID]; dup {
				res.Duplicates++
				continue
			}
			seen[rec.ExternalID] = struct{}{}
			res.ExternalIDs = append(res.ExternalIDs, rec.ExternalID)
			res.Found++

			if o.filter.Match(rec, filters) {
				res.Records = append(res.Records, rec)
			} else {
				res.Filtered++
			}
		}

		if o.onPage != nil && len(raws) > 0 {
			o.onPage(PageProgress{Page: res.Pages, Rows: len(raws), Found: res.Found, Matched: len(res.Records)})
		}
		if done {
			break
		}
	}

	res.State = StateDone
	o.logger.Info("acquisition finished",
		"source", o.driver.Name(),
		"pages", res.Pages,
		"found", res.Found,
		"matched", len(res.Records),
		"duplicates", res.Duplicates,
		"extraction_failures", res.ExtractionFailures,
		"page_errors", res.PageErrors,
	)
	return res, nil
}

func (r *Result) fail(err error) (*Result, error) {
	r.State = StateFailed
	r.Err = err
	return r, err
}
