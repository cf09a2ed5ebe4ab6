package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/simoradar/internal/model"
	"github.com/amishk599/simoradar/internal/retry"
)

// ResourceConfig describes the paged JSON endpoint.
type ResourceConfig struct {
	URL         string
	PageSize    int
	MaxPages    int    // 0 means no cap
	TotalHeader string // response header carrying "start-end/total"
	PageTimeout time.Duration
	// Concurrency > 1 prefetches pages after the first in parallel. Pages are
	// still yielded in index order.
	Concurrency int
}

// ResourceDriver walks a numbered resource: page p of size s is requested as
// ?page=p&size=s with a matching Range header.
type ResourceDriver struct {
	cfg    ResourceConfig
	client *http.Client
	retry  *retry.Policy
	logger *slog.Logger
}

// Ensure ResourceDriver implements model.PaginationDriver.
var _ model.PaginationDriver = (*ResourceDriver)(nil)

// NewResourceDriver creates a driver for the endpoint in cfg.
func NewResourceDriver(cfg ResourceConfig, client *http.Client, policy *retry.Policy, logger *slog.Logger) *ResourceDriver {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.TotalHeader == "" {
		cfg.TotalHeader = "Content-Range"
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceDriver{cfg: cfg, client: client, retry: policy, logger: logger}
}

func (d *ResourceDriver) Name() string { return "resource" }

// Open returns a cursor positioned before page 0. The endpoint offers no
// server-side filtering; filters are applied downstream.
func (d *ResourceDriver) Open(_ context.Context, _ model.Filters) (model.Cursor, error) {
	return &resourceCursor{d: d}, nil
}

type resourcePage struct {
	records []model.RawRecord
	total   int
	err     error
}

type resourceCursor struct {
	d        *ResourceDriver
	next     int // next page to yield
	pages    int // bound established from the first response
	yielded  int
	done     bool
	prefetch map[int]resourcePage
}

func (c *resourceCursor) Pages() int { return c.yielded }

func (c *resourceCursor) Next(ctx context.Context) ([]model.RawRecord, bool, error) {
	if c.done {
		return nil, true, nil
	}

	p := c.next
	if p == 0 {
		return c.first(ctx)
	}

	var page resourcePage
	if c.prefetch != nil {
		page = c.prefetch[p]
		delete(c.prefetch, p)
	} else {
		page = c.d.fetch(ctx, p)
	}
	c.next++
	c.yielded++

	if page.err != nil {
		c.done = c.next >= c.pages
		c.d.logger.Warn("resource page failed, continuing", "page", p, "error", page.err)
		return nil, c.done, &model.AcquisitionIOError{Page: p, Err: page.err}
	}
	c.done = len(page.records) == 0 || c.next >= c.pages
	return page.records, c.done, nil
}

func (c *resourceCursor) first(ctx context.Context) ([]model.RawRecord, bool, error) {
	page := c.d.fetch(ctx, 0)
	if page.err != nil {
		c.done = true
		return nil, true, &model.AcquisitionFatalError{Page: 0, Reason: "first page failed", Err: page.err}
	}
	if page.total <= 0 {
		c.done = true
		return nil, true, &model.AcquisitionFatalError{Page: 0, Reason: "missing or malformed " + c.d.cfg.TotalHeader + " header"}
	}

	size := c.d.cfg.PageSize
	c.pages = (page.total + size - 1) / size
	if limit := c.d.cfg.MaxPages; limit > 0 && c.pages > limit {
		c.d.logger.Info("page cap reached", "pages", c.pages, "max_pages", limit)
		c.pages = limit
	}
	c.d.logger.Debug("resource total established", "total", page.total, "pages", c.pages, "page_size", size)

	c.next = 1
	c.yielded = 1
	c.done = len(page.records) == 0 || c.next >= c.pages
	if !c.done && c.d.cfg.Concurrency > 1 {
		c.prefetch = c.d.fetchRange(ctx, 1, c.pages)
	}
	return page.records, c.done, nil
}

// fetchRange fetches pages [from, to) with bounded parallelism. Failures are
// kept per page so the cursor applies the same policy as sequential paging.
func (d *ResourceDriver) fetchRange(ctx context.Context, from, to int) map[int]resourcePage {
	results := make([]resourcePage, to-from)
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for p := from; p < to; p++ {
		g.Go(func() error {
			results[p-from] = d.fetch(ctx, p)
			return nil
		})
	}
	g.Wait()

	out := make(map[int]resourcePage, len(results))
	for i, r := range results {
		out[from+i] = r
	}
	return out
}

func (d *ResourceDriver) fetch(ctx context.Context, p int) resourcePage {
	page, err := retry.Do(ctx, d.retry, "resource page "+strconv.Itoa(p), func(ctx context.Context) (resourcePage, error) {
		return d.fetchOnce(ctx, p)
	})
	if err != nil {
		return resourcePage{err: err}
	}
	return page
}

func (d *ResourceDriver) fetchOnce(ctx context.Context, p int) (resourcePage, error) {
	ctx, cancel := withTimeout(ctx, d.cfg.PageTimeout)
	defer cancel()

	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return resourcePage{}, fmt.Errorf("parse resource url: %w", err)
	}
	size := d.cfg.PageSize
	q := u.Query()
	q.Set("page", strconv.Itoa(p))
	q.Set("size", strconv.Itoa(size))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return resourcePage{}, fmt.Errorf("resource page %d request: %w", p, err)
	}
	start := p * size
	req.Header.Set("Range", fmt.Sprintf("items=%d-%d", start, start+size-1))
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return resourcePage{}, fmt.Errorf("resource page %d fetch: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return resourcePage{}, statusError(resp, fmt.Sprintf("resource page %d", p))
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return resourcePage{}, fmt.Errorf("resource page %d decode: %w", p, err)
	}

	records := make([]model.RawRecord, 0, len(items))
	for i, item := range items {
		records = append(records, model.RawRecord{
			Kind:  model.RawStructured,
			Data:  item,
			Page:  p,
			Index: i,
		})
	}
	return resourcePage{records: records, total: ParseTotal(resp.Header.Get(d.cfg.TotalHeader))}, nil
}
