package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/amishk599/simoradar/internal/model"
)

// filterControls maps filter keys to the search form's select names, in the
// order they are applied. City options depend on the department selection.
var filterControls = []struct {
	key     string
	control string
	value   func(model.Filters) string
}{
	{"department", "departamento", func(f model.Filters) string { return f.Department }},
	{"city", "ciudad", func(f model.Filters) string { return f.City }},
	{"entity", "entidad", func(f model.Filters) string { return f.Entity }},
	{"level", "nivel", func(f model.Filters) string { return f.Level }},
	{"contest_type", "tipoConcurso", func(f model.Filters) string { return f.ContestType }},
	{"disability", "discapacidad", func(f model.Filters) string { return f.Disability }},
}

// InteractiveConfig tunes the page-turn detection.
type InteractiveConfig struct {
	PollAttempts  int
	PollInterval  time.Duration
	ActionTimeout time.Duration // bound on each page action
	MaxPages      int           // 0 means no cap
}

// InteractiveDriver pages through the rendered search results by acting on
// the next-page control and watching the first row's identity change.
type InteractiveDriver struct {
	opener PageOpener
	cfg    InteractiveConfig
	logger *slog.Logger
}

// Ensure InteractiveDriver implements model.PaginationDriver.
var _ model.PaginationDriver = (*InteractiveDriver)(nil)

// NewInteractiveDriver creates a driver over sessions from opener.
func NewInteractiveDriver(opener PageOpener, cfg InteractiveConfig, logger *slog.Logger) *InteractiveDriver {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 300 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InteractiveDriver{opener: opener, cfg: cfg, logger: logger}
}

func (d *InteractiveDriver) Name() string { return "interactive" }

// Open starts a session, selects every filter the form offers a control for
// and submits the search. A value with no matching option fails with
// *model.FilterValidationError before any paging.
func (d *InteractiveDriver) Open(ctx context.Context, filters model.Filters) (model.Cursor, error) {
	page, err := d.opener.Open(ctx)
	if err != nil {
		return nil, &model.AcquisitionFatalError{Page: 0, Reason: "open search page", Err: err}
	}

	if err := d.applyFilters(ctx, page, filters); err != nil {
		page.Close()
		return nil, err
	}

	actx, cancel := withTimeout(ctx, d.cfg.ActionTimeout)
	err = page.Submit(actx)
	cancel()
	if err != nil {
		page.Close()
		return nil, &model.AcquisitionFatalError{Page: 0, Reason: "submit search", Err: err}
	}

	return &interactiveCursor{d: d, page: page}, nil
}

func (d *InteractiveDriver) applyFilters(ctx context.Context, page Page, filters model.Filters) error {
	for _, fc := range filterControls {
		want := strings.TrimSpace(fc.value(filters))
		if want == "" {
			continue
		}

		actx, cancel := withTimeout(ctx, d.cfg.ActionTimeout)
		options, err := page.Options(actx, fc.control)
		cancel()
		if errors.Is(err, ErrControlNotFound) {
			d.logger.Debug("no form control for filter, applying downstream only", "filter", fc.key)
			continue
		}
		if err != nil {
			return &model.AcquisitionFatalError{Page: 0, Reason: "read " + fc.control + " options", Err: err}
		}

		label, ok := matchOption(options, want)
		if !ok {
			return &model.FilterValidationError{Filter: fc.key, Value: want, Options: options}
		}

		actx, cancel = withTimeout(ctx, d.cfg.ActionTimeout)
		err = page.SelectOption(actx, fc.control, label)
		cancel()
		if err != nil {
			return &model.AcquisitionFatalError{Page: 0, Reason: "select " + fc.control, Err: err}
		}
		d.logger.Debug("filter selected", "filter", fc.key, "option", label)
	}
	return nil
}

// FilterOptions lists the labels offered by each filter control, keyed by
// filter name. Controls missing from the page are omitted.
func (d *InteractiveDriver) FilterOptions(ctx context.Context) (map[string][]string, error) {
	page, err := d.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open search page: %w", err)
	}
	defer page.Close()

	out := make(map[string][]string)
	for _, fc := range filterControls {
		actx, cancel := withTimeout(ctx, d.cfg.ActionTimeout)
		options, err := page.Options(actx, fc.control)
		cancel()
		if errors.Is(err, ErrControlNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s options: %w", fc.control, err)
		}
		out[fc.key] = options
	}
	return out, nil
}

// matchOption finds the option whose label equals want. Labels are compared
// after trimming and NFC normalization only. The option's own spelling is
// returned.
func matchOption(options []string, want string) (string, bool) {
	w := norm.NFC.String(strings.TrimSpace(want))
	for _, o := range options {
		if norm.NFC.String(strings.TrimSpace(o)) == w {
			return o, true
		}
	}
	return "", false
}

type interactiveCursor struct {
	d       *InteractiveDriver
	page    Page
	index   int // page about to be read
	yielded int
	done    bool
	closed  bool
}

func (c *interactiveCursor) Pages() int { return c.yielded }

// Close releases the page session. Safe to call more than once.
func (c *interactiveCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.page.Close()
}

func (c *interactiveCursor) finish() ([]model.RawRecord, bool, error) {
	c.done = true
	c.Close()
	return nil, true, nil
}

func (c *interactiveCursor) Next(ctx context.Context) ([]model.RawRecord, bool, error) {
	if c.done {
		return nil, true, nil
	}

	if c.index > 0 {
		advanced, err := c.advance(ctx)
		if err != nil {
			c.done = true
			c.Close()
			return nil, true, err
		}
		if !advanced {
			return c.finish()
		}
	}

	p := c.index
	actx, cancel := withTimeout(ctx, c.d.cfg.ActionTimeout)
	rows, err := c.page.Rows(actx)
	cancel()
	c.index++

	if err != nil {
		if p == 0 {
			c.done = true
			c.Close()
			return nil, true, &model.AcquisitionFatalError{Page: 0, Reason: "read rows", Err: err}
		}
		c.yielded++
		c.d.logger.Warn("reading rows failed, continuing", "page", p, "error", err)
		return nil, c.capped(), &model.AcquisitionIOError{Page: p, Err: err}
	}
	if len(rows) == 0 {
		return c.finish()
	}
	c.yielded++

	records := make([]model.RawRecord, 0, len(rows))
	for i, r := range rows {
		records = append(records, model.RawRecord{
			Kind:     model.RawText,
			Text:     r.Text,
			SourceID: r.ID,
			Page:     p,
			Index:    i,
		})
	}
	c.d.logger.Debug("page read", "page", p, "rows", len(rows))
	return records, c.capped(), nil
}

// capped marks the cursor done once the page cap is reached.
func (c *interactiveCursor) capped() bool {
	if c.d.cfg.MaxPages > 0 && c.index >= c.d.cfg.MaxPages {
		c.done = true
		c.Close()
	}
	return c.done
}

// advance turns the page. It reports false when there is no further page: the
// control is missing or disabled, or neither a click nor the double-click
// fallback changed the first row. An empty first row after a turn means the
// anchor was lost. When both turn actions fail outright the page is reported
// as an *model.AcquisitionIOError.
func (c *interactiveCursor) advance(ctx context.Context) (bool, error) {
	actx, cancel := withTimeout(ctx, c.d.cfg.ActionTimeout)
	before, err := c.page.FirstRowID(actx)
	cancel()
	if err != nil || before == "" {
		return false, &model.AcquisitionFatalError{Page: c.index, Reason: "pagination anchor lost", Err: err}
	}

	actx, cancel = withTimeout(ctx, c.d.cfg.ActionTimeout)
	enabled, err := c.page.NextEnabled(actx)
	cancel()
	if err != nil || !enabled {
		c.d.logger.Debug("next control unavailable", "page", c.index, "error", err)
		return false, nil
	}

	attempts := []struct {
		name string
		act  func(context.Context) error
	}{
		{"click", c.page.ClickNext},
		{"double-click", c.page.DoubleClickNext},
	}

	last := before
	var actErrs []error
	for _, a := range attempts {
		actx, cancel := withTimeout(ctx, c.d.cfg.ActionTimeout)
		err := a.act(actx)
		cancel()
		if err != nil {
			c.d.logger.Debug("page turn action failed", "action", a.name, "page", c.index, "error", err)
			actErrs = append(actErrs, fmt.Errorf("%s: %w", a.name, err))
			continue
		}

		id, changed, err := c.waitForChange(ctx, before)
		if err != nil {
			return false, err
		}
		if changed {
			return true, nil
		}
		last = id
	}

	if last == "" {
		return false, &model.AcquisitionFatalError{Page: c.index, Reason: "pagination anchor lost"}
	}
	if len(actErrs) == len(attempts) {
		err := errors.Join(actErrs...)
		c.d.logger.Warn("page turn failed, remaining pages dropped", "page", c.index, "error", err)
		return false, &model.AcquisitionIOError{Page: c.index, Err: err}
	}
	return false, nil
}

// waitForChange polls the first row id until it differs from before and is
// non-empty. It returns the last id observed.
func (c *interactiveCursor) waitForChange(ctx context.Context, before string) (string, bool, error) {
	var id string
	for i := 0; i < c.d.cfg.PollAttempts; i++ {
		actx, cancel := withTimeout(ctx, c.d.cfg.ActionTimeout)
		got, err := c.page.FirstRowID(actx)
		cancel()
		if err == nil {
			id = got
			if id != "" && id != before {
				return id, true, nil
			}
		}

		select {
		case <-ctx.Done():
			return id, false, fmt.Errorf("waiting for page turn: %w", ctx.Err())
		case <-time.After(c.d.cfg.PollInterval):
		}
	}
	return id, false, nil
}
