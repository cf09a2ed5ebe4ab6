package driver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/simoradar/internal/model"
)

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// statusError turns a non-success response into a *model.HTTPError carrying
// the Retry-After hint. The body is drained so the connection can be reused.
func statusError(resp *http.Response, what string) error {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Err:        fmt.Errorf("%s: unexpected status %d", what, resp.StatusCode),
	}
}

// withTimeout bounds a single call. A zero timeout leaves ctx untouched.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

var reTotal = regexp.MustCompile(`^(?:[A-Za-z]+\s+)?(?:\d+\s*-\s*\d+|\*)\s*/\s*(\d+)$`)

// ParseTotal reads the total element count from a range header such as
// "items 0-49/5220" or "0-49/5220". It returns 0 when the header is absent or
// malformed.
func ParseTotal(header string) int {
	m := reTotal.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
