package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/amishk599/simoradar/internal/model"
)

// Ensure Extractor implements model.Extractor.
var _ model.Extractor = (*Extractor)(nil)

// Extractor turns RawRecords of either shape into JobRecords.
// It holds no state besides the clock used to stamp AcquiredAt.
type Extractor struct {
	now func() time.Time
}

// New returns an Extractor stamping records with the wall clock.
func New() *Extractor {
	return &Extractor{now: time.Now}
}

// WithClock returns a copy of e reading the time from now.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	cp := *e
	cp.now = now
	return &cp
}

// Extract dispatches on the raw record's shape. The error, when non-nil, is an
// *model.ExtractionPartialFailure and the record must be skipped.
func (e *Extractor) Extract(raw model.RawRecord) (model.JobRecord, error) {
	var (
		rec model.JobRecord
		err error
	)
	switch raw.Kind {
	case model.RawStructured:
		rec, err = fromStructured(raw)
	case model.RawText, "":
		rec, err = fromText(raw)
	default:
		return model.JobRecord{}, &model.ExtractionPartialFailure{
			SourceID: raw.SourceID,
			Reason:   fmt.Sprintf("unknown raw kind %q", raw.Kind),
		}
	}
	if err != nil {
		return model.JobRecord{}, err
	}

	// A municipality is only meaningful inside a department.
	if rec.Department == "" {
		rec.Municipality = ""
	}
	rec.AcquiredAt = e.clock().UTC()
	return rec, nil
}

func (e *Extractor) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

// clean normalizes to NFC, replaces non-breaking spaces and collapses runs of
// whitespace.
func clean(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// ParseSalary reads an amount such as "$ 4.500.000" or "4500000,50".
// Dots are thousands separators and a comma introduces decimals, the way the
// portal formats pesos. Returns nil when no digits are present.
func ParseSalary(s string) *float64 {
	var intPart, fracPart strings.Builder
	inFrac := false
scan:
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			if inFrac {
				fracPart.WriteRune(r)
			} else {
				intPart.WriteRune(r)
			}
		case r == ',' && intPart.Len() > 0 && !inFrac:
			inFrac = true
		case r == '.' || r == '$' || unicode.IsSpace(r):
		default:
			if intPart.Len() > 0 {
				break scan
			}
		}
	}
	if intPart.Len() == 0 {
		return nil
	}
	num := intPart.String()
	if fracPart.Len() > 0 {
		num += "." + fracPart.String()
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return nil
	}
	return &v
}

// contentID derives a stable identifier for records whose source published
// no id, so reconciliation still has a key.
func contentID(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "h" + hex.EncodeToString(sum[:8])
}
